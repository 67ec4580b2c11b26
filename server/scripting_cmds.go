package server

import (
	"strconv"
	"strings"

	"github.com/msredis/msredis/protocol"
)

// scriptArgs splits numkeys key ... arg ... into keys and arguments
func scriptArgs(args [][]byte) ([]string, []string, protocol.Frame, bool) {
	numKeys, err := strconv.Atoi(string(args[1]))
	if err != nil {
		return nil, nil, protocol.Error("ERR value is not an integer or out of range"), false
	}
	if numKeys < 0 {
		return nil, nil, protocol.Error("ERR Number of keys can't be negative"), false
	}
	rest := args[2:]
	if numKeys > len(rest) {
		return nil, nil, protocol.Error("ERR Number of keys can't be greater than number of args"), false
	}
	return strs(rest[:numKeys]), strs(rest[numKeys:]), protocol.Frame{}, true
}

func (c *Client) eval(args [][]byte) protocol.Frame {
	keys, argv, errFrame, ok := scriptArgs(args)
	if !ok {
		return errFrame
	}
	script := string(args[0])
	// EVAL caches the body so a following EVALSHA succeeds
	c.server.lua.LoadScript(script)
	reply, err := c.server.lua.Eval(c.ctx, c.db, script, keys, argv)
	if err != nil {
		return errReply(err)
	}
	return reply
}

func (c *Client) evalsha(args [][]byte) protocol.Frame {
	keys, argv, errFrame, ok := scriptArgs(args)
	if !ok {
		return errFrame
	}
	reply, err := c.server.lua.EvalSHA(c.ctx, c.db, string(args[0]), keys, argv)
	if err != nil {
		return errReply(err)
	}
	return reply
}

// script implements SCRIPT LOAD, SCRIPT EXISTS and SCRIPT FLUSH
func (c *Client) script(args [][]byte) protocol.Frame {
	switch sub := strings.ToUpper(string(args[0])); sub {
	case "LOAD":
		if len(args) != 2 {
			return wrongArgs("script|load")
		}
		return protocol.BulkString(c.server.lua.LoadScript(string(args[1])))

	case "EXISTS":
		if len(args) < 2 {
			return wrongArgs("script|exists")
		}
		found := c.server.lua.ScriptExists(strs(args[1:]))
		items := make([]protocol.Frame, len(found))
		for i, ok := range found {
			items[i] = boolReply(ok)
		}
		return protocol.Array(items...)

	case "FLUSH":
		if !flushMode(args[1:]) {
			return syntaxErr()
		}
		c.server.lua.ScriptFlush()
		return protocol.OK()

	default:
		return protocol.Errorf("ERR unknown subcommand '%s'. Try SCRIPT HELP.", strings.ToLower(sub))
	}
}
