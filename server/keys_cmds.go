package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/msredis/msredis/protocol"
	"github.com/msredis/msredis/storage"
)

func (c *Client) del(args [][]byte) protocol.Frame {
	return protocol.Integer(c.db.Del(strs(args)...))
}

func (c *Client) exists(args [][]byte) protocol.Frame {
	return protocol.Integer(c.db.Exists(strs(args)...))
}

func (c *Client) typeCmd(args [][]byte) protocol.Frame {
	return protocol.SimpleString(c.db.Type(string(args[0])).String())
}

func (c *Client) expireIn(args [][]byte, unit time.Duration) protocol.Frame {
	n, err := parseInt(args[1])
	if err != nil {
		return errReply(err)
	}
	d, ok := storage.ExpireDuration(n, unit)
	if !ok {
		return protocol.Error("ERR invalid expire time in 'expire' command")
	}
	return boolReply(c.db.Expire(string(args[0]), time.Now().Add(d)))
}

func (c *Client) expire(args [][]byte) protocol.Frame {
	return c.expireIn(args, time.Second)
}

func (c *Client) pexpire(args [][]byte) protocol.Frame {
	return c.expireIn(args, time.Millisecond)
}

func (c *Client) persist(args [][]byte) protocol.Frame {
	return boolReply(c.db.Persist(string(args[0])))
}

func (c *Client) ttl(args [][]byte) protocol.Frame {
	d := c.db.TTL(string(args[0]))
	if d < 0 {
		return protocol.Integer(int64(d))
	}
	return protocol.Integer((d.Milliseconds() + 500) / 1000)
}

func (c *Client) pttl(args [][]byte) protocol.Frame {
	d := c.db.TTL(string(args[0]))
	if d < 0 {
		return protocol.Integer(int64(d))
	}
	return protocol.Integer(d.Milliseconds())
}

func (c *Client) keys(args [][]byte) protocol.Frame {
	return protocol.StringArray(c.db.Keys(string(args[0]))...)
}

// scan implements SCAN cursor [MATCH pattern] [COUNT count]
func (c *Client) scan(args [][]byte) protocol.Frame {
	cursor, err := strconv.ParseInt(string(args[0]), 10, 64)
	if err != nil || cursor < 0 {
		return protocol.Error("ERR invalid cursor")
	}

	match := ""
	count := int64(10)
	for i := 1; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return syntaxErr()
		}
		switch strings.ToUpper(string(args[i])) {
		case "MATCH":
			match = string(args[i+1])
		case "COUNT":
			count, err = parseInt(args[i+1])
			if err != nil {
				return errReply(err)
			}
			if count < 1 {
				return syntaxErr()
			}
		default:
			return syntaxErr()
		}
	}

	next, keys := c.db.Scan(cursor, match, count)
	return protocol.Array(
		protocol.BulkString(strconv.FormatInt(next, 10)),
		protocol.StringArray(keys...),
	)
}
