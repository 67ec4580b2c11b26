package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/msredis/msredis/lua"
	"github.com/msredis/msredis/protocol"
	"github.com/msredis/msredis/skiplist"
	"github.com/msredis/msredis/storage"
)

type handlerFunc func(c *Client, args [][]byte) protocol.Frame

// command describes a registered command. A positive arity is the exact
// argument count including the name, a negative one the minimum.
type command struct {
	handler handlerFunc
	arity   int
	noAuth  bool
}

func (cmd command) arityOK(n int) bool {
	if cmd.arity >= 0 {
		return n == cmd.arity
	}
	return n >= -cmd.arity
}

var commands map[string]command

func init() {
	commands = map[string]command{
		// Connection and server
		"PING":     {handler: (*Client).ping, arity: -1},
		"ECHO":     {handler: (*Client).echo, arity: 2},
		"AUTH":     {handler: (*Client).auth, arity: -2, noAuth: true},
		"QUIT":     {handler: (*Client).quitCmd, arity: 1, noAuth: true},
		"SELECT":   {handler: (*Client).selectDB, arity: 2},
		"INFO":     {handler: (*Client).info, arity: -1},
		"DBSIZE":   {handler: (*Client).dbsize, arity: 1},
		"FLUSHDB":  {handler: (*Client).flushdb, arity: -1},
		"FLUSHALL": {handler: (*Client).flushall, arity: -1},

		// Strings
		"GET":      {handler: (*Client).get, arity: 2},
		"SET":      {handler: (*Client).set, arity: -3},
		"SETNX":    {handler: (*Client).setnx, arity: 3},
		"GETSET":   {handler: (*Client).getset, arity: 3},
		"APPEND":   {handler: (*Client).appendCmd, arity: 3},
		"STRLEN":   {handler: (*Client).strlen, arity: 2},
		"GETRANGE": {handler: (*Client).getrange, arity: 4},
		"SETRANGE": {handler: (*Client).setrange, arity: 4},
		"INCR":     {handler: (*Client).incr, arity: 2},
		"DECR":     {handler: (*Client).decr, arity: 2},
		"INCRBY":   {handler: (*Client).incrby, arity: 3},
		"DECRBY":   {handler: (*Client).decrby, arity: 3},

		// Keys
		"DEL":     {handler: (*Client).del, arity: -2},
		"EXISTS":  {handler: (*Client).exists, arity: -2},
		"TYPE":    {handler: (*Client).typeCmd, arity: 2},
		"EXPIRE":  {handler: (*Client).expire, arity: 3},
		"PEXPIRE": {handler: (*Client).pexpire, arity: 3},
		"PERSIST": {handler: (*Client).persist, arity: 2},
		"TTL":     {handler: (*Client).ttl, arity: 2},
		"PTTL":    {handler: (*Client).pttl, arity: 2},
		"KEYS":    {handler: (*Client).keys, arity: 2},
		"SCAN":    {handler: (*Client).scan, arity: -2},

		// Sorted sets
		"ZADD":             {handler: (*Client).zadd, arity: -4},
		"ZREM":             {handler: (*Client).zrem, arity: -3},
		"ZSCORE":           {handler: (*Client).zscore, arity: 3},
		"ZCARD":            {handler: (*Client).zcard, arity: 2},
		"ZRANK":            {handler: (*Client).zrank, arity: 3},
		"ZREVRANK":         {handler: (*Client).zrevrank, arity: 3},
		"ZRANGE":           {handler: (*Client).zrange, arity: -4},
		"ZREVRANGE":        {handler: (*Client).zrevrange, arity: -4},
		"ZRANGEBYSCORE":    {handler: (*Client).zrangebyscore, arity: -4},
		"ZREVRANGEBYSCORE": {handler: (*Client).zrevrangebyscore, arity: -4},
		"ZCOUNT":           {handler: (*Client).zcount, arity: 4},
		"ZINCRBY":          {handler: (*Client).zincrby, arity: 4},
		"ZREMRANGEBYRANK":  {handler: (*Client).zremrangebyrank, arity: 4},
		"ZREMRANGEBYSCORE": {handler: (*Client).zremrangebyscore, arity: 4},

		// Scripting
		"EVAL":    {handler: (*Client).eval, arity: -3},
		"EVALSHA": {handler: (*Client).evalsha, arity: -3},
		"SCRIPT":  {handler: (*Client).script, arity: -2},
	}
}

func wrongArgs(name string) protocol.Frame {
	return protocol.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}

func syntaxErr() protocol.Frame {
	return protocol.Error("ERR syntax error")
}

// errReply converts a storage or scripting error to an error reply. Errors
// whose text already carries a code are passed through.
func errReply(err error) protocol.Frame {
	switch {
	case errors.Is(err, storage.ErrWrongType),
		errors.Is(err, storage.ErrOutOfMemory),
		errors.Is(err, lua.ErrNoScript):
		return protocol.Error(err.Error())
	case errors.Is(err, skiplist.ErrInvalidRange):
		return protocol.Error("ERR min or max is not a float")
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "ERR ") {
		return protocol.Error(msg)
	}
	return protocol.Error("ERR " + msg)
}

func parseInt(arg []byte) (int64, error) {
	n, err := strconv.ParseInt(string(arg), 10, 64)
	if err != nil {
		return 0, storage.ErrNotInteger
	}
	return n, nil
}

func strs(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

func bulkOrNull(b []byte, ok bool) protocol.Frame {
	if !ok {
		return protocol.Null()
	}
	return protocol.Bulk(b)
}

func boolReply(ok bool) protocol.Frame {
	if ok {
		return protocol.Integer(1)
	}
	return protocol.Integer(0)
}
