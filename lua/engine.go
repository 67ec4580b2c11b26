package lua

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/msredis/msredis/protocol"
	"github.com/msredis/msredis/storage"
)

// ErrNoScript is returned by EvalSHA for an unknown digest
var ErrNoScript = errors.New("NOSCRIPT No matching script. Please use EVAL")

// Engine provides Redis-compatible Lua script execution
type Engine struct {
	scripts sync.Map // SHA1 hex -> script source
}

// NewEngine creates a new Lua execution engine
func NewEngine() *Engine {
	return &Engine{}
}

// Eval executes a Lua script against db with the given keys and arguments
// and converts its return value to a reply frame. The script is aborted
// with ctx's error once ctx is done.
func (e *Engine) Eval(ctx context.Context, db storage.Keyspace, script string, keys, args []string) (protocol.Frame, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Frame{}, err
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)
	openSafeLibs(L)

	e.setupRedisAPI(L, db, keys, args)

	if err := L.DoString(script); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Frame{}, ctxErr
		}
		var apiErr *lua.ApiError
		if errors.As(err, &apiErr) {
			return protocol.Frame{}, fmt.Errorf("ERR Error running script: %s", apiErr.Object.String())
		}
		return protocol.Frame{}, fmt.Errorf("ERR Error running script: %w", err)
	}
	if L.GetTop() == 0 {
		return protocol.Null(), nil
	}
	return luaToFrame(L.Get(-1)), nil
}

// EvalSHA executes a previously loaded script by its SHA1 hash
func (e *Engine) EvalSHA(ctx context.Context, db storage.Keyspace, sha string, keys, args []string) (protocol.Frame, error) {
	script, ok := e.scripts.Load(strings.ToLower(sha))
	if !ok {
		return protocol.Frame{}, ErrNoScript
	}
	return e.Eval(ctx, db, script.(string), keys, args)
}

// LoadScript caches a script and returns its SHA1 hash
func (e *Engine) LoadScript(script string) string {
	sum := sha1.Sum([]byte(script))
	hash := hex.EncodeToString(sum[:])
	e.scripts.Store(hash, script)
	return hash
}

// ScriptExists reports which of the given hashes are cached
func (e *Engine) ScriptExists(hashes []string) []bool {
	results := make([]bool, len(hashes))
	for i, hash := range hashes {
		_, results[i] = e.scripts.Load(strings.ToLower(hash))
	}
	return results
}

// ScriptFlush removes all cached scripts
func (e *Engine) ScriptFlush() {
	e.scripts.Range(func(key, _ interface{}) bool {
		e.scripts.Delete(key)
		return true
	})
}

// openSafeLibs loads the libraries scripts may use; io and os are left out
func openSafeLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// setupRedisAPI configures the Lua state with the KEYS and ARGV tables and
// the redis table
func (e *Engine) setupRedisAPI(L *lua.LState, db storage.Keyspace, keys, args []string) {
	keysTable := L.NewTable()
	for i, key := range keys {
		keysTable.RawSetInt(i+1, lua.LString(key))
	}
	L.SetGlobal("KEYS", keysTable)

	argvTable := L.NewTable()
	for i, arg := range args {
		argvTable.RawSetInt(i+1, lua.LString(arg))
	}
	L.SetGlobal("ARGV", argvTable)

	redisTable := L.NewTable()
	L.SetFuncs(redisTable, map[string]lua.LGFunction{
		"call": func(L *lua.LState) int {
			reply := e.callFromLua(L, db)
			if reply.IsError() {
				L.RaiseError("%s", reply.Data)
				return 0
			}
			L.Push(frameToLua(L, reply))
			return 1
		},
		"pcall": func(L *lua.LState) int {
			L.Push(frameToLua(L, e.callFromLua(L, db)))
			return 1
		},
		"status_reply": func(L *lua.LState) int {
			t := L.NewTable()
			t.RawSetString("ok", lua.LString(L.CheckString(1)))
			L.Push(t)
			return 1
		},
		"error_reply": func(L *lua.LState) int {
			t := L.NewTable()
			t.RawSetString("err", lua.LString(L.CheckString(1)))
			L.Push(t)
			return 1
		},
	})
	L.SetGlobal("redis", redisTable)
}

// callFromLua reads a command from the Lua stack and runs it
func (e *Engine) callFromLua(L *lua.LState, db storage.Keyspace) protocol.Frame {
	argc := L.GetTop()
	if argc == 0 {
		return protocol.Error("ERR Please specify at least one argument for this redis lib call")
	}

	argv := make([]string, argc)
	for i := 1; i <= argc; i++ {
		switch v := L.Get(i).(type) {
		case lua.LString:
			argv[i-1] = string(v)
		case lua.LNumber:
			argv[i-1] = v.String()
		default:
			return protocol.Error("ERR Lua redis lib command arguments must be strings or integers")
		}
	}
	return execute(db, strings.ToUpper(argv[0]), argv[1:])
}

func wrongArgs(cmd string) protocol.Frame {
	return protocol.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd))
}

func errorFrame(err error) protocol.Frame {
	msg := err.Error()
	if strings.HasPrefix(msg, "WRONGTYPE") || strings.HasPrefix(msg, "OOM") {
		return protocol.Error(msg)
	}
	return protocol.Error("ERR " + msg)
}

// execute runs the subset of commands scripts may call
func execute(db storage.Keyspace, cmd string, args []string) protocol.Frame {
	switch cmd {
	case "GET":
		if len(args) != 1 {
			return wrongArgs(cmd)
		}
		value, ok, err := db.Get(args[0])
		if err != nil {
			return errorFrame(err)
		}
		if !ok {
			return protocol.Null()
		}
		return protocol.Bulk(value)

	case "SET":
		if len(args) < 2 {
			return wrongArgs(cmd)
		}
		opts, err := storage.ParseSetOptions(args[2:], time.Now())
		if err != nil {
			return errorFrame(err)
		}
		written, err := db.Set(args[0], []byte(args[1]), opts)
		if err != nil {
			return errorFrame(err)
		}
		if !written {
			return protocol.Null()
		}
		return protocol.OK()

	case "DEL":
		if len(args) == 0 {
			return wrongArgs(cmd)
		}
		return protocol.Integer(db.Del(args...))

	case "EXISTS":
		if len(args) == 0 {
			return wrongArgs(cmd)
		}
		return protocol.Integer(db.Exists(args...))

	case "TYPE":
		if len(args) != 1 {
			return wrongArgs(cmd)
		}
		return protocol.SimpleString(db.Type(args[0]).String())

	case "INCR":
		if len(args) != 1 {
			return wrongArgs(cmd)
		}
		n, err := db.IncrBy(args[0], 1)
		if err != nil {
			return errorFrame(err)
		}
		return protocol.Integer(n)

	case "ZADD":
		if len(args) < 3 || len(args)%2 != 1 {
			return wrongArgs(cmd)
		}
		members := make([]storage.ZMember, 0, len(args)/2)
		for i := 1; i < len(args); i += 2 {
			score, err := storage.ParseScore(args[i])
			if err != nil {
				return errorFrame(err)
			}
			members = append(members, storage.ZMember{Member: []byte(args[i+1]), Score: score})
		}
		n, err := db.ZAdd(args[0], storage.ZAddOptions{}, members...)
		if err != nil {
			return errorFrame(err)
		}
		return protocol.Integer(n)

	case "ZSCORE":
		if len(args) != 2 {
			return wrongArgs(cmd)
		}
		score, ok, err := db.ZScore(args[0], []byte(args[1]))
		if err != nil {
			return errorFrame(err)
		}
		if !ok {
			return protocol.Null()
		}
		return protocol.BulkString(storage.FormatScore(score))

	case "ZRANGE":
		if len(args) != 3 && !(len(args) == 4 && strings.EqualFold(args[3], "WITHSCORES")) {
			return wrongArgs(cmd)
		}
		start, err1 := strconv.ParseInt(args[1], 10, 64)
		stop, err2 := strconv.ParseInt(args[2], 10, 64)
		if err1 != nil || err2 != nil {
			return errorFrame(storage.ErrNotInteger)
		}
		out, err := db.ZRange(args[0], start, stop, false)
		if err != nil {
			return errorFrame(err)
		}
		withScores := len(args) == 4
		items := make([]protocol.Frame, 0, len(out)*2)
		for _, m := range out {
			items = append(items, protocol.Bulk(m.Member))
			if withScores {
				items = append(items, protocol.BulkString(storage.FormatScore(m.Score)))
			}
		}
		return protocol.Array(items...)

	case "ZCARD":
		if len(args) != 1 {
			return wrongArgs(cmd)
		}
		n, err := db.ZCard(args[0])
		if err != nil {
			return errorFrame(err)
		}
		return protocol.Integer(n)

	case "ZREM":
		if len(args) < 2 {
			return wrongArgs(cmd)
		}
		members := make([][]byte, len(args)-1)
		for i, m := range args[1:] {
			members[i] = []byte(m)
		}
		n, err := db.ZRem(args[0], members...)
		if err != nil {
			return errorFrame(err)
		}
		return protocol.Integer(n)

	default:
		return protocol.Errorf("ERR unknown or unsupported command '%s' called from script", strings.ToLower(cmd))
	}
}

// frameToLua converts a command reply to a Lua value: null becomes false,
// status and error replies become tables with an ok or err field
func frameToLua(L *lua.LState, f protocol.Frame) lua.LValue {
	switch f.Kind {
	case protocol.KindNull:
		return lua.LFalse
	case protocol.KindInteger:
		return lua.LNumber(f.Integer)
	case protocol.KindBulkString:
		return lua.LString(f.Data)
	case protocol.KindOK:
		t := L.NewTable()
		t.RawSetString("ok", lua.LString("OK"))
		return t
	case protocol.KindSimpleString:
		t := L.NewTable()
		t.RawSetString("ok", lua.LString(f.Data))
		return t
	case protocol.KindError:
		t := L.NewTable()
		t.RawSetString("err", lua.LString(f.Data))
		return t
	case protocol.KindArray:
		t := L.NewTable()
		for i, item := range f.Array {
			t.RawSetInt(i+1, frameToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}

// luaToFrame converts a script return value to a reply. Numbers are
// truncated to integers, true becomes 1, and arrays stop at the first nil.
func luaToFrame(lv lua.LValue) protocol.Frame {
	switch v := lv.(type) {
	case lua.LBool:
		if v {
			return protocol.Integer(1)
		}
		return protocol.Null()
	case lua.LString:
		return protocol.BulkString(string(v))
	case lua.LNumber:
		return protocol.Integer(int64(v))
	case *lua.LTable:
		if errMsg, ok := v.RawGetString("err").(lua.LString); ok {
			return protocol.Error(string(errMsg))
		}
		if status, ok := v.RawGetString("ok").(lua.LString); ok {
			return protocol.SimpleString(string(status))
		}
		items := make([]protocol.Frame, 0, v.Len())
		for i := 1; ; i++ {
			item := v.RawGetInt(i)
			if item == lua.LNil {
				break
			}
			items = append(items, luaToFrame(item))
		}
		return protocol.Array(items...)
	default:
		return protocol.Null()
	}
}
