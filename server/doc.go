// Package server serves a storage.Storage over the Redis wire protocol.
//
// Each connection is handled by its own goroutine. Requests are decoded with
// protocol.Reader, dispatched through a command table that checks arity and
// authentication, and answered with protocol.Writer. Replies to pipelined
// requests are flushed together once the read buffer drains.
//
// Supported command families:
//   - connection and server: PING, ECHO, AUTH, SELECT, QUIT, INFO, DBSIZE, FLUSHDB, FLUSHALL
//   - strings: GET, SET, SETNX, GETSET, APPEND, STRLEN, GETRANGE, SETRANGE, INCR, DECR, INCRBY, DECRBY
//   - keys: DEL, EXISTS, TYPE, EXPIRE, PEXPIRE, PERSIST, TTL, PTTL, KEYS, SCAN
//   - sorted sets: ZADD, ZREM, ZSCORE, ZCARD, ZRANK, ZREVRANK, ZRANGE, ZREVRANGE,
//     ZRANGEBYSCORE, ZREVRANGEBYSCORE, ZCOUNT, ZINCRBY, ZREMRANGEBYRANK, ZREMRANGEBYSCORE
//   - scripting: EVAL, EVALSHA, SCRIPT LOAD|EXISTS|FLUSH
//
// A malformed request gets an error reply. The connection is closed when the
// stream cannot be resynchronised or after repeated malformed requests.
package server
