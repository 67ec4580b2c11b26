// Package lua runs EVAL scripts with gopher-lua.
//
// Each script executes in a fresh state holding the KEYS and ARGV tables
// and a redis table with call, pcall, status_reply and error_reply.
// redis.call reaches the client's selected storage.Keyspace and supports
// GET, SET, DEL, EXISTS, TYPE, INCR, ZADD, ZSCORE, ZRANGE, ZCARD and ZREM.
//
// Replies cross the boundary with the usual conversions: a null reply
// becomes false, status and error replies become tables with an ok or err
// field, and a script's return value is converted back to a protocol.Frame.
// Only the base, table, string and math libraries are loaded.
package lua
