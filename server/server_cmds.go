package server

import (
	"crypto/subtle"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/msredis/msredis/protocol"
)

func (c *Client) ping(args [][]byte) protocol.Frame {
	switch len(args) {
	case 0:
		return protocol.SimpleString("PONG")
	case 1:
		return protocol.Bulk(args[0])
	default:
		return wrongArgs("ping")
	}
}

func (c *Client) echo(args [][]byte) protocol.Frame {
	return protocol.Bulk(args[0])
}

// auth accepts AUTH password and AUTH username password; only the
// default user exists
func (c *Client) auth(args [][]byte) protocol.Frame {
	if len(args) > 2 {
		return syntaxErr()
	}
	if c.server.password == "" {
		return protocol.Error("ERR AUTH <password> called without any password configured for the default user. Are you sure your configuration is correct?")
	}
	password := args[len(args)-1]
	userOK := len(args) == 1 || string(args[0]) == "default"
	if userOK && subtle.ConstantTimeCompare(password, []byte(c.server.password)) == 1 {
		c.authenticated = true
		return protocol.OK()
	}
	c.server.logger.Debug("Authentication failed", "id", c.id)
	return protocol.Error("WRONGPASS invalid username-password pair or user is disabled.")
}

func (c *Client) quitCmd(_ [][]byte) protocol.Frame {
	c.quit = true
	return protocol.OK()
}

func (c *Client) selectDB(args [][]byte) protocol.Frame {
	index, err := strconv.Atoi(string(args[0]))
	if err != nil {
		return protocol.Error("ERR value is not an integer or out of range")
	}
	db, err := c.server.storage.DB(index)
	if err != nil {
		return protocol.Error("ERR DB index is out of range")
	}
	c.dbIndex = index
	c.db = db
	return protocol.OK()
}

func (c *Client) dbsize(_ [][]byte) protocol.Frame {
	return protocol.Integer(c.db.KeyCount())
}

func flushMode(args [][]byte) bool {
	if len(args) == 0 {
		return true
	}
	if len(args) > 1 {
		return false
	}
	mode := strings.ToUpper(string(args[0]))
	return mode == "ASYNC" || mode == "SYNC"
}

func (c *Client) flushdb(args [][]byte) protocol.Frame {
	if !flushMode(args) {
		return syntaxErr()
	}
	c.db.Flush()
	c.server.logger.Info("Database flushed", "db", c.dbIndex)
	return protocol.OK()
}

func (c *Client) flushall(args [][]byte) protocol.Frame {
	if !flushMode(args) {
		return syntaxErr()
	}
	if err := c.server.storage.FlushAll(); err != nil {
		return errReply(err)
	}
	c.server.logger.Info("All databases flushed")
	return protocol.OK()
}

var infoSections = []string{"server", "clients", "memory", "stats", "keyspace"}

func (c *Client) info(args [][]byte) protocol.Frame {
	wanted := map[string]bool{}
	for _, a := range args {
		section := strings.ToLower(string(a))
		if section == "all" || section == "default" || section == "everything" {
			wanted = map[string]bool{}
			break
		}
		wanted[section] = true
	}

	var b strings.Builder
	for _, section := range infoSections {
		if len(wanted) > 0 && !wanted[section] {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\r\n")
		}
		c.server.writeInfoSection(&b, section)
	}
	return protocol.BulkString(b.String())
}

func (s *Server) writeInfoSection(b *strings.Builder, section string) {
	line := func(key string, value interface{}) {
		fmt.Fprintf(b, "%s:%v\r\n", key, value)
	}
	stats := s.storage.Info()

	switch section {
	case "server":
		b.WriteString("# Server\r\n")
		line("redis_version", s.version)
		line("redis_mode", "standalone")
		line("tcp_port", portOf(s.Addr()))
		line("uptime_in_seconds", int64(time.Since(s.startedAt).Seconds()))
	case "clients":
		b.WriteString("# Clients\r\n")
		line("connected_clients", s.clientCount())
	case "memory":
		b.WriteString("# Memory\r\n")
		line("used_memory", stats["memory_usage"])
		line("maxmemory", stats["memory_limit"])
		line("maxmemory_policy", stats["maxmemory_policy"])
	case "stats":
		b.WriteString("# Stats\r\n")
		line("total_connections_received", s.connCount.Load())
		line("total_commands_processed", s.commandCount.Load())
		line("total_error_replies", s.errorCount.Load())
		line("expired_keys", stats["expired_keys"])
		line("evicted_keys", stats["evicted_keys"])
	case "keyspace":
		b.WriteString("# Keyspace\r\n")
		dbInfo := s.storage.DatabaseInfo()
		indexes := make([]int, 0, len(dbInfo))
		for i := range dbInfo {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)
		for _, i := range indexes {
			fmt.Fprintf(b, "db%d:keys=%v,expires=%v,avg_ttl=0\r\n", i, dbInfo[i]["keys"], dbInfo[i]["expires"])
		}
	}
}

func portOf(addr string) string {
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[i+1:]
	}
	return ""
}
