package server

import (
	"strings"

	"github.com/msredis/msredis/protocol"
	"github.com/msredis/msredis/skiplist"
	"github.com/msredis/msredis/storage"
)

func scoreReply(f float64) protocol.Frame {
	return protocol.BulkString(storage.FormatScore(f))
}

func membersReply(members []storage.ZMember, withScores bool) protocol.Frame {
	n := len(members)
	if withScores {
		n *= 2
	}
	items := make([]protocol.Frame, 0, n)
	for _, m := range members {
		items = append(items, protocol.Bulk(m.Member))
		if withScores {
			items = append(items, scoreReply(m.Score))
		}
	}
	return protocol.Array(items...)
}

// zadd implements ZADD key [NX|XX] [GT|LT] [CH] [INCR] score member ...
func (c *Client) zadd(args [][]byte) protocol.Frame {
	var opts storage.ZAddOptions
	i := 1
flags:
	for ; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "NX":
			opts.NX = true
		case "XX":
			opts.XX = true
		case "GT":
			opts.GT = true
		case "LT":
			opts.LT = true
		case "CH":
			opts.CH = true
		case "INCR":
			opts.Incr = true
		default:
			break flags
		}
	}

	pairs := args[i:]
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return syntaxErr()
	}
	if opts.NX && opts.XX {
		return protocol.Error("ERR XX and NX options at the same time are not compatible")
	}
	if (opts.GT && opts.LT) || (opts.NX && (opts.GT || opts.LT)) {
		return protocol.Error("ERR GT, LT, and/or NX options at the same time are not compatible")
	}
	if opts.Incr && len(pairs) != 2 {
		return protocol.Error("ERR INCR option supports a single increment-element pair")
	}

	members := make([]storage.ZMember, 0, len(pairs)/2)
	for j := 0; j < len(pairs); j += 2 {
		score, err := storage.ParseScore(string(pairs[j]))
		if err != nil {
			return errReply(err)
		}
		members = append(members, storage.ZMember{Score: score, Member: pairs[j+1]})
	}

	key := string(args[0])
	if opts.Incr {
		score, ok, err := c.db.ZAddIncr(key, opts, members[0])
		if err != nil {
			return errReply(err)
		}
		if !ok {
			return protocol.Null()
		}
		return scoreReply(score)
	}

	n, err := c.db.ZAdd(key, opts, members...)
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) zrem(args [][]byte) protocol.Frame {
	n, err := c.db.ZRem(string(args[0]), args[1:]...)
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) zscore(args [][]byte) protocol.Frame {
	score, ok, err := c.db.ZScore(string(args[0]), args[1])
	if err != nil {
		return errReply(err)
	}
	if !ok {
		return protocol.Null()
	}
	return scoreReply(score)
}

func (c *Client) zcard(args [][]byte) protocol.Frame {
	n, err := c.db.ZCard(string(args[0]))
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) rankReply(args [][]byte, reverse bool) protocol.Frame {
	rank, ok, err := c.db.ZRank(string(args[0]), args[1], reverse)
	if err != nil {
		return errReply(err)
	}
	if !ok {
		return protocol.Null()
	}
	return protocol.Integer(rank)
}

func (c *Client) zrank(args [][]byte) protocol.Frame {
	return c.rankReply(args, false)
}

func (c *Client) zrevrank(args [][]byte) protocol.Frame {
	return c.rankReply(args, true)
}

func (c *Client) rangeReply(args [][]byte, reverse bool) protocol.Frame {
	withScores := false
	switch len(args) {
	case 3:
	case 4:
		if !strings.EqualFold(string(args[3]), "WITHSCORES") {
			return syntaxErr()
		}
		withScores = true
	default:
		return syntaxErr()
	}
	start, err := parseInt(args[1])
	if err != nil {
		return errReply(err)
	}
	stop, err := parseInt(args[2])
	if err != nil {
		return errReply(err)
	}
	out, err := c.db.ZRange(string(args[0]), start, stop, reverse)
	if err != nil {
		return errReply(err)
	}
	return membersReply(out, withScores)
}

func (c *Client) zrange(args [][]byte) protocol.Frame {
	return c.rangeReply(args, false)
}

func (c *Client) zrevrange(args [][]byte) protocol.Frame {
	return c.rangeReply(args, true)
}

// rangeByScoreReply serves ZRANGEBYSCORE key min max and ZREVRANGEBYSCORE
// key max min, both with optional WITHSCORES and LIMIT offset count.
func (c *Client) rangeByScoreReply(args [][]byte, reverse bool) protocol.Frame {
	lo, hi := args[1], args[2]
	if reverse {
		lo, hi = hi, lo
	}
	r, err := skiplist.ParseScoreRange(string(lo), string(hi))
	if err != nil {
		return errReply(err)
	}

	withScores := false
	offset, count := int64(0), int64(-1)
	for i := 3; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "WITHSCORES":
			withScores = true
		case "LIMIT":
			if i+2 >= len(args) {
				return syntaxErr()
			}
			if offset, err = parseInt(args[i+1]); err != nil {
				return errReply(err)
			}
			if count, err = parseInt(args[i+2]); err != nil {
				return errReply(err)
			}
			i += 2
		default:
			return syntaxErr()
		}
	}
	if offset < 0 {
		return protocol.Array()
	}

	out, err := c.db.ZRangeByScore(string(args[0]), r, reverse, offset, count)
	if err != nil {
		return errReply(err)
	}
	return membersReply(out, withScores)
}

func (c *Client) zrangebyscore(args [][]byte) protocol.Frame {
	return c.rangeByScoreReply(args, false)
}

func (c *Client) zrevrangebyscore(args [][]byte) protocol.Frame {
	return c.rangeByScoreReply(args, true)
}

func (c *Client) zcount(args [][]byte) protocol.Frame {
	r, err := skiplist.ParseScoreRange(string(args[1]), string(args[2]))
	if err != nil {
		return errReply(err)
	}
	n, err := c.db.ZCount(string(args[0]), r)
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) zincrby(args [][]byte) protocol.Frame {
	delta, err := storage.ParseScore(string(args[1]))
	if err != nil {
		return errReply(err)
	}
	score, err := c.db.ZIncrBy(string(args[0]), delta, args[2])
	if err != nil {
		return errReply(err)
	}
	return scoreReply(score)
}

func (c *Client) zremrangebyrank(args [][]byte) protocol.Frame {
	start, err := parseInt(args[1])
	if err != nil {
		return errReply(err)
	}
	stop, err := parseInt(args[2])
	if err != nil {
		return errReply(err)
	}
	n, err := c.db.ZRemRangeByRank(string(args[0]), start, stop)
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) zremrangebyscore(args [][]byte) protocol.Frame {
	r, err := skiplist.ParseScoreRange(string(args[1]), string(args[2]))
	if err != nil {
		return errReply(err)
	}
	n, err := c.db.ZRemRangeByScore(string(args[0]), r)
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}
