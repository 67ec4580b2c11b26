package server

import (
	"time"

	"github.com/msredis/msredis/protocol"
	"github.com/msredis/msredis/storage"
)

func (c *Client) get(args [][]byte) protocol.Frame {
	value, ok, err := c.db.Get(string(args[0]))
	if err != nil {
		return errReply(err)
	}
	return bulkOrNull(value, ok)
}

func (c *Client) set(args [][]byte) protocol.Frame {
	opts, err := storage.ParseSetOptions(strs(args[2:]), time.Now())
	if err != nil {
		return errReply(err)
	}
	written, err := c.db.Set(string(args[0]), args[1], opts)
	if err != nil {
		return errReply(err)
	}
	if !written {
		return protocol.Null()
	}
	return protocol.OK()
}

func (c *Client) setnx(args [][]byte) protocol.Frame {
	written, err := c.db.Set(string(args[0]), args[1], storage.SetOptions{NX: true})
	if err != nil {
		return errReply(err)
	}
	return boolReply(written)
}

func (c *Client) getset(args [][]byte) protocol.Frame {
	old, ok, err := c.db.GetSet(string(args[0]), args[1])
	if err != nil {
		return errReply(err)
	}
	return bulkOrNull(old, ok)
}

func (c *Client) appendCmd(args [][]byte) protocol.Frame {
	n, err := c.db.Append(string(args[0]), args[1])
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) strlen(args [][]byte) protocol.Frame {
	n, err := c.db.StrLen(string(args[0]))
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) getrange(args [][]byte) protocol.Frame {
	start, err := parseInt(args[1])
	if err != nil {
		return errReply(err)
	}
	end, err := parseInt(args[2])
	if err != nil {
		return errReply(err)
	}
	out, err := c.db.GetRange(string(args[0]), start, end)
	if err != nil {
		return errReply(err)
	}
	return protocol.Bulk(out)
}

func (c *Client) setrange(args [][]byte) protocol.Frame {
	offset, err := parseInt(args[1])
	if err != nil {
		return errReply(err)
	}
	n, err := c.db.SetRange(string(args[0]), offset, args[2])
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) incrReply(key []byte, delta int64) protocol.Frame {
	n, err := c.db.IncrBy(string(key), delta)
	if err != nil {
		return errReply(err)
	}
	return protocol.Integer(n)
}

func (c *Client) incr(args [][]byte) protocol.Frame {
	return c.incrReply(args[0], 1)
}

func (c *Client) decr(args [][]byte) protocol.Frame {
	return c.incrReply(args[0], -1)
}

func (c *Client) incrby(args [][]byte) protocol.Frame {
	delta, err := parseInt(args[1])
	if err != nil {
		return errReply(err)
	}
	return c.incrReply(args[0], delta)
}

func (c *Client) decrby(args [][]byte) protocol.Frame {
	delta, err := parseInt(args[1])
	if err != nil {
		return errReply(err)
	}
	if delta == -delta && delta != 0 {
		// MinInt64 cannot be negated
		return errReply(storage.ErrOverflow)
	}
	return c.incrReply(args[0], -delta)
}
