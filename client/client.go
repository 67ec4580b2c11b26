package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/msredis/msredis/protocol"
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("client: connection closed")

// Client is a single connection speaking RESP2. Requests on one Client are
// serialised; use a Pool for concurrent callers.
type Client struct {
	addr   string
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer

	mu     sync.Mutex
	closed bool
	broken bool
}

// Dial connects to addr. The context bounds the dial only.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		addr:   addr,
		conn:   conn,
		reader: protocol.NewReader(conn),
		writer: protocol.NewWriter(conn),
	}, nil
}

// Addr returns the server address
func (c *Client) Addr() string {
	return c.addr
}

// Do sends one command and waits for its reply. Error replies are returned
// as frames, not as errors; err is set only for transport failures, after
// which the client is unusable.
func (c *Client) Do(ctx context.Context, args ...string) (protocol.Frame, error) {
	if len(args) == 0 {
		return protocol.Frame{}, errors.New("client: empty command")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.broken {
		return protocol.Frame{}, ErrClosed
	}

	// Zero deadline when ctx has none
	deadline, ok := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return protocol.Frame{}, err
	}

	// Unblock the connection when ctx is cancelled mid-request
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	reply, err := c.roundTrip(args)
	if err != nil {
		c.broken = true
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Frame{}, ctxErr
		}
		if ok && !time.Now().Before(deadline) {
			return protocol.Frame{}, context.DeadlineExceeded
		}
		return protocol.Frame{}, err
	}
	return reply, nil
}

func (c *Client) roundTrip(args []string) (protocol.Frame, error) {
	if err := c.writer.WriteCommand(args[0], args[1:]...); err != nil {
		return protocol.Frame{}, err
	}
	if err := c.writer.Flush(); err != nil {
		return protocol.Frame{}, err
	}
	return c.reader.ReadFrame()
}

// Ping sends PING and checks for PONG
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.Do(ctx, "PING")
	if err != nil {
		return err
	}
	if err := reply.Err(); err != nil {
		return err
	}
	if reply.Text() != "PONG" {
		return errors.New("client: unexpected PING reply " + reply.String())
	}
	return nil
}

// Auth sends AUTH with password
func (c *Client) Auth(ctx context.Context, password string) error {
	reply, err := c.Do(ctx, "AUTH", password)
	if err != nil {
		return err
	}
	return reply.Err()
}

// Healthy reports whether the connection can still be used
func (c *Client) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.broken
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
