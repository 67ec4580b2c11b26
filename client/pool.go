package client

import (
	"context"
	"errors"
	"fmt"

	pool "github.com/jolestar/go-commons-pool/v2"

	"github.com/msredis/msredis/protocol"
)

// connectionFactory creates and checks pooled connections
type connectionFactory struct {
	addr     string
	password string
}

func (f *connectionFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	c, err := Dial(ctx, f.addr)
	if err != nil {
		return nil, err
	}
	if f.password != "" {
		if err := c.Auth(ctx, f.password); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return pool.NewPooledObject(c), nil
}

func (f *connectionFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	c, ok := object.Object.(*Client)
	if !ok {
		return errors.New("client: pooled object type mismatch")
	}
	return c.Close()
}

// ValidateObject pings the server; only run on borrow
func (f *connectionFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	c, ok := object.Object.(*Client)
	if !ok || !c.Healthy() {
		return false
	}
	return c.Ping(ctx) == nil
}

func (f *connectionFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *connectionFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

// Pool is a bounded set of connections to one server
type Pool struct {
	addr string
	pool *pool.ObjectPool
}

// PoolOption configures a Pool
type PoolOption func(*connectionFactory)

// WithPassword authenticates every pooled connection after dialling
func WithPassword(password string) PoolOption {
	return func(f *connectionFactory) {
		f.password = password
	}
}

// NewPool returns a pool of at most size connections to addr. Connections
// are dialled lazily and validated with PING when borrowed.
func NewPool(addr string, size int, opts ...PoolOption) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("client: invalid pool size %d", size)
	}
	factory := &connectionFactory{addr: addr}
	for _, opt := range opts {
		opt(factory)
	}

	cfg := pool.NewDefaultPoolConfig()
	cfg.MaxTotal = size
	cfg.MaxIdle = size
	cfg.TestOnBorrow = true

	p := pool.NewObjectPool(context.Background(), factory, cfg)
	return &Pool{addr: addr, pool: p}, nil
}

// Get borrows a connection. It blocks while the pool is exhausted, until
// ctx is done.
func (p *Pool) Get(ctx context.Context) (*Client, error) {
	obj, err := p.pool.BorrowObject(ctx)
	if err != nil {
		return nil, err
	}
	return obj.(*Client), nil
}

// Put returns a connection to the pool. Broken connections are discarded.
func (p *Pool) Put(ctx context.Context, c *Client) error {
	if !c.Healthy() {
		return p.pool.InvalidateObject(ctx, c)
	}
	return p.pool.ReturnObject(ctx, c)
}

// Do runs one command on a pooled connection
func (p *Pool) Do(ctx context.Context, args ...string) (protocol.Frame, error) {
	c, err := p.Get(ctx)
	if err != nil {
		return protocol.Frame{}, err
	}
	reply, err := c.Do(ctx, args...)
	if perr := p.Put(ctx, c); perr != nil && err == nil {
		err = perr
	}
	return reply, err
}

// Addr returns the server address
func (p *Pool) Addr() string {
	return p.addr
}

// Active returns the number of borrowed connections
func (p *Pool) Active() int {
	return p.pool.GetNumActive()
}

// Idle returns the number of idle connections
func (p *Pool) Idle() int {
	return p.pool.GetNumIdle()
}

// Close closes every idle connection and rejects further borrows.
// Borrowed connections are closed when they are returned.
func (p *Pool) Close(ctx context.Context) {
	p.pool.Close(ctx)
}
