package client_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/msredis/msredis/client"
	"github.com/msredis/msredis/protocol"
	"github.com/msredis/msredis/server"
	"github.com/msredis/msredis/storage"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()
	stor := storage.NewMemory()
	srv := server.NewServer("127.0.0.1:0", stor)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Stop()
		_ = stor.Close()
	})
	return srv
}

func TestClientDo(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	c, err := client.Dial(ctx, srv.Addr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	tests := []struct {
		args []string
		want protocol.Frame
	}{
		{[]string{"SET", "k", "v"}, protocol.SimpleString("OK")},
		{[]string{"GET", "k"}, protocol.BulkString("v")},
		{[]string{"GET", "missing"}, protocol.Null()},
		{[]string{"ZADD", "z", "2", "b", "1", "a"}, protocol.Integer(2)},
		{[]string{"ZRANGE", "z", "0", "-1", "WITHSCORES"}, protocol.StringArray("a", "1", "b", "2")},
	}
	for _, tt := range tests {
		got, err := c.Do(ctx, tt.args...)
		if err != nil {
			t.Fatalf("Do(%v) error = %v", tt.args, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("Do(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}

	reply, err := c.Do(ctx, "INCR", "k")
	if err != nil {
		t.Fatalf("Do(INCR) error = %v", err)
	}
	var replyErr protocol.ReplyError
	if !errors.As(reply.Err(), &replyErr) {
		t.Errorf("INCR on a string = %v, want an error reply", reply)
	}
	if !c.Healthy() {
		t.Error("an error reply marked the client broken")
	}

	if _, err := c.Do(ctx); err == nil {
		t.Error("Do() with no arguments succeeded")
	}
}

func TestClientClosed(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	c, err := client.Dial(ctx, srv.Addr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := c.Do(ctx, "PING"); !errors.Is(err, client.ErrClosed) {
		t.Errorf("Do() after Close error = %v, want ErrClosed", err)
	}
}

func TestClientContextCancel(t *testing.T) {
	// A listener that accepts but never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer func() { _ = ln.Close() }()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_, _ = conn.Read(make([]byte, 1024))
		time.Sleep(time.Second)
	}()

	c, err := client.Dial(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Do(ctx, "PING"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want context.DeadlineExceeded", err)
	}
	if c.Healthy() {
		t.Error("client still healthy after an interrupted request")
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	if _, err := client.Dial(context.Background(), addr); err == nil {
		t.Error("Dial() to a closed port succeeded")
	}
}

func TestPool(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	if _, err := client.NewPool(srv.Addr(), 0); err == nil {
		t.Error("NewPool(size 0) succeeded")
	}

	p, err := client.NewPool(srv.Addr(), 4)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer p.Close(ctx)

	const workers = 16
	const perWorker = 25
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				reply, err := p.Do(ctx, "ZINCRBY", "hits", "1", fmt.Sprintf("w%d", id%4))
				if err != nil {
					errs <- err
					return
				}
				if reply.IsError() {
					errs <- reply.Err()
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if active := p.Active(); active != 0 {
		t.Errorf("Active() = %d after all requests finished", active)
	}
	if idle := p.Idle(); idle < 1 || idle > 4 {
		t.Errorf("Idle() = %d, want between 1 and 4", idle)
	}

	reply, err := p.Do(ctx, "ZSCORE", "hits", "w0")
	if err != nil {
		t.Fatalf("Do(ZSCORE) error = %v", err)
	}
	if got := reply.Text(); got != fmt.Sprint(workers/4*perWorker) {
		t.Errorf("ZSCORE hits w0 = %s, want %d", got, workers/4*perWorker)
	}
}

func TestPoolDiscardsBrokenConnections(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	p, err := client.NewPool(srv.Addr(), 1)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer p.Close(ctx)

	c, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = c.Close()
	if err := p.Put(ctx, c); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	c2, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() after discard error = %v", err)
	}
	if c2 == c {
		t.Error("pool handed out a closed connection")
	}
	if err := c2.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	_ = p.Put(ctx, c2)
}

func TestPoolExhausted(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	p, err := client.NewPool(srv.Addr(), 1)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer p.Close(ctx)

	c, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer func() { _ = p.Put(ctx, c) }()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := p.Get(waitCtx); err == nil {
		t.Error("Get() on an exhausted pool succeeded")
	}
}

func TestPoolAuthenticates(t *testing.T) {
	stor := storage.NewMemory()
	srv := server.NewServer("127.0.0.1:0", stor)
	srv.SetPassword("s3cret")
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Stop()
		_ = stor.Close()
	})
	ctx := context.Background()

	p, err := client.NewPool(srv.Addr(), 2, client.WithPassword("s3cret"))
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer p.Close(ctx)
	reply, err := p.Do(ctx, "SET", "k", "v")
	if err != nil || !reply.IsOK() {
		t.Errorf("Do(SET) = %v, %v", reply, err)
	}

	bad, err := client.NewPool(srv.Addr(), 1, client.WithPassword("wrong"))
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer bad.Close(ctx)
	if _, err := bad.Do(ctx, "GET", "k"); err == nil {
		t.Error("Do() with a wrong password succeeded")
	}
}
