package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/msredis/msredis/client"
	"github.com/msredis/msredis/protocol"
)

type benchConfig struct {
	addr     string
	password string
	requests int
	conns    int
	timeout  time.Duration
	args     []string
}

type benchResult struct {
	requests  int64
	errors    int64
	elapsed   time.Duration
	latencies []time.Duration
}

// runBench sends cfg.args cfg.requests times from cfg.conns workers sharing
// a connection pool of the same size
func runBench(ctx context.Context, cfg benchConfig) (*benchResult, error) {
	if cfg.conns <= 0 {
		return nil, errors.New("connection count must be positive")
	}
	var opts []client.PoolOption
	if cfg.password != "" {
		opts = append(opts, client.WithPassword(cfg.password))
	}
	p, err := client.NewPool(cfg.addr, cfg.conns, opts...)
	if err != nil {
		return nil, err
	}
	defer p.Close(context.Background())

	// Fail fast on a bad address or password
	if _, err := doTimed(ctx, p, cfg.timeout, []string{"PING"}); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.addr, err)
	}

	var (
		next      atomic.Int64
		failed    atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, cfg.requests)
		wg        sync.WaitGroup
	)
	start := time.Now()
	for w := 0; w < cfg.conns; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]time.Duration, 0, cfg.requests/cfg.conns+1)
			for next.Add(1) <= int64(cfg.requests) {
				if ctx.Err() != nil {
					break
				}
				t0 := time.Now()
				reply, err := doTimed(ctx, p, cfg.timeout, cfg.args)
				if err != nil || reply.IsError() {
					failed.Add(1)
					continue
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return &benchResult{
		requests:  int64(len(latencies)) + failed.Load(),
		errors:    failed.Load(),
		elapsed:   time.Since(start),
		latencies: latencies,
	}, ctx.Err()
}

func doTimed(ctx context.Context, p *client.Pool, timeout time.Duration, args []string) (protocol.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Do(ctx, args...)
}

func (r *benchResult) print(w io.Writer, name string) {
	fmt.Fprintf(w, "====== %s ======\n", name)
	fmt.Fprintf(w, "  %d requests completed in %.2f seconds\n", r.requests, r.elapsed.Seconds())
	if r.errors > 0 {
		fmt.Fprintf(w, "  %d errors\n", r.errors)
	}
	if r.elapsed > 0 {
		fmt.Fprintf(w, "  %.2f requests per second\n", float64(r.requests)/r.elapsed.Seconds())
	}
	if len(r.latencies) == 0 {
		return
	}
	sort.Slice(r.latencies, func(i, j int) bool { return r.latencies[i] < r.latencies[j] })
	for _, pct := range []float64{50, 99, 100} {
		fmt.Fprintf(w, "  p%-3v %v\n", pct, r.percentile(pct))
	}
}

// percentile expects sorted latencies
func (r *benchResult) percentile(p float64) time.Duration {
	idx := int(float64(len(r.latencies)-1) * p / 100)
	return r.latencies[idx]
}
