package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/msredis/msredis/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "server address (host:port)")
	password := flag.String("a", "", "password for AUTH")
	requests := flag.Int("n", 0, "repeat the command n times and report throughput")
	conns := flag.Int("c", 8, "connections used with -n")
	compare := flag.String("compare", "", "compare INFO keyspace with this reference server")
	dbs := flag.String("dbs", "", "comma-separated databases to compare (with -compare)")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	flag.Usage = usage
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *compare != "":
		filter, err := parseDBFilter(*dbs)
		if err != nil {
			log.Fatalf("dbs: %v", err)
		}
		differences, err := compareKeyspaces(ctx, os.Stdout, *compare, *addr, *password, filter)
		if err != nil {
			log.Fatalf("compare: %v", err)
		}
		if differences > 0 {
			os.Exit(1)
		}
	case flag.NArg() == 0:
		usage()
		os.Exit(2)
	case *requests > 0:
		res, err := runBench(ctx, benchConfig{
			addr:     *addr,
			password: *password,
			requests: *requests,
			conns:    *conns,
			timeout:  *timeout,
			args:     flag.Args(),
		})
		if err != nil {
			log.Fatalf("bench: %v", err)
		}
		res.print(os.Stdout, strings.Join(flag.Args(), " "))
	default:
		out, err := runOnce(ctx, *addr, *password, *timeout, flag.Args())
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(out)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: msredis-cli [options] command [args...]")
	fmt.Fprintln(os.Stderr, "       msredis-cli -n 10000 -c 16 INCR counter")
	fmt.Fprintln(os.Stderr, "       msredis-cli -compare ref:6379 -addr sut:6380 -dbs 0,1")
	fmt.Fprintln(os.Stderr, "Options:")
	flag.PrintDefaults()
}

// runOnce sends one command and renders the reply
func runOnce(ctx context.Context, addr, password string, timeout time.Duration, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := client.Dial(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() { _ = c.Close() }()

	if password != "" {
		if err := c.Auth(ctx, password); err != nil {
			return "", fmt.Errorf("auth: %w", err)
		}
	}

	reply, err := c.Do(ctx, args...)
	if err != nil {
		return "", err
	}
	if reply.IsError() {
		return "(error) " + reply.Text(), nil
	}
	if reply.IsNull() {
		return "(nil)", nil
	}
	return reply.Text(), nil
}

func parseDBFilter(s string) (map[int]bool, error) {
	if s == "" {
		return nil, nil
	}
	filter := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		db, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid database %q", part)
		}
		filter[db] = true
	}
	return filter, nil
}
