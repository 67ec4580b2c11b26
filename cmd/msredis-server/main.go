package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"

	"github.com/msredis/msredis"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	addr := flag.String("addr", "", "listen address (overrides config, default :6379)")
	password := flag.String("password", "", "require AUTH with this password")
	databases := flag.Int("databases", 0, "number of logical databases (default 16)")
	enableGops := flag.Bool("gops", false, "start the gops diagnostics agent")
	debug := flag.Bool("debug", false, "log per-key expiry and eviction")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("msredis %s (redis %s)\n", msredis.Version, msredis.RedisVersion)
		return
	}

	if *enableGops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			log.Printf("gops: %v", err)
		}
	}

	opts, err := buildOptions(*configPath, *addr, *password, *databases)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	opts = append(opts, msredis.WithDebugLogging(*debug))

	inst, err := msredis.New(opts...)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := inst.Start(ctx); err != nil {
		_ = inst.Close()
		log.Fatalf("start: %v", err)
	}

	<-ctx.Done()
	log.Printf("shutting down")
	if err := inst.Close(); err != nil {
		log.Printf("close: %v", err)
		os.Exit(1)
	}
}

// buildOptions layers command line flags over the config file
func buildOptions(configPath, addr, password string, databases int) ([]msredis.Option, error) {
	var opts []msredis.Option
	if configPath != "" {
		fc, err := msredis.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		if opts, err = fc.Options(); err != nil {
			return nil, err
		}
	}
	if addr != "" {
		opts = append(opts, msredis.WithAddr(addr))
	}
	if password != "" {
		opts = append(opts, msredis.WithPassword(password))
	}
	if databases != 0 {
		opts = append(opts, msredis.WithDatabases(databases))
	}
	return opts, nil
}
