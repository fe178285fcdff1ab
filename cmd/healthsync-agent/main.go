package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"healthsync/internal/agent"
	"healthsync/internal/client"
	"healthsync/internal/config"
	"healthsync/internal/device"
	"healthsync/internal/kvstore"
	"healthsync/internal/logger"
	"healthsync/internal/pullsync"
	"healthsync/internal/writeback"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the process exit code so deferred cleanup (store close, log
// flush) always happens before main exits.
func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("healthsync-agent", flag.ContinueOnError)
	once := fs.Bool("once", false, "run a single sync pass and print its result")
	yesterday := fs.Bool("yesterday", false, "print yesterday's summary from the server and exit")
	from := fs.String("from", "", "with -to, print the range summary for YYYY-MM-DD..YYYY-MM-DD and exit")
	to := fs.String("to", "", "end day for -from")
	lastRun := fs.Bool("last", false, "print the last stored sync summary and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadAgent()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "healthsync-agent")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Error("open state store failed", zap.String("store", cfg.Store), zap.Error(err))
		return 1
	}
	defer closeStore()

	api := client.New(client.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.HTTPTimeout,
		Retry:   client.DefaultRetry(),
	}, log)
	src := &device.FileSource{ExportPath: cfg.ExportPath, WritesPath: cfg.WritesPath}

	engine := &pullsync.Engine{
		Source:    src,
		API:       api,
		State:     &pullsync.State{KV: store},
		WriteBack: &writeback.Engine{Device: src, Queue: api, Log: log},
		Timezone:  cfg.Timezone,
		Log:       log,
	}
	worker := &agent.Worker{ID: "agent-1", Sync: engine, Interval: cfg.SyncInterval, Log: log}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	switch {
	case *lastRun:
		sum, err := engine.State.LastSummary(ctx)
		if err != nil {
			log.Error("read last summary failed", zap.Error(err))
			return 1
		}
		_ = enc.Encode(sum)
		return 0
	case *yesterday:
		out, err := api.YesterdaySummary(ctx, cfg.Timezone)
		if err != nil {
			log.Error("yesterday summary failed", zap.Error(err))
			return 1
		}
		_ = enc.Encode(out)
		return 0
	case *from != "" || *to != "":
		out, err := api.RangeSummary(ctx, *from, *to, cfg.Timezone)
		if err != nil {
			log.Error("range summary failed", zap.Error(err))
			return 1
		}
		_ = enc.Encode(out)
		return 0
	case *once:
		res := worker.Once(ctx)
		_ = enc.Encode(res)
		if res.Error != "" {
			return 1
		}
		return 0
	}

	log.Info("agent started", zap.Duration("interval", cfg.SyncInterval), zap.String("store", cfg.Store))
	worker.Run(ctx)
	log.Info("agent stopped")
	return 0
}

func openStore(cfg config.AgentConfig) (kvstore.Store, func(), error) {
	switch cfg.Store {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return kvstore.NewRedis(rdb, "healthsync:"), func() { _ = rdb.Close() }, nil
	case "memory":
		return kvstore.NewMemory(), func() {}, nil
	default:
		s, err := kvstore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}
