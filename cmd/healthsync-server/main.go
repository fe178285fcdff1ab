package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthsync/internal/auth"
	"healthsync/internal/config"
	"healthsync/internal/db"
	httpx "healthsync/internal/http"
	"healthsync/internal/logger"

	"go.uber.org/zap"
)

func main() {
	hashToken := flag.String("hash-token", "", "print the bcrypt hash of a token for API_BEARER_TOKEN_BCRYPT and exit")
	flag.Parse()

	if *hashToken != "" {
		h, err := auth.HashToken(*hashToken)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "healthsync-server")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	if err := db.AutoMigrateAndIndexes(gdb, log); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	if cfg.BearerToken == "" && cfg.BearerTokenBcrypt == "" {
		log.Warn("no API bearer token configured; protected endpoints will answer 500")
	}

	r := httpx.NewRouter(httpx.Deps{Config: cfg, DB: gdb, Log: log})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}
