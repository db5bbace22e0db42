package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retroboard/internal/auth"
	"retroboard/internal/config"
	"retroboard/internal/db"
	httpx "retroboard/internal/http"
	"retroboard/internal/realtime"
	"retroboard/internal/retro"

	"github.com/charmbracelet/log"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", "err", err)
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown LOG_LEVEL, using info", "value", cfg.LogLevel)
	}

	var store retro.Store
	if cfg.InMemory() {
		logger.Warn("DATABASE_URL not set, retros live in memory only")
		store = retro.NewMemStore()
	} else {
		gdb, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("connect database", "err", err)
		}
		if err := db.AutoMigrateAndIndexes(gdb); err != nil {
			logger.Fatal("migrate", "err", err)
		}
		store = &retro.GormStore{DB: gdb}
	}

	sync := realtime.NewServer(store, realtime.WithCatalog(store), realtime.WithLogger(logger))
	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, httpx.Deps{Store: store, Sync: sync, JWT: jwtSvc, Logger: logger})

	// presence sweeper
	sweeper := &realtime.Sweeper{
		Server:   sync,
		Interval: cfg.PresenceSweepInterval,
		Logger:   logger.With("component", "sweeper"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", "err", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
}
