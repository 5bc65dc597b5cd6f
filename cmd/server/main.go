package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/jobcache/internal/cache"
	"github.com/muandane/special-stack/jobcache/internal/config"
	"github.com/muandane/special-stack/jobcache/internal/jobs"
	"github.com/muandane/special-stack/jobcache/internal/logging"
	"github.com/muandane/special-stack/jobcache/internal/router"
	"github.com/muandane/special-stack/jobcache/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage client
	docs, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		return err
	}

	maxBytes, err := cfg.Cache.MaxBytes()
	if err != nil {
		return err
	}
	store := cache.Init(cache.Config{
		MaxBytes:      maxBytes,
		SweepInterval: cfg.Cache.SweepInterval,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		Logger:        logger,
	})
	defer store.Close()

	svc := jobs.NewService(docs, store, jobs.Options{
		DedupeFetch: cfg.Cache.DedupeFetch,
		Logger:      logger,
	})

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(logger)
	engine, err := r.Setup(&cfg.Server, svc, store)
	if err != nil {
		return err
	}
	defer r.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", cfg.Server.Addr,
			"storage", cfg.Storage.Driver,
			"cache_max_size", cfg.Cache.MaxSize,
			"dedupe_fetch", cfg.Cache.DedupeFetch,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
