package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/guarantor/internal/config"
	"github.com/JonMunkholm/guarantor/internal/core"
	"github.com/JonMunkholm/guarantor/internal/logging"
	"github.com/JonMunkholm/guarantor/internal/store"
	"github.com/JonMunkholm/guarantor/internal/web"
)

func main() {
	// Overload lets a local .env win over inherited variables.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	layout, err := cfg.Merge.Layout()
	if err != nil {
		logger.Error("failed to load column layout", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	records, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	service := core.NewService(records, core.Options{
		Layout:        layout,
		OutputName:    cfg.Merge.OutputName,
		Timeout:       cfg.Merge.Timeout,
		ResultTTL:     cfg.Merge.ResultTTL,
		MaxFileSize:   cfg.Merge.MaxFileSize,
		MaxConcurrent: cfg.Merge.MaxConcurrent,
		MaxWait:       cfg.Merge.MaxWaitTime,
		SyncURL:       cfg.Sync.FeedURL,
		SyncTimeout:   cfg.Sync.Timeout,
		Logger:        logger,
	})

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(logging.WithLogger(ctx, logger))
	defer cancelJobs()

	if cfg.Sync.Interval > 0 {
		go service.StartSyncScheduler(jobCtx, cfg.Sync.Interval)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := service.Limiter().Status(); st.Active > 0 {
			logger.Info("waiting for merges to complete", "active", st.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("merges did not complete in time", "error", err)
			} else {
				logger.Info("all merges completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// openStore connects to Postgres when DATABASE_URL is set and falls back to
// the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (core.RecordStore, func(), error) {
	if !cfg.Database.Enabled() {
		slog.Warn("DATABASE_URL not set, records are kept in memory only")
		return store.NewMemory(cfg.Store.BatchSize), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	pg := store.NewPostgres(pool, cfg.Store.BatchSize)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}
