package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealerops/incentive-engine/internal/api"
	"github.com/dealerops/incentive-engine/internal/cache"
	"github.com/dealerops/incentive-engine/internal/config"
	"github.com/dealerops/incentive-engine/internal/db"
	"github.com/dealerops/incentive-engine/internal/notify"
	"github.com/dealerops/incentive-engine/internal/repository"
	"github.com/dealerops/incentive-engine/internal/service"
	"github.com/dealerops/incentive-engine/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting incentive-engine service")

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool := connectWithRetry(ctx, cfg)
	defer dbPool.Close()

	if err := db.RunMigrations(ctx, dbPool); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	metrics := telemetry.New()
	store := repository.NewStore(dbPool, cfg.Import.BatchInsertSize)
	bundles := cache.New(store,
		cache.WithMaxAge(cfg.Cache.MaxAge),
		cache.WithConcurrency(cfg.Cache.Concurrency),
		cache.WithMetrics(metrics),
	)
	svc := service.New(store, store, store, store, bundles, metrics)
	idempotency := repository.NewIdempotencyRepository(dbPool)

	if cfg.Notify.Enabled {
		listener := notify.NewListener(notify.PgxConnector(cfg.Database.DSN()), svc, cfg.Notify)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("change listener stopped", "error", err)
			}
		}()
	}
	go sweepIdempotencyKeys(ctx, idempotency, cfg.Janitor.Interval)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(cfg, api.Dependencies{
		Service:     svc,
		Idempotency: idempotency,
		Imports:     repository.NewImportRepository(dbPool),
		Metrics:     metrics,
		Ping:        dbPool.Ping,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("server listening",
			"port", cfg.Server.Port,
			"service", "incentive-engine",
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server exited")
}

func connectWithRetry(ctx context.Context, cfg *config.Config) *db.Pool {
	maxRetries := cfg.Database.ConnectRetries
	for i := 0; i < maxRetries; i++ {
		pool, err := db.Connect(ctx, cfg.Database)
		if err == nil {
			return pool
		}
		slog.Warn("database not ready, retrying...",
			"attempt", i+1,
			"max_retries", maxRetries,
			"error", err,
		)
		select {
		case <-time.After(cfg.Database.ConnectRetryDelay):
		case <-ctx.Done():
			slog.Error("interrupted while connecting to database")
			os.Exit(1)
		}
	}
	slog.Error("failed to connect to database after retries")
	os.Exit(1)
	return nil
}

// sweepIdempotencyKeys deletes expired Idempotency-Key claims until ctx ends.
func sweepIdempotencyKeys(ctx context.Context, repo *repository.IdempotencyRepository, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Warn("idempotency sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired idempotency keys removed", "count", n)
			}
		}
	}
}
