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

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/triage/internal/api"
	"github.com/kiranshivaraju/triage/internal/api/handler"
	mw "github.com/kiranshivaraju/triage/internal/api/middleware"
	"github.com/kiranshivaraju/triage/internal/cache"
	"github.com/kiranshivaraju/triage/internal/config"
	"github.com/kiranshivaraju/triage/internal/store"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve published clusters and rendered slices over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "auth", cfg.Server.APIKeyHash != "")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	pgStore := store.NewPostgresStore(pool)
	router := api.NewRouter(dependencies(cfg, pgStore, redisCache))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// dependencies wires handlers to their backends. The slice endpoint stays
// unimplemented when no slice template is configured.
func dependencies(cfg *config.Config, s store.Store, c cache.Cache) api.Dependencies {
	deps := api.Dependencies{
		Auth:          mw.NewAuth(cfg.Server.APIKeyHash),
		HealthHandler: handler.NewHealthHandler(s, c),
		ListClusters:  handler.NewListClustersHandler(s, c),
		GetCluster:    handler.NewGetClusterHandler(s),
	}
	if cfg.Server.RateLimit > 0 {
		deps.RateLimit = mw.NewRateLimit(c, cfg.Server.RateLimit)
	}
	if cfg.Output.Slices != "" {
		deps.GetSlice = handler.NewSliceHandler(cfg.Output.Slices, c)
	}
	return deps
}
