// Package main runs the recommendation HTTP API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/formbricks/recommender/internal/config"
	"github.com/formbricks/recommender/internal/observability"
	"github.com/formbricks/recommender/pkg/database"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return 1
	}

	slog.SetDefault(observability.NewLogger(os.Stdout, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []database.PoolOption{
		database.WithLimits(cfg.DatabaseMaxConns, cfg.DatabaseMinConns, cfg.DatabaseMaxConnLifetime),
	}
	if cfg.VectorIndexBackend == config.VectorIndexPgvector {
		opts = append(opts, database.WithVectorTypes())
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, opts...)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return 1
	}
	defer db.Close()

	app, err := NewApp(ctx, cfg, db)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)

		return 1
	}

	code := 0

	if err := app.Run(ctx); err != nil {
		slog.Error("Application stopped with error", "error", err)

		code = 1
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)

		code = 1
	}

	slog.Info("Server exited")

	return code
}
