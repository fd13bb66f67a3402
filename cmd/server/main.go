// Package main runs the batch image generation server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/phrazzld/batchgen/internal/config"
	"github.com/phrazzld/batchgen/internal/platform/logger"
	"github.com/phrazzld/batchgen/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status, version) and exit")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, appLogger, err := initializeApp()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := setupAppDatabase(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("database setup failed", "error", err)
		os.Exit(1)
	}

	if *migrateCmd != "" {
		err := postgres.Migrate(ctx, db, *migrateCmd, appLogger)
		_ = db.Close()
		if err != nil {
			appLogger.Error("migration failed", "command", *migrateCmd, "error", err)
			os.Exit(1)
		}
		return
	}

	if err := postgres.Migrate(ctx, db, "up", appLogger); err != nil {
		_ = db.Close()
		appLogger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		appLogger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		appLogger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Printf("falling back to default logger: %v", err)
		l = slog.Default()
	}

	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"provider", cfg.Provider.Name,
		"redis_enabled", cfg.Redis.URL != "")
	return cfg, l, nil
}
