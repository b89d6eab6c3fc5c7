package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"chatbridge/internal/config"
	"chatbridge/internal/database"
	"chatbridge/internal/logger"
)

func main() {
	cfg := config.LoadForMigrations()
	if err := logger.Configure(cfg.LogLevel); err != nil {
		logger.Get("db-migration").Error("Invalid LOG_LEVEL", "error", err)
		os.Exit(1)
	}
	log := logger.Get("db-migration")

	log.Info("Running migrations", "dir", cfg.MigrationsDir)
	start := time.Now()

	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := database.RunMigrations(context.Background(), pool, cfg.MigrationsDir)
	if err != nil {
		log.Error("Migration failed", "error", err)
		pool.Close()
		os.Exit(1)
	}

	log.Info(fmt.Sprintf("Migrations completed in %d ms", time.Since(start).Milliseconds()), "applied", applied)
}
