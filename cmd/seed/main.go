package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mmoldabe-dev/subtrack/internal/config"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
	"github.com/mmoldabe-dev/subtrack/internal/service"
	"github.com/mmoldabe-dev/subtrack/internal/storage/postgres"
	"github.com/mmoldabe-dev/subtrack/pkg/logger"
)

// seed applies migrations and creates the system user plus an optional
// first admin from SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD / SEED_ADMIN_NAME.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("cant load config: %s\n", err)
		os.Exit(1)
	}
	log := logger.SetupLogger(cfg.Logger.Level, cfg.Logger.Format, "subtrack-seed")

	if err := postgres.RunMigrations(cfg, log); err != nil {
		log.Error("migration failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.NewPostgres(ctx, cfg, log)
	if err != nil {
		log.Error("could not initialize database storage", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	err = service.Bootstrap(ctx, repository.NewUserRepository(db, log), service.BootstrapInput{
		SystemUserID:  cfg.Audit.SystemUserID,
		AdminName:     os.Getenv("SEED_ADMIN_NAME"),
		AdminEmail:    os.Getenv("SEED_ADMIN_EMAIL"),
		AdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
	}, log)
	if err != nil {
		log.Error("seed failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("database is ready to work")
}
