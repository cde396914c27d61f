package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mmoldabe-dev/subtrack/internal/audit"
	"github.com/mmoldabe-dev/subtrack/internal/config"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
	"github.com/mmoldabe-dev/subtrack/internal/scheduler"
	"github.com/mmoldabe-dev/subtrack/internal/service"
	"github.com/mmoldabe-dev/subtrack/internal/storage/postgres"
	"github.com/mmoldabe-dev/subtrack/pkg/logger"
)

// sweep runs the due-date transitions once and exits, for deployments
// that trigger it from an external cron instead of the in-process scheduler.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("cant load config: %s\n", err)
		os.Exit(1)
	}
	log := logger.SetupLogger(cfg.Logger.Level, cfg.Logger.Format, "subtrack-sweep")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.NewPostgres(ctx, cfg, log)
	if err != nil {
		log.Error("could not initialize database storage", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	repos := service.Repositories{
		Subscriptions: repository.NewSubscriptionRepository(db, log),
		Services:      repository.NewServiceRepository(db, log),
		Departments:   repository.NewDepartmentRepository(db, log),
		Users:         repository.NewUserRepository(db, log),
		Spend:         repository.NewSpendRepository(db, log),
		Audit:         repository.NewAuditRepository(db, log),
		Tx:            repository.NewTxRunner(db),
	}

	if err := service.VerifySystemUser(ctx, repos.Users, cfg.Audit.SystemUserID); err != nil {
		log.Error("system user check failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	sink := audit.NewSink(repos.Audit, cfg.Audit.WriteTimeout, log)
	defer sink.Close(context.Background())

	subs, err := service.NewSubscriptionService(repos, sink, cfg.Audit.SystemUserID, log)
	if err != nil {
		log.Error("service init error", slog.String("err", err.Error()))
		os.Exit(1)
	}

	if _, err := scheduler.RunSweep(ctx, subs, log); err != nil {
		log.Error("sweep failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
