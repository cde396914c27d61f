package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mmoldabe-dev/subtrack/docs"
	"github.com/mmoldabe-dev/subtrack/internal/audit"
	"github.com/mmoldabe-dev/subtrack/internal/config"
	"github.com/mmoldabe-dev/subtrack/internal/handler"
	"github.com/mmoldabe-dev/subtrack/internal/middleware"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
	"github.com/mmoldabe-dev/subtrack/internal/scheduler"
	"github.com/mmoldabe-dev/subtrack/internal/service"
	"github.com/mmoldabe-dev/subtrack/internal/storage/postgres"
	"github.com/mmoldabe-dev/subtrack/pkg/logger"
)

//@title SubTrack
//@version 1.0
//@description Subscription management API: catalog, lifecycle, spend dashboard and audit log.

// host@ localhost:8080
// basePath /
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("cant load config: %s\n", err)
		os.Exit(1)
	}

	log := logger.SetupLogger(cfg.Logger.Level, cfg.Logger.Format, "subtrack")

	// migrations run before the pool is opened
	if err := postgres.RunMigrations(cfg, log); err != nil {
		log.Error("migration failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	db, err := postgres.NewPostgres(startCtx, cfg, log)
	if err != nil {
		log.Error("db init error", slog.String("err", err.Error()))
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

	// the sweep writes audit rows as the system user, so a missing row
	// would only surface at the first run
	if err := service.VerifySystemUser(startCtx, repos.Users, cfg.Audit.SystemUserID); err != nil {
		log.Error("system user check failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	sink := audit.NewSink(repos.Audit, cfg.Audit.WriteTimeout, log)

	subs, err := service.NewSubscriptionService(repos, sink, cfg.Audit.SystemUserID, log)
	if err != nil {
		log.Error("service init error", slog.String("err", err.Error()))
		os.Exit(1)
	}

	h := handler.NewHandler(handler.Services{
		Subscriptions: subs,
		Dashboard:     service.NewDashboardService(repos, cfg.Dashboard.RenewalWindowDays, log),
		Departments:   service.NewDepartmentService(repos, sink, log),
		Catalog:       service.NewCatalogService(repos, sink, log),
		AuditLog:      service.NewAuditLogService(repos, log),
		Users:         service.NewUserService(repos, sink, log),
	}, postgres.NewReadinessChecker(db), log)

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: h.SetupRouter(handler.RouterConfig{
			Auth:           middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CookieName, log),
			InternalSecret: cfg.Auth.InternalSecret,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var sched *scheduler.Scheduler
	if cfg.Sweep.Enabled {
		sched = scheduler.NewScheduler(subs, cfg.Sweep.Schedule, time.Minute, log)
		if err := sched.Start(); err != nil {
			log.Error("scheduler init error", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}

	go func() {
		log.Info("server starting...", slog.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen error", slog.String("err", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", slog.String("error", err.Error()))
	}

	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-ctx.Done():
			log.Warn("sweep still running at shutdown")
		}
	}

	// pending fire-and-forget audit writes
	if err := sink.Close(ctx); err != nil {
		log.Warn("audit sink did not drain", slog.String("error", err.Error()))
	}

	log.Info("server stopped")
}
