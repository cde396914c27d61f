// Package scheduler runs the due-date sweep on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

var (
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrack_sweep_runs_total",
		Help: "Due-date sweep runs by outcome.",
	}, []string{"outcome"})

	sweepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subtrack_sweep_transitions_total",
		Help: "Subscriptions moved by the sweep, by target status.",
	}, []string{"status"})
)

type Sweeper interface {
	SweepDueTransitions(ctx context.Context) (domain.SweepResult, error)
}

// Scheduler manages the sweep job.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	log      *slog.Logger
}

// NewScheduler creates a scheduler in UTC so "midnight" matches the
// calendar days the sweep compares against.
func NewScheduler(sweeper Sweeper, schedule string, timeout time.Duration, log *slog.Logger) *Scheduler {
	log = log.With(slog.String("component", "scheduler"))
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
		log:      log,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	const op = "scheduler.Start"

	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("%s: invalid schedule %q: %w", op, s.schedule, err)
	}
	s.log.Info("scheduled due-date sweep", slog.String("schedule", s.schedule))

	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once a running
// sweep has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := RunSweep(ctx, s.sweeper, s.log); err != nil {
		s.log.Error("scheduled sweep failed", slog.String("error", err.Error()))
	}
}

// RunSweep executes one sweep and records its outcome. It is shared by
// the cron job, the one-shot command and the HTTP endpoint.
func RunSweep(ctx context.Context, sweeper Sweeper, log *slog.Logger) (domain.SweepResult, error) {
	start := time.Now()

	res, err := sweeper.SweepDueTransitions(ctx)
	if err != nil {
		SweepRuns.WithLabelValues("failure").Inc()
		return domain.SweepResult{}, err
	}

	SweepRuns.WithLabelValues("success").Inc()
	sweepTransitions.WithLabelValues(string(domain.StatusExpired)).Add(float64(res.ExpiredCount))
	sweepTransitions.WithLabelValues(string(domain.StatusRenewalPending)).Add(float64(res.PendingCount))

	log.Info("due-date sweep finished",
		slog.Int("expired", res.ExpiredCount),
		slog.Int("renewal_pending", res.PendingCount),
		slog.Duration("took", time.Since(start)),
	)
	return res, nil
}
