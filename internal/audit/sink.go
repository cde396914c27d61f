// Package audit records who changed what. Hot-path writes are
// fire-and-forget; batch writes join the caller's transaction.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtrack_audit_entries_written_total",
			Help: "Audit entries persisted, by write mode",
		},
		[]string{"mode"},
	)

	entriesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtrack_audit_entries_failed_total",
			Help: "Audit entries that could not be persisted, by write mode",
		},
		[]string{"mode"},
	)
)

var ErrClosed = errors.New("audit sink closed")

type SinkInterface interface {
	Append(ctx context.Context, entry domain.AuditEntry)
	AppendMany(ctx context.Context, db repository.DBTX, entries []domain.AuditEntry) error
}

type Sink struct {
	repo    repository.AuditInterface
	timeout time.Duration
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ SinkInterface = (*Sink)(nil)

func NewSink(repo repository.AuditInterface, timeout time.Duration, log *slog.Logger) *Sink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sink{
		repo:    repo,
		timeout: timeout,
		log:     log.With(slog.String("component", "audit")),
	}
}

// Append persists entry in the background. The write outlives the request
// context but is bounded by the sink timeout; failures are only logged.
func (s *Sink) Append(ctx context.Context, entry domain.AuditEntry) {
	const op = "audit.Sink.Append"
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		entriesFailedTotal.WithLabelValues("async").Inc()
		s.log.Warn("audit entry dropped", slog.String("op", op), slog.String("error", ErrClosed.Error()),
			slog.String("entity", string(entry.Entity)), slog.String("entity_id", entry.EntityID))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		if err := s.repo.Insert(wctx, nil, entry); err != nil {
			entriesFailedTotal.WithLabelValues("async").Inc()
			s.log.Error("failed to write audit entry",
				slog.String("op", op),
				slog.String("action", string(entry.Action)),
				slog.String("entity", string(entry.Entity)),
				slog.String("entity_id", entry.EntityID),
				slog.String("error", err.Error()),
			)
			return
		}
		entriesWrittenTotal.WithLabelValues("async").Inc()
	}()
}

// AppendMany writes entries through db. Passing a transaction makes the
// entries part of it; an error must abort that transaction.
func (s *Sink) AppendMany(ctx context.Context, db repository.DBTX, entries []domain.AuditEntry) error {
	const op = "audit.Sink.AppendMany"
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if entries[i].ID == uuid.Nil {
			entries[i].ID = uuid.New()
		}
	}

	if err := s.repo.InsertMany(ctx, db, entries); err != nil {
		entriesFailedTotal.WithLabelValues("batch").Add(float64(len(entries)))
		return fmt.Errorf("%s: %w", op, err)
	}
	entriesWrittenTotal.WithLabelValues("batch").Add(float64(len(entries)))
	return nil
}

// Close stops accepting background writes and waits for the in-flight
// ones, or until ctx is done.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit.Sink.Close: %w", ctx.Err())
	}
}

// NewEntry builds an entry with old and new snapshots of arbitrary values.
// A nil value leaves that side absent.
func NewEntry(actor uuid.UUID, action domain.AuditAction, entity domain.EntityType, entityID string, oldValues, newValues any) (domain.AuditEntry, error) {
	entry := domain.AuditEntry{
		ID:       uuid.New(),
		UserID:   actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
	}
	var err error
	if oldValues != nil {
		if entry.OldValues, err = domain.NewSnapshot(oldValues); err != nil {
			return entry, err
		}
	}
	if newValues != nil {
		if entry.NewValues, err = domain.NewSnapshot(newValues); err != nil {
			return entry, err
		}
	}
	return entry, nil
}
