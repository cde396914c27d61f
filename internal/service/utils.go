package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/audit"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
)

// Repositories bundles the storage dependencies of the services.
type Repositories struct {
	Subscriptions repository.SubscriptionInterface
	Services      repository.ServiceInterface
	Departments   repository.DepartmentInterface
	Users         repository.UserInterface
	Spend         repository.SpendInterface
	Audit         repository.AuditInterface
	Tx            repository.TxRunnerInterface
}

// VerifySystemUser fails when the configured system actor is missing, so a
// misconfigured deployment stops at startup instead of on the first sweep.
func VerifySystemUser(ctx context.Context, users repository.UserInterface, id uuid.UUID) error {
	const op = "service.VerifySystemUser"
	if id == uuid.Nil {
		return fmt.Errorf("%s: system user id is not configured", op)
	}
	ok, err := users.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: system user %s does not exist", op, id)
	}
	return nil
}

// internalError logs the cause and hides it behind a generic message.
func internalError(log *slog.Logger, op string, err error) error {
	log.Error("operation failed", slog.String("op", op), slog.String("error", err.Error()))
	return domain.Internal("internal server error", fmt.Errorf("%s: %w", op, err))
}

// record emits an audit entry without blocking the caller.
func record(ctx context.Context, sink audit.SinkInterface, log *slog.Logger, actor uuid.UUID,
	action domain.AuditAction, entity domain.EntityType, entityID string, oldValues, newValues any) {
	entry, err := audit.NewEntry(actor, action, entity, entityID, oldValues, newValues)
	if err != nil {
		log.Error("failed to build audit entry",
			slog.String("entity", string(entity)),
			slog.String("entity_id", entityID),
			slog.String("error", err.Error()),
		)
		return
	}
	sink.Append(ctx, entry)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

// effectiveEnd resolves the end date a patch would leave on current.
func effectiveEnd(current *time.Time, patch domain.SubscriptionPatch) *time.Time {
	switch {
	case patch.ClearEndDate:
		return nil
	case patch.EndDate != nil:
		return patch.EndDate
	default:
		return current
	}
}

func effectiveStart(current time.Time, patch domain.SubscriptionPatch) time.Time {
	if patch.StartDate != nil {
		return *patch.StartDate
	}
	return current
}
