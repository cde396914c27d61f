package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/audit"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
	"golang.org/x/sync/errgroup"
)

const msgStaleVersion = "subscription was modified by another user, reload and retry"

type SubscriptionServiceInterface interface {
	Create(ctx context.Context, in domain.CreateSubscriptionInput, actorID uuid.UUID) (*domain.SubscriptionView, error)
	List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.SubscriptionView, domain.PageMeta, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*domain.SubscriptionDetailView, error)
	Update(ctx context.Context, id uuid.UUID, in domain.UpdateSubscriptionInput, actorID uuid.UUID) (*domain.SubscriptionView, error)
	SoftDelete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error
	SweepDueTransitions(ctx context.Context) (domain.SweepResult, error)
}

type SubscriptionService struct {
	subs        repository.SubscriptionInterface
	services    repository.ServiceInterface
	departments repository.DepartmentInterface
	users       repository.UserInterface
	tx          repository.TxRunnerInterface
	audit       audit.SinkInterface

	systemUserID uuid.UUID
	now          func() time.Time
	log          *slog.Logger
}

var _ SubscriptionServiceInterface = (*SubscriptionService)(nil)

// NewSubscriptionService requires the system actor id up front; sweep
// entries are attributed to it.
func NewSubscriptionService(repos Repositories, sink audit.SinkInterface, systemUserID uuid.UUID, log *slog.Logger) (*SubscriptionService, error) {
	if systemUserID == uuid.Nil {
		return nil, errors.New("service.NewSubscriptionService: system user id is required")
	}
	return &SubscriptionService{
		subs:         repos.Subscriptions,
		services:     repos.Services,
		departments:  repos.Departments,
		users:        repos.Users,
		tx:           repos.Tx,
		audit:        sink,
		systemUserID: systemUserID,
		now:          time.Now,
		log:          log.With(slog.String("component", "service/subscription")),
	}, nil
}

func (s *SubscriptionService) Create(ctx context.Context, in domain.CreateSubscriptionInput, actorID uuid.UUID) (*domain.SubscriptionView, error) {
	const op = "service.Subscription.Create"

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.verifyReferences(ctx, in.ServiceID, in.ResponsibleID, in.DepartmentID); err != nil {
		return nil, err
	}

	sub := domain.Subscription{
		ID:            uuid.New(),
		ServiceID:     in.ServiceID,
		ResponsibleID: in.ResponsibleID,
		DepartmentID:  in.DepartmentID,
		Plan:          strings.TrimSpace(in.Plan),
		Price:         in.Price,
		Currency:      in.Currency,
		StartDate:     domain.StartOfDayUTC(in.StartDate.Time),
		NextBilling:   domain.StartOfDayUTC(in.NextBilling.Time),
		Status:        in.Status,
	}
	if sub.Status == "" {
		sub.Status = domain.StatusActive
	}
	if in.EndDate != nil && !in.EndDate.IsZero() {
		end := domain.EndOfDayUTC(in.EndDate.Time)
		sub.EndDate = &end
	}

	if err := s.subs.Create(ctx, &sub); err != nil {
		if derr := writeError(err); derr != nil {
			return nil, derr
		}
		return nil, internalError(s.log, op, err)
	}

	rec, err := s.subs.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, internalError(s.log, op, err)
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionCreate, domain.EntitySubscription, sub.ID.String(), nil, rec.Subscription)

	s.log.Info("subscription created", slog.String("id", sub.ID.String()))
	view := rec.View()
	return &view, nil
}

// verifyReferences checks service, responsible user and department
// concurrently.
func (s *SubscriptionService) verifyReferences(ctx context.Context, serviceID, userID uuid.UUID, departmentID int64) error {
	const op = "service.Subscription.verifyReferences"

	var serviceOK, userOK, departmentOK bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		serviceOK, err = s.services.Exists(gctx, serviceID)
		return err
	})
	g.Go(func() (err error) {
		userOK, err = s.users.Exists(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		departmentOK, err = s.departments.Exists(gctx, departmentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return internalError(s.log, op, err)
	}

	switch {
	case !serviceOK:
		return domain.NotFound("service not found")
	case !userOK:
		return domain.NotFound("responsible user not found")
	case !departmentOK:
		return domain.NotFound("department not found")
	}
	return nil
}

func (s *SubscriptionService) List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.SubscriptionView, domain.PageMeta, error) {
	const op = "service.Subscription.List"

	filter.Normalize()
	recs, total, err := s.subs.List(ctx, filter)
	if err != nil {
		return nil, domain.PageMeta{}, internalError(s.log, op, err)
	}

	views := make([]domain.SubscriptionView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, rec.View())
	}
	return views, domain.NewPageMeta(filter.Page, filter.Limit, total), nil
}

func (s *SubscriptionService) GetDetail(ctx context.Context, id uuid.UUID) (*domain.SubscriptionDetailView, error) {
	const op = "service.Subscription.GetDetail"

	rec, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NotFound("subscription not found")
		}
		return nil, internalError(s.log, op, err)
	}
	view := rec.DetailView()
	return &view, nil
}

func (s *SubscriptionService) Update(ctx context.Context, id uuid.UUID, in domain.UpdateSubscriptionInput, actorID uuid.UUID) (*domain.SubscriptionView, error) {
	const op = "service.Subscription.Update"

	if err := in.Validate(); err != nil {
		return nil, err
	}

	current, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NotFound("subscription not found")
		}
		return nil, internalError(s.log, op, err)
	}

	patch := buildPatch(in)

	if patch.DepartmentID != nil && *patch.DepartmentID != current.DepartmentID {
		ok, err := s.departments.Exists(ctx, *patch.DepartmentID)
		if err != nil {
			return nil, internalError(s.log, op, err)
		}
		if !ok {
			return nil, domain.NotFound("department not found")
		}
	}

	// the stored side counts when only one of the dates is supplied
	start := effectiveStart(current.StartDate, patch)
	if end := effectiveEnd(current.EndDate, patch); end != nil && end.Before(start) {
		return nil, domain.BusinessRule("end_date cannot be before start_date")
	}

	updated, err := s.subs.UpdateVersioned(ctx, id, in.Version, patch)
	if err != nil {
		if derr := writeError(err); derr != nil {
			return nil, derr
		}
		return nil, internalError(s.log, op, err)
	}
	if !updated {
		return nil, domain.Conflict(msgStaleVersion)
	}

	rec, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NotFound("subscription not found")
		}
		return nil, internalError(s.log, op, err)
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionUpdate, domain.EntitySubscription, id.String(),
		current.Subscription, rec.Subscription)

	s.log.Info("subscription updated", slog.String("id", id.String()), slog.Int("version", rec.Version))
	view := rec.View()
	return &view, nil
}

func buildPatch(in domain.UpdateSubscriptionInput) domain.SubscriptionPatch {
	var patch domain.SubscriptionPatch
	if v, ok := in.Plan.Get(); ok {
		plan := strings.TrimSpace(v)
		patch.Plan = &plan
	}
	if v, ok := in.Price.Get(); ok {
		patch.Price = &v
	}
	if v, ok := in.DepartmentID.Get(); ok {
		patch.DepartmentID = &v
	}
	if v, ok := in.StartDate.Get(); ok {
		start := domain.StartOfDayUTC(v.Time)
		patch.StartDate = &start
	}
	if in.EndDate.IsNull() {
		patch.ClearEndDate = true
	} else if v, ok := in.EndDate.Get(); ok {
		end := domain.EndOfDayUTC(v.Time)
		patch.EndDate = &end
	}
	if v, ok := in.NextBilling.Get(); ok {
		next := domain.StartOfDayUTC(v.Time)
		patch.NextBilling = &next
	}
	if v, ok := in.Status.Get(); ok {
		patch.Status = &v
	}
	return patch
}

// SoftDelete does not check the version token, so it wins over a
// concurrent update.
func (s *SubscriptionService) SoftDelete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	const op = "service.Subscription.SoftDelete"

	current, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return domain.NotFound("subscription not found")
		}
		return internalError(s.log, op, err)
	}

	deleted, err := s.subs.SoftDelete(ctx, id)
	if err != nil {
		return internalError(s.log, op, err)
	}
	if !deleted {
		return domain.NotFound("subscription not found")
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionDelete, domain.EntitySubscription, id.String(),
		current.Subscription, nil)

	s.log.Info("subscription deleted", slog.String("id", id.String()))
	return nil
}

type statusSnapshot struct {
	Status domain.SubscriptionStatus `json:"status"`
}

// SweepDueTransitions expires ended subscriptions and flags due ones for
// renewal. Both updates and their audit trail commit together or not at
// all, and only rows the updates returned are logged.
func (s *SubscriptionService) SweepDueTransitions(ctx context.Context) (domain.SweepResult, error) {
	const op = "service.Subscription.SweepDueTransitions"

	today := domain.Today(s.now())
	var result domain.SweepResult

	err := s.tx.RunInTx(ctx, func(tx repository.DBTX) error {
		expired, err := s.subs.ExpireDue(ctx, tx, today)
		if err != nil {
			return err
		}
		pending, err := s.subs.MarkRenewalPending(ctx, tx, today)
		if err != nil {
			return err
		}

		entries := make([]domain.AuditEntry, 0, len(expired)+len(pending))
		for _, batch := range []struct {
			ids []uuid.UUID
			to  domain.SubscriptionStatus
		}{
			{expired, domain.StatusExpired},
			{pending, domain.StatusRenewalPending},
		} {
			for _, id := range batch.ids {
				entry, err := audit.NewEntry(s.systemUserID, domain.ActionUpdate, domain.EntitySubscription, id.String(),
					statusSnapshot{domain.StatusActive}, statusSnapshot{batch.to})
				if err != nil {
					return err
				}
				entries = append(entries, entry)
			}
		}
		if err := s.audit.AppendMany(ctx, tx, entries); err != nil {
			return err
		}

		result = domain.SweepResult{ExpiredCount: len(expired), PendingCount: len(pending)}
		return nil
	})
	if err != nil {
		return domain.SweepResult{}, internalError(s.log, op, fmt.Errorf("sweep aborted: %w", err))
	}

	s.log.Info("due-date sweep finished",
		slog.String("today", today.Format(time.DateOnly)),
		slog.Int("expired", result.ExpiredCount),
		slog.Int("pending", result.PendingCount),
	)
	return result, nil
}

// writeError maps constraint failures of a subscription write onto the
// error taxonomy, or returns nil for unexpected failures.
func writeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return domain.Conflict("a subscription for this service, department and plan already exists")
	case errors.Is(err, repository.ErrMissingReference):
		return domain.NotFound("referenced service, user or department not found")
	case errors.Is(err, repository.ErrConstraint):
		return domain.BusinessRule("subscription violates a data constraint")
	}
	return nil
}
