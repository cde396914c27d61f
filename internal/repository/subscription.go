package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
)

type SubscriptionInterface interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SubscriptionRecord, error)
	List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.SubscriptionRecord, int, error)
	UpdateVersioned(ctx context.Context, id uuid.UUID, version int, patch domain.SubscriptionPatch) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
	ExpireDue(ctx context.Context, db DBTX, today time.Time) ([]uuid.UUID, error)
	MarkRenewalPending(ctx context.Context, db DBTX, today time.Time) ([]uuid.UUID, error)
	CountActiveByDepartment(ctx context.Context, departmentID int64) (int, error)
	CountActiveByService(ctx context.Context, serviceID uuid.UUID) (int, error)
}

type SubscriptionRepository struct {
	db  *sql.DB
	log *slog.Logger
}

var _ SubscriptionInterface = (*SubscriptionRepository)(nil)

func NewSubscriptionRepository(db *sql.DB, log *slog.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:  db,
		log: log.With(slog.String("component", "repository/subscription")),
	}
}

const subscriptionRecordColumns = `
	s.id, s.service_id, s.responsible_id, s.department_id, s.plan, s.price, s.currency,
	s.start_date, s.end_date, s.next_billing, s.status, s.version, s.created_at, s.updated_at,
	sv.name, sv.website, d.description, u.name, u.email`

const subscriptionRecordFrom = `
	FROM subscriptions s
	JOIN services sv ON sv.id = s.service_id
	JOIN departments d ON d.id = s.department_id
	JOIN users u ON u.id = s.responsible_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriptionRecord(row rowScanner) (domain.SubscriptionRecord, error) {
	var rec domain.SubscriptionRecord
	err := row.Scan(
		&rec.ID, &rec.ServiceID, &rec.ResponsibleID, &rec.DepartmentID, &rec.Plan, &rec.Price, &rec.Currency,
		&rec.StartDate, &rec.EndDate, &rec.NextBilling, &rec.Status, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.ServiceName, &rec.ServiceWebsite, &rec.DepartmentDescription, &rec.ResponsibleName, &rec.ResponsibleEmail,
	)
	if err != nil {
		return rec, err
	}
	rec.StartDate = rec.StartDate.UTC()
	rec.NextBilling = rec.NextBilling.UTC()
	if rec.EndDate != nil {
		end := rec.EndDate.UTC()
		rec.EndDate = &end
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// Create inserts sub and fills version and timestamps from the database.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	const op = "repository.Subscription.Create"
	query := `
	INSERT INTO subscriptions (id, service_id, responsible_id, department_id, plan, price, currency,
		start_date, end_date, next_billing, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING version, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		sub.ID, sub.ServiceID, sub.ResponsibleID, sub.DepartmentID, sub.Plan, sub.Price, sub.Currency,
		sub.StartDate, sub.EndDate, sub.NextBilling, sub.Status,
	).Scan(&sub.Version, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrMissingReference) {
			r.log.Error("failed to create subscription", slog.String("op", op), slog.String("error", err.Error()))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetByID returns a live (not soft-deleted) subscription with its display fields.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SubscriptionRecord, error) {
	const op = "repository.Subscription.GetByID"
	query := `SELECT` + subscriptionRecordColumns + subscriptionRecordFrom + `
	WHERE s.id = $1 AND s.deleted_at IS NULL`

	rec, err := scanSubscriptionRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		r.log.Error("failed to get subscription",
			slog.String("op", op),
			slog.String("id", id.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rec, nil
}

func subscriptionWhere(filter domain.SubscriptionFilter, a *args) string {
	conds := []string{"s.deleted_at IS NULL"}
	if filter.Status != nil {
		conds = append(conds, "s.status = "+a.add(*filter.Status))
	}
	if filter.ServiceID != nil {
		conds = append(conds, "s.service_id = "+a.add(*filter.ServiceID))
	}
	if filter.ResponsibleID != nil {
		conds = append(conds, "s.responsible_id = "+a.add(*filter.ResponsibleID))
	}
	if filter.DepartmentID != nil {
		conds = append(conds, "s.department_id = "+a.add(*filter.DepartmentID))
	}
	if filter.Search != "" {
		conds = append(conds, "s.plan ILIKE "+a.add(likePattern(filter.Search)))
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// List returns one page and the total row count, both read from the same
// snapshot.
func (r *SubscriptionRepository) List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.SubscriptionRecord, int, error) {
	const op = "repository.Subscription.List"

	var a args
	where := subscriptionWhere(filter, &a)
	countQuery := `SELECT COUNT(*) FROM subscriptions s` + where

	pageArgs := append(args{}, a...)
	pageQuery := `SELECT` + subscriptionRecordColumns + subscriptionRecordFrom + where +
		fmt.Sprintf(" ORDER BY s.created_at DESC, s.id DESC LIMIT %s OFFSET %s",
			pageArgs.add(filter.Limit), pageArgs.add(filter.Offset()))

	var (
		total int
		subs  []domain.SubscriptionRecord
	)
	err := runInTx(ctx, r.db, snapshotTx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countQuery, a...).Scan(&total); err != nil {
			return fmt.Errorf("count: %w", err)
		}

		rows, err := tx.QueryContext(ctx, pageQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanSubscriptionRecord(rows)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			subs = append(subs, rec)
		}
		return rows.Err()
	})
	if err != nil {
		r.log.Error("failed to list subscriptions", slog.String("op", op), slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return subs, total, nil
}

// UpdateVersioned applies patch only when the stored version still equals
// version, bumping it by one in the same statement. It reports whether a
// row was written.
func (r *SubscriptionRepository) UpdateVersioned(ctx context.Context, id uuid.UUID, version int, patch domain.SubscriptionPatch) (bool, error) {
	const op = "repository.Subscription.UpdateVersioned"

	var a args
	var sets []string
	set := func(col string, v any) { sets = append(sets, col+" = "+a.add(v)) }

	if patch.Plan != nil {
		set("plan", *patch.Plan)
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.DepartmentID != nil {
		set("department_id", *patch.DepartmentID)
	}
	if patch.StartDate != nil {
		set("start_date", *patch.StartDate)
	}
	if patch.ClearEndDate {
		sets = append(sets, "end_date = NULL")
	} else if patch.EndDate != nil {
		set("end_date", *patch.EndDate)
	}
	if patch.NextBilling != nil {
		set("next_billing", *patch.NextBilling)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	sets = append(sets, "version = version + 1", "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE subscriptions SET %s
	WHERE id = %s AND version = %s AND deleted_at IS NULL`,
		strings.Join(sets, ", "), a.add(id), a.add(version))

	res, err := r.db.ExecContext(ctx, query, a...)
	if err != nil {
		err = translate(err)
		r.log.Error("failed to update subscription",
			slog.String("op", op),
			slog.String("id", id.String()),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func (r *SubscriptionRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "repository.Subscription.SoftDelete"
	query := `UPDATE subscriptions SET deleted_at = NOW(), updated_at = NOW()
	WHERE id = $1 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.log.Error("failed to soft delete subscription", slog.String("op", op), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ExpireDue moves ACTIVE subscriptions whose end date has been reached to
// EXPIRED and returns the ids it actually changed. The status predicate is
// re-evaluated at write time, so rows edited concurrently are skipped.
func (r *SubscriptionRepository) ExpireDue(ctx context.Context, db DBTX, today time.Time) ([]uuid.UUID, error) {
	const op = "repository.Subscription.ExpireDue"
	query := `
	UPDATE subscriptions
	SET status = $1, version = version + 1, updated_at = NOW()
	WHERE status = $2 AND deleted_at IS NULL AND end_date <= $3
	RETURNING id`

	ids, err := collectIDs(ctx, db, query, domain.StatusExpired, domain.StatusActive, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// MarkRenewalPending moves ACTIVE subscriptions whose billing date has been
// reached, and which are not ending by today, to RENEWAL_PENDING.
func (r *SubscriptionRepository) MarkRenewalPending(ctx context.Context, db DBTX, today time.Time) ([]uuid.UUID, error) {
	const op = "repository.Subscription.MarkRenewalPending"
	query := `
	UPDATE subscriptions
	SET status = $1, version = version + 1, updated_at = NOW()
	WHERE status = $2 AND deleted_at IS NULL AND next_billing <= $3
	  AND (end_date IS NULL OR end_date > $3)
	RETURNING id`

	ids, err := collectIDs(ctx, db, query, domain.StatusRenewalPending, domain.StatusActive, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

func collectIDs(ctx context.Context, db DBTX, query string, params ...any) ([]uuid.UUID, error) {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SubscriptionRepository) CountActiveByDepartment(ctx context.Context, departmentID int64) (int, error) {
	const op = "repository.Subscription.CountActiveByDepartment"
	return r.countActive(ctx, op, "department_id", departmentID)
}

func (r *SubscriptionRepository) CountActiveByService(ctx context.Context, serviceID uuid.UUID) (int, error) {
	const op = "repository.Subscription.CountActiveByService"
	return r.countActive(ctx, op, "service_id", serviceID)
}

func (r *SubscriptionRepository) countActive(ctx context.Context, op, column string, value any) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM subscriptions
	WHERE %s = $1 AND status = $2 AND deleted_at IS NULL`, column)

	var n int
	if err := r.db.QueryRowContext(ctx, query, value, domain.StatusActive).Scan(&n); err != nil {
		r.log.Error("failed to count active subscriptions", slog.String("op", op), slog.String("error", err.Error()))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
