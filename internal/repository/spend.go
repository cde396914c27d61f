package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/shopspring/decimal"
)

// SpendInterface holds the read-only aggregation queries behind the dashboard.
// All of them consider ACTIVE, non-deleted subscriptions only.
type SpendInterface interface {
	KPIs(ctx context.Context) (domain.KPIs, error)
	SumByDepartment(ctx context.Context) ([]domain.DepartmentTotal, error)
	TopByPrice(ctx context.Context, limit int) ([]domain.TopSubscription, error)
	DueBetween(ctx context.Context, from, to time.Time, limit int) ([]domain.UpcomingRenewal, error)
}

type SpendRepository struct {
	db  *sql.DB
	log *slog.Logger
}

var _ SpendInterface = (*SpendRepository)(nil)

func NewSpendRepository(db *sql.DB, log *slog.Logger) *SpendRepository {
	return &SpendRepository{
		db:  db,
		log: log.With(slog.String("component", "repository/spend")),
	}
}

func (r *SpendRepository) KPIs(ctx context.Context) (domain.KPIs, error) {
	const op = "repository.Spend.KPIs"
	query := `
	SELECT COUNT(id), COALESCE(SUM(price), 0), COALESCE(ROUND(AVG(price), 2), 0)
	FROM subscriptions
	WHERE status = $1 AND deleted_at IS NULL`

	var k domain.KPIs
	if err := r.db.QueryRowContext(ctx, query, domain.StatusActive).Scan(&k.Count, &k.Sum, &k.Average); err != nil {
		r.log.Error("failed to aggregate kpis", slog.String("op", op), slog.String("error", err.Error()))
		return domain.KPIs{}, fmt.Errorf("%s: %w", op, err)
	}
	return k, nil
}

// SumByDepartment groups spend by department id only; descriptions are
// resolved by the caller with one batched lookup.
func (r *SpendRepository) SumByDepartment(ctx context.Context) ([]domain.DepartmentTotal, error) {
	const op = "repository.Spend.SumByDepartment"
	query := `
	SELECT department_id, SUM(price)
	FROM subscriptions
	WHERE status = $1 AND deleted_at IS NULL
	GROUP BY department_id
	ORDER BY SUM(price) DESC, department_id`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusActive)
	if err != nil {
		r.log.Error("failed to group spend", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var totals []domain.DepartmentTotal
	for rows.Next() {
		var t domain.DepartmentTotal
		if err := rows.Scan(&t.DepartmentID, &t.Total); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return totals, nil
}

func (r *SpendRepository) TopByPrice(ctx context.Context, limit int) ([]domain.TopSubscription, error) {
	const op = "repository.Spend.TopByPrice"
	query := `
	SELECT s.id, sv.name, sv.website, s.plan, s.price
	FROM subscriptions s
	JOIN services sv ON sv.id = s.service_id
	WHERE s.status = $1 AND s.deleted_at IS NULL
	ORDER BY s.price DESC, s.id
	LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusActive, limit)
	if err != nil {
		r.log.Error("failed to load top subscriptions", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.TopSubscription
	for rows.Next() {
		var (
			t     domain.TopSubscription
			price decimal.Decimal
		)
		if err := rows.Scan(&t.ID, &t.Service, &t.ServiceWebsite, &t.Plan, &price); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		t.Price = price.String()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// DueBetween lists subscriptions billing within [from, to], soonest first.
// DaysRemaining is left for the caller to fill.
func (r *SpendRepository) DueBetween(ctx context.Context, from, to time.Time, limit int) ([]domain.UpcomingRenewal, error) {
	const op = "repository.Spend.DueBetween"
	query := `
	SELECT s.id, sv.name, sv.website, s.price, s.next_billing
	FROM subscriptions s
	JOIN services sv ON sv.id = s.service_id
	WHERE s.status = $1 AND s.deleted_at IS NULL
	  AND s.next_billing >= $2 AND s.next_billing <= $3
	ORDER BY s.next_billing ASC, s.id
	LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusActive, from, to, limit)
	if err != nil {
		r.log.Error("failed to load upcoming renewals", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.UpcomingRenewal
	for rows.Next() {
		var (
			u     domain.UpcomingRenewal
			price decimal.Decimal
		)
		if err := rows.Scan(&u.ID, &u.Service, &u.ServiceWebsite, &price, &u.DueDate); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		u.Price = price.String()
		u.DueDate = u.DueDate.UTC()
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
