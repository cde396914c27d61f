package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
)

type DepartmentInterface interface {
	Create(ctx context.Context, description string) (*domain.Department, error)
	GetByID(ctx context.Context, id int64) (*domain.Department, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]domain.Department, error)
	Update(ctx context.Context, id int64, description string) (*domain.Department, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
	DescriptionsByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
}

type DepartmentRepository struct {
	db  *sql.DB
	log *slog.Logger
}

var _ DepartmentInterface = (*DepartmentRepository)(nil)

func NewDepartmentRepository(db *sql.DB, log *slog.Logger) *DepartmentRepository {
	return &DepartmentRepository{
		db:  db,
		log: log.With(slog.String("component", "repository/department")),
	}
}

func (r *DepartmentRepository) Create(ctx context.Context, description string) (*domain.Department, error) {
	const op = "repository.Department.Create"
	query := `INSERT INTO departments (description) VALUES ($1) RETURNING id, description`

	var d domain.Department
	if err := r.db.QueryRowContext(ctx, query, description).Scan(&d.ID, &d.Description); err != nil {
		err = translate(err)
		if !errors.Is(err, ErrConflict) {
			r.log.Error("failed to create department", slog.String("op", op), slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &d, nil
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id int64) (*domain.Department, error) {
	const op = "repository.Department.GetByID"
	query := `
	SELECT d.id, d.description,
		(SELECT COUNT(*) FROM subscriptions s WHERE s.department_id = d.id AND s.deleted_at IS NULL)
	FROM departments d
	WHERE d.id = $1 AND d.deleted_at IS NULL`

	var d domain.Department
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Description, &d.SubscriptionCount); err != nil {
		err = translate(err)
		if !errors.Is(err, ErrNotFound) {
			r.log.Error("failed to get department", slog.String("op", op), slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &d, nil
}

func (r *DepartmentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	const op = "repository.Department.Exists"
	query := `SELECT EXISTS(SELECT 1 FROM departments WHERE id = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		r.log.Error("failed to check department", slog.String("op", op), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// List returns live departments ordered by description, each with the
// number of live subscriptions attached to it.
func (r *DepartmentRepository) List(ctx context.Context) ([]domain.Department, error) {
	const op = "repository.Department.List"
	query := `
	SELECT d.id, d.description, COUNT(s.id)
	FROM departments d
	LEFT JOIN subscriptions s ON s.department_id = d.id AND s.deleted_at IS NULL
	WHERE d.deleted_at IS NULL
	GROUP BY d.id, d.description
	ORDER BY d.description`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.log.Error("failed to list departments", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var deps []domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Description, &d.SubscriptionCount); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return deps, nil
}

func (r *DepartmentRepository) Update(ctx context.Context, id int64, description string) (*domain.Department, error) {
	const op = "repository.Department.Update"
	query := `UPDATE departments SET description = $1, updated_at = NOW()
	WHERE id = $2 AND deleted_at IS NULL
	RETURNING id, description`

	var d domain.Department
	if err := r.db.QueryRowContext(ctx, query, description, id).Scan(&d.ID, &d.Description); err != nil {
		err = translate(err)
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
			r.log.Error("failed to update department", slog.String("op", op), slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &d, nil
}

func (r *DepartmentRepository) SoftDelete(ctx context.Context, id int64) (bool, error) {
	const op = "repository.Department.SoftDelete"
	query := `UPDATE departments SET deleted_at = NOW(), updated_at = NOW()
	WHERE id = $1 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.log.Error("failed to delete department", slog.String("op", op), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// DescriptionsByIDs resolves ids in one round trip. Soft-deleted
// departments are included since historical spend may still point at them.
func (r *DepartmentRepository) DescriptionsByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	const op = "repository.Department.DescriptionsByIDs"
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, description FROM departments WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		r.log.Error("failed to resolve departments", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			desc string
		)
		if err := rows.Scan(&id, &desc); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		out[id] = desc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
