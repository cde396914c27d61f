package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
)

// ServiceInterface manages the catalog of vendors subscriptions are bought from.
type ServiceInterface interface {
	Create(ctx context.Context, svc *domain.Service) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Service, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context) ([]domain.Service, error)
	Update(ctx context.Context, svc *domain.Service) error
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

type ServiceRepository struct {
	db  *sql.DB
	log *slog.Logger
}

var _ ServiceInterface = (*ServiceRepository)(nil)

func NewServiceRepository(db *sql.DB, log *slog.Logger) *ServiceRepository {
	return &ServiceRepository{
		db:  db,
		log: log.With(slog.String("component", "repository/service")),
	}
}

func (r *ServiceRepository) Create(ctx context.Context, svc *domain.Service) error {
	const op = "repository.Service.Create"
	query := `INSERT INTO services (id, name, website) VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, svc.ID, svc.Name, svc.Website); err != nil {
		err = translate(err)
		if !errors.Is(err, ErrConflict) {
			r.log.Error("failed to create service", slog.String("op", op), slog.String("error", err.Error()))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *ServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Service, error) {
	const op = "repository.Service.GetByID"
	query := `
	SELECT sv.id, sv.name, sv.website,
		(SELECT COUNT(*) FROM subscriptions s WHERE s.service_id = sv.id AND s.deleted_at IS NULL)
	FROM services sv
	WHERE sv.id = $1 AND sv.deleted_at IS NULL`

	var svc domain.Service
	err := r.db.QueryRowContext(ctx, query, id).Scan(&svc.ID, &svc.Name, &svc.Website, &svc.SubscriptionCount)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, ErrNotFound) {
			r.log.Error("failed to get service", slog.String("op", op), slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &svc, nil
}

func (r *ServiceRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "repository.Service.Exists"
	query := `SELECT EXISTS(SELECT 1 FROM services WHERE id = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		r.log.Error("failed to check service", slog.String("op", op), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

func (r *ServiceRepository) List(ctx context.Context) ([]domain.Service, error) {
	const op = "repository.Service.List"
	query := `
	SELECT sv.id, sv.name, sv.website, COUNT(s.id)
	FROM services sv
	LEFT JOIN subscriptions s ON s.service_id = sv.id AND s.deleted_at IS NULL
	WHERE sv.deleted_at IS NULL
	GROUP BY sv.id, sv.name, sv.website
	ORDER BY sv.name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.log.Error("failed to list services", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Website, &svc.SubscriptionCount); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return services, nil
}

func (r *ServiceRepository) Update(ctx context.Context, svc *domain.Service) error {
	const op = "repository.Service.Update"
	query := `UPDATE services SET name = $1, website = $2, updated_at = NOW()
	WHERE id = $3 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, svc.Name, svc.Website, svc.ID)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, ErrConflict) {
			r.log.Error("failed to update service", slog.String("op", op), slog.String("error", err.Error()))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (r *ServiceRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "repository.Service.SoftDelete"
	query := `UPDATE services SET deleted_at = NOW(), updated_at = NOW()
	WHERE id = $1 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.log.Error("failed to delete service", slog.String("op", op), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}
