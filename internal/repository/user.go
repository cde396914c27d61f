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

type UserInterface interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Ensure(ctx context.Context, u *domain.User) (bool, error)
	Create(ctx context.Context, u *domain.User) error
}

type UserRepository struct {
	db  *sql.DB
	log *slog.Logger
}

var _ UserInterface = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: log.With(slog.String("component", "repository/user")),
	}
}

// Exists reports whether a live user with id exists.
func (r *UserRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "repository.User.Exists"
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		r.log.Error("failed to check user", slog.String("op", op), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "repository.User.GetByID"
	query := `
	SELECT id, name, email, password_hash, role, active, must_change_password, created_at
	FROM users
	WHERE id = $1 AND deleted_at IS NULL`

	var u domain.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Active, &u.MustChangePassword, &u.CreatedAt,
	)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, ErrNotFound) {
			r.log.Error("failed to get user", slog.String("op", op), slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// Ensure inserts u unless a user with the same id or email already exists.
// It reports whether a row was created.
func (r *UserRepository) Ensure(ctx context.Context, u *domain.User) (bool, error) {
	const op = "repository.User.Ensure"
	query := `
	INSERT INTO users (id, name, email, password_hash, role, active, must_change_password)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Active, u.MustChangePassword)
	if err != nil {
		r.log.Error("failed to ensure user", slog.String("op", op), slog.String("error", err.Error()))
		return false, fmt.Errorf("%s: %w", op, translate(err))
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// Create inserts u and fills CreatedAt. A taken email yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	const op = "repository.User.Create"
	query := `
	INSERT INTO users (id, name, email, password_hash, role, active, must_change_password)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Active, u.MustChangePassword,
	).Scan(&u.CreatedAt)
	if err != nil {
		err = translate(err)
		if !errors.Is(err, ErrConflict) {
			r.log.Error("failed to create user", slog.String("op", op), slog.String("error", err.Error()))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
