package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/audit"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type UserServiceInterface interface {
	Create(ctx context.Context, in domain.UserInput, actorID uuid.UUID) (*domain.User, error)
}

type UserService struct {
	users repository.UserInterface
	audit audit.SinkInterface
	cost  int
	log   *slog.Logger
}

var _ UserServiceInterface = (*UserService)(nil)

func NewUserService(repos Repositories, sink audit.SinkInterface, log *slog.Logger) *UserService {
	return &UserService{
		users: repos.Users,
		audit: sink,
		cost:  bcrypt.DefaultCost,
		log:   log.With(slog.String("component", "service/user")),
	}
}

// Create registers an account that must change its password on first
// login. The returned user and its audit snapshot never carry the hash.
func (s *UserService) Create(ctx context.Context, in domain.UserInput, actorID uuid.UUID) (*domain.User, error) {
	const op = "service.User.Create"
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, internalError(s.log, op, err)
	}

	u := &domain.User{
		ID:                 uuid.New(),
		Name:               in.Name,
		Email:              in.Email,
		PasswordHash:       string(hash),
		Role:               in.Role,
		Active:             true,
		MustChangePassword: true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.Conflict("email already registered")
		}
		return nil, internalError(s.log, op, err)
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionCreate, domain.EntityUser, u.ID.String(), nil, u)
	s.log.Info("user created", slog.String("id", u.ID.String()), slog.String("role", string(u.Role)))
	return u, nil
}
