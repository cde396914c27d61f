package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/audit"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
)

type DepartmentServiceInterface interface {
	Create(ctx context.Context, in domain.DepartmentInput, actorID uuid.UUID) (*domain.Department, error)
	List(ctx context.Context) ([]domain.Department, error)
	Update(ctx context.Context, id int64, in domain.DepartmentInput, actorID uuid.UUID) (*domain.Department, error)
	Delete(ctx context.Context, id int64, actorID uuid.UUID) error
}

type DepartmentService struct {
	departments repository.DepartmentInterface
	subs        repository.SubscriptionInterface
	audit       audit.SinkInterface
	log         *slog.Logger
}

var _ DepartmentServiceInterface = (*DepartmentService)(nil)

func NewDepartmentService(repos Repositories, sink audit.SinkInterface, log *slog.Logger) *DepartmentService {
	return &DepartmentService{
		departments: repos.Departments,
		subs:        repos.Subscriptions,
		audit:       sink,
		log:         log.With(slog.String("component", "service/department")),
	}
}

func (s *DepartmentService) Create(ctx context.Context, in domain.DepartmentInput, actorID uuid.UUID) (*domain.Department, error) {
	const op = "service.Department.Create"
	if err := in.Validate(); err != nil {
		return nil, err
	}

	dep, err := s.departments.Create(ctx, in.Description)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.Conflict("a department with this description already exists")
		}
		return nil, internalError(s.log, op, err)
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionCreate, domain.EntityDepartment, strconv.FormatInt(dep.ID, 10), nil, dep)
	return dep, nil
}

func (s *DepartmentService) List(ctx context.Context) ([]domain.Department, error) {
	const op = "service.Department.List"
	deps, err := s.departments.List(ctx)
	if err != nil {
		return nil, internalError(s.log, op, err)
	}
	if deps == nil {
		deps = []domain.Department{}
	}
	return deps, nil
}

func (s *DepartmentService) Update(ctx context.Context, id int64, in domain.DepartmentInput, actorID uuid.UUID) (*domain.Department, error) {
	const op = "service.Department.Update"
	if err := in.Validate(); err != nil {
		return nil, err
	}

	current, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NotFound("department not found")
		}
		return nil, internalError(s.log, op, err)
	}

	dep, err := s.departments.Update(ctx, id, in.Description)
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, domain.NotFound("department not found")
		case errors.Is(err, repository.ErrConflict):
			return nil, domain.Conflict("a department with this description already exists")
		}
		return nil, internalError(s.log, op, err)
	}
	dep.SubscriptionCount = current.SubscriptionCount

	record(ctx, s.audit, s.log, actorID, domain.ActionUpdate, domain.EntityDepartment, strconv.FormatInt(id, 10), current, dep)
	return dep, nil
}

// Delete is refused while ACTIVE subscriptions still point at the department.
func (s *DepartmentService) Delete(ctx context.Context, id int64, actorID uuid.UUID) error {
	const op = "service.Department.Delete"

	current, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return domain.NotFound("department not found")
		}
		return internalError(s.log, op, err)
	}

	active, err := s.subs.CountActiveByDepartment(ctx, id)
	if err != nil {
		return internalError(s.log, op, err)
	}
	if active > 0 {
		return domain.Conflict("department has active subscriptions and cannot be deleted")
	}

	deleted, err := s.departments.SoftDelete(ctx, id)
	if err != nil {
		return internalError(s.log, op, err)
	}
	if !deleted {
		return domain.NotFound("department not found")
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionDelete, domain.EntityDepartment, strconv.FormatInt(id, 10), current, nil)
	return nil
}
