package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/audit"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
)

// CatalogServiceInterface manages the vendors subscriptions are bought from.
type CatalogServiceInterface interface {
	Create(ctx context.Context, in domain.ServiceInput, actorID uuid.UUID) (*domain.Service, error)
	List(ctx context.Context) ([]domain.Service, error)
	Update(ctx context.Context, id uuid.UUID, in domain.ServiceInput, actorID uuid.UUID) (*domain.Service, error)
	Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error
}

type CatalogService struct {
	services repository.ServiceInterface
	subs     repository.SubscriptionInterface
	audit    audit.SinkInterface
	log      *slog.Logger
}

var _ CatalogServiceInterface = (*CatalogService)(nil)

func NewCatalogService(repos Repositories, sink audit.SinkInterface, log *slog.Logger) *CatalogService {
	return &CatalogService{
		services: repos.Services,
		subs:     repos.Subscriptions,
		audit:    sink,
		log:      log.With(slog.String("component", "service/catalog")),
	}
}

func (s *CatalogService) Create(ctx context.Context, in domain.ServiceInput, actorID uuid.UUID) (*domain.Service, error) {
	const op = "service.Catalog.Create"
	if err := in.Validate(); err != nil {
		return nil, err
	}

	svc := &domain.Service{ID: uuid.New(), Name: in.Name, Website: in.Website}
	if err := s.services.Create(ctx, svc); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.Conflict("a service with this name already exists")
		}
		return nil, internalError(s.log, op, err)
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionCreate, domain.EntityService, svc.ID.String(), nil, svc)
	return svc, nil
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Service, error) {
	const op = "service.Catalog.List"
	services, err := s.services.List(ctx)
	if err != nil {
		return nil, internalError(s.log, op, err)
	}
	if services == nil {
		services = []domain.Service{}
	}
	return services, nil
}

func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, in domain.ServiceInput, actorID uuid.UUID) (*domain.Service, error) {
	const op = "service.Catalog.Update"
	if err := in.Validate(); err != nil {
		return nil, err
	}

	current, err := s.services.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.NotFound("service not found")
		}
		return nil, internalError(s.log, op, err)
	}

	svc := &domain.Service{ID: id, Name: in.Name, Website: in.Website, SubscriptionCount: current.SubscriptionCount}
	if err := s.services.Update(ctx, svc); err != nil {
		switch {
		case isNotFound(err):
			return nil, domain.NotFound("service not found")
		case errors.Is(err, repository.ErrConflict):
			return nil, domain.Conflict("a service with this name already exists")
		}
		return nil, internalError(s.log, op, err)
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionUpdate, domain.EntityService, id.String(), current, svc)
	return svc, nil
}

// Delete is refused while ACTIVE subscriptions still reference the service.
func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	const op = "service.Catalog.Delete"

	current, err := s.services.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return domain.NotFound("service not found")
		}
		return internalError(s.log, op, err)
	}

	active, err := s.subs.CountActiveByService(ctx, id)
	if err != nil {
		return internalError(s.log, op, err)
	}
	if active > 0 {
		return domain.Conflict("service has active subscriptions and cannot be deleted")
	}

	deleted, err := s.services.SoftDelete(ctx, id)
	if err != nil {
		return internalError(s.log, op, err)
	}
	if !deleted {
		return domain.NotFound("service not found")
	}

	record(ctx, s.audit, s.log, actorID, domain.ActionDelete, domain.EntityService, id.String(), current, nil)
	return nil
}
