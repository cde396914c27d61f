package service

import (
	"context"
	"log/slog"

	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
)

type AuditLogServiceInterface interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, domain.PageMeta, error)
}

type AuditLogService struct {
	repo repository.AuditInterface
	log  *slog.Logger
}

var _ AuditLogServiceInterface = (*AuditLogService)(nil)

func NewAuditLogService(repos Repositories, log *slog.Logger) *AuditLogService {
	return &AuditLogService{
		repo: repos.Audit,
		log:  log.With(slog.String("component", "service/auditlog")),
	}
}

func (s *AuditLogService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, domain.PageMeta, error) {
	const op = "service.AuditLog.List"

	filter.Normalize()
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.PageMeta{}, internalError(s.log, op, err)
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return entries, domain.NewPageMeta(filter.Page, filter.Limit, total), nil
}
