package service

import (
	"context"
	"fmt"

	"resellerportal/internal/authz"
	"resellerportal/internal/repository"
	"resellerportal/pkg/pagination"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	ActorID    string `json:"actorId"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entityId"`
	EntityName string `json:"entityName"`
	Details    string `json:"details"`
	CreatedAt  string `json:"createdAt"`
}

type AuditLogFilter struct {
	Action   string
	EntityID string
	Paging   pagination.Params
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, p *authz.Principal, filter AuditLogFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs returns paginated records with the acting account preloaded
func (s *auditService) GetAuditLogs(ctx context.Context, p *authz.Principal, filter AuditLogFilter) ([]AuditLogResponse, int64, error) {
	if err := authz.Require(p, authz.SystemSettings); err != nil {
		return nil, 0, err
	}
	logs, total, err := s.repo.List(ctx, repository.AuditFilter{
		Action:   filter.Action,
		EntityID: filter.EntityID,
		Paging:   filter.Paging,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		actor := ""
		if l.Actor != nil {
			username = l.Actor.Username
		}
		if l.ActorID != nil {
			actor = l.ActorID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			ActorID:    actor,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
