package service

import (
	"context"
	"fmt"
	"time"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/model"
	"resellerportal/internal/repository"
	"resellerportal/pkg/pagination"
)

// NotificationResponse is an outbox row without its payload; invite and reset
// payloads carry single-use links.
type NotificationResponse struct {
	ID             string     `json:"id"`
	Event          string     `json:"event"`
	RecipientEmail string     `json:"recipientEmail"`
	Subject        string     `json:"subject"`
	Status         string     `json:"status"`
	AttemptCount   int        `json:"attemptCount"`
	MaxAttempts    int        `json:"maxAttempts"`
	NextAttemptAt  time.Time  `json:"nextAttemptAt"`
	LastError      string     `json:"lastError,omitempty"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type NotificationService interface {
	ListNotifications(ctx context.Context, p *authz.Principal, status string, paging pagination.Params) ([]NotificationResponse, int64, error)
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// ListNotifications lets operators inspect the outbox, e.g. dead letters.
func (s *notificationService) ListNotifications(ctx context.Context, p *authz.Principal, status string, paging pagination.Params) ([]NotificationResponse, int64, error) {
	if err := authz.Require(p, authz.SystemSettings); err != nil {
		return nil, 0, err
	}
	switch status {
	case "", model.NotificationPending, model.NotificationSending, model.NotificationSent, model.NotificationDead:
	default:
		return nil, 0, apperr.Validation("unknown notification status '%s'", status)
	}

	rows, total, err := s.repo.List(ctx, status, paging)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	res := make([]NotificationResponse, 0, len(rows))
	for _, n := range rows {
		res = append(res, NotificationResponse{
			ID:             n.ID.String(),
			Event:          n.Event,
			RecipientEmail: n.RecipientEmail,
			Subject:        n.Subject,
			Status:         n.Status,
			AttemptCount:   n.AttemptCount,
			MaxAttempts:    n.MaxAttempts,
			NextAttemptAt:  n.NextAttemptAt,
			LastError:      n.LastError,
			SentAt:         n.SentAt,
			CreatedAt:      n.CreatedAt,
		})
	}
	return res, total, nil
}
