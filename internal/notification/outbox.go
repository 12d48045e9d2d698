package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"resellerportal/internal/model"
	"resellerportal/internal/repository"

	"github.com/google/uuid"
)

const DefaultMaxAttempts = 5

// Message is a notification intent recorded alongside the change that caused it.
type Message struct {
	Event              string
	RecipientEmail     string
	RecipientAccountID *uuid.UUID
	Subject            string
	Payload            interface{}
}

// Outbox appends notification intents. Enqueue must be called with the
// transaction context of the triggering change so both commit together.
type Outbox struct {
	repo        repository.NotificationRepository
	maxAttempts int
	now         func() time.Time
}

func NewOutbox(repo repository.NotificationRepository) *Outbox {
	return &Outbox{repo: repo, maxAttempts: DefaultMaxAttempts, now: time.Now}
}

func (o *Outbox) Enqueue(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	row := &model.Notification{
		Event:              msg.Event,
		RecipientEmail:     strings.ToLower(strings.TrimSpace(msg.RecipientEmail)),
		RecipientAccountID: msg.RecipientAccountID,
		Subject:            msg.Subject,
		Payload:            string(payload),
		Status:             model.NotificationPending,
		MaxAttempts:        o.maxAttempts,
		NextAttemptAt:      o.now(),
	}
	if err := o.repo.Enqueue(ctx, row); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}
