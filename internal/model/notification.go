package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification events
const (
	EventInviteIssued          = "invite.issued"
	EventInviteResent          = "invite.resent"
	EventPasswordResetRequest  = "password.reset_requested"
	EventAssignmentCreated     = "assignment.created"
	EventAssignmentApproved    = "assignment.approved"
	EventAssignmentShipped     = "assignment.shipped"
	EventAssignmentReceived    = "assignment.received"
	EventAssignmentSold        = "assignment.sold"
	EventAssignmentSaleReverse = "assignment.sale_reversed"
)

// Outbox status
const (
	NotificationPending = "pending"
	NotificationSending = "sending"
	NotificationSent    = "sent"
	NotificationDead    = "dead"
)

// Notification is an outbox row appended in the same transaction as the change
// that triggered it. The dispatcher drains it independently.
type Notification struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Event              string     `gorm:"type:varchar(50);not null;index" json:"event"`
	RecipientEmail     string     `gorm:"type:varchar(255)" json:"recipientEmail"`
	RecipientAccountID *uuid.UUID `gorm:"type:uuid;index" json:"recipientAccountId"`
	Subject            string     `gorm:"type:varchar(255)" json:"subject"`
	Payload            string     `gorm:"type:jsonb;not null" json:"payload"`
	Status             string     `gorm:"type:varchar(20);not null;index" json:"status"`
	AttemptCount       int        `gorm:"not null" json:"attemptCount"`
	MaxAttempts        int        `gorm:"not null" json:"maxAttempts"`
	NextAttemptAt      time.Time  `gorm:"not null;index" json:"nextAttemptAt"`
	LockedAt           *time.Time `json:"lockedAt"`
	LastError          string     `gorm:"type:text" json:"lastError,omitempty"`
	SentAt             *time.Time `json:"sentAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
