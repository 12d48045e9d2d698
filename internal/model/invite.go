package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invite is a single-use, time-boxed registration token bound to an email and
// an intended role (legacy tier or custom role).
type Invite struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Token       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	Email       string     `gorm:"type:varchar(255);not null;index" json:"email"`
	AccountKind string     `gorm:"type:varchar(20);not null" json:"accountKind"`
	Name        string     `gorm:"type:varchar(255)" json:"name,omitempty"`
	Company     string     `gorm:"type:varchar(255)" json:"company,omitempty"`
	Phone       string     `gorm:"type:varchar(50)" json:"phone,omitempty"`
	LegacyRole  string     `gorm:"type:varchar(20)" json:"legacyRole,omitempty"`
	RoleID      *uuid.UUID `gorm:"type:uuid;index" json:"roleId"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null" json:"createdBy"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expiresAt"`
	Consumed    bool       `gorm:"not null;index" json:"consumed"`
	ConsumedAt  *time.Time `json:"consumedAt"`
	AccountID   *uuid.UUID `gorm:"type:uuid" json:"accountId"` // account created on redemption
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (i *Invite) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// PasswordResetToken is the self-service reset counterpart of Invite.
type PasswordResetToken struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Token      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	AccountID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"accountId"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expiresAt"`
	Consumed   bool       `gorm:"not null" json:"consumed"`
	ConsumedAt *time.Time `json:"consumedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (t *PasswordResetToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
