package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateRole   = "CREATE_ROLE"
	ActionUpdateRole   = "UPDATE_ROLE"
	ActionDeleteRole   = "DELETE_ROLE"
	ActionCreateDevice = "CREATE_DEVICE"
	ActionUpdateDevice = "UPDATE_DEVICE"
	ActionDeleteDevice = "DELETE_DEVICE"

	ActionCreateAccount  = "CREATE_ACCOUNT"
	ActionUpdateAccount  = "UPDATE_ACCOUNT"
	ActionResetPassword  = "RESET_PASSWORD"
	ActionChangePassword = "CHANGE_PASSWORD"

	ActionIssueInvite  = "ISSUE_INVITE"
	ActionRevokeInvite = "REVOKE_INVITE"
	ActionResendInvite = "RESEND_INVITE"
	ActionRedeemInvite = "REDEEM_INVITE"

	// Assignment lifecycle
	ActionCreateAssignment = "CREATE_ASSIGNMENT"
	ActionApproveShipping  = "APPROVE_SHIPPING"
	ActionShipAssignment   = "SHIP_ASSIGNMENT"
	ActionConfirmReceipt   = "CONFIRM_RECEIPT"
	ActionReportSale       = "REPORT_SALE"
	ActionReverseSale      = "REVERSE_SALE"
)

// AuditLog tracks who did what to which entity
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    *uuid.UUID `gorm:"type:uuid;index" json:"actorId"` // nil for anonymous flows (registration, self-service reset)
	Actor      *Account   `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entityId"`
	EntityName string     `gorm:"type:varchar(255)" json:"entityName,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"createdAt"`
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
