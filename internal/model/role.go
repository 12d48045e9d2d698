package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a named, admin-defined permission matrix that accounts may reference.
type Role struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"` // immutable after creation
	DisplayName string           `gorm:"type:varchar(255);not null" json:"displayName"`
	Permissions PermissionMatrix `gorm:"type:jsonb;not null" json:"permissions"`
	IsActive    bool             `gorm:"not null" json:"isActive"`
	CreatedBy   *uuid.UUID       `gorm:"type:uuid" json:"createdBy"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
