package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal kinds
const (
	AccountKindAdmin    = "admin"
	AccountKindReseller = "reseller"
)

// Legacy fixed roles, admin accounts only
const (
	LegacyRoleSuperAdmin = "super_admin"
	LegacyRoleAdmin      = "admin"
	LegacyRoleManager    = "manager"
	LegacyRoleViewer     = "viewer"
)

// IsLegacyRole reports whether name is one of the four fixed admin tiers.
func IsLegacyRole(name string) bool {
	switch name {
	case LegacyRoleSuperAdmin, LegacyRoleAdmin, LegacyRoleManager, LegacyRoleViewer:
		return true
	}
	return false
}

// Account is an Admin or a Reseller. Both kinds share one table so username and
// email stay unique across the whole portal.
type Account struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Kind               string     `gorm:"type:varchar(20);not null;index" json:"kind"`
	Username           string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email              string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash       string     `gorm:"type:varchar(255);not null" json:"-"`
	DisplayName        string     `gorm:"type:varchar(255)" json:"displayName"`
	LegacyRole         string     `gorm:"type:varchar(20)" json:"legacyRole,omitempty"`
	RoleID             *uuid.UUID `gorm:"type:uuid;index" json:"roleId"`
	Role               *Role      `gorm:"foreignKey:RoleID;constraint:OnDelete:RESTRICT" json:"role,omitempty"`
	IsActive           bool       `gorm:"not null" json:"isActive"`
	MustChangePassword bool       `gorm:"not null" json:"mustChangePassword"`
	FirstLogin         bool       `gorm:"not null" json:"firstLogin"`
	Company            string     `gorm:"type:varchar(255)" json:"company,omitempty"`
	Phone              string     `gorm:"type:varchar(50)" json:"phone,omitempty"`
	CreatedBy          *uuid.UUID `gorm:"type:uuid" json:"createdBy"`
	LastLoginAt        *time.Time `json:"lastLoginAt"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *Account) IsAdmin() bool {
	return a.Kind == AccountKindAdmin
}

func (a *Account) IsReseller() bool {
	return a.Kind == AccountKindReseller
}
