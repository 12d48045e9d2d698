package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DeviceStatus constants
const (
	DeviceStatusAvailable = "available"
	DeviceStatusAssigned  = "assigned"
	DeviceStatusSold      = "sold"
)

// Device is a refurbished unit in the catalog
type Device struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SKU           string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Brand         string          `gorm:"type:varchar(100)" json:"brand"`
	Model         string          `gorm:"type:varchar(100)" json:"model"`
	IMEI          string          `gorm:"column:imei;type:varchar(50)" json:"imei,omitempty"`
	Condition     string          `gorm:"type:varchar(50)" json:"condition"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"purchasePrice"`
	Status        string          `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
