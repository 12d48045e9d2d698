package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Reseller-visible assignment status
const (
	AssignmentStatusAssigned = "assigned"
	AssignmentStatusReceived = "received"
	AssignmentStatusSold     = "sold"
)

// Admin-side shipping sub-state
const (
	ShippingPendingApproval = "pending_approval"
	ShippingApproved        = "approved"
	ShippingShipped         = "shipped"
	ShippingDelivered       = "delivered"
)

// Shipping methods
const (
	ShippingMethodDHL     = "dhl"
	ShippingMethodCourier = "courier"
	ShippingMethodPickup  = "pickup"
	ShippingMethodOther   = "other"
)

// Receipt condition ratings
const (
	ConditionExcellent = "excellent"
	ConditionGood      = "good"
	ConditionFair      = "fair"
	ConditionPoor      = "poor"
)

// ShippingInfo is recorded when an admin ships an approved assignment.
type ShippingInfo struct {
	Method            string     `gorm:"type:varchar(20)" json:"method,omitempty"`
	TrackingNumber    string     `gorm:"type:varchar(100)" json:"trackingNumber,omitempty"`
	TrackingURL       string     `gorm:"type:text" json:"trackingUrl,omitempty"`
	RecipientAddress  string     `gorm:"type:text" json:"recipientAddress,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time `json:"shippedAt,omitempty"`
}

// DeviceAssignment links one device to one reseller through its sale lifecycle.
// Version is bumped by every transition and used as the optimistic precondition.
type DeviceAssignment struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID          uuid.UUID           `gorm:"type:uuid;not null;index" json:"deviceId"`
	Device            *Device             `gorm:"foreignKey:DeviceID" json:"device,omitempty"`
	ResellerID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"resellerId"`
	Reseller          *Account            `gorm:"foreignKey:ResellerID" json:"reseller,omitempty"`
	MinimumPrice      decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"minimumPrice"`
	Status            string              `gorm:"type:varchar(20);not null;index" json:"status"`
	ShippingStatus    string              `gorm:"type:varchar(20);not null;index" json:"shippingStatus"`
	Shipping          ShippingInfo        `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping"`
	ActualSalePrice   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"actualSalePrice"`
	Profit            decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"profit"`
	SaleNotes         string              `gorm:"type:text" json:"saleNotes,omitempty"`
	Notes             string              `gorm:"type:text" json:"notes,omitempty"`
	ApprovalNotes     string              `gorm:"type:text" json:"approvalNotes,omitempty"`
	ReceiptNotes      string              `gorm:"type:text" json:"receiptNotes,omitempty"`
	ReceivedCondition string              `gorm:"type:varchar(20)" json:"receivedCondition,omitempty"`
	ReceivedIssues    string              `gorm:"type:text" json:"receivedIssues,omitempty"`
	ReversalReason    string              `gorm:"type:text" json:"reversalReason,omitempty"`
	CreatedBy         uuid.UUID           `gorm:"type:uuid;not null" json:"createdBy"`
	ApprovedBy        *uuid.UUID          `gorm:"type:uuid" json:"approvedBy"`
	ApprovedAt        *time.Time          `json:"approvedAt"`
	ReceivedAt        *time.Time          `json:"receivedAt"`
	SoldAt            *time.Time          `json:"soldAt"`
	ReversedAt        *time.Time          `json:"reversedAt"`
	Version           int                 `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func (a *DeviceAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	return nil
}
