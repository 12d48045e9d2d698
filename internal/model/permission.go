package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Permission categories. The set is closed; nothing registers new ones at runtime.
const (
	CategoryDevices   = "devices"
	CategoryParts     = "parts"
	CategoryResellers = "resellers"
	CategorySystem    = "system"
	CategoryTools     = "tools"
)

// CRUDPermissions gates a catalog category.
type CRUDPermissions struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

type ResellerPermissions struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	Assign bool `json:"assign"`
}

type SystemPermissions struct {
	UserManagement bool `json:"userManagement"`
	Settings       bool `json:"settings"`
	Statistics     bool `json:"statistics"`
}

type ToolPermissions struct {
	PriceCalculator bool `json:"priceCalculator"`
}

// PermissionMatrix holds every capability flag. The zero value denies everything.
// It is stored as a single jsonb column on roles.
type PermissionMatrix struct {
	Devices   CRUDPermissions     `json:"devices"`
	Parts     CRUDPermissions     `json:"parts"`
	Resellers ResellerPermissions `json:"resellers"`
	System    SystemPermissions   `json:"system"`
	Tools     ToolPermissions     `json:"tools"`
}

// Allows looks up a single flag. Unknown categories or actions are denied.
func (m PermissionMatrix) Allows(category, action string) bool {
	switch category {
	case CategoryDevices:
		return m.Devices.allows(action)
	case CategoryParts:
		return m.Parts.allows(action)
	case CategoryResellers:
		switch action {
		case "view":
			return m.Resellers.View
		case "create":
			return m.Resellers.Create
		case "edit":
			return m.Resellers.Edit
		case "delete":
			return m.Resellers.Delete
		case "assign":
			return m.Resellers.Assign
		}
	case CategorySystem:
		switch action {
		case "userManagement":
			return m.System.UserManagement
		case "settings":
			return m.System.Settings
		case "statistics":
			return m.System.Statistics
		}
	case CategoryTools:
		if action == "priceCalculator" {
			return m.Tools.PriceCalculator
		}
	}
	return false
}

func (p CRUDPermissions) allows(action string) bool {
	switch action {
	case "view":
		return p.View
	case "create":
		return p.Create
	case "edit":
		return p.Edit
	case "delete":
		return p.Delete
	}
	return false
}

// FullPermissionMatrix grants every capability.
func FullPermissionMatrix() PermissionMatrix {
	crud := CRUDPermissions{View: true, Create: true, Edit: true, Delete: true}
	return PermissionMatrix{
		Devices:   crud,
		Parts:     crud,
		Resellers: ResellerPermissions{View: true, Create: true, Edit: true, Delete: true, Assign: true},
		System:    SystemPermissions{UserManagement: true, Settings: true, Statistics: true},
		Tools:     ToolPermissions{PriceCalculator: true},
	}
}

// UnmarshalJSON rejects unknown categories and flags instead of silently dropping them.
func (m *PermissionMatrix) UnmarshalJSON(data []byte) error {
	type plain PermissionMatrix
	var out plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("invalid permission matrix: %w", err)
	}
	*m = PermissionMatrix(out)
	return nil
}

func (m PermissionMatrix) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *PermissionMatrix) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*m = PermissionMatrix{}
		return nil
	default:
		return errors.New("unsupported type for permission matrix")
	}
	return json.Unmarshal(data, m)
}
