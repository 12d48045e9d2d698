package authz

import (
	"resellerportal/internal/model"

	"github.com/google/uuid"
)

// Capability names one flag of the permission matrix.
type Capability struct {
	Category string
	Action   string
}

func (c Capability) String() string {
	return c.Category + "." + c.Action
}

var (
	DevicesView   = Capability{model.CategoryDevices, "view"}
	DevicesCreate = Capability{model.CategoryDevices, "create"}
	DevicesEdit   = Capability{model.CategoryDevices, "edit"}
	DevicesDelete = Capability{model.CategoryDevices, "delete"}

	PartsView   = Capability{model.CategoryParts, "view"}
	PartsCreate = Capability{model.CategoryParts, "create"}
	PartsEdit   = Capability{model.CategoryParts, "edit"}
	PartsDelete = Capability{model.CategoryParts, "delete"}

	ResellersView   = Capability{model.CategoryResellers, "view"}
	ResellersCreate = Capability{model.CategoryResellers, "create"}
	ResellersEdit   = Capability{model.CategoryResellers, "edit"}
	ResellersDelete = Capability{model.CategoryResellers, "delete"}
	ResellersAssign = Capability{model.CategoryResellers, "assign"}

	SystemUserManagement = Capability{model.CategorySystem, "userManagement"}
	SystemSettings       = Capability{model.CategorySystem, "settings"}
	SystemStatistics     = Capability{model.CategorySystem, "statistics"}

	ToolsPriceCalculator = Capability{model.CategoryTools, "priceCalculator"}
)

// Source tags where an effective matrix came from.
type Source string

const (
	SourceNone       Source = "none"
	SourceLegacyRole Source = "legacy_role"
	SourceCustomRole Source = "custom_role"
)

// EffectivePermissions is resolved once per request and passed down.
// Exactly one origin is authoritative: a referenced custom role always wins
// over the legacy tier.
type EffectivePermissions struct {
	Source   Source                 `json:"source"`
	RoleName string                 `json:"roleName"`
	RoleID   *uuid.UUID             `json:"roleId,omitempty"`
	Matrix   model.PermissionMatrix `json:"matrix"`
}

// Principal is the authenticated caller of a core operation.
type Principal struct {
	AccountID          uuid.UUID            `json:"id"`
	Kind               string               `json:"kind"`
	Username           string               `json:"username"`
	Email              string               `json:"email"`
	DisplayName        string               `json:"displayName"`
	IsActive           bool                 `json:"isActive"`
	MustChangePassword bool                 `json:"mustChangePassword"`
	FirstLogin         bool                 `json:"firstLogin"`
	Permissions        EffectivePermissions `json:"permissions"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Kind == model.AccountKindAdmin
}

func (p *Principal) IsReseller() bool {
	return p != nil && p.Kind == model.AccountKindReseller
}

// HasCapability is the single authorization predicate. It never errors:
// nil or inactive principals and unknown capabilities are denied.
func HasCapability(p *Principal, category, action string) bool {
	if p == nil || !p.IsActive {
		return false
	}
	return p.Permissions.Matrix.Allows(category, action)
}

// Can is HasCapability for a predeclared Capability.
func Can(p *Principal, c Capability) bool {
	return HasCapability(p, c.Category, c.Action)
}
