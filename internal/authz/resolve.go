package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resellerportal/internal/apperr"
	"resellerportal/internal/model"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

// LegacyMatrix returns the hard-coded matrix of a legacy admin tier.
// Unknown tiers get the zero matrix.
func LegacyMatrix(legacyRole string) model.PermissionMatrix {
	switch legacyRole {
	case model.LegacyRoleSuperAdmin, model.LegacyRoleAdmin:
		return model.FullPermissionMatrix()
	case model.LegacyRoleManager:
		noDelete := model.CRUDPermissions{View: true, Create: true, Edit: true}
		return model.PermissionMatrix{
			Devices:   noDelete,
			Parts:     noDelete,
			Resellers: model.ResellerPermissions{View: true, Create: true, Edit: true, Assign: true},
			System:    model.SystemPermissions{Statistics: true},
			Tools:     model.ToolPermissions{PriceCalculator: true},
		}
	case model.LegacyRoleViewer:
		return model.PermissionMatrix{
			Devices:   model.CRUDPermissions{View: true},
			Parts:     model.CRUDPermissions{View: true},
			Resellers: model.ResellerPermissions{View: true},
			System:    model.SystemPermissions{Statistics: true},
			Tools:     model.ToolPermissions{PriceCalculator: true},
		}
	}
	return model.PermissionMatrix{}
}

// Resolve computes the effective permissions of an account. role must be the
// Role referenced by account.RoleID (nil when it no longer exists); a missing
// or inactive custom role resolves to the zero matrix rather than falling back
// to the legacy tier.
func Resolve(account *model.Account, role *model.Role) EffectivePermissions {
	if account.RoleID != nil {
		eff := EffectivePermissions{Source: SourceCustomRole, RoleID: account.RoleID}
		if role != nil && role.ID == *account.RoleID {
			eff.RoleName = role.Name
			if role.IsActive {
				eff.Matrix = role.Permissions
			}
		}
		return eff
	}
	if account.IsAdmin() && model.IsLegacyRole(account.LegacyRole) {
		return EffectivePermissions{
			Source:   SourceLegacyRole,
			RoleName: account.LegacyRole,
			Matrix:   LegacyMatrix(account.LegacyRole),
		}
	}
	return EffectivePermissions{Source: SourceNone}
}

// NewPrincipal builds the per-request principal snapshot.
func NewPrincipal(account *model.Account, role *model.Role) *Principal {
	return &Principal{
		AccountID:          account.ID,
		Kind:               account.Kind,
		Username:           account.Username,
		Email:              account.Email,
		DisplayName:        account.DisplayName,
		IsActive:           account.IsActive,
		MustChangePassword: account.MustChangePassword,
		FirstLogin:         account.FirstLogin,
		Permissions:        Resolve(account, role),
	}
}

type AccountLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
}

type RoleLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
}

const (
	roleCacheSize = 256
	roleCacheTTL  = 5 * time.Minute
)

// Engine loads principals. Accounts are read on every call so deactivation
// takes effect immediately; roles are cached and invalidated on change.
type Engine struct {
	accounts AccountLoader
	roles    RoleLoader
	cache    *expirable.LRU[uuid.UUID, model.Role]
}

func NewEngine(accounts AccountLoader, roles RoleLoader) *Engine {
	return &Engine{
		accounts: accounts,
		roles:    roles,
		cache:    expirable.NewLRU[uuid.UUID, model.Role](roleCacheSize, nil, roleCacheTTL),
	}
}

// Principal resolves the account and its effective permissions.
func (e *Engine) Principal(ctx context.Context, accountID uuid.UUID) (*Principal, error) {
	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("account no longer exists")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	var role *model.Role
	if account.RoleID != nil {
		role, err = e.role(ctx, *account.RoleID)
		if err != nil {
			return nil, err
		}
	}
	return NewPrincipal(account, role), nil
}

func (e *Engine) role(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	if cached, ok := e.cache.Get(id); ok {
		return &cached, nil
	}
	role, err := e.roles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	e.cache.Add(id, *role)
	return role, nil
}

// Invalidate drops a cached role after it was updated or deleted.
func (e *Engine) Invalidate(roleID uuid.UUID) {
	e.cache.Remove(roleID)
}

// Require returns an AuthorizationError unless p holds c.
func Require(p *Principal, c Capability) error {
	if p == nil {
		return apperr.Unauthenticated("authentication required")
	}
	if !Can(p, c) {
		return apperr.Forbidden("missing permission '%s'", c)
	}
	return nil
}
