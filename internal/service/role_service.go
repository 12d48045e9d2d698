package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/model"
	"resellerportal/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string                 `json:"name" binding:"required"`
	DisplayName string                 `json:"displayName" binding:"required"`
	Permissions model.PermissionMatrix `json:"permissions"`
	IsActive    *bool                  `json:"isActive"`
}

// UpdateRoleRequest changes mutable fields only. Name is accepted so a client
// that echoes the whole role back gets a clear error when it differs.
type UpdateRoleRequest struct {
	Name        *string                 `json:"name"`
	DisplayName *string                 `json:"displayName"`
	Permissions *model.PermissionMatrix `json:"permissions"`
	IsActive    *bool                   `json:"isActive"`
}

type RoleResponse struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"displayName"`
	Permissions  model.PermissionMatrix `json:"permissions"`
	IsActive     bool                   `json:"isActive"`
	AccountCount int64                  `json:"accountCount"`
	CreatedAt    string                 `json:"createdAt"`
	UpdatedAt    string                 `json:"updatedAt"`
}

// RoleCache is notified when a role changes so cached matrices are dropped.
type RoleCache interface {
	Invalidate(roleID uuid.UUID)
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context, p *authz.Principal) ([]RoleResponse, error)
	GetRole(ctx context.Context, p *authz.Principal, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, p *authz.Principal, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, p *authz.Principal, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, p *authz.Principal, id string) error
}

type roleService struct {
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	cache     RoleCache
}

func NewRoleService(
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	cache RoleCache,
) RoleService {
	return &roleService{
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		cache:     cache,
	}
}

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,49}$`)

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context, p *authz.Principal) ([]RoleResponse, error) {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return nil, err
	}

	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		count, err := s.roleRepo.CountAccounts(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count role accounts: %w", err)
		}
		res = append(res, toRoleResponse(r, count))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, p *authz.Principal, id string) (*RoleResponse, error) {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return nil, err
	}
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, notFound(err, "role")
	}
	count, err := s.roleRepo.CountAccounts(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count role accounts: %w", err)
	}

	resp := toRoleResponse(*role, count)
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, p *authz.Principal, req CreateRoleRequest) (*RoleResponse, error) {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if !roleNamePattern.MatchString(name) {
		return nil, apperr.Validation("role name must be 2-50 lowercase letters, digits or underscores and start with a letter")
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, apperr.Validation("display name is required")
	}

	role := model.Role{
		Name:        name,
		DisplayName: displayName,
		Permissions: req.Permissions,
		IsActive:    req.IsActive == nil || *req.IsActive,
		CreatedBy:   actorID(p),
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.roleRepo.FindByName(txCtx, name)
		if err == nil {
			return apperr.Conflict("role '%s' already exists (display name '%s')", name, existing.DisplayName)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check role name: %w", err)
		}

		if err := s.roleRepo.Create(txCtx, &role); err != nil {
			if isDuplicate(err) {
				return apperr.Conflict("role '%s' already exists", name)
			}
			return fmt.Errorf("failed to create role: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionCreateRole, role.ID.String(), role.Name, req)
	})
	if err != nil {
		return nil, err
	}

	resp := toRoleResponse(role, 0)
	return &resp, nil
}

func (s *roleService) UpdateRole(ctx context.Context, p *authz.Principal, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return nil, err
	}
	roleID, err := parseID(id, "role")
	if err != nil {
		return nil, err
	}

	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, notFound(err, "role")
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != role.Name {
		return nil, apperr.Validation("role name cannot be changed")
	}
	if req.DisplayName != nil {
		displayName := strings.TrimSpace(*req.DisplayName)
		if displayName == "" {
			return nil, apperr.Validation("display name is required")
		}
		role.DisplayName = displayName
	}
	if req.Permissions != nil {
		role.Permissions = *req.Permissions
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Update(txCtx, role); err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionUpdateRole, role.ID.String(), role.Name, req)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(role.ID)

	return s.GetRole(ctx, p, id)
}

// DeleteRole removes a role only while no account references it. The check
// and the delete are one statement, so a concurrent assignment cannot slip in.
func (s *roleService) DeleteRole(ctx context.Context, p *authz.Principal, id string) error {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return err
	}
	roleID, err := parseID(id, "role")
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, err := s.roleRepo.FindByID(txCtx, roleID)
		if err != nil {
			return notFound(err, "role")
		}

		deleted, err := s.roleRepo.DeleteIfUnreferenced(txCtx, roleID)
		if err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		if !deleted {
			count, err := s.roleRepo.CountAccounts(txCtx, roleID)
			if err != nil {
				return fmt.Errorf("failed to count role accounts: %w", err)
			}
			return apperr.Conflict("role '%s' is assigned to %d account(s)", role.Name, count)
		}

		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionDeleteRole, role.ID.String(), role.Name,
			map[string]interface{}{"deleted": true})
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(roleID)
	return nil
}

func toRoleResponse(r model.Role, accountCount int64) RoleResponse {
	return RoleResponse{
		ID:           r.ID.String(),
		Name:         r.Name,
		DisplayName:  r.DisplayName,
		Permissions:  r.Permissions,
		IsActive:     r.IsActive,
		AccountCount: accountCount,
		CreatedAt:    r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
