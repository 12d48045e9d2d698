package service

import (
	"context"
	"testing"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleService_CreateUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.principal(t, env.superAdmin(t))
	svc := NewRoleService(env.roles, env.audits, env.tx, env.engine)

	created, err := svc.CreateRole(ctx, admin, CreateRoleRequest{
		Name:        "field_sales",
		DisplayName: "Field sales",
		Permissions: model.PermissionMatrix{Devices: model.CRUDPermissions{View: true}},
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	_, err = svc.CreateRole(ctx, admin, CreateRoleRequest{Name: "field_sales", DisplayName: "Again"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, err.Error(), "Field sales")
	_, err = svc.CreateRole(ctx, admin, CreateRoleRequest{Name: "Field Sales", DisplayName: "Bad"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	renamed := "other_name"
	_, err = svc.UpdateRole(ctx, admin, created.ID, UpdateRoleRequest{Name: &renamed})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	role, err := env.roles.FindByName(ctx, "field_sales")
	require.NoError(t, err)
	member := env.createAccount(t, model.AccountKindReseller, "member", "", &role.ID)
	assert.True(t, authz.Can(env.principal(t, member), authz.DevicesView))

	matrix := model.PermissionMatrix{Devices: model.CRUDPermissions{View: true, Edit: true}}
	updated, err := svc.UpdateRole(ctx, admin, created.ID, UpdateRoleRequest{Permissions: &matrix})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.AccountCount)
	assert.True(t, authz.Can(env.principal(t, member), authz.DevicesEdit), "cached matrix must be invalidated")

	err = svc.DeleteRole(ctx, admin, created.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Contains(t, err.Error(), "1 account")

	require.NoError(t, env.db.Delete(&model.Account{}, "id = ?", member.ID).Error)
	require.NoError(t, svc.DeleteRole(ctx, admin, created.ID))

	_, err = svc.GetRole(ctx, admin, created.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRoleService_RequiresUserManagement(t *testing.T) {
	env := newTestEnv(t)
	manager := env.principal(t, env.createAccount(t, model.AccountKindAdmin, "mgr", model.LegacyRoleManager, nil))
	svc := NewRoleService(env.roles, env.audits, env.tx, env.engine)

	_, err := svc.ListRoles(context.Background(), manager)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.ListRoles(context.Background(), nil)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}
