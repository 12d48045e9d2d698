package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"resellerportal/internal/apperr"
	"resellerportal/internal/model"
	"resellerportal/pkg/pagination"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []CatalogEvent
}

func (p *recordingPublisher) BroadcastToAdmins(message []byte) {
	var event CatalogEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return
	}
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func TestDeviceService_CatalogLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.principal(t, env.superAdmin(t))
	hub := &recordingPublisher{}
	svc := NewDeviceService(env.devices, env.audits, env.tx, hub)

	created, err := svc.CreateDevice(ctx, admin, CreateDeviceRequest{
		SKU: " IP15-128 ", Name: "iPhone 15", Brand: "Apple", PurchasePrice: decimal.NewFromInt(650),
	})
	require.NoError(t, err)
	assert.Equal(t, "IP15-128", created.SKU)
	assert.Equal(t, model.DeviceStatusAvailable, created.Status)

	_, err = svc.CreateDevice(ctx, admin, CreateDeviceRequest{SKU: "IP15-128", Name: "Dup"})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	_, err = svc.CreateDevice(ctx, admin, CreateDeviceRequest{SKU: "X", Name: "Neg", PurchasePrice: decimal.NewFromInt(-1)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.CreateDevice(ctx, admin, CreateDeviceRequest{SKU: "X", Name: "Cents", PurchasePrice: decimal.RequireFromString("9.999")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	updated, err := svc.UpdateDevice(ctx, admin, created.ID, UpdateDeviceRequest{SKU: "IP15-128", Name: "iPhone 15 Blue", PurchasePrice: decimal.NewFromInt(640)})
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15 Blue", updated.Name)

	list, total, err := svc.GetDevices(ctx, admin, pagination.New(1, 10), "blue", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	require.NoError(t, svc.DeleteDevice(ctx, admin, created.ID))
	_, err = svc.GetDevice(ctx, admin, created.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.Len(t, hub.events, 3)
	assert.Equal(t, "device_created", hub.events[0].Event)
	assert.Equal(t, "device_deleted", hub.events[2].Event)
}

func TestDeviceService_AssignedDeviceCannotBeDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.principal(t, env.superAdmin(t))
	device := env.createDevice(t, "SKU-9")
	ok, err := env.devices.SetStatus(ctx, device.ID, model.DeviceStatusAvailable, model.DeviceStatusAssigned)
	require.NoError(t, err)
	require.True(t, ok)

	svc := NewDeviceService(env.devices, env.audits, env.tx, nil)
	err = svc.DeleteDevice(ctx, admin, device.ID.String())
	assert.True(t, apperr.Is(err, apperr.KindState))
}

func TestDeviceService_CapabilityChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	viewer := env.principal(t, env.createAccount(t, model.AccountKindAdmin, "viewer", model.LegacyRoleViewer, nil))
	reseller := env.principal(t, env.reseller(t, "shop"))
	svc := NewDeviceService(env.devices, env.audits, env.tx, nil)

	_, _, err := svc.GetDevices(ctx, viewer, pagination.New(1, 10), "", "")
	assert.NoError(t, err)
	_, err = svc.CreateDevice(ctx, viewer, CreateDeviceRequest{SKU: "A", Name: "A"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, _, err = svc.GetDevices(ctx, reseller, pagination.New(1, 10), "", "")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
