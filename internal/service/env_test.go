package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"resellerportal/internal/authz"
	"resellerportal/internal/database"
	"resellerportal/internal/metrics"
	"resellerportal/internal/model"
	"resellerportal/internal/notification"
	"resellerportal/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db            *gorm.DB
	accounts      repository.AccountRepository
	roles         repository.RoleRepository
	invites       repository.InviteRepository
	resets        repository.ResetTokenRepository
	devices       repository.DeviceRepository
	assignments   repository.AssignmentRepository
	audits        repository.AuditRepository
	notifications repository.NotificationRepository
	tx            repository.TransactionManager
	outbox        *notification.Outbox
	metrics       *metrics.Metrics
	engine        *authz.Engine
}

// newTestEnv opens a private in-memory sqlite database. A single connection
// serializes concurrent transactions the way row locks would on postgres.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := database.Config()
	cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	env := &testEnv{
		db:            db,
		accounts:      repository.NewAccountRepository(db),
		roles:         repository.NewRoleRepository(db),
		invites:       repository.NewInviteRepository(db),
		resets:        repository.NewResetTokenRepository(db),
		devices:       repository.NewDeviceRepository(db),
		assignments:   repository.NewAssignmentRepository(db),
		audits:        repository.NewAuditRepository(db),
		notifications: repository.NewNotificationRepository(db),
		tx:            repository.NewTransactionManager(db),
		metrics:       metrics.NewNop(),
	}
	env.outbox = notification.NewOutbox(env.notifications)
	env.engine = authz.NewEngine(env.accounts, env.roles)
	return env
}

func (e *testEnv) createAccount(t *testing.T, kind, username, legacyRole string, roleID *uuid.UUID) *model.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(username), bcrypt.MinCost)
	require.NoError(t, err)

	account := &model.Account{
		Kind:         kind,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		DisplayName:  username,
		LegacyRole:   legacyRole,
		RoleID:       roleID,
		IsActive:     true,
	}
	require.NoError(t, e.accounts.Create(context.Background(), account))
	return account
}

func (e *testEnv) superAdmin(t *testing.T) *model.Account {
	t.Helper()
	return e.createAccount(t, model.AccountKindAdmin, "root", model.LegacyRoleSuperAdmin, nil)
}

func (e *testEnv) reseller(t *testing.T, username string) *model.Account {
	t.Helper()
	return e.createAccount(t, model.AccountKindReseller, username, "", nil)
}

func (e *testEnv) createRole(t *testing.T, name string, matrix model.PermissionMatrix) *model.Role {
	t.Helper()
	role := &model.Role{Name: name, DisplayName: name, Permissions: matrix, IsActive: true}
	require.NoError(t, e.roles.Create(context.Background(), role))
	return role
}

func (e *testEnv) createDevice(t *testing.T, sku string) *model.Device {
	t.Helper()
	device := &model.Device{
		SKU:           sku,
		Name:          "Phone " + sku,
		Brand:         "Acme",
		PurchasePrice: decimal.NewFromInt(200),
		Status:        model.DeviceStatusAvailable,
	}
	require.NoError(t, e.devices.Create(context.Background(), device))
	return device
}

func (e *testEnv) principal(t *testing.T, account *model.Account) *authz.Principal {
	t.Helper()
	p, err := e.engine.Principal(context.Background(), account.ID)
	require.NoError(t, err)
	return p
}

// outboxRows returns every queued notification for event, oldest first.
func (e *testEnv) outboxRows(t *testing.T, event string) []model.Notification {
	t.Helper()
	var rows []model.Notification
	require.NoError(t, e.db.Where("event = ?", event).Order("created_at asc").Find(&rows).Error)
	return rows
}

func decodePayload(t *testing.T, n model.Notification) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(n.Payload), &payload))
	return payload
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
