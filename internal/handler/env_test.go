package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resellerportal/internal/authz"
	"resellerportal/internal/database"
	"resellerportal/internal/metrics"
	"resellerportal/internal/middleware"
	"resellerportal/internal/model"
	"resellerportal/internal/notification"
	"resellerportal/internal/repository"
	"resellerportal/internal/service"
	"resellerportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// routeEnv serves the real handlers and services over a private sqlite database.
type routeEnv struct {
	db          *gorm.DB
	router      *gin.Engine
	tokens      *authz.TokenManager
	engine      *authz.Engine
	accounts    repository.AccountRepository
	devices     repository.DeviceRepository
	invites     repository.InviteRepository
	assignments service.AssignmentService
}

func newRouteEnv(t *testing.T) *routeEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := database.Config()
	cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	accounts := repository.NewAccountRepository(db)
	roles := repository.NewRoleRepository(db)
	devices := repository.NewDeviceRepository(db)
	invites := repository.NewInviteRepository(db)
	audits := repository.NewAuditRepository(db)
	tx := repository.NewTransactionManager(db)
	outbox := notification.NewOutbox(repository.NewNotificationRepository(db))
	m := metrics.NewNop()

	env := &routeEnv{
		db:       db,
		tokens:   authz.NewTokenManager("handler-secret", time.Hour),
		engine:   authz.NewEngine(accounts, roles),
		accounts: accounts,
		devices:  devices,
		invites:  invites,
	}
	env.assignments = service.NewAssignmentService(repository.NewAssignmentRepository(db), devices, accounts, audits, tx, outbox, m,
		"https://www.dhl.com/en/express/tracking.html?AWB=%s")
	inviteService := service.NewInviteService(invites, accounts, roles, audits, tx, outbox,
		service.InviteConfig{TTL: 72 * time.Hour, FrontendURL: "https://portal.example.com"}, m)

	auth := middleware.NewAuth(env.tokens, env.engine, false)
	env.router = gin.New()
	api := env.router.Group("/api")
	NewAssignmentHandler(env.assignments, auth).RegisterRoutes(api)
	NewInviteHandler(inviteService, auth).RegisterRoutes(api)
	return env
}

func (e *routeEnv) account(t *testing.T, kind, username, legacyRole string) *model.Account {
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
		IsActive:     true,
	}
	require.NoError(t, e.accounts.Create(context.Background(), account))
	return account
}

func (e *routeEnv) principal(t *testing.T, account *model.Account) *authz.Principal {
	t.Helper()
	p, err := e.engine.Principal(context.Background(), account.ID)
	require.NoError(t, err)
	return p
}

func (e *routeEnv) bearer(t *testing.T, account *model.Account) string {
	t.Helper()
	token, _, err := e.tokens.Issue(account)
	require.NoError(t, err)
	return token
}

func (e *routeEnv) device(t *testing.T, sku string) *model.Device {
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

func (e *routeEnv) do(t *testing.T, method, path, token, body string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var envelope response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return w, envelope
}
