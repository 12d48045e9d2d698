package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/model"
	"resellerportal/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(env *testEnv, now time.Time) *authService {
	svc := NewAuthService(env.accounts, env.resets, env.audits, env.tx, env.engine,
		authz.NewTokenManager("test-secret", time.Hour), env.outbox,
		ratelimit.NewMemoryLimiter(ratelimit.PasswordResetConfig()),
		AuthConfig{ResetTTL: time.Hour, FrontendURL: testFrontend}, zap.NewNop(), env.metrics).(*authService)
	svc.hashCost = bcrypt.MinCost
	svc.now = fixedClock(now)
	return svc
}

// resetTokens returns the tokens of every queued reset email.
func resetTokens(t *testing.T, env *testEnv) []string {
	t.Helper()
	var tokens []string
	for _, row := range env.outboxRows(t, model.EventPasswordResetRequest) {
		link, ok := decodePayload(t, row)["link"].(string)
		require.True(t, ok)
		u, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, "/reset-password", u.Path)
		tokens = append(tokens, u.Query().Get("token"))
	}
	return tokens
}

func TestAuthService_LoginByUsernameOrEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reseller := env.reseller(t, "shop")
	svc := newTestAuthService(env, testNow)

	res, err := svc.Login(ctx, LoginRequest{Login: "shop", Password: "shop"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, reseller.ID, res.Principal.AccountID)

	_, err = svc.Login(ctx, LoginRequest{Email: "SHOP@example.com", Password: "shop"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Username: "shop", Password: "wrong"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	_, err = svc.Login(ctx, LoginRequest{Username: "ghost", Password: "shop"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	_, err = svc.Login(ctx, LoginRequest{Password: "shop"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	stored, err := env.accounts.GetByID(ctx, reseller.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
}

func TestAuthService_LoginRejectsInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reseller := env.reseller(t, "shop")
	reseller.IsActive = false
	require.NoError(t, env.accounts.Update(ctx, reseller))
	svc := newTestAuthService(env, testNow)

	_, err := svc.Login(ctx, LoginRequest{Login: "shop", Password: "shop"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestAuthService_ChangePasswordClearsFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reseller := env.reseller(t, "shop")
	require.NoError(t, env.accounts.UpdatePassword(ctx, reseller.ID, reseller.PasswordHash, true, true))
	p := env.principal(t, reseller)
	assert.True(t, p.MustChangePassword)
	svc := newTestAuthService(env, testNow)

	err := svc.ChangePassword(ctx, p, ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "secret1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	err = svc.ChangePassword(ctx, p, ChangePasswordRequest{CurrentPassword: "shop", NewPassword: "abc"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	err = svc.ChangePassword(ctx, p, ChangePasswordRequest{CurrentPassword: "shop", NewPassword: "shop"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, svc.ChangePassword(ctx, p, ChangePasswordRequest{CurrentPassword: "shop", NewPassword: "secret1"}))

	stored, err := env.accounts.GetByID(ctx, reseller.ID)
	require.NoError(t, err)
	assert.False(t, stored.MustChangePassword)
	assert.False(t, stored.FirstLogin)

	_, err = svc.Login(ctx, LoginRequest{Login: "shop", Password: "secret1"})
	assert.NoError(t, err)
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.reseller(t, "shop")
	svc := newTestAuthService(env, testNow)

	require.NoError(t, svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "shop@example.com"}))
	tokens := resetTokens(t, env)
	require.Len(t, tokens, 1)
	first := tokens[0]

	require.NoError(t, svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "shop@example.com"}))
	tokens = resetTokens(t, env)
	require.Len(t, tokens, 2)
	second := tokens[0]
	if second == first {
		second = tokens[1]
	}

	err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: first, NewPassword: "newpass"})
	assert.True(t, apperr.Is(err, apperr.KindConsumed), "older token is retired: %v", err)

	require.NoError(t, svc.ResetPassword(ctx, ResetPasswordRequest{Token: second, NewPassword: "newpass"}))
	err = svc.ResetPassword(ctx, ResetPasswordRequest{Token: second, NewPassword: "another"})
	assert.True(t, apperr.Is(err, apperr.KindConsumed))

	_, err = svc.Login(ctx, LoginRequest{Login: "shop", Password: "newpass"})
	assert.NoError(t, err)
}

func TestAuthService_ResetTokenExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.reseller(t, "shop")
	svc := newTestAuthService(env, testNow)

	require.NoError(t, svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "shop@example.com"}))
	tokens := resetTokens(t, env)
	require.Len(t, tokens, 1)
	token := tokens[0]

	svc.now = fixedClock(testNow.Add(2 * time.Hour))
	err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "newpass"})
	assert.True(t, apperr.Is(err, apperr.KindExpired))
}

func TestAuthService_ResetRequestDoesNotRevealAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.superAdmin(t)
	svc := newTestAuthService(env, testNow)

	assert.NoError(t, svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "nobody@example.com"}))
	assert.NoError(t, svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "root@example.com"}))
	assert.Empty(t, env.outboxRows(t, model.EventPasswordResetRequest))
}

func TestAuthService_ResetRequestsAreRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newTestAuthService(env, testNow)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "flood@example.com"}))
	}
	err := svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "flood@example.com"})
	assert.True(t, apperr.Is(err, apperr.KindRateLimited))

	assert.NoError(t, svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "other@example.com"}))
}

func TestAuthService_ConcurrentResetUsesTokenOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.reseller(t, "shop")
	svc := newTestAuthService(env, testNow)

	require.NoError(t, svc.RequestPasswordReset(ctx, RequestPasswordResetRequest{Email: "shop@example.com"}))
	tokens := resetTokens(t, env)
	require.Len(t, tokens, 1)

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.ResetPassword(ctx, ResetPasswordRequest{
				Token:       tokens[0],
				NewPassword: "newpass" + string(rune('a'+i)),
			})
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			assert.Equal(t, -1, winner, "a reset token must only be redeemed once")
			winner = i
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindConsumed), "got %v", err)
	}
	require.NotEqual(t, -1, winner)

	_, err := svc.Login(ctx, LoginRequest{Login: "shop", Password: "newpass" + string(rune('a'+winner))})
	assert.NoError(t, err)

	var resets int64
	require.NoError(t, env.db.Model(&model.AuditLog{}).Where("action = ?", model.ActionResetPassword).Count(&resets).Error)
	assert.Equal(t, int64(1), resets)
}
