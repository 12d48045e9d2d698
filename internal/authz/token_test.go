package authz

import (
	"testing"
	"time"

	"resellerportal/internal/apperr"
	"resellerportal/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	account := &model.Account{ID: uuid.New(), Kind: model.AccountKindReseller}

	token, expiresAt, err := m.Issue(account)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	id, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)
}

func TestTokenManager_RejectsExpiredAndForeignTokens(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewTokenManager("secret", time.Hour)
	m.now = func() time.Time { return issuedAt }

	token, _, err := m.Issue(&model.Account{ID: uuid.New(), Kind: model.AccountKindAdmin})
	require.NoError(t, err)

	m.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
	_, err = m.Parse(token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
	assert.Contains(t, err.Error(), "expired")

	other := NewTokenManager("other-secret", time.Hour)
	other.now = func() time.Time { return issuedAt }
	_, err = other.Parse(token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = m.Parse("not-a-token")
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}
