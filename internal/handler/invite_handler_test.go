package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"resellerportal/internal/apperr"
	"resellerportal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteRoutes_ValidateReportsTokenState(t *testing.T) {
	env := newRouteEnv(t)
	admin := env.account(t, model.AccountKindAdmin, "root", model.LegacyRoleSuperAdmin)

	seed := func(token string, expiresAt time.Time, consumed bool) {
		require.NoError(t, env.invites.Create(context.Background(), &model.Invite{
			Token:       token,
			Email:       token + "@example.com",
			AccountKind: model.AccountKindReseller,
			CreatedBy:   admin.ID,
			ExpiresAt:   expiresAt,
			Consumed:    consumed,
		}))
	}
	seed("live", time.Now().Add(time.Hour), false)
	seed("stale", time.Now().Add(-time.Minute), false)
	seed("used", time.Now().Add(time.Hour), true)

	tests := []struct {
		token  string
		status int
		code   string
	}{
		{"stale", http.StatusGone, apperr.KindExpired.String()},
		{"used", http.StatusGone, apperr.KindConsumed.String()},
		{"missing", http.StatusNotFound, apperr.KindNotFound.String()},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			w, body := env.do(t, http.MethodGet, "/api/invites/validate/"+tt.token, "", "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Code)
		})
	}

	w, body := env.do(t, http.MethodGet, "/api/invites/validate/live", "", "")
	require.Equal(t, http.StatusOK, w.Code, body.Error)
	data, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "live@example.com", data["email"])
}
