package middleware

import (
	"context"
	"net/http"
	"strings"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	principalKey = "principal"
	tokenCookie  = "access_token"
)

// TokenParser verifies a bearer token and returns its account id.
type TokenParser interface {
	Parse(token string) (uuid.UUID, error)
}

// PrincipalLoader resolves an account id into a principal with effective permissions.
type PrincipalLoader interface {
	Principal(ctx context.Context, accountID uuid.UUID) (*authz.Principal, error)
}

type Auth struct {
	tokens     TokenParser
	principals PrincipalLoader
	secure     bool
}

// NewAuth builds the authentication middleware. secure marks cookies as
// cross-site and HTTPS only, which is what release deployments need.
func NewAuth(tokens TokenParser, principals PrincipalLoader, secure bool) *Auth {
	return &Auth{tokens: tokens, principals: principals, secure: secure}
}

// Authenticate resolves the caller once per request and stores the principal in the context.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := a.Resolve(c, TokenFromRequest(c))
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// Resolve turns a raw token into a principal. Deactivated accounts are rejected here
// as well as by every capability check.
func (a *Auth) Resolve(c *gin.Context, token string) (*authz.Principal, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("authorization is missing")
	}
	accountID, err := a.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	principal, err := a.principals.Principal(c.Request.Context(), accountID)
	if err != nil {
		return nil, err
	}
	if !principal.IsActive {
		return nil, apperr.Unauthenticated("account is disabled")
	}
	return principal, nil
}

// RequireCapability rejects authenticated callers that lack c with 403.
func RequireCapability(capability authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authz.Require(CurrentPrincipal(c), capability); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// RequireKind restricts a route to admins or resellers.
func RequireKind(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil {
			abort(c, apperr.Unauthenticated("authentication required"))
			return
		}
		if p.Kind != kind {
			abort(c, apperr.Forbidden("only %s accounts can use this endpoint", kind))
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the principal set by Authenticate, or nil.
func CurrentPrincipal(c *gin.Context) *authz.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*authz.Principal)
	return p
}

// TokenFromRequest reads the bearer header first and falls back to the cookie.
func TokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(tokenCookie); err == nil {
		return cookie
	}
	return ""
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func (a *Auth) SetTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(tokenCookie, token, maxAge, "/", "", a.secure, true)
}

// ClearTokenCookie removes the access token cookie
func (a *Auth) ClearTokenCookie(c *gin.Context) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(tokenCookie, "", -1, "/", "", a.secure, true)
}

func (a *Auth) sameSite() http.SameSite {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	if a.secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func abort(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	c.AbortWithStatusJSON(status, response.ErrorWithCode(status, apperr.KindOf(err).String(), err.Error()))
}
