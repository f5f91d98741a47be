package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/pkg/errors"
	"github.com/jwalitptl/agenda-api/pkg/httputil"
)

const ContextPrincipal = "principal"

// TokenVerifier turns a bearer token into the authenticated caller.
type TokenVerifier interface {
	Verify(token string) (*model.Principal, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate verifies the bearer token and stores the principal in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}

		principal, err := m.verifier.Verify(token)
		if err != nil {
			httputil.RespondWithError(c, errors.Unauthorized(err))
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// RequireCapability rejects callers whose roles do not grant capability.
func (m *AuthMiddleware) RequireCapability(capability model.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := Principal(c)
		if !ok {
			httputil.RespondWithError(c, errors.Unauthorized(nil))
			return
		}
		if !principal.Can(capability) {
			httputil.RespondWithError(c, errors.Forbidden("permission denied", nil))
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated caller set by Authenticate.
func Principal(c *gin.Context) (*model.Principal, bool) {
	v, exists := c.Get(ContextPrincipal)
	if !exists {
		return nil, false
	}
	p, ok := v.(*model.Principal)
	return p, ok
}
