package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-refundflow/internal/apperr"
	"github.com/imrishuroy/go-refundflow/internal/identity"
	"github.com/imrishuroy/go-refundflow/internal/logger"
)

const principalKey = "principal"

// Authenticate resolves the caller from the bearer token. The role is only
// ever taken from the verified token.
func Authenticate(v *identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			RespondError(c, apperr.ErrUnauthenticated)
			c.Abort()
			return
		}

		p, err := v.Principal(strings.TrimSpace(parts[1]))
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug().Err(err).Msg("token rejected")
			RespondError(c, apperr.ErrUnauthenticated)
			c.Abort()
			return
		}

		c.Set(principalKey, p)
		l := logger.FromContext(c.Request.Context()).With().
			Str("principal_id", p.ID).
			Str("role", string(p.Role)).
			Logger()
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), &l))
		c.Next()
	}
}

// RequireRole aborts with 403 unless the caller has one of roles.
func RequireRole(roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			RespondError(c, apperr.ErrUnauthenticated)
			c.Abort()
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		RespondError(c, apperr.Forbidden("%s role required", roles[0]))
		c.Abort()
	}
}

// PrincipalFrom returns the principal set by Authenticate.
func PrincipalFrom(c *gin.Context) (identity.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return identity.Principal{}, false
	}
	p, ok := v.(identity.Principal)
	return p, ok
}

// RespondError writes the standard error body for err.
func RespondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("request failed")
		if apperr.Kind(err) == "internal" {
			msg = "internal error"
		}
	}
	c.JSON(status, gin.H{
		"error":   apperr.Kind(err),
		"message": msg,
	})
}
