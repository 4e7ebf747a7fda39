package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"sdmox/internal/core/apperror"
	appctx "sdmox/internal/core/context"
)

// TokenValidator validates bearer tokens. Satisfied by *auth.JWTService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.Caller, error)
}

// Auth validates the bearer token and stores the caller in the request context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		caller, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token"))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithCaller(c.Request.Context(), caller))
		c.Set("caller", caller.Subject)
		c.Next()
	}
}

// RequireRole rejects callers holding none of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := appctx.GetCaller(c.Request.Context())
		if caller == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		for _, required := range roles {
			if slices.Contains(caller.Roles, required) {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
