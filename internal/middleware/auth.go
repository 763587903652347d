package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plannr/internal/security"
	"plannr/internal/service"
)

const (
	ContextAccessToken = "access_token"
	ContextClaims      = "access_claims"
)

// AccessVerifier is implemented by service.TokenService.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (*security.Claims, error)
}

// Authenticate requires a valid, unrevoked bearer access token and stores its
// claims on the context.
func Authenticate(tokens AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abortJSON(c, http.StatusUnauthorized, "missing_token", "bearer token required")
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		claims, err := tokens.VerifyAccess(c.Request.Context(), tokenStr)
		if err != nil && !errors.Is(err, service.ErrInvalidOrRevokedToken) {
			_ = c.Error(err)
			abortJSON(c, http.StatusInternalServerError, "internal_error", "token check unavailable")
			return
		}
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "invalid_or_revoked_token", "invalid or revoked token")
			return
		}

		c.Set(ContextAccessToken, tokenStr)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*security.Claims, bool) {
	val, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := val.(*security.Claims)
	return claims, ok && claims != nil
}

func AccessTokenFrom(c *gin.Context) string {
	return c.GetString(ContextAccessToken)
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}
