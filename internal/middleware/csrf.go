package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"plannr/internal/models"
)

const CSRFHeader = "X-CSRF-Token"

type CSRFValidator interface {
	ValidateCSRF(ctx context.Context, role models.Role, accountID string, token string) error
}

// RequireCSRF checks the X-CSRF-Token header against the identity's live
// token. Must run after Authenticate.
func RequireCSRF(validator CSRFValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		token := c.GetHeader(CSRFHeader)
		if token == "" {
			abortJSON(c, http.StatusForbidden, "csrf_required", "csrf token required")
			return
		}

		if err := validator.ValidateCSRF(c.Request.Context(), models.Role(claims.Role), claims.AccountID, token); err != nil {
			abortJSON(c, http.StatusForbidden, "invalid_csrf_token", "invalid csrf token")
			return
		}

		c.Next()
	}
}
