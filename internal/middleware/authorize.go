package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"plannr/internal/models"
	"plannr/internal/service"
)

// RequireRoles admits only tokens whose role is in roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	roleSet := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		if _, ok := roleSet[models.Role(claims.Role)]; !ok {
			abortJSON(c, http.StatusForbidden, "forbidden", "role not allowed")
			return
		}

		c.Next()
	}
}

type VendorApprover interface {
	RequireApprovedVendor(ctx context.Context, vendorID string) (models.Account, error)
}

// RequireApprovedVendor reloads the vendor behind the token. Approval can be
// revoked after the token was minted.
func RequireApprovedVendor(vendors VendorApprover) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok || models.Role(claims.Role) != models.RoleVendor {
			abortJSON(c, http.StatusForbidden, "forbidden", "vendor access only")
			return
		}

		_, err := vendors.RequireApprovedVendor(c.Request.Context(), claims.AccountID)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, service.ErrVendorNotApproved):
			abortJSON(c, http.StatusForbidden, "vendor_not_approved", err.Error())
		case errors.Is(err, service.ErrNotFound):
			abortJSON(c, http.StatusUnauthorized, "invalid_or_revoked_token", "account no longer exists")
		default:
			c.Error(err)
			abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}
	}
}
