package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"plannr/internal/service"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{service.ErrDuplicateIdentity, http.StatusBadRequest, "duplicate_identity"},
	{service.ErrInvalidOrExpiredChallenge, http.StatusBadRequest, "invalid_or_expired_otp"},
	{service.ErrInvalidCredentials, http.StatusBadRequest, "invalid_credentials"},
	{service.ErrAlreadyVerified, http.StatusBadRequest, "already_verified"},
	{service.ErrAvatarTooLarge, http.StatusBadRequest, "avatar_too_large"},
	{service.ErrNotVerified, http.StatusForbidden, "not_verified"},
	{service.ErrVendorNotApproved, http.StatusForbidden, "vendor_not_approved"},
	{service.ErrInvalidOrRevokedToken, http.StatusUnauthorized, "invalid_or_revoked_token"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrUnknownRole, http.StatusNotFound, "unknown_role"},
}

func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.code, "message": err.Error()})
			return
		}
	}

	_ = c.Error(err)
	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "timeout", "message": "request timed out"})
		return
	}
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
}
