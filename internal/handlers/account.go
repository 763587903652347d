package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"plannr/internal/media/sniffer"
	"plannr/internal/middleware"
	"plannr/internal/models"
	"plannr/internal/service"
)

func currentAccountID(c *gin.Context) (string, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		respondError(c, service.ErrInvalidOrRevokedToken)
		return "", false
	}
	return claims.AccountID, true
}

func (h HandlerSet) Me(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentAccountID(c)
		if !ok {
			return
		}

		account, err := h.accounts.Get(c.Request.Context(), role, id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{string(role): toAccountResponse(account)})
	}
}

type loginEventResponse struct {
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h HandlerSet) LoginHistory(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentAccountID(c)
		if !ok {
			return
		}

		limit := 20
		if raw := c.Query("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
				limit = v
			}
		}

		events, err := h.accounts.LoginHistory(c.Request.Context(), role, id, limit)
		if err != nil {
			respondError(c, err)
			return
		}

		items := make([]loginEventResponse, 0, len(events))
		for _, event := range events {
			items = append(items, loginEventResponse{
				IPAddress: event.IPAddress,
				UserAgent: event.UserAgent,
				CreatedAt: event.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func (h HandlerSet) CSRFToken(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentAccountID(c)
		if !ok {
			return
		}

		token, err := h.tokens.IssueCSRF(c.Request.Context(), role, id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"csrfToken": token})
	}
}

func (h HandlerSet) UploadAvatar(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentAccountID(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			badRequest(c, err)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer file.Close()

		account, err := h.accounts.UpdateAvatar(c.Request.Context(), service.AvatarInput{
			Role:         role,
			AccountID:    id,
			Body:         file,
			DeclaredMIME: sniffer.MimeType(fileHeader.Header.Get("Content-Type")),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"avatarUrl": account.AvatarURL})
	}
}

func (h HandlerSet) VendorDashboard(c *gin.Context) {
	id, ok := currentAccountID(c)
	if !ok {
		return
	}

	vendor, err := h.accounts.Get(c.Request.Context(), models.RoleVendor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "welcome to your dashboard",
		"vendor":  toAccountResponse(vendor),
	})
}
