package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plannr/internal/models"
	"plannr/internal/service"
)

type accountResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Phone        string    `json:"phone,omitempty"`
	BusinessName string    `json:"businessName,omitempty"`
	Category     string    `json:"category,omitempty"`
	Role         string    `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	IsApproved   *bool     `json:"isApproved,omitempty"`
	Status       string    `json:"status"`
	AvatarURL    *string   `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toAccountResponse(account models.Account) accountResponse {
	resp := accountResponse{
		ID:           account.ID,
		Email:        account.Email,
		FullName:     account.FullName,
		Phone:        account.Phone,
		BusinessName: account.BusinessName,
		Category:     account.Category,
		Role:         string(account.Role),
		IsVerified:   account.IsVerified,
		Status:       string(account.Status),
		AvatarURL:    account.AvatarURL,
		CreatedAt:    account.CreatedAt,
	}
	if account.Role == models.RoleVendor {
		approved := account.IsApproved
		resp.IsApproved = &approved
	}
	return resp
}

// sendAuthResponse writes {token, refreshToken, csrfToken, <role>}.
func sendAuthResponse(c *gin.Context, role models.Role, result service.AuthResult) {
	c.JSON(http.StatusOK, gin.H{
		"token":        result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
		"csrfToken":    result.Tokens.CSRFToken,
		"expiresAt":    result.Tokens.AccessExpiresAt,
		string(role):   toAccountResponse(result.Account),
	})
}

func message(c *gin.Context, status int, text string) {
	c.JSON(status, gin.H{"message": text})
}
