package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plannr/internal/models"
	"plannr/internal/service"
)

type createAccountRequest struct {
	Role         string `json:"role"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FullName     string `json:"fullName" binding:"required"`
	Phone        string `json:"phone"`
	BusinessName string `json:"businessName"`
	Category     string `json:"category"`
}

// AdminCreateAccount creates an account of any role without a challenge.
// Role defaults to admin.
func (h HandlerSet) AdminCreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role := models.RoleAdmin
	if req.Role != "" {
		parsed, err := parseRoleParam(req.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		role = parsed
	}

	account, err := h.accounts.CreateAccount(c.Request.Context(), service.CreateAccountInput{
		Role:         role,
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Phone:        req.Phone,
		BusinessName: req.BusinessName,
		Category:     req.Category,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{string(role): toAccountResponse(account)})
}

type approvalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

func (h HandlerSet) AdminSetVendorApproval(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.accounts.SetVendorApproval(c.Request.Context(), c.Param("id"), *req.Approved)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"vendor": toAccountResponse(vendor)})
}

func (h HandlerSet) AdminDeleteAccount(c *gin.Context) {
	role, err := parseRoleParam(c.Param("role"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.accounts.Delete(c.Request.Context(), role, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	message(c, http.StatusOK, fmt.Sprintf("%s deleted", role))
}

// parseRoleParam accepts both "vendor" and "vendors".
func parseRoleParam(raw string) (models.Role, error) {
	role, err := models.ParseRole(strings.TrimSuffix(strings.ToLower(raw), "s"))
	if err != nil {
		return "", fmt.Errorf("%w: %s", service.ErrUnknownRole, raw)
	}
	return role, nil
}
