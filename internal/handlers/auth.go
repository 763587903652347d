package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"plannr/internal/challenge"
	"plannr/internal/middleware"
	"plannr/internal/models"
	"plannr/internal/service"
)

type registerRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FullName     string `json:"fullName" binding:"required"`
	Phone        string `json:"phone"`
	BusinessName string `json:"businessName"`
	Category     string `json:"category"`
}

func (h HandlerSet) RegisterAccount(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		email, err := h.registration.Register(c.Request.Context(), service.RegisterInput{
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

		c.JSON(http.StatusCreated, gin.H{
			"message": "verification code sent",
			"email":   email,
		})
	}
}

// otpCode accepts the code as a JSON string or a JSON number. A number has
// lost its leading zeros on the client, so it is padded back to
// challenge.CodeDigits.
type otpCode string

func (o *otpCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = otpCode(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("otp must be a string or number: %w", err)
	}
	v, err := n.Int64()
	if err != nil || v < 0 {
		return fmt.Errorf("otp must be a non-negative integer, got %s", n)
	}
	*o = otpCode(fmt.Sprintf("%0*d", challenge.CodeDigits, v))
	return nil
}

type otpRequest struct {
	Email string  `json:"email" binding:"required,email"`
	OTP   otpCode `json:"otp" binding:"required"`
}

func (h HandlerSet) VerifyOTP(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req otpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		result, err := h.registration.VerifyOTP(c.Request.Context(), role, req.Email, string(req.OTP))
		if err != nil {
			respondError(c, err)
			return
		}

		sendAuthResponse(c, role, result)
	}
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h HandlerSet) ResendOTP(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		if err := h.registration.ResendOTP(c.Request.Context(), role, req.Email); err != nil {
			respondError(c, err)
			return
		}

		message(c, http.StatusOK, "verification code resent")
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
			Role:      role,
			Email:     req.Email,
			Password:  req.Password,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		sendAuthResponse(c, role, result)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) RefreshToken(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		result, err := h.auth.Refresh(c.Request.Context(), role, req.RefreshToken)
		if err != nil {
			respondError(c, err)
			return
		}

		sendAuthResponse(c, role, result)
	}
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h HandlerSet) Logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	err := h.auth.Logout(c.Request.Context(), service.LogoutInput{
		AccessToken:  middleware.AccessTokenFrom(c),
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	message(c, http.StatusOK, "logged out")
}

func (h HandlerSet) ForgotPassword(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		if err := h.auth.ForgotPassword(c.Request.Context(), role, req.Email); err != nil {
			respondError(c, err)
			return
		}

		message(c, http.StatusOK, "password reset code sent")
	}
}

type resetPasswordRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	OTP      otpCode `json:"otp" binding:"required"`
	Password string  `json:"password" binding:"required,min=8"`
}

func (h HandlerSet) ResetPassword(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		err := h.auth.ResetPassword(c.Request.Context(), service.ResetPasswordInput{
			Role:        role,
			Email:       req.Email,
			Code:        string(req.OTP),
			NewPassword: req.Password,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		message(c, http.StatusOK, "password updated")
	}
}
