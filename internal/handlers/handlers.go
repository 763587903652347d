package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"plannr/internal/config"
	"plannr/internal/middleware"
	"plannr/internal/models"
	"plannr/internal/service"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Log          zerolog.Logger
	Config       *config.AppConfig
	Registration *service.RegistrationService
	Auth         *service.AuthService
	Accounts     *service.AccountService
	Tokens       *service.TokenService
	Redis        *redis.Client
	Database     Pinger
	Storage      Pinger
}

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	registration *service.RegistrationService
	auth         *service.AuthService
	accounts     *service.AccountService
	tokens       *service.TokenService
	cache        *redis.Client
	db           Pinger
	store        Pinger
}

func NewHandlerSet(deps Dependencies) HandlerSet {
	return HandlerSet{
		log:          deps.Log,
		cfg:          deps.Config,
		registration: deps.Registration,
		auth:         deps.Auth,
		accounts:     deps.Accounts,
		tokens:       deps.Tokens,
		cache:        deps.Redis,
		db:           deps.Database,
		store:        deps.Storage,
	}
}

var roleGroups = map[models.Role]string{
	models.RoleUser:   "users",
	models.RoleVendor: "vendors",
	models.RoleAdmin:  "admins",
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	limited := middleware.RateLimit(h.cache, h.cfg.RateLimit, h.log)
	authenticated := middleware.Authenticate(h.tokens)
	csrf := middleware.RequireCSRF(h.tokens)

	for _, role := range models.Roles {
		group := v1.Group("/" + roleGroups[role])

		public := group.Group("", limited)
		public.POST("/register", h.RegisterAccount(role))
		public.POST("/verify-otp", h.VerifyOTP(role))
		public.POST("/resend-otp", h.ResendOTP(role))
		public.POST("/login", h.Login(role))
		public.POST("/refresh-token", h.RefreshToken(role))
		public.POST("/forgot-password", h.ForgotPassword(role))
		public.POST("/reset-password", h.ResetPassword(role))

		protected := group.Group("", authenticated, middleware.RequireRoles(role))
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me(role))
		protected.GET("/me/logins", h.LoginHistory(role))
		protected.POST("/csrf-token", h.CSRFToken(role))
		protected.PUT("/me/avatar", csrf, h.UploadAvatar(role))
	}

	vendors := v1.Group("/vendors",
		authenticated,
		middleware.RequireRoles(models.RoleVendor),
		middleware.RequireApprovedVendor(h.accounts),
	)
	vendors.GET("/dashboard", h.VendorDashboard)

	admin := v1.Group("/admins",
		authenticated,
		middleware.RequireRoles(models.RoleAdmin),
		csrf,
	)
	admin.POST("/accounts", h.AdminCreateAccount)
	admin.PATCH("/vendors/:id/approval", h.AdminSetVendorApproval)
	admin.DELETE("/:role/:id", h.AdminDeleteAccount)
}
