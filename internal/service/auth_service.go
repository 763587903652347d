package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"plannr/internal/challenge"
	"plannr/internal/ids"
	"plannr/internal/mail"
	"plannr/internal/models"
	"plannr/internal/security"
)

// loginPolicy captures where actor kinds differ at login.
type loginPolicy struct {
	activateOnLogin bool
}

var loginPolicies = map[models.Role]loginPolicy{
	models.RoleUser:   {},
	models.RoleVendor: {activateOnLogin: true},
	models.RoleAdmin:  {activateOnLogin: true},
}

type AuthService struct {
	accounts   Directory
	tokens     *TokenService
	challenges *challenge.Issuer
	mailer     mail.Mailer
	events     LoginEvents
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuthService(
	accounts Directory,
	tokens *TokenService,
	challenges *challenge.Issuer,
	mailer mail.Mailer,
	events LoginEvents,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		accounts:   accounts,
		tokens:     tokens,
		challenges: challenges,
		mailer:     mailer,
		events:     events,
		log:        log,
		now:        time.Now,
	}
}

type LoginInput struct {
	Role      models.Role
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// Login authenticates against the actor's account table. An unverified
// account is rejected before the password is looked at.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	store, err := s.accounts.For(input.Role)
	if err != nil {
		return AuthResult{}, err
	}

	account, err := store.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		return AuthResult{}, translateRepoErr(err)
	}

	if !account.IsVerified {
		return AuthResult{}, ErrNotVerified
	}

	ok, err := security.VerifyPassword(input.Password, account.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("stored password hash unreadable")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	if loginPolicies[input.Role].activateOnLogin && account.Status != models.AccountStatusActive {
		if err := store.UpdateStatus(ctx, account.ID, models.AccountStatusActive); err != nil {
			return AuthResult{}, translateRepoErr(err)
		}
		account.Status = models.AccountStatusActive
	}

	tokens, err := s.tokens.Issue(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	s.recordLogin(account, input)

	return AuthResult{Account: account, Tokens: tokens}, nil
}

// recordLogin writes the audit row in the background. Login never waits for
// it and never fails because of it.
func (s *AuthService) recordLogin(account models.Account, input LoginInput) {
	if s.events == nil {
		return
	}
	event := models.LoginEvent{
		ID:        ids.New(),
		AccountID: account.ID,
		Role:      account.Role,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: s.now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.events.Record(ctx, event); err != nil {
			s.log.Warn().Err(err).Str("account_id", event.AccountID).Msg("record login event failed")
		}
	}()
}

func (s *AuthService) Refresh(ctx context.Context, role models.Role, refreshToken string) (AuthResult, error) {
	return s.tokens.Rotate(ctx, role, refreshToken, s.accounts.lookup)
}

type LogoutInput struct {
	AccessToken  string
	RefreshToken string
}

// Logout denylists the presented access token and, when given, the refresh
// token, then drops the CSRF token of the identity.
func (s *AuthService) Logout(ctx context.Context, input LogoutInput) error {
	claims, err := s.tokens.RevokeAccess(ctx, input.AccessToken)
	if err != nil {
		return err
	}

	if input.RefreshToken != "" {
		if err := s.tokens.RevokeRefresh(ctx, input.RefreshToken); err != nil {
			s.log.Debug().Err(err).Str("account_id", claims.AccountID).Msg("refresh token not revoked on logout")
		}
	}

	if role, err := models.ParseRole(claims.Role); err == nil {
		if err := s.tokens.DropCSRF(ctx, role, claims.AccountID); err != nil {
			s.log.Warn().Err(err).Str("account_id", claims.AccountID).Msg("drop csrf token failed")
		}
	}
	return nil
}

func resetKey(role models.Role, email string) challenge.Key {
	return challenge.Key{Purpose: challenge.PurposePasswordReset, Role: role, Email: email}
}

// ForgotPassword mails a reset code for an existing account.
func (s *AuthService) ForgotPassword(ctx context.Context, role models.Role, email string) error {
	email = normalizeEmail(email)
	store, err := s.accounts.For(role)
	if err != nil {
		return err
	}
	if _, err := store.FindByEmail(ctx, email); err != nil {
		return translateRepoErr(err)
	}

	key := resetKey(role, email)
	issued, err := s.challenges.Issue(ctx, key, nil)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, mail.PasswordResetCode(email, issued.Code, issued.ExpiresAt)); err != nil {
		if discardErr := s.challenges.Discard(ctx, key); discardErr != nil {
			s.log.Warn().Err(discardErr).Str("email", email).Msg("discard reset challenge failed")
		}
		return fmt.Errorf("send reset code: %w", err)
	}
	return nil
}

type ResetPasswordInput struct {
	Role        models.Role
	Email       string
	Code        string
	NewPassword string
}

func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	email := normalizeEmail(input.Email)
	if input.NewPassword == "" {
		return fmt.Errorf("%w: password required", ErrInvalidInput)
	}
	store, err := s.accounts.For(input.Role)
	if err != nil {
		return err
	}
	account, err := store.FindByEmail(ctx, email)
	if err != nil {
		return translateRepoErr(err)
	}

	if _, err := s.challenges.Consume(ctx, resetKey(input.Role, email), input.Code); err != nil {
		if errors.Is(err, challenge.ErrNotFound) || errors.Is(err, challenge.ErrMismatch) {
			return ErrInvalidOrExpiredChallenge
		}
		return err
	}

	passwordHash, err := security.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	if err := store.UpdatePassword(ctx, account.ID, passwordHash); err != nil {
		return translateRepoErr(err)
	}

	if err := s.mailer.Send(ctx, mail.PasswordChanged(email)); err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("password changed email failed")
	}
	return nil
}
