package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"plannr/internal/challenge"
	"plannr/internal/ids"
	"plannr/internal/mail"
	"plannr/internal/models"
	"plannr/internal/security"
)

// RegistrationService drives Unregistered -> PendingVerification -> Verified.
// Pending registrations live in the challenge store; only a verified one
// becomes an Account.
type RegistrationService struct {
	accounts   Directory
	challenges *challenge.Issuer
	tokens     *TokenService
	mailer     mail.Mailer
	log        zerolog.Logger
}

func NewRegistrationService(
	accounts Directory,
	challenges *challenge.Issuer,
	tokens *TokenService,
	mailer mail.Mailer,
	log zerolog.Logger,
) *RegistrationService {
	return &RegistrationService{
		accounts:   accounts,
		challenges: challenges,
		tokens:     tokens,
		mailer:     mailer,
		log:        log,
	}
}

type RegisterInput struct {
	Role         models.Role
	Email        string
	Password     string
	FullName     string
	Phone        string
	BusinessName string
	Category     string
}

func registrationKey(role models.Role, email string) challenge.Key {
	return challenge.Key{Purpose: challenge.PurposeRegistration, Role: role, Email: email}
}

// Register stores the hashed profile as a pending registration and mails a
// code. A failed mail hand-off removes the pending entry again.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (string, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return "", fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}
	if input.Role == models.RoleVendor && input.BusinessName == "" {
		return "", fmt.Errorf("%w: businessName required for vendors", ErrInvalidInput)
	}

	store, err := s.accounts.For(input.Role)
	if err != nil {
		return "", err
	}
	exists, err := store.ExistsByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrDuplicateIdentity
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return "", err
	}

	profile := models.Profile{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     input.FullName,
		Phone:        input.Phone,
		BusinessName: input.BusinessName,
		Category:     input.Category,
	}

	key := registrationKey(input.Role, email)
	issued, err := s.challenges.Issue(ctx, key, profile)
	if err != nil {
		return "", err
	}

	if err := s.mailer.Send(ctx, mail.VerificationCode(email, input.Role, issued.Code, issued.ExpiresAt)); err != nil {
		if discardErr := s.challenges.Discard(ctx, key); discardErr != nil {
			s.log.Warn().Err(discardErr).Str("email", email).Msg("discard pending registration failed")
		}
		return "", fmt.Errorf("send verification code: %w", err)
	}

	s.log.Info().Str("email", email).Str("role", string(input.Role)).Msg("registration pending verification")
	return email, nil
}

// ResendOTP replaces the pending code. The payload stays as registered.
func (s *RegistrationService) ResendOTP(ctx context.Context, role models.Role, email string) error {
	email = normalizeEmail(email)
	store, err := s.accounts.For(role)
	if err != nil {
		return err
	}

	issued, err := s.challenges.Reissue(ctx, registrationKey(role, email))
	if err != nil {
		if !errors.Is(err, challenge.ErrNotFound) {
			return err
		}
		account, findErr := store.FindByEmail(ctx, email)
		if findErr != nil {
			return translateRepoErr(findErr)
		}
		if account.IsVerified {
			return ErrAlreadyVerified
		}
		return ErrNotFound
	}

	if err := s.mailer.Send(ctx, mail.VerificationCode(email, role, issued.Code, issued.ExpiresAt)); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// VerifyOTP materializes the pending registration into a verified Account
// and opens a session. Persisting the account and deleting the pending entry
// are separate steps; the entry is deleted only after the account exists, so
// a second call for the same email fails with ErrNotFound.
func (s *RegistrationService) VerifyOTP(ctx context.Context, role models.Role, email string, code string) (AuthResult, error) {
	email = normalizeEmail(email)
	store, err := s.accounts.For(role)
	if err != nil {
		return AuthResult{}, err
	}
	key := registrationKey(role, email)

	entry, err := s.challenges.Verify(ctx, key, code)
	if err != nil {
		switch {
		case errors.Is(err, challenge.ErrNotFound):
			return AuthResult{}, ErrNotFound
		case errors.Is(err, challenge.ErrMismatch):
			return AuthResult{}, ErrInvalidOrExpiredChallenge
		}
		return AuthResult{}, err
	}

	var profile models.Profile
	if err := challenge.DecodePayload(entry, &profile); err != nil {
		return AuthResult{}, err
	}

	exists, err := store.ExistsByEmail(ctx, email)
	if err != nil {
		return AuthResult{}, err
	}
	if exists {
		s.discardPending(ctx, key)
		return AuthResult{}, ErrDuplicateIdentity
	}

	status := models.AccountStatusActive
	if role != models.RoleUser {
		status = models.AccountStatusInactive
	}
	account := models.Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: profile.PasswordHash,
		FullName:     profile.FullName,
		Phone:        profile.Phone,
		BusinessName: profile.BusinessName,
		Category:     profile.Category,
		Role:         role,
		IsVerified:   true,
		Status:       status,
	}
	if err := store.Create(ctx, account); err != nil {
		err = translateRepoErr(err)
		if errors.Is(err, ErrDuplicateIdentity) {
			s.discardPending(ctx, key)
		}
		return AuthResult{}, err
	}

	s.discardPending(ctx, key)

	if err := s.mailer.Send(ctx, mail.Welcome(account)); err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("welcome email failed")
	}

	tokens, err := s.tokens.Issue(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Str("account_id", account.ID).Str("role", string(role)).Msg("account verified")
	return AuthResult{Account: account, Tokens: tokens}, nil
}

func (s *RegistrationService) discardPending(ctx context.Context, key challenge.Key) {
	if err := s.challenges.Discard(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("email", key.Email).Msg("delete pending registration failed")
	}
}
