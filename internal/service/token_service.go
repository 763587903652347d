package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"plannr/internal/cache"
	"plannr/internal/config"
	"plannr/internal/models"
	"plannr/internal/security"
)

type TokenSet struct {
	AccessToken      string
	RefreshToken     string
	CSRFToken        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AccountLookup resolves the account a refresh token belongs to.
type AccountLookup func(ctx context.Context, role models.Role, id string) (models.Account, error)

// TokenService issues, verifies, rotates and revokes session tokens.
type TokenService struct {
	cfg         config.SecurityConfig
	revocations *cache.RevocationRegistry
	csrf        *cache.CSRFStore
	now         func() time.Time
}

func NewTokenService(cfg config.SecurityConfig, revocations *cache.RevocationRegistry, csrf *cache.CSRFStore, now func() time.Time) *TokenService {
	if now == nil {
		now = time.Now
	}
	return &TokenService{cfg: cfg, revocations: revocations, csrf: csrf, now: now}
}

func (s *TokenService) Issue(ctx context.Context, account models.Account) (TokenSet, error) {
	now := s.now()
	accessTTL := s.cfg.AccessTTL.For(account.Role)

	accessToken, err := security.SignToken(s.cfg.JWTAccessSecret, security.TokenSpec{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      string(account.Role),
		Type:      security.TokenTypeAccess,
		ID:        uuid.NewString(),
		IssuedAt:  now,
		TTL:       accessTTL,
	})
	if err != nil {
		return TokenSet{}, err
	}

	refreshToken, err := security.SignToken(s.cfg.JWTRefreshSecret, security.TokenSpec{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      string(account.Role),
		Type:      security.TokenTypeRefresh,
		ID:        uuid.NewString(),
		IssuedAt:  now,
		TTL:       s.cfg.RefreshTTL,
	})
	if err != nil {
		return TokenSet{}, err
	}

	csrfToken, err := s.csrf.Generate(ctx, account.Role, account.ID)
	if err != nil {
		return TokenSet{}, err
	}

	return TokenSet{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		CSRFToken:        csrfToken,
		AccessExpiresAt:  now.Add(accessTTL),
		RefreshExpiresAt: now.Add(s.cfg.RefreshTTL),
	}, nil
}

// VerifyAccess rejects bad signatures, refresh tokens, revoked tokens and
// tokens inside the early-expiry buffer.
func (s *TokenService) VerifyAccess(ctx context.Context, token string) (*security.Claims, error) {
	claims, err := security.ParseToken(token, s.cfg.JWTAccessSecret, security.TokenTypeAccess, s.now(), s.cfg.ExpiryBuffer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrRevokedToken, err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidOrRevokedToken
	}
	return claims, nil
}

// Rotate redeems a refresh token of role exactly once. The presented token is
// put on the denylist before the new set is minted, so a replay of the same
// token, concurrent or later, finds it revoked.
func (s *TokenService) Rotate(ctx context.Context, role models.Role, refreshToken string, lookup AccountLookup) (AuthResult, error) {
	claims, err := s.parseRefresh(refreshToken)
	if err != nil {
		return AuthResult{}, err
	}
	if claims.Role != string(role) {
		return AuthResult{}, ErrInvalidOrRevokedToken
	}

	added, err := s.revocations.Revoke(ctx, refreshToken, claims.ExpiresAt.Time)
	if err != nil {
		return AuthResult{}, err
	}
	if !added {
		return AuthResult{}, ErrInvalidOrRevokedToken
	}

	account, err := lookup(ctx, role, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, ErrInvalidOrRevokedToken
		}
		return AuthResult{}, err
	}

	tokens, err := s.Issue(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Account: account, Tokens: tokens}, nil
}

// RevokeAccess denylists an access token for the rest of its life and
// returns its claims.
func (s *TokenService) RevokeAccess(ctx context.Context, token string) (*security.Claims, error) {
	claims, err := s.VerifyAccess(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.revocations.Revoke(ctx, token, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) RevokeRefresh(ctx context.Context, token string) error {
	claims, err := s.parseRefresh(token)
	if err != nil {
		return err
	}
	_, err = s.revocations.Revoke(ctx, token, claims.ExpiresAt.Time)
	return err
}

func (s *TokenService) IssueCSRF(ctx context.Context, role models.Role, accountID string) (string, error) {
	return s.csrf.Generate(ctx, role, accountID)
}

func (s *TokenService) ValidateCSRF(ctx context.Context, role models.Role, accountID string, token string) error {
	return s.csrf.Validate(ctx, role, accountID, token)
}

func (s *TokenService) DropCSRF(ctx context.Context, role models.Role, accountID string) error {
	return s.csrf.Delete(ctx, role, accountID)
}

func (s *TokenService) parseRefresh(token string) (*security.Claims, error) {
	claims, err := security.ParseToken(token, s.cfg.JWTRefreshSecret, security.TokenTypeRefresh, s.now(), s.cfg.ExpiryBuffer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrRevokedToken, err)
	}
	if claims.ID == "" {
		return nil, ErrInvalidOrRevokedToken
	}
	return claims, nil
}
