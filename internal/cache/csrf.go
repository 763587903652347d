package cache

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"plannr/internal/models"
	"plannr/internal/security"
)

var (
	ErrCSRFMissing  = errors.New("csrf token missing")
	ErrCSRFMismatch = errors.New("csrf token mismatch")
)

type csrfEntry struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issuedAt"`
}

// CSRFStore holds at most one live anti-forgery token per identity. Each
// Generate overwrites the previous token.
type CSRFStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewCSRFStore(client *redis.Client, ttl time.Duration, now func() time.Time) *CSRFStore {
	if now == nil {
		now = time.Now
	}
	return &CSRFStore{client: client, ttl: ttl, now: now}
}

func csrfKey(role models.Role, accountID string) string {
	return fmt.Sprintf("csrf:%s:%s", role, accountID)
}

func (s *CSRFStore) Generate(ctx context.Context, role models.Role, accountID string) (string, error) {
	token, err := security.RandomToken(32)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(csrfEntry{Token: token, IssuedAt: s.now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encode csrf entry: %w", err)
	}
	if err := s.client.Set(ctx, csrfKey(role, accountID), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store csrf token: %w", err)
	}
	return token, nil
}

func (s *CSRFStore) Validate(ctx context.Context, role models.Role, accountID string, token string) error {
	if token == "" {
		return ErrCSRFMissing
	}

	data, err := s.client.Get(ctx, csrfKey(role, accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCSRFMismatch
		}
		return fmt.Errorf("load csrf token: %w", err)
	}

	var entry csrfEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("decode csrf entry: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(entry.Token), []byte(token)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}

func (s *CSRFStore) Delete(ctx context.Context, role models.Role, accountID string) error {
	if err := s.client.Del(ctx, csrfKey(role, accountID)).Err(); err != nil {
		return fmt.Errorf("delete csrf token: %w", err)
	}
	return nil
}
