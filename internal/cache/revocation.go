package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"plannr/internal/security"
)

// RevocationRegistry is a denylist of tokens. Every entry expires together
// with the token it blocks, so the registry never outgrows the set of live
// tokens.
type RevocationRegistry struct {
	client *redis.Client
	now    func() time.Time
}

func NewRevocationRegistry(client *redis.Client, now func() time.Time) *RevocationRegistry {
	if now == nil {
		now = time.Now
	}
	return &RevocationRegistry{client: client, now: now}
}

func revocationKey(token string) string {
	return "revoked:" + security.Fingerprint(token)
}

// Revoke adds token until expiresAt. It reports false when the token was
// already revoked. Tokens that are already expired are not stored.
func (r *RevocationRegistry) Revoke(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, revocationKey(token), r.now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return ok, nil
}

func (r *RevocationRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
