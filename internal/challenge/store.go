package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"plannr/internal/models"
)

// Store keeps challenge entries in redis so every API instance sees the same
// pending registrations. Each key expires on its own.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Put(ctx context.Context, key Key, entry Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	if err := s.client.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key Key) (Entry, error) {
	data, err := s.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("load challenge: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode challenge: %w", err)
	}
	return entry, nil
}

// Delete reports whether an entry was removed.
func (s *Store) Delete(ctx context.Context, key Key) (bool, error) {
	n, err := s.client.Del(ctx, key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("delete challenge: %w", err)
	}
	return n > 0, nil
}

// Scan walks every key stored for purpose and calls fn with the decoded key.
func (s *Store) Scan(ctx context.Context, purpose Purpose, fn func(Key) error) error {
	pattern := fmt.Sprintf("challenge:%s:*", purpose)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key, ok := parseKey(iter.Val())
		if !ok {
			continue
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return iter.Err()
}

func parseKey(raw string) (Key, bool) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) != 4 || parts[0] != "challenge" {
		return Key{}, false
	}
	role, err := models.ParseRole(parts[2])
	if err != nil {
		return Key{}, false
	}
	return Key{Purpose: Purpose(parts[1]), Role: role, Email: parts[3]}, true
}
