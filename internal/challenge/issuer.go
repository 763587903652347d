package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Challenge is what gets delivered to the identity owner.
type Challenge struct {
	Code      string
	ExpiresAt time.Time
}

type Issuer struct {
	store     *Store
	codeTTL   time.Duration
	retention map[Purpose]time.Duration
	now       func() time.Time
	generate  func() (string, error)
}

type IssuerOption func(*Issuer)

// WithRetention sets how long entries of purpose outlive their code. A
// pending registration stays resendable after its code expired.
func WithRetention(purpose Purpose, ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.retention[purpose] = ttl
	}
}

func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

func WithGenerator(generate func() (string, error)) IssuerOption {
	return func(i *Issuer) {
		i.generate = generate
	}
}

func NewIssuer(store *Store, codeTTL time.Duration, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		store:     store,
		codeTTL:   codeTTL,
		retention: map[Purpose]time.Duration{},
		now:       time.Now,
		generate:  GenerateCode,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue stores a fresh code together with payload, replacing any previous
// entry for key. payload may be nil.
func (i *Issuer) Issue(ctx context.Context, key Key, payload any) (Challenge, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Challenge{}, fmt.Errorf("encode payload: %w", err)
		}
		raw = data
	}
	return i.put(ctx, key, raw)
}

// Reissue replaces the code of an existing entry and keeps its payload. The
// previous code stops matching immediately.
func (i *Issuer) Reissue(ctx context.Context, key Key) (Challenge, error) {
	entry, err := i.store.Get(ctx, key)
	if err != nil {
		return Challenge{}, err
	}
	return i.put(ctx, key, entry.Payload)
}

// Verify checks code against the stored entry and returns it without
// consuming it.
func (i *Issuer) Verify(ctx context.Context, key Key, code string) (Entry, error) {
	entry, err := i.store.Get(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	if err := entry.Check(code, i.now()); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Consume verifies code and deletes the entry. Only the caller that deletes
// the entry succeeds.
func (i *Issuer) Consume(ctx context.Context, key Key, code string) (Entry, error) {
	entry, err := i.Verify(ctx, key, code)
	if err != nil {
		return Entry{}, err
	}
	deleted, err := i.store.Delete(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	if !deleted {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (i *Issuer) Discard(ctx context.Context, key Key) error {
	_, err := i.store.Delete(ctx, key)
	return err
}

func (i *Issuer) Lookup(ctx context.Context, key Key) (Entry, error) {
	return i.store.Get(ctx, key)
}

func (i *Issuer) put(ctx context.Context, key Key, payload json.RawMessage) (Challenge, error) {
	code, err := i.generate()
	if err != nil {
		return Challenge{}, err
	}
	if len(code) != CodeDigits {
		return Challenge{}, errors.New("generated code has wrong length")
	}

	expiresAt := i.now().Add(i.codeTTL)
	ttl := i.codeTTL
	if keep, ok := i.retention[key.Purpose]; ok && keep > ttl {
		ttl = keep
	}

	entry := Entry{Code: code, ExpiresAt: expiresAt, Payload: payload}
	if err := i.store.Put(ctx, key, entry, ttl); err != nil {
		return Challenge{}, err
	}
	return Challenge{Code: code, ExpiresAt: expiresAt}, nil
}

// DecodePayload unmarshals the payload stored alongside a challenge.
func DecodePayload(entry Entry, out any) error {
	if len(entry.Payload) == 0 {
		return errors.New("challenge has no payload")
	}
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
