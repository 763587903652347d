// Package challenge implements time-boxed one-time numeric codes bound to an
// identity and a purpose. Registration and password reset share the same
// store and the same issue/verify path.
package challenge

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"plannr/internal/models"
)

type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
)

const CodeDigits = 6

var (
	ErrNotFound = errors.New("challenge not found")
	// ErrMismatch covers both a wrong code and an expired one.
	ErrMismatch = errors.New("challenge code invalid or expired")
)

// Key identifies one challenge slot.
type Key struct {
	Purpose Purpose
	Role    models.Role
	Email   string
}

func (k Key) String() string {
	return fmt.Sprintf("challenge:%s:%s:%s", k.Purpose, k.Role, k.Email)
}

// Entry is the stored state: the live code plus an optional payload that
// survives reissues.
type Entry struct {
	Code      string          `json:"code"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Check compares a submitted code with the stored one. Wrong code and
// expired code are reported identically.
func (e Entry) Check(submitted string, now time.Time) error {
	submitted = strings.TrimSpace(submitted)
	match := subtle.ConstantTimeCompare([]byte(submitted), []byte(e.Code)) == 1
	if !match || !now.Before(e.ExpiresAt) {
		return ErrMismatch
	}
	return nil
}

func GenerateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}
