package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrWrongTokenType = errors.New("wrong token type")
	ErrTokenExpiring  = errors.New("token within expiry buffer")
)

// Claims is the payload of both access and refresh tokens. Every token
// carries a unique RegisteredClaims.ID (jti); for refresh tokens it is the
// rotation id.
type Claims struct {
	AccountID string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Type      TokenType `json:"type"`
	jwt.RegisteredClaims
}

type TokenSpec struct {
	AccountID string
	Email     string
	Role      string
	Type      TokenType
	ID        string
	IssuedAt  time.Time
	TTL       time.Duration
}

func SignToken(secret string, spec TokenSpec) (string, error) {
	claims := Claims{
		AccountID: spec.AccountID,
		Email:     spec.Email,
		Role:      spec.Role,
		Type:      spec.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   spec.AccountID,
			IssuedAt:  jwt.NewNumericDate(spec.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(spec.IssuedAt.Add(spec.TTL)),
			ID:        spec.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature, type and expiry. A token is treated as
// expired once now reaches exp minus buffer.
func ParseToken(tokenStr string, secret string, want TokenType, now time.Time, buffer time.Duration) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	if !now.Before(claims.ExpiresAt.Time.Add(-buffer)) {
		return nil, ErrTokenExpiring
	}
	return claims, nil
}
