package service

import (
	"errors"

	"plannr/internal/repository"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateIdentity = errors.New("an account with this email already exists")
	// ErrInvalidOrExpiredChallenge deliberately does not say which of the two
	// conditions failed.
	ErrInvalidOrExpiredChallenge = errors.New("invalid or expired verification code")
	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrNotVerified               = errors.New("account not verified")
	ErrInvalidOrRevokedToken     = errors.New("invalid or revoked token")
	ErrAlreadyVerified           = errors.New("account already verified")
	ErrVendorNotApproved         = errors.New("vendor not approved")
	ErrUnknownRole               = errors.New("unknown role")
	ErrInvalidInput              = errors.New("invalid input")
)

func translateRepoErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicateAccount):
		return ErrDuplicateIdentity
	}
	return err
}
