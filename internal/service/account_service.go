package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"plannr/internal/ids"
	"plannr/internal/mail"
	"plannr/internal/media/sniffer"
	"plannr/internal/models"
	"plannr/internal/security"
	"plannr/internal/storage"
)

// AvatarStore is satisfied by storage.ObjectStore.
type AvatarStore interface {
	PutAvatar(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) (string, error)
}

var ErrAvatarTooLarge = errors.New("avatar exceeds size limit")

// AccountService covers everything done to an existing account outside the
// session flows: profile reads, admin management, vendor approval and
// avatars.
type AccountService struct {
	accounts      Directory
	events        LoginEvents
	avatars       AvatarStore
	mailer        mail.Mailer
	maxAvatarSize int64
	log           zerolog.Logger
	now           func() time.Time
}

func NewAccountService(
	accounts Directory,
	events LoginEvents,
	avatars AvatarStore,
	mailer mail.Mailer,
	maxAvatarSize int64,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		accounts:      accounts,
		events:        events,
		avatars:       avatars,
		mailer:        mailer,
		maxAvatarSize: maxAvatarSize,
		log:           log,
		now:           time.Now,
	}
}

func (s *AccountService) Get(ctx context.Context, role models.Role, id string) (models.Account, error) {
	return s.accounts.lookup(ctx, role, id)
}

type CreateAccountInput struct {
	Role         models.Role
	Email        string
	Password     string
	FullName     string
	Phone        string
	BusinessName string
	Category     string
}

// CreateAccount is the admin path. The account is created verified, approved
// and active without a challenge.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (models.Account, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return models.Account{}, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}
	store, err := s.accounts.For(input.Role)
	if err != nil {
		return models.Account{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.Account{}, err
	}

	account := models.Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     input.FullName,
		Phone:        input.Phone,
		BusinessName: input.BusinessName,
		Category:     input.Category,
		Role:         input.Role,
		IsVerified:   true,
		IsApproved:   true,
		Status:       models.AccountStatusActive,
	}
	if err := store.Create(ctx, account); err != nil {
		return models.Account{}, translateRepoErr(err)
	}

	s.log.Info().Str("account_id", account.ID).Str("role", string(input.Role)).Msg("account created by admin")
	return account, nil
}

// SeedAdmin makes sure an admin with email exists. It is a no-op when one
// already does.
func (s *AccountService) SeedAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	store, err := s.accounts.For(models.RoleAdmin)
	if err != nil {
		return false, err
	}
	exists, err := store.ExistsByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if fullName == "" {
		fullName = "Administrator"
	}
	_, err = s.CreateAccount(ctx, CreateAccountInput{
		Role:     models.RoleAdmin,
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if errors.Is(err, ErrDuplicateIdentity) {
		return false, nil
	}
	return err == nil, err
}

func (s *AccountService) SetVendorApproval(ctx context.Context, vendorID string, approved bool) (models.Account, error) {
	store, err := s.accounts.For(models.RoleVendor)
	if err != nil {
		return models.Account{}, err
	}
	if err := store.SetApproval(ctx, vendorID, approved); err != nil {
		return models.Account{}, translateRepoErr(err)
	}
	vendor, err := store.GetByID(ctx, vendorID)
	if err != nil {
		return models.Account{}, translateRepoErr(err)
	}

	if err := s.mailer.Send(ctx, mail.ApprovalChanged(vendor, approved)); err != nil {
		s.log.Warn().Err(err).Str("vendor_id", vendorID).Msg("approval email failed")
	}
	return vendor, nil
}

// RequireApprovedVendor fails with ErrVendorNotApproved for a vendor the
// admins have not approved yet.
func (s *AccountService) RequireApprovedVendor(ctx context.Context, vendorID string) (models.Account, error) {
	vendor, err := s.accounts.lookup(ctx, models.RoleVendor, vendorID)
	if err != nil {
		return models.Account{}, err
	}
	if !vendor.IsApproved {
		return models.Account{}, ErrVendorNotApproved
	}
	return vendor, nil
}

func (s *AccountService) Delete(ctx context.Context, role models.Role, id string) error {
	store, err := s.accounts.For(role)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return translateRepoErr(err)
	}
	s.log.Info().Str("account_id", id).Str("role", string(role)).Msg("account deleted")
	return nil
}

func (s *AccountService) LoginHistory(ctx context.Context, role models.Role, id string, limit int) ([]models.LoginEvent, error) {
	if s.events == nil {
		return nil, nil
	}
	return s.events.ListByAccount(ctx, role, id, limit)
}

type AvatarInput struct {
	Role         models.Role
	AccountID    string
	Body         io.Reader
	DeclaredMIME string
}

// UpdateAvatar sniffs the upload, stores it and records the public URL.
func (s *AccountService) UpdateAvatar(ctx context.Context, input AvatarInput) (models.Account, error) {
	if s.avatars == nil {
		return models.Account{}, errors.New("avatar storage not configured")
	}
	store, err := s.accounts.For(input.Role)
	if err != nil {
		return models.Account{}, err
	}

	limit := s.maxAvatarSize
	data, err := io.ReadAll(io.LimitReader(input.Body, limit+1))
	if err != nil {
		return models.Account{}, fmt.Errorf("read avatar: %w", err)
	}
	if int64(len(data)) > limit {
		return models.Account{}, ErrAvatarTooLarge
	}

	detected, err := sniffer.DetectHead(data)
	if err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.DeclaredMIME != "" && input.DeclaredMIME != "application/octet-stream" && input.DeclaredMIME != detected.MIME {
		return models.Account{}, fmt.Errorf("%w: content type mismatch: declared %s, actual %s", ErrInvalidInput, input.DeclaredMIME, detected.MIME)
	}

	key := storage.AvatarKey(string(input.Role), input.AccountID, ids.New(), string(detected.Type), s.now())
	url, err := s.avatars.PutAvatar(ctx, key, bytes.NewReader(data), int64(len(data)), detected.MIME)
	if err != nil {
		return models.Account{}, err
	}

	if err := store.UpdateAvatar(ctx, input.AccountID, url); err != nil {
		return models.Account{}, translateRepoErr(err)
	}
	return s.accounts.lookup(ctx, input.Role, input.AccountID)
}
