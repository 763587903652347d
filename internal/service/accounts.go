package service

import (
	"context"
	"fmt"
	"strings"

	"plannr/internal/models"
	"plannr/internal/repository"
)

type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	UpdateStatus(ctx context.Context, id string, status models.AccountStatus) error
	SetApproval(ctx context.Context, id string, approved bool) error
	UpdateAvatar(ctx context.Context, id string, avatarURL string) error
	Delete(ctx context.Context, id string) error
}

type LoginEvents interface {
	Record(ctx context.Context, event models.LoginEvent) error
	ListByAccount(ctx context.Context, role models.Role, accountID string, limit int) ([]models.LoginEvent, error)
}

// Directory routes each actor kind to its own account store.
type Directory map[models.Role]AccountStore

func NewDirectory(db repository.DB) (Directory, error) {
	dir := Directory{}
	for _, role := range models.Roles {
		repo, err := repository.NewAccountRepository(db, role)
		if err != nil {
			return nil, err
		}
		dir[role] = repo
	}
	return dir, nil
}

func (d Directory) For(role models.Role) (AccountStore, error) {
	store, ok := d[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return store, nil
}

func (d Directory) lookup(ctx context.Context, role models.Role, id string) (models.Account, error) {
	store, err := d.For(role)
	if err != nil {
		return models.Account{}, err
	}
	account, err := store.GetByID(ctx, id)
	if err != nil {
		return models.Account{}, translateRepoErr(err)
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuthResult is returned by every flow that ends in a session.
type AuthResult struct {
	Account models.Account
	Tokens  TokenSet
}
