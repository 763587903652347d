package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"plannr/internal/models"
)

// MemoryAccountRepository mirrors AccountRepository without a database. It
// backs the service and handler tests.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	role     models.Role
	accounts map[string]models.Account
}

func NewMemoryAccountRepository(role models.Role) *MemoryAccountRepository {
	return &MemoryAccountRepository{role: role, accounts: map[string]models.Account{}}
}

func (r *MemoryAccountRepository) Role() models.Role {
	return r.role
}

func (r *MemoryAccountRepository) Create(_ context.Context, account models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return ErrDuplicateAccount
		}
	}
	now := time.Now().UTC()
	account.Role = r.role
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = account
	return nil
}

func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return models.Account{}, ErrAccountNotFound
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *MemoryAccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if err == ErrAccountNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *MemoryAccountRepository) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	return r.update(id, func(a *models.Account) { a.PasswordHash = passwordHash })
}

func (r *MemoryAccountRepository) UpdateStatus(_ context.Context, id string, status models.AccountStatus) error {
	return r.update(id, func(a *models.Account) { a.Status = status })
}

func (r *MemoryAccountRepository) SetApproval(_ context.Context, id string, approved bool) error {
	return r.update(id, func(a *models.Account) { a.IsApproved = approved })
}

func (r *MemoryAccountRepository) UpdateAvatar(_ context.Context, id string, avatarURL string) error {
	return r.update(id, func(a *models.Account) { a.AvatarURL = &avatarURL })
}

func (r *MemoryAccountRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *MemoryAccountRepository) update(id string, fn func(*models.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	fn(&account)
	account.UpdatedAt = time.Now().UTC()
	r.accounts[id] = account
	return nil
}

type MemoryLoginEventRepository struct {
	mu     sync.Mutex
	events []models.LoginEvent
}

func NewMemoryLoginEventRepository() *MemoryLoginEventRepository {
	return &MemoryLoginEventRepository{}
}

func (r *MemoryLoginEventRepository) Record(_ context.Context, event models.LoginEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryLoginEventRepository) ListByAccount(_ context.Context, role models.Role, accountID string, limit int) ([]models.LoginEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.LoginEvent
	for _, event := range r.events {
		if event.Role == role && event.AccountID == accountID {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryLoginEventRepository) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var pruned int64
	for _, event := range r.events {
		if event.CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, event)
	}
	r.events = kept
	return pruned, nil
}
