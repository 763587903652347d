package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"plannr/internal/models"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateAccount = errors.New("account already exists")
)

const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var accountTables = map[models.Role]string{
	models.RoleUser:   "users",
	models.RoleVendor: "vendors",
	models.RoleAdmin:  "admins",
}

const accountColumns = `id, email, password_hash, full_name, phone, business_name, category,
	is_verified, is_approved, status, avatar_url, created_at, updated_at`

// AccountRepository reads and writes one actor table. Users, vendors and
// admins share the column layout but never share rows.
type AccountRepository struct {
	db    DB
	role  models.Role
	table string
}

func NewAccountRepository(db DB, role models.Role) (*AccountRepository, error) {
	table, ok := accountTables[role]
	if !ok {
		return nil, fmt.Errorf("no table for role %q", role)
	}
	return &AccountRepository{db: db, role: role, table: table}, nil
}

func (r *AccountRepository) Role() models.Role {
	return r.role
}

func (r *AccountRepository) Create(ctx context.Context, account models.Account) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, email, password_hash, full_name, phone, business_name, category,
			is_verified, is_approved, status, avatar_url, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW()
		)
	`, r.table)

	_, err := r.db.Exec(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.FullName,
		account.Phone,
		account.BusinessName,
		account.Category,
		account.IsVerified,
		account.IsApproved,
		account.Status,
		account.AvatarURL,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("insert %s: %w", r.table, err)
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, accountColumns, r.table)
	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, accountColumns, r.table)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE email = $1)`, r.table)
	var exists bool
	if err := r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists %s: %w", r.table, err)
	}
	return exists, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	query := fmt.Sprintf(`UPDATE %s SET password_hash = $2, updated_at = NOW() WHERE id = $1`, r.table)
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status models.AccountStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = NOW() WHERE id = $1`, r.table)
	return r.execOne(ctx, query, id, status)
}

func (r *AccountRepository) SetApproval(ctx context.Context, id string, approved bool) error {
	query := fmt.Sprintf(`UPDATE %s SET is_approved = $2, updated_at = NOW() WHERE id = $1`, r.table)
	return r.execOne(ctx, query, id, approved)
}

func (r *AccountRepository) UpdateAvatar(ctx context.Context, id string, avatarURL string) error {
	query := fmt.Sprintf(`UPDATE %s SET avatar_url = $2, updated_at = NOW() WHERE id = $1`, r.table)
	return r.execOne(ctx, query, id, avatarURL)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	return r.execOne(ctx, query, id)
}

func (r *AccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.table, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) scanOne(row pgx.Row) (models.Account, error) {
	var account models.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.FullName,
		&account.Phone,
		&account.BusinessName,
		&account.Category,
		&account.IsVerified,
		&account.IsApproved,
		&account.Status,
		&account.AvatarURL,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, fmt.Errorf("scan %s: %w", r.table, err)
	}
	account.Role = r.role
	return account, nil
}
