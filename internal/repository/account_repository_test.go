package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plannr/internal/models"
)

func newMockRepo(t *testing.T, role models.Role) (*AccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo, err := NewAccountRepository(mock, role)
	require.NoError(t, err)
	return repo, mock
}

func accountRow(now time.Time) *pgxmock.Rows {
	avatar := "https://cdn.example/a.png"
	return pgxmock.NewRows([]string{
		"id", "email", "password_hash", "full_name", "phone", "business_name", "category",
		"is_verified", "is_approved", "status", "avatar_url", "created_at", "updated_at",
	}).AddRow(
		"acc-1", "v@x.com", []byte("hash"), "Val", "555", "Val Catering", "catering",
		true, false, models.AccountStatusActive, &avatar, now, now,
	)
}

// insertArgs matches the eleven bound columns of Create, pinning id and email.
func insertArgs(id, email string) []any {
	args := []any{id, email}
	for len(args) < 11 {
		args = append(args, pgxmock.AnyArg())
	}
	return args
}

func TestNewAccountRepository_UnknownRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewAccountRepository(mock, models.Role("guest"))
	assert.Error(t, err)
}

func TestFindByEmail_UsesRoleTable(t *testing.T) {
	repo, mock := newMockRepo(t, models.RoleVendor)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM vendors WHERE email = \$1`).
		WithArgs("v@x.com").
		WillReturnRows(accountRow(now))

	got, err := repo.FindByEmail(context.Background(), "v@x.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)
	assert.Equal(t, models.RoleVendor, got.Role)
	assert.Equal(t, "Val Catering", got.BusinessName)
	assert.True(t, got.IsVerified)
	require.NotNil(t, got.AvatarURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t, models.RoleUser)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t, models.RoleUser)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(insertArgs("a", "a@x.com")...).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := repo.Create(context.Background(), models.Account{ID: "a", Email: "a@x.com", Status: models.AccountStatusInactive})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newMockRepo(t, models.RoleVendor)

	mock.ExpectExec(`INSERT INTO vendors`).
		WithArgs(insertArgs("v", "v@x.com")...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), models.Account{ID: "v", Email: "v@x.com", Status: models.AccountStatusInactive})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_WrapsOtherErrors(t *testing.T) {
	repo, mock := newMockRepo(t, models.RoleAdmin)

	mock.ExpectExec(`INSERT INTO admins`).
		WithArgs(insertArgs("a", "a@x.com")...).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), models.Account{ID: "a", Email: "a@x.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateAccount)
	assert.Contains(t, err.Error(), "db down")
}

func TestSetApproval_NoRows(t *testing.T) {
	repo, mock := newMockRepo(t, models.RoleVendor)

	mock.ExpectExec(`UPDATE vendors SET is_approved = \$2`).
		WithArgs("missing", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetApproval(context.Background(), "missing", true)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUpdateStatus_Success(t *testing.T) {
	repo, mock := newMockRepo(t, models.RoleAdmin)

	mock.ExpectExec(`UPDATE admins SET status = \$2`).
		WithArgs("adm-1", models.AccountStatusActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "adm-1", models.AccountStatusActive))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByEmail(t *testing.T) {
	repo, mock := newMockRepo(t, models.RoleUser)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE email = \$1\)`).
		WithArgs("a@x.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPruneBefore_ReturnsAffected(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM login_events WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := NewLoginEventRepository(mock).PruneBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
