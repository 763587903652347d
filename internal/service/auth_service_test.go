package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plannr/internal/models"
	"plannr/internal/security"
)

func TestLogin_NotVerifiedRegardlessOfPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	hash, err := security.HashPassword("right-password")
	require.NoError(t, err)
	require.NoError(t, h.accounts[models.RoleUser].Create(ctx, models.Account{
		ID: "u1", Email: "ann@example.com", PasswordHash: hash, IsVerified: false,
	}))

	for _, pw := range []string{"right-password", "wrong-password"} {
		_, err := h.auth.Login(ctx, LoginInput{Role: models.RoleUser, Email: "ann@example.com", Password: pw})
		assert.ErrorIs(t, err, ErrNotVerified, pw)
	}
}

func TestLogin_Failures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	_, err := h.auth.Login(ctx, LoginInput{Role: models.RoleUser, Email: "ann@example.com", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.auth.Login(ctx, LoginInput{Role: models.RoleUser, Email: "bob@example.com", Password: "pw-123456"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.auth.Login(ctx, LoginInput{Role: models.RoleVendor, Email: "ann@example.com", Password: "pw-123456"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogin_VendorBecomesActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verified(t, models.RoleVendor, "v@example.com", "pw-123456")

	res, err := h.auth.Login(ctx, LoginInput{Role: models.RoleVendor, Email: "V@example.com", Password: "pw-123456"})
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusActive, res.Account.Status)

	stored, err := h.accounts[models.RoleVendor].GetByID(ctx, res.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusActive, stored.Status)
	assert.Equal(t, h.clock.Now().Add(time.Hour), res.Tokens.AccessExpiresAt)
}

func TestLogin_RecordsEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acc := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456").Account

	_, err := h.auth.Login(ctx, LoginInput{
		Role: models.RoleUser, Email: "ann@example.com", Password: "pw-123456",
		IPAddress: "10.0.0.1", UserAgent: "test-agent",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		events, _ := h.account.LoginHistory(ctx, models.RoleUser, acc.ID, 10)
		return len(events) == 1 && events[0].IPAddress == "10.0.0.1"
	}, time.Second, 10*time.Millisecond)
}

func TestLogin_SucceedsWhenEventWriteFails(t *testing.T) {
	h := newHarness(t)
	events := &brokenEvents{attempts: make(chan models.LoginEvent, 1)}
	h.auth.events = events
	acc := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456").Account

	res, err := h.auth.Login(context.Background(), LoginInput{
		Role: models.RoleUser, Email: "ann@example.com", Password: "pw-123456",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tokens.AccessToken)

	select {
	case event := <-events.attempts:
		assert.Equal(t, acc.ID, event.AccountID)
	case <-time.After(time.Second):
		t.Fatal("login event was never attempted")
	}
}

func TestRefresh_ConcurrentRedeemsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	const callers = 20
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.auth.Refresh(ctx, models.RoleUser, res.Tokens.RefreshToken)
			if err == nil {
				successes.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestRefresh_RotatesExactlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	second, err := h.auth.Refresh(ctx, models.RoleUser, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)
	assert.Equal(t, first.Account.ID, second.Account.ID)

	_, err = h.auth.Refresh(ctx, models.RoleUser, first.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidOrRevokedToken)

	_, err = h.auth.Refresh(ctx, models.RoleUser, second.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	h := newHarness(t)
	res := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	_, err := h.auth.Refresh(context.Background(), models.RoleUser, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
}

func TestRefresh_WrongRoleLeavesTokenUsable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	_, err := h.auth.Refresh(ctx, models.RoleVendor, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidOrRevokedToken)

	_, err = h.auth.Refresh(ctx, models.RoleUser, res.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_DeletedAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")
	require.NoError(t, h.account.Delete(ctx, models.RoleUser, res.Account.ID))

	_, err := h.auth.Refresh(ctx, models.RoleUser, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
}

func TestVerifyAccess_ExpiryBuffer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	h.clock.Advance(24*time.Hour - 31*time.Second)
	_, err := h.tokens.VerifyAccess(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)

	h.clock.Advance(time.Second)
	_, err = h.tokens.VerifyAccess(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
}

func TestVerifyAccess_RejectsRefreshToken(t *testing.T) {
	h := newHarness(t)
	res := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	_, err := h.tokens.VerifyAccess(context.Background(), res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
}

func TestLogout_RevokesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	require.NoError(t, h.auth.Logout(ctx, LogoutInput{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}))

	_, err := h.tokens.VerifyAccess(ctx, res.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)

	_, err = h.auth.Refresh(ctx, models.RoleUser, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)

	err = h.tokens.ValidateCSRF(ctx, models.RoleUser, res.Account.ID, res.Tokens.CSRFToken)
	assert.Error(t, err)

	err = h.auth.Logout(ctx, LogoutInput{AccessToken: res.Tokens.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidOrRevokedToken)
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verified(t, models.RoleUser, "ann@example.com", "old-password")

	require.NoError(t, h.auth.ForgotPassword(ctx, models.RoleUser, "ann@example.com"))
	code := h.lastCode()

	err := h.auth.ResetPassword(ctx, ResetPasswordInput{
		Role: models.RoleUser, Email: "ann@example.com", Code: "999999", NewPassword: "new-password",
	})
	require.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)

	require.NoError(t, h.auth.ResetPassword(ctx, ResetPasswordInput{
		Role: models.RoleUser, Email: "ann@example.com", Code: code, NewPassword: "new-password",
	}))

	err = h.auth.ResetPassword(ctx, ResetPasswordInput{
		Role: models.RoleUser, Email: "ann@example.com", Code: code, NewPassword: "again",
	})
	require.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)

	_, err = h.auth.Login(ctx, LoginInput{Role: models.RoleUser, Email: "ann@example.com", Password: "old-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = h.auth.Login(ctx, LoginInput{Role: models.RoleUser, Email: "ann@example.com", Password: "new-password"})
	assert.NoError(t, err)
}

func TestForgotPassword_MailFailureDiscardsChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.verified(t, models.RoleUser, "ann@example.com", "old-password")

	h.mailer.fail(errMailDown)
	err := h.auth.ForgotPassword(ctx, models.RoleUser, "ann@example.com")
	require.ErrorIs(t, err, errMailDown)

	err = h.auth.ResetPassword(ctx, ResetPasswordInput{
		Role: models.RoleUser, Email: "ann@example.com", Code: h.lastCode(), NewPassword: "new-password",
	})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)
}

func TestForgotPassword_UnknownAccount(t *testing.T) {
	h := newHarness(t)

	err := h.auth.ForgotPassword(context.Background(), models.RoleAdmin, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScenario_RegisterResendVerifyLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	old := h.register(t, models.RoleUser, "a@x.com", "p1-password")
	require.NoError(t, h.registration.ResendOTP(ctx, models.RoleUser, "a@x.com"))

	_, err := h.registration.VerifyOTP(ctx, models.RoleUser, "a@x.com", old)
	require.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)

	_, err = h.registration.VerifyOTP(ctx, models.RoleUser, "a@x.com", h.lastCode())
	require.NoError(t, err)

	res, err := h.auth.Login(ctx, LoginInput{Role: models.RoleUser, Email: "a@x.com", Password: "p1-password"})
	require.NoError(t, err)
	claims, err := h.tokens.VerifyAccess(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, res.Account.ID, claims.AccountID)
}
