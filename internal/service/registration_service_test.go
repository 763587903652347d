package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plannr/internal/challenge"
	"plannr/internal/models"
)

func TestRegister_HoldsProfileUntilVerified(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	code := h.register(t, models.RoleUser, " Ann@Example.com ", "s3cret-pass")

	exists, err := h.accounts[models.RoleUser].ExistsByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	entry, err := h.challenges.Lookup(ctx, registrationKey(models.RoleUser, "ann@example.com"))
	require.NoError(t, err)
	assert.Equal(t, code, entry.Code)

	var profile models.Profile
	require.NoError(t, challenge.DecodePayload(entry, &profile))
	assert.Equal(t, "ann@example.com", profile.Email)
	assert.NotContains(t, string(profile.PasswordHash), "s3cret-pass")

	sent := h.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ann@example.com", sent[0].To)
	assert.Contains(t, sent[0].Body, code)
}

func TestRegister_RejectsExistingAccount(t *testing.T) {
	h := newHarness(t)
	h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	_, err := h.registration.Register(context.Background(), RegisterInput{
		Role: models.RoleUser, Email: "ann@example.com", Password: "other",
	})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestRegister_SameEmailSeparatePerRole(t *testing.T) {
	h := newHarness(t)
	h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")

	_, err := h.registration.Register(context.Background(), RegisterInput{
		Role: models.RoleVendor, Email: "ann@example.com", Password: "pw", BusinessName: "Ann's",
	})
	assert.NoError(t, err)
}

func TestRegister_VendorRequiresBusinessName(t *testing.T) {
	h := newHarness(t)

	_, err := h.registration.Register(context.Background(), RegisterInput{
		Role: models.RoleVendor, Email: "v@example.com", Password: "pw",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegister_MailFailureDropsPending(t *testing.T) {
	h := newHarness(t)
	h.mailer.fail(errMailDown)
	ctx := context.Background()

	_, err := h.registration.Register(ctx, RegisterInput{
		Role: models.RoleUser, Email: "ann@example.com", Password: "pw",
	})
	require.ErrorIs(t, err, errMailDown)

	_, err = h.challenges.Lookup(ctx, registrationKey(models.RoleUser, "ann@example.com"))
	assert.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestVerifyOTP_MaterializesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code := h.register(t, models.RoleUser, "ann@example.com", "pw-123456")

	res, err := h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", code)
	require.NoError(t, err)
	assert.True(t, res.Account.IsVerified)
	assert.Equal(t, models.AccountStatusActive, res.Account.Status)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.NotEmpty(t, res.Tokens.CSRFToken)

	_, err = h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyOTP_VendorStartsInactiveAndUnapproved(t *testing.T) {
	h := newHarness(t)

	res := h.verified(t, models.RoleVendor, "v@example.com", "pw-123456")
	assert.Equal(t, models.AccountStatusInactive, res.Account.Status)
	assert.False(t, res.Account.IsApproved)
	assert.Equal(t, "Test Business", res.Account.BusinessName)
}

func TestVerifyOTP_WrongThenCorrect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code := h.register(t, models.RoleUser, "ann@example.com", "pw-123456")

	_, err := h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", "000000")
	require.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)

	_, err = h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", code)
	assert.NoError(t, err)
}

func TestVerifyOTP_ExpiredCodeRejectedButResendable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code := h.register(t, models.RoleUser, "ann@example.com", "pw-123456")

	h.clock.Advance(10*time.Minute + time.Second)
	_, err := h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", code)
	require.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)

	require.NoError(t, h.registration.ResendOTP(ctx, models.RoleUser, "ann@example.com"))
	_, err = h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", h.lastCode())
	assert.NoError(t, err)
}

func TestVerifyOTP_UnknownEmail(t *testing.T) {
	h := newHarness(t)

	_, err := h.registration.VerifyOTP(context.Background(), models.RoleUser, "nobody@example.com", "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyOTP_AccountAlreadyPersisted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	code := h.register(t, models.RoleUser, "ann@example.com", "pw-123456")

	require.NoError(t, h.accounts[models.RoleUser].Create(ctx, models.Account{
		ID: "existing", Email: "ann@example.com", IsVerified: true,
	}))

	_, err := h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", code)
	require.ErrorIs(t, err, ErrDuplicateIdentity)

	_, err = h.challenges.Lookup(ctx, registrationKey(models.RoleUser, "ann@example.com"))
	assert.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestResendOTP_InvalidatesPreviousCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.register(t, models.RoleUser, "ann@example.com", "pw-123456")

	require.NoError(t, h.registration.ResendOTP(ctx, models.RoleUser, "ann@example.com"))
	second := h.lastCode()
	require.NotEqual(t, first, second)

	_, err := h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", first)
	require.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)

	_, err = h.registration.VerifyOTP(ctx, models.RoleUser, "ann@example.com", second)
	assert.NoError(t, err)
	assert.Len(t, h.mailer.messages(), 3)
}

func TestResendOTP_NoPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.registration.ResendOTP(ctx, models.RoleUser, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	h.verified(t, models.RoleUser, "ann@example.com", "pw-123456")
	err = h.registration.ResendOTP(ctx, models.RoleUser, "ann@example.com")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}
