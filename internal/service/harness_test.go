package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"plannr/internal/cache"
	"plannr/internal/challenge"
	"plannr/internal/config"
	"plannr/internal/mail"
	"plannr/internal/models"
	"plannr/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *fakeMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type fakeAvatars struct {
	keys []string
}

func (f *fakeAvatars) PutAvatar(_ context.Context, objectKey string, body io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	f.keys = append(f.keys, objectKey)
	return "https://cdn.test/avatars/" + objectKey, nil
}

// brokenEvents fails every write and reports each attempt on attempts.
type brokenEvents struct {
	attempts chan models.LoginEvent
}

func (b *brokenEvents) Record(_ context.Context, event models.LoginEvent) error {
	b.attempts <- event
	return errors.New("login_events unavailable")
}

func (b *brokenEvents) ListByAccount(context.Context, models.Role, string, int) ([]models.LoginEvent, error) {
	return nil, errors.New("login_events unavailable")
}

type harness struct {
	clock        *testClock
	redis        *miniredis.Miniredis
	accounts     Directory
	events       *repository.MemoryLoginEventRepository
	mailer       *fakeMailer
	avatars      *fakeAvatars
	tokens       *TokenService
	challenges   *challenge.Issuer
	registration *RegistrationService
	auth         *AuthService
	account      *AccountService

	codeMu sync.Mutex
	codes  []string
}

var testSecurity = config.SecurityConfig{
	JWTAccessSecret:  "access-secret-for-tests",
	JWTRefreshSecret: "refresh-secret-for-tests",
	AccessTTL: config.RoleDurations{
		User:   24 * time.Hour,
		Vendor: time.Hour,
		Admin:  2 * time.Hour,
	},
	RefreshTTL:   168 * time.Hour,
	ExpiryBuffer: 30 * time.Second,
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		clock:    &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		redis:    mr,
		accounts: Directory{},
		events:   repository.NewMemoryLoginEventRepository(),
		mailer:   &fakeMailer{},
		avatars:  &fakeAvatars{},
	}
	for _, role := range models.Roles {
		h.accounts[role] = repository.NewMemoryAccountRepository(role)
	}

	h.challenges = challenge.NewIssuer(
		challenge.NewStore(client),
		10*time.Minute,
		challenge.WithClock(h.clock.Now),
		challenge.WithRetention(challenge.PurposeRegistration, 24*time.Hour),
		challenge.WithGenerator(h.nextCode),
	)
	h.tokens = NewTokenService(
		testSecurity,
		cache.NewRevocationRegistry(client, h.clock.Now),
		cache.NewCSRFStore(client, 24*time.Hour, h.clock.Now),
		h.clock.Now,
	)

	log := zerolog.Nop()
	h.registration = NewRegistrationService(h.accounts, h.challenges, h.tokens, h.mailer, log)
	h.auth = NewAuthService(h.accounts, h.tokens, h.challenges, h.mailer, h.events, log)
	h.auth.now = h.clock.Now
	h.account = NewAccountService(h.accounts, h.events, h.avatars, h.mailer, 1<<20, log)
	h.account.now = h.clock.Now
	return h
}

func (h *harness) nextCode() (string, error) {
	h.codeMu.Lock()
	defer h.codeMu.Unlock()
	code := fmt.Sprintf("%06d", 100000+len(h.codes)+1)
	h.codes = append(h.codes, code)
	return code, nil
}

func (h *harness) lastCode() string {
	h.codeMu.Lock()
	defer h.codeMu.Unlock()
	if len(h.codes) == 0 {
		return ""
	}
	return h.codes[len(h.codes)-1]
}

// register runs the registration flow and returns the emailed code.
func (h *harness) register(t *testing.T, role models.Role, email, password string) string {
	t.Helper()
	_, err := h.registration.Register(context.Background(), RegisterInput{
		Role:         role,
		Email:        email,
		Password:     password,
		FullName:     "Test Person",
		BusinessName: "Test Business",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return h.lastCode()
}

func (h *harness) verified(t *testing.T, role models.Role, email, password string) AuthResult {
	t.Helper()
	code := h.register(t, role, email, password)
	res, err := h.registration.VerifyOTP(context.Background(), role, email, code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return res
}

var errMailDown = errors.New("smtp unavailable")
