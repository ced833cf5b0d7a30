package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/reframedb/reframe/api/internal/domain"
	"github.com/reframedb/reframe/api/internal/repository"
	"github.com/reframedb/reframe/pkg/config"
	jwtpkg "github.com/reframedb/reframe/pkg/jwt"
)

type memoryUsers struct {
	mu        sync.Mutex
	byID      map[string]*domain.User
	createErr error
	lookupErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*domain.User{}}
}

func (m *memoryUsers) CreateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrConflict
		}
	}
	copied := *user
	m.byID[user.ID] = &copied
	return nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, u := range m.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

type memoryBlacklist struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func (m *memoryBlacklist) BlacklistToken(_ context.Context, token *domain.BlacklistedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]bool{}
	}
	if m.tokens[token.Token] {
		return repository.ErrConflict
	}
	m.tokens[token.Token] = true
	return nil
}

func (m *memoryBlacklist) IsTokenBlacklisted(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[token], nil
}

type captchaFunc func(ctx context.Context, response string) error

func (f captchaFunc) Verify(ctx context.Context, response string) error { return f(ctx, response) }

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(users *memoryUsers, captcha CaptchaVerifier) Service {
	cfg := config.APIConfig{SecretKey: "test-secret", TokenTTL: 24 * time.Hour, BcryptCost: 4}
	return New(users, &memoryBlacklist{}, captcha, newLogger(), cfg)
}

func TestRegisterThenLoginYieldSameUser(t *testing.T) {
	users := newMemoryUsers()
	svc := newService(users, nil)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "a@x.com", "p1", "captcha")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id, err := jwtpkg.Parse(token, "test-secret"); err != nil || id != user.ID {
		t.Fatalf("register token: id=%q err=%v", id, err)
	}

	_, loginToken, err := svc.Login(ctx, "a@x.com", "p1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if id, err := jwtpkg.Parse(loginToken, "test-secret"); err != nil || id != user.ID {
		t.Fatalf("login token: id=%q err=%v", id, err)
	}
	if string(users.byID[user.ID].PasswordHash) == "p1" {
		t.Fatalf("expected hashed password")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newService(newMemoryUsers(), nil)
	ctx := context.Background()
	if _, _, err := svc.Register(ctx, "a@x.com", "p1", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, _, err := svc.Register(ctx, "a@x.com", "p2", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterConflictOnInsertMapsToExists(t *testing.T) {
	users := newMemoryUsers()
	users.createErr = repository.ErrConflict
	svc := newService(users, nil)
	if _, _, err := svc.Register(context.Background(), "a@x.com", "p1", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterCaptchaRejected(t *testing.T) {
	users := newMemoryUsers()
	svc := newService(users, captchaFunc(func(_ context.Context, response string) error {
		if response != "bad" {
			t.Fatalf("unexpected captcha response %q", response)
		}
		return ErrCaptchaRejected
	}))
	if _, _, err := svc.Register(context.Background(), "a@x.com", "p1", "bad"); !errors.Is(err, ErrCaptchaRejected) {
		t.Fatalf("expected captcha rejection, got %v", err)
	}
	if len(users.byID) != 0 {
		t.Fatalf("expected no user created")
	}
}

func TestRegisterPersistenceFailure(t *testing.T) {
	users := newMemoryUsers()
	boom := errors.New("db down")
	users.createErr = boom
	svc := newService(users, nil)
	_, _, err := svc.Register(context.Background(), "a@x.com", "p1", "")
	if !errors.Is(err, boom) || errors.Is(err, ErrUserExists) {
		t.Fatalf("expected wrapped persistence error, got %v", err)
	}
}

func TestRegisterRejectsBlankCredentials(t *testing.T) {
	users := newMemoryUsers()
	svc := newService(users, nil)
	ctx := context.Background()
	cases := []struct{ email, password string }{
		{"", ""},
		{"   ", "p1"},
		{"a@x.com", ""},
	}
	for _, tc := range cases {
		if _, _, err := svc.Register(ctx, tc.email, tc.password, ""); !errors.Is(err, ErrCredentialsRequired) {
			t.Fatalf("register(%q, %q): expected ErrCredentialsRequired, got %v", tc.email, tc.password, err)
		}
	}
	if len(users.byID) != 0 {
		t.Fatalf("expected no user created, got %d", len(users.byID))
	}
	if _, _, err := svc.Login(ctx, "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for blank login, got %v", err)
	}
}

func TestLoginRejectsUnknownEmailAndWrongPassword(t *testing.T) {
	svc := newService(newMemoryUsers(), nil)
	ctx := context.Background()
	if _, _, err := svc.Login(ctx, "nobody@x.com", "p1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
	if _, _, err := svc.Register(ctx, "a@x.com", "p1", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "a@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
}

func TestAuthorizeRejectsBlacklistedToken(t *testing.T) {
	svc := newService(newMemoryUsers(), nil)
	ctx := context.Background()
	user, token, err := svc.Register(ctx, "a@x.com", "p1", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.Authorize(ctx, token)
	if err != nil || got.ID != user.ID {
		t.Fatalf("authorize before logout: %v %v", got, err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authorize(ctx, token); !errors.Is(err, ErrTokenBlacklisted) {
		t.Fatalf("expected blacklisted, got %v", err)
	}
	if err := svc.Logout(ctx, token); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict on second logout, got %v", err)
	}
}

func TestAuthorizeErrors(t *testing.T) {
	svc := newService(newMemoryUsers(), nil)
	ctx := context.Background()

	if _, err := svc.Authorize(ctx, "  "); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected token required, got %v", err)
	}
	if _, err := svc.Authorize(ctx, "garbage"); !errors.Is(err, jwtpkg.ErrTokenInvalid) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	orphan, err := jwtpkg.GenerateToken("ghost", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Authorize(ctx, orphan); !errors.Is(err, jwtpkg.ErrTokenInvalid) {
		t.Fatalf("expected invalid token for unknown user, got %v", err)
	}
}
