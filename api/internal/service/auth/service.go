package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/reframedb/reframe/api/internal/domain"
	"github.com/reframedb/reframe/api/internal/repository"
	"github.com/reframedb/reframe/pkg/config"
	"github.com/reframedb/reframe/pkg/crypto"
	jwtpkg "github.com/reframedb/reframe/pkg/jwt"
)

var (
	// ErrUserExists indicates the email is already registered.
	ErrUserExists = errors.New("auth: user already exists")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrTokenBlacklisted indicates the token was revoked by logout.
	ErrTokenBlacklisted = errors.New("auth: token blacklisted")
	// ErrTokenRequired indicates no token was supplied.
	ErrTokenRequired = errors.New("auth: token required")
	// ErrCredentialsRequired indicates a blank email or password on register.
	ErrCredentialsRequired = errors.New("auth: email and password required")
)

// Service handles authentication workflows.
type Service struct {
	users     repository.UserRepository
	blacklist repository.BlacklistRepository
	captcha   CaptchaVerifier
	logger    *slog.Logger
	cfg       config.APIConfig
	now       func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, blacklist repository.BlacklistRepository, captcha CaptchaVerifier, logger *slog.Logger, cfg config.APIConfig) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return Service{users: users, blacklist: blacklist, captcha: captcha, logger: logger, cfg: cfg, now: time.Now}
}

// Register verifies the CAPTCHA proof, creates the user and issues a token.
func (s Service) Register(ctx context.Context, email, password, captchaToken string) (*domain.User, string, error) {
	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, captchaToken); err != nil {
			return nil, "", err
		}
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", ErrCredentialsRequired
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, "", ErrUserExists
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	hash, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		RegisteredOn: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", ErrUserExists
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}
	token, err := s.issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login authenticates a user and returns a token.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, token, nil
}

// Authorize verifies the token, rejects revoked ones and loads the user.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrTokenRequired
	}
	userID, err := jwtpkg.Parse(trimmed, s.cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	revoked, err := s.blacklist.IsTokenBlacklisted(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return nil, ErrTokenBlacklisted
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, jwtpkg.ErrTokenInvalid
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// Logout revokes the token. A token that is already revoked reports ErrConflict.
func (s Service) Logout(ctx context.Context, token string) error {
	entry := &domain.BlacklistedToken{Token: strings.TrimSpace(token), BlacklistedOn: s.now().UTC()}
	if err := s.blacklist.BlacklistToken(ctx, entry); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (s Service) issue(userID string) (string, error) {
	token, err := jwtpkg.GenerateToken(userID, s.cfg.SecretKey, s.cfg.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}
