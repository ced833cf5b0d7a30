package repository

import (
	"context"

	"github.com/reframedb/reframe/api/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// BlacklistRepository records revoked tokens.
type BlacklistRepository interface {
	BlacklistToken(ctx context.Context, token *domain.BlacklistedToken) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}
