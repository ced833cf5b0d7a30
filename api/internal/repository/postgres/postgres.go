package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/reframedb/reframe/api/internal/domain"
	"github.com/reframedb/reframe/api/internal/repository"
)

const uniqueViolation = "23505"

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	db DBTX
}

// New constructs a Repository.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// Open connects a pool and exposes it through database/sql. The returned
// closer releases both the *sql.DB and the pool behind it.
func Open(ctx context.Context, dsn string) (*sql.DB, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	closer := func() {
		_ = db.Close()
		pool.Close()
	}
	if err := db.PingContext(ctx); err != nil {
		closer()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return db, closer, nil
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository      = (*Repository)(nil)
	_ repository.BlacklistRepository = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, admin, registered_on)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.Admin, user.RegisteredOn)
	return mapWriteError(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, admin, registered_on FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, admin, registered_on FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// BlacklistToken stores a revoked token.
func (r *Repository) BlacklistToken(ctx context.Context, token *domain.BlacklistedToken) error {
	const query = `INSERT INTO blacklist_tokens (token, blacklisted_on) VALUES ($1, $2) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, token.Token, token.BlacklistedOn).Scan(&token.ID)
	return mapWriteError(err)
}

// IsTokenBlacklisted reports whether the exact token string was revoked.
func (r *Repository) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM blacklist_tokens WHERE token = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Admin, &u.RegisteredOn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
	}
	return err
}
