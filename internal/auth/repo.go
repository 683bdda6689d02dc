package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huiui/hello-antd-role/internal/platform/db"
	"github.com/huiui/hello-antd-role/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, in NewUser) (*User, error)
}

// ConstraintUsername names the unique index on users.username.
const ConstraintUsername = "users_username_key"

// ErrUsernameTaken is the conflict reported for an existing username.
var ErrUsernameTaken = &shared.ConflictError{Field: "username", Message: "The username is taken"}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, is_admin, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByUsername fetches a user by normalized username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// CreateUser inserts a user. A concurrent insert of the same username
// surfaces as ErrUsernameTaken through the unique index.
func (r *PGRepository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, in.Username, in.Email, in.PasswordHash, in.IsAdmin))
	if db.IsUniqueViolation(err, ConstraintUsername) {
		return nil, ErrUsernameTaken
	}
	return u, err
}

var _ Repository = (*PGRepository)(nil)
