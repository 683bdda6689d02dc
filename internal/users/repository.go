package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huiui/hello-antd-role/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, email, is_admin, created_at, updated_at`

func scanUser(row pgx.Row, id int64) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, &shared.NotFoundError{Entity: "user", ID: id}
	}
	return u, err
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), id)
}

// UpdateUser writes the non-nil fields.
func (r *Repository) UpdateUser(ctx context.Context, id int64, f UpdateFields) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		   SET email = COALESCE($2, email),
		       password_hash = COALESCE($3, password_hash),
		       is_admin = COALESCE($4, is_admin),
		       updated_at = NOW()
		 WHERE id = $1
		RETURNING `+userColumns, id, f.Email, f.PasswordHash, f.IsAdmin), id)
}

// DeleteUser removes a user. Role memberships cascade.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "user", ID: id}
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
