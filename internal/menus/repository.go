package menus

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huiui/hello-antd-role/internal/platform/db"
	"github.com/huiui/hello-antd-role/internal/shared"
)

// Repository defines persistence operations for menus.
type Repository interface {
	List(ctx context.Context) ([]Menu, error)
	Create(ctx context.Context, in Input) (Menu, error)
	Update(ctx context.Context, id int64, in Input) (Menu, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const menuColumns = `id, name, path, title, parent_id, created_at, updated_at`

func scanMenu(row pgx.Row) (Menu, error) {
	var m Menu
	err := row.Scan(&m.ID, &m.Name, &m.Path, &m.Title, &m.ParentID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// List returns menus ordered for tree building: roots first.
func (r *PGRepository) List(ctx context.Context) ([]Menu, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+menuColumns+` FROM menus ORDER BY parent_id NULLS FIRST, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Menu, error) {
		return scanMenu(row)
	})
}

// Create inserts a menu.
func (r *PGRepository) Create(ctx context.Context, in Input) (Menu, error) {
	m, err := scanMenu(r.pool.QueryRow(ctx, `
		INSERT INTO menus (name, path, title, parent_id) VALUES ($1, $2, $3, $4)
		RETURNING `+menuColumns, in.Name, in.Path, in.Title, in.ParentID))
	if err != nil {
		return Menu{}, writeError(err, in)
	}
	return m, nil
}

// Update rewrites a menu.
func (r *PGRepository) Update(ctx context.Context, id int64, in Input) (Menu, error) {
	m, err := scanMenu(r.pool.QueryRow(ctx, `
		UPDATE menus SET name = $2, path = $3, title = $4, parent_id = $5, updated_at = NOW()
		 WHERE id = $1
		RETURNING `+menuColumns, id, in.Name, in.Path, in.Title, in.ParentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Menu{}, &shared.NotFoundError{Entity: "menu", ID: id}
	}
	if err != nil {
		return Menu{}, writeError(err, in)
	}
	return m, nil
}

// Delete removes a menu. Children become roots.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM menus WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "menu", ID: id}
	}
	return nil
}

func writeError(err error, in Input) error {
	switch {
	case db.IsUniqueViolation(err, "menus_name_key"):
		return &shared.ConflictError{Field: "name", Message: "The menu name is taken"}
	case db.IsForeignKeyViolation(err) && in.ParentID != nil:
		return &shared.NotFoundError{Entity: "menu", ID: *in.ParentID}
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
