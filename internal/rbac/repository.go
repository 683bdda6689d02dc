package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huiui/hello-antd-role/internal/platform/db"
	"github.com/huiui/hello-antd-role/internal/shared"
)

// Repository defines persistence operations for the authorization graph.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, in RoleInput) (Role, error)
	UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, in PermissionInput) (Permission, error)
	UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	UpsertPermission(ctx context.Context, in PermissionInput) (Permission, error)

	// ReplaceUserRoles and ReplaceRolePermissions swap the whole membership
	// set atomically. ids arrive de-duplicated and in submitted order.
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	UserRoles(ctx context.Context, userID int64) ([]Role, error)
	Grants(ctx context.Context, userID int64) (Grants, error)
}

const (
	constraintRoleName       = "roles_name_key"
	constraintPermissionName = "permissions_name_key"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `
	r.id, r.name, r.title, r.created_at, r.updated_at,
	COALESCE(
		(SELECT json_agg(json_build_object('id', p.id, 'name', p.name, 'title', p.title) ORDER BY rp.position)
		   FROM role_permissions rp
		   JOIN permissions p ON p.id = rp.permission_id
		  WHERE rp.role_id = r.id),
		'[]'::json)`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Title, &role.CreatedAt, &role.UpdatedAt, &role.Permissions)
	return role, err
}

// ListRoles returns all roles ordered by name with their permissions.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles r ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := make([]Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, &shared.NotFoundError{Entity: "role", ID: id}
	}
	return role, err
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, title) VALUES ($1, $2) RETURNING id`,
		in.Name, in.Title).Scan(&id)
	if err != nil {
		return Role{}, roleWriteError(err)
	}
	return r.GetRole(ctx, id)
}

// UpdateRole updates the name and title of an existing role.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET name = $2, title = $3, updated_at = NOW() WHERE id = $1`,
		id, in.Name, in.Title)
	if err != nil {
		return Role{}, roleWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return Role{}, &shared.NotFoundError{Entity: "role", ID: id}
	}
	return r.GetRole(ctx, id)
}

// DeleteRole removes a role. Memberships referencing it cascade.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "role", ID: id}
	}
	return nil
}

func roleWriteError(err error) error {
	if db.IsUniqueViolation(err, constraintRoleName) {
		return &shared.ConflictError{Field: "name", Message: "The role name is taken"}
	}
	return err
}

// ListPermissions returns the catalog ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, title FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Title); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreatePermission inserts a catalog entry.
func (r *PGRepository) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	p := Permission{Name: in.Name, Title: in.Title}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, title) VALUES ($1, $2) RETURNING id`,
		in.Name, in.Title).Scan(&p.ID)
	if err != nil {
		return Permission{}, permissionWriteError(err)
	}
	return p, nil
}

// UpdatePermission rewrites a catalog entry.
func (r *PGRepository) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	p := Permission{ID: id}
	err := r.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2, title = $3 WHERE id = $1 RETURNING name, title`,
		id, in.Name, in.Title).Scan(&p.Name, &p.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, &shared.NotFoundError{Entity: "permission", ID: id}
	}
	if err != nil {
		return Permission{}, permissionWriteError(err)
	}
	return p, nil
}

// DeletePermission removes a catalog entry. Role grants referencing it cascade.
func (r *PGRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &shared.NotFoundError{Entity: "permission", ID: id}
	}
	return nil
}

// UpsertPermission creates the entry or refreshes its title.
func (r *PGRepository) UpsertPermission(ctx context.Context, in PermissionInput) (Permission, error) {
	p := Permission{Name: in.Name, Title: in.Title}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, title) VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT permissions_name_key DO UPDATE SET title = EXCLUDED.title
		RETURNING id`, in.Name, in.Title).Scan(&p.ID)
	return p, err
}

func permissionWriteError(err error) error {
	if db.IsUniqueViolation(err, constraintPermissionName) {
		return &shared.ConflictError{Field: "name", Message: "The permission already exists"}
	}
	return err
}

// membership describes one join table of the graph.
type membership struct {
	table       string
	ownerTable  string
	ownerColumn string
	ownerEntity string
	refTable    string
	refColumn   string
	refEntity   string
}

var (
	userRoles = membership{
		table: "user_roles", ownerTable: "users", ownerColumn: "user_id", ownerEntity: "user",
		refTable: "roles", refColumn: "role_id", refEntity: "role",
	}
	rolePermissions = membership{
		table: "role_permissions", ownerTable: "roles", ownerColumn: "role_id", ownerEntity: "role",
		refTable: "permissions", refColumn: "permission_id", refEntity: "permission",
	}
)

// ReplaceUserRoles sets the user's role set to exactly roleIDs.
func (r *PGRepository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return r.replace(ctx, userRoles, userID, roleIDs)
}

// ReplaceRolePermissions sets the role's permission set to exactly permissionIDs.
func (r *PGRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return r.replace(ctx, rolePermissions, roleID, permissionIDs)
}

// replace runs delete-then-insert in one transaction. The owner row is
// locked so concurrent replacements of the same set serialize, and the
// referenced rows are share-locked so they cannot vanish before commit. The
// DELETE must see rows committed by the previous lock holder, hence
// ReadCommitted.
func (r *PGRepository) replace(ctx context.Context, m membership, ownerID int64, ids []int64) error {
	return db.WithLockedTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int64
		err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, m.ownerTable), ownerID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return &shared.NotFoundError{Entity: m.ownerEntity, ID: ownerID}
		}
		if err != nil {
			return err
		}

		if len(ids) > 0 {
			if err := checkReferences(ctx, tx, m, ids); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, m.table, m.ownerColumn), ownerID); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (%s, %s, position)
			SELECT $1, t.id, t.ord FROM unnest($2::bigint[]) WITH ORDINALITY AS t(id, ord)`,
			m.table, m.ownerColumn, m.refColumn), ownerID, ids)
		if db.IsForeignKeyViolation(err) {
			return &shared.NotFoundError{Entity: m.refEntity, ID: ids[0]}
		}
		return err
	})
}

// checkReferences returns NotFoundError for the first id in submitted order
// that does not exist.
func checkReferences(ctx context.Context, tx pgx.Tx, m membership, ids []int64) error {
	rows, err := tx.Query(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1::bigint[]) FOR SHARE`, m.refTable), ids)
	if err != nil {
		return err
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	present := make(map[int64]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return &shared.NotFoundError{Entity: m.refEntity, ID: id}
		}
	}
	return nil
}

// UserRoles returns the user's roles in assignment order.
func (r *PGRepository) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+roleColumns+`
		  FROM user_roles ur
		  JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1
		 ORDER BY ur.position`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := make([]Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Grants reads the admin flag and the distinct permission names of the
// user's roles in one statement, so both come from the same snapshot.
func (r *PGRepository) Grants(ctx context.Context, userID int64) (Grants, error) {
	var g Grants
	err := r.pool.QueryRow(ctx, `
		SELECT u.is_admin,
		       ARRAY(
		         SELECT DISTINCT p.name
		           FROM user_roles ur
		           JOIN role_permissions rp ON rp.role_id = ur.role_id
		           JOIN permissions p ON p.id = rp.permission_id
		          WHERE ur.user_id = u.id
		          ORDER BY p.name)
		  FROM users u
		 WHERE u.id = $1`, userID).Scan(&g.IsAdmin, &g.Names)
	if errors.Is(err, pgx.ErrNoRows) {
		return Grants{}, &shared.NotFoundError{Entity: "user", ID: userID}
	}
	if err != nil {
		return Grants{}, err
	}
	for i, n := range g.Names {
		g.Names[i] = strings.TrimSpace(n)
	}
	return g, nil
}

var _ Repository = (*PGRepository)(nil)
