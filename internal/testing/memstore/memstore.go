// Package memstore is an in-memory implementation of the repositories,
// used by handler and service tests that need a consistent graph without
// PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/huiui/hello-antd-role/internal/auth"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/users"
)

type roleRow struct {
	id        int64
	name      string
	title     string
	createdAt time.Time
	updatedAt time.Time
}

// Store keeps users, roles, permissions and both membership sets.
type Store struct {
	mu     sync.Mutex
	nextID int64

	users     map[int64]*auth.User
	roles     map[int64]*roleRow
	perms     map[int64]rbac.Permission
	userRoles map[int64][]int64
	rolePerms map[int64][]int64

	// GrantsErr, when set, is returned by Grants.
	GrantsErr error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[int64]*auth.User),
		roles:     make(map[int64]*roleRow),
		perms:     make(map[int64]rbac.Permission),
		userRoles: make(map[int64][]int64),
		rolePerms: make(map[int64][]int64),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// SetNextID makes the next created entity receive id. It must exceed every
// id handed out so far.
func (s *Store) SetNextID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id-1 > s.nextID {
		s.nextID = id - 1
	}
}

// AddUser seeds a user with the given password hash.
func (s *Store) AddUser(username, hash string, isAdmin bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	id := s.id()
	s.users[id] = &auth.User{ID: id, Username: username, PasswordHash: hash, IsAdmin: isAdmin, CreatedAt: now, UpdatedAt: now}
	return id
}

// AddRole seeds a role.
func (s *Store) AddRole(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	id := s.id()
	s.roles[id] = &roleRow{id: id, name: name, createdAt: now, updatedAt: now}
	return id
}

// AddPermission seeds a catalog entry.
func (s *Store) AddPermission(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.perms[id] = rbac.Permission{ID: id, Name: name}
	return id
}

// UserCount reports how many users are stored.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// RoleIDsOf returns the user's role ids in assignment order.
func (s *Store) RoleIDsOf(userID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.userRoles[userID]...)
}

// PermissionIDsOf returns the role's permission ids in assignment order.
func (s *Store) PermissionIDsOf(roleID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.rolePerms[roleID]...)
}

// auth.Repository

func (s *Store) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *Store) FindByID(_ context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateUser(_ context.Context, in auth.NewUser) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username {
			return nil, auth.ErrUsernameTaken
		}
	}
	now := time.Now().UTC()
	id := s.id()
	u := &auth.User{ID: id, Username: in.Username, Email: in.Email, PasswordHash: in.PasswordHash, IsAdmin: in.IsAdmin, CreatedAt: now, UpdatedAt: now}
	s.users[id] = u
	cp := *u
	return &cp, nil
}

// users.RepositoryPort

func toUser(u *auth.User) users.User {
	return users.User{ID: u.ID, Username: u.Username, Email: u.Email, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

func (s *Store) ListUsers(_ context.Context) ([]users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]users.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, toUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return users.User{}, &shared.NotFoundError{Entity: "user", ID: id}
	}
	return toUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, id int64, f users.UpdateFields) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return users.User{}, &shared.NotFoundError{Entity: "user", ID: id}
	}
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.PasswordHash != nil {
		u.PasswordHash = *f.PasswordHash
	}
	if f.IsAdmin != nil {
		u.IsAdmin = *f.IsAdmin
	}
	u.UpdatedAt = time.Now().UTC()
	return toUser(u), nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return &shared.NotFoundError{Entity: "user", ID: id}
	}
	delete(s.users, id)
	delete(s.userRoles, id)
	return nil
}

// rbac.Repository

func (s *Store) role(r *roleRow) rbac.Role {
	role := rbac.Role{ID: r.id, Name: r.name, Title: r.title, CreatedAt: r.createdAt, UpdatedAt: r.updatedAt, Permissions: []rbac.Permission{}}
	for _, pid := range s.rolePerms[r.id] {
		role.Permissions = append(role.Permissions, s.perms[pid])
	}
	return role
}

func (s *Store) ListRoles(_ context.Context) ([]rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rbac.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, s.role(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetRole(_ context.Context, id int64) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, &shared.NotFoundError{Entity: "role", ID: id}
	}
	return s.role(r), nil
}

func (s *Store) roleNameTaken(name string, except int64) bool {
	for _, r := range s.roles {
		if r.name == name && r.id != except {
			return true
		}
	}
	return false
}

func (s *Store) CreateRole(_ context.Context, in rbac.RoleInput) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roleNameTaken(in.Name, 0) {
		return rbac.Role{}, &shared.ConflictError{Field: "name", Message: "The role name is taken"}
	}
	now := time.Now().UTC()
	r := &roleRow{id: s.id(), name: in.Name, title: in.Title, createdAt: now, updatedAt: now}
	s.roles[r.id] = r
	return s.role(r), nil
}

func (s *Store) UpdateRole(_ context.Context, id int64, in rbac.RoleInput) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, &shared.NotFoundError{Entity: "role", ID: id}
	}
	if s.roleNameTaken(in.Name, id) {
		return rbac.Role{}, &shared.ConflictError{Field: "name", Message: "The role name is taken"}
	}
	r.name, r.title, r.updatedAt = in.Name, in.Title, time.Now().UTC()
	return s.role(r), nil
}

func (s *Store) DeleteRole(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return &shared.NotFoundError{Entity: "role", ID: id}
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	for uid, ids := range s.userRoles {
		s.userRoles[uid] = without(ids, id)
	}
	return nil
}

func (s *Store) ListPermissions(_ context.Context) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rbac.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) permissionByName(name string) (rbac.Permission, bool) {
	for _, p := range s.perms {
		if p.Name == name {
			return p, true
		}
	}
	return rbac.Permission{}, false
}

func (s *Store) CreatePermission(_ context.Context, in rbac.PermissionInput) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.permissionByName(in.Name); taken {
		return rbac.Permission{}, &shared.ConflictError{Field: "name", Message: "The permission already exists"}
	}
	p := rbac.Permission{ID: s.id(), Name: in.Name, Title: in.Title}
	s.perms[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePermission(_ context.Context, id int64, in rbac.PermissionInput) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[id]; !ok {
		return rbac.Permission{}, &shared.NotFoundError{Entity: "permission", ID: id}
	}
	if other, taken := s.permissionByName(in.Name); taken && other.ID != id {
		return rbac.Permission{}, &shared.ConflictError{Field: "name", Message: "The permission already exists"}
	}
	p := rbac.Permission{ID: id, Name: in.Name, Title: in.Title}
	s.perms[id] = p
	return p, nil
}

func (s *Store) DeletePermission(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[id]; !ok {
		return &shared.NotFoundError{Entity: "permission", ID: id}
	}
	delete(s.perms, id)
	for rid, ids := range s.rolePerms {
		s.rolePerms[rid] = without(ids, id)
	}
	return nil
}

func (s *Store) UpsertPermission(_ context.Context, in rbac.PermissionInput) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.permissionByName(in.Name); ok {
		p.Title = in.Title
		s.perms[p.ID] = p
		return p, nil
	}
	p := rbac.Permission{ID: s.id(), Name: in.Name, Title: in.Title}
	s.perms[p.ID] = p
	return p, nil
}

func (s *Store) ReplaceUserRoles(_ context.Context, userID int64, roleIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return &shared.NotFoundError{Entity: "user", ID: userID}
	}
	for _, id := range roleIDs {
		if _, ok := s.roles[id]; !ok {
			return &shared.NotFoundError{Entity: "role", ID: id}
		}
	}
	s.userRoles[userID] = append([]int64(nil), roleIDs...)
	return nil
}

func (s *Store) ReplaceRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return &shared.NotFoundError{Entity: "role", ID: roleID}
	}
	for _, id := range permissionIDs {
		if _, ok := s.perms[id]; !ok {
			return &shared.NotFoundError{Entity: "permission", ID: id}
		}
	}
	s.rolePerms[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (s *Store) UserRoles(_ context.Context, userID int64) ([]rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rbac.Role, 0, len(s.userRoles[userID]))
	for _, rid := range s.userRoles[userID] {
		out = append(out, s.role(s.roles[rid]))
	}
	return out, nil
}

func (s *Store) Grants(_ context.Context, userID int64) (rbac.Grants, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GrantsErr != nil {
		return rbac.Grants{}, s.GrantsErr
	}
	u, ok := s.users[userID]
	if !ok {
		return rbac.Grants{}, &shared.NotFoundError{Entity: "user", ID: userID}
	}
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, rid := range s.userRoles[userID] {
		for _, pid := range s.rolePerms[rid] {
			name := s.perms[pid].Name
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return rbac.Grants{IsAdmin: u.IsAdmin, Names: names}, nil
}

func without(ids []int64, drop int64) []int64 {
	out := ids[:0:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

var (
	_ auth.Repository      = (*Store)(nil)
	_ users.RepositoryPort = (*Store)(nil)
	_ rbac.Repository      = (*Store)(nil)
)
