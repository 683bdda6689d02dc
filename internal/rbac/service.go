package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/token"
)

// Service orchestrates the authorization graph.
type Service struct {
	repo     Repository
	registry *Registry
	cache    *CapabilityCache
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a Service. A nil registry means DefaultRegistry and
// a nil cache disables capability caching.
func NewService(repo Repository, registry *Registry, cache *CapabilityCache, logger *slog.Logger) *Service {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		registry: registry,
		cache:    cache,
		validate: shared.NewValidator(),
		logger:   logger,
	}
}

// Registry exposes the permission registry the service validates against.
func (s *Service) Registry() *Registry {
	return s.registry
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	in = cleanRole(in)
	if verr := shared.Validate(s.validate, in); verr != nil {
		return Role{}, verr
	}
	role, err := s.repo.CreateRole(ctx, in)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	return role, nil
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	in = cleanRole(in)
	if verr := shared.Validate(s.validate, in); verr != nil {
		return Role{}, verr
	}
	role, err := s.repo.UpdateRole(ctx, id, in)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	return role, nil
}

// DeleteRole removes a role and every membership referencing it.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission adds a registered permission to the catalog.
func (s *Service) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	in, err := s.checkPermission(in)
	if err != nil {
		return Permission{}, err
	}
	if err := s.guardWildcardName(ctx, in.Name); err != nil {
		return Permission{}, err
	}
	p, err := s.repo.CreatePermission(ctx, in)
	if err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx)
	return p, nil
}

// UpdatePermission rewrites a catalog entry.
func (s *Service) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	in, err := s.checkPermission(in)
	if err != nil {
		return Permission{}, err
	}
	if err := s.guardWildcardName(ctx, in.Name); err != nil {
		return Permission{}, err
	}
	p, err := s.repo.UpdatePermission(ctx, id, in)
	if err != nil {
		return Permission{}, err
	}
	s.invalidate(ctx)
	return p, nil
}

// DeletePermission removes a catalog entry and its role grants.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) checkPermission(in PermissionInput) (PermissionInput, error) {
	in.Name = normalizeName(in.Name)
	in.Title = strings.TrimSpace(in.Title)
	verr := shared.Validate(s.validate, in)
	if verr == nil && !s.registry.Has(in.Name) {
		verr = shared.NewValidationError()
		verr.Add("name", "Name is not a known permission")
	}
	if verr != nil {
		return in, verr
	}
	if in.Title == "" {
		in.Title = shared.ScopeTitles[in.Name]
	}
	return in, nil
}

// SyncCatalog upserts every registered permission into the catalog and
// returns how many entries it wrote.
func (s *Service) SyncCatalog(ctx context.Context) (int, error) {
	names := s.registry.Names()
	for _, name := range names {
		if _, err := s.repo.UpsertPermission(ctx, PermissionInput{Name: name, Title: shared.ScopeTitles[name]}); err != nil {
			return 0, err
		}
	}
	s.invalidate(ctx)
	return len(names), nil
}

// AssignRoles replaces the user's role set with roleIDs. Either every id is
// applied or nothing changes. Adding a role that carries the wildcard needs a
// superuser caller.
func (s *Service) AssignRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	roleIDs = dedupe(roleIDs)
	if err := s.guardWildcardRoles(ctx, userID, roleIDs); err != nil {
		return err
	}
	if err := s.repo.ReplaceUserRoles(ctx, userID, roleIDs); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// AssignPermissions replaces the role's permission set with permissionIDs.
// Adding the wildcard needs a superuser caller.
func (s *Service) AssignPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	permissionIDs = dedupe(permissionIDs)
	if err := s.guardWildcardPermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// UserRoles returns the roles assigned to a user in assignment order.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return s.repo.UserRoles(ctx, userID)
}

// EffectivePermissions reads the user's effective set straight from storage.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	g, err := s.repo.Grants(ctx, userID)
	if err != nil {
		return PermissionSet{}, err
	}
	return NewPermissionSet(g), nil
}

// CapabilitiesOf returns the client-facing projection for the identity.
func (s *Service) CapabilitiesOf(ctx context.Context, id token.Identity) (Capabilities, error) {
	return s.cache.Fetch(ctx, id.UserID, func(ctx context.Context) (Capabilities, error) {
		set, err := s.EffectivePermissions(ctx, id.UserID)
		if err != nil {
			return Capabilities{}, err
		}
		return capabilitiesFrom(set), nil
	})
}

// RequireSuperuser returns shared.ErrForbidden unless the caller identified
// in ctx already holds the wildcard. A context without an identity is
// refused.
func (s *Service) RequireSuperuser(ctx context.Context) error {
	id, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return shared.ErrForbidden
	}
	set, err := s.EffectivePermissions(ctx, id.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		return shared.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if !set.IsSuperuser() {
		s.logger.Info("superuser grant denied", slog.Int64("user_id", id.UserID))
		return shared.ErrForbidden
	}
	return nil
}

func (s *Service) guardWildcardName(ctx context.Context, name string) error {
	if name != shared.Wildcard {
		return nil
	}
	return s.RequireSuperuser(ctx)
}

// guardWildcardPermissions checks the wildcard only when it is newly added
// to the role; keeping or dropping it is an ordinary edit.
func (s *Service) guardWildcardPermissions(ctx context.Context, roleID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if hasWildcard(role.Permissions) {
		return nil
	}
	catalog, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return err
	}
	requested := idSet(ids)
	for _, p := range catalog {
		if _, ok := requested[p.ID]; ok && p.Name == shared.Wildcard {
			return s.RequireSuperuser(ctx)
		}
	}
	return nil
}

// guardWildcardRoles checks roles that are new to the user and carry the
// wildcard.
func (s *Service) guardWildcardRoles(ctx context.Context, userID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	current, err := s.repo.UserRoles(ctx, userID)
	if err != nil {
		return err
	}
	held := make(map[int64]struct{}, len(current))
	for _, r := range current {
		held[r.ID] = struct{}{}
	}
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return err
	}
	requested := idSet(ids)
	for _, r := range all {
		if _, ok := requested[r.ID]; !ok {
			continue
		}
		if _, ok := held[r.ID]; ok {
			continue
		}
		if hasWildcard(r.Permissions) {
			return s.RequireSuperuser(ctx)
		}
	}
	return nil
}

func hasWildcard(perms []Permission) bool {
	for _, p := range perms {
		if p.Name == shared.Wildcard {
			return true
		}
	}
	return false
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// InvalidateCapabilities drops every cached projection. Other packages call
// it after changing data the projection depends on, such as the admin flag.
func (s *Service) InvalidateCapabilities(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("capability cache bump", slog.Any("error", err))
	}
}

func cleanRole(in RoleInput) RoleInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Title = strings.TrimSpace(in.Title)
	return in
}

// dedupe keeps the first occurrence of each id.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
