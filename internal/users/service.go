package users

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/huiui/hello-antd-role/internal/auth"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdateUser(ctx context.Context, id int64, f UpdateFields) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Graph is the part of the authorization graph user management drives.
type Graph interface {
	AssignRoles(ctx context.Context, userID int64, roleIDs []int64) error
	UserRoles(ctx context.Context, userID int64) ([]rbac.Role, error)
	InvalidateCapabilities(ctx context.Context)
	RequireSuperuser(ctx context.Context) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	accounts auth.Repository
	hasher   *auth.Hasher
	graph    Graph
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, accounts auth.Repository, hasher *auth.Hasher, graph Graph) *Service {
	return &Service{repo: repo, accounts: accounts, hasher: hasher, graph: graph, validate: shared.NewValidator()}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a user with the assigned roles.
func (s *Service) GetUser(ctx context.Context, id int64) (Detail, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	roles, err := s.graph.UserRoles(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{User: u, Roles: roles}, nil
}

// CreateUser creates an account on behalf of an administrator.
func (s *Service) CreateUser(ctx context.Context, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	verr := shared.Validate(s.validate, in)
	if verr == nil {
		verr = shared.NewValidationError()
	}
	username, err := auth.NormalizeUsername(in.Username)
	if err != nil && in.Username != "" {
		verr.Add("username", "Username is invalid")
	}
	if err := verr.OrNil(); err != nil {
		return User{}, err
	}
	if in.IsAdmin {
		if err := s.graph.RequireSuperuser(ctx); err != nil {
			return User{}, err
		}
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return User{}, err
	}
	created, err := s.accounts.CreateUser(ctx, auth.NewUser{
		Username:     username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      in.IsAdmin,
	})
	if err != nil {
		return User{}, err
	}
	return User{
		ID:        created.ID,
		Username:  created.Username,
		Email:     created.Email,
		IsAdmin:   created.IsAdmin,
		CreatedAt: created.CreatedAt,
		UpdatedAt: created.UpdatedAt,
	}, nil
}

// UpdateUser applies the present fields of in. Flipping the admin flag needs
// a superuser caller; resubmitting the stored value does not.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UpdateInput) (User, error) {
	if in.Email != nil {
		trimmed := strings.TrimSpace(*in.Email)
		in.Email = &trimmed
	}
	if verr := shared.Validate(s.validate, in); verr != nil {
		return User{}, verr
	}
	if in.IsAdmin != nil {
		current, err := s.repo.GetUser(ctx, id)
		if err != nil {
			return User{}, err
		}
		if current.IsAdmin != *in.IsAdmin {
			if err := s.graph.RequireSuperuser(ctx); err != nil {
				return User{}, err
			}
		}
	}
	fields := UpdateFields{Email: in.Email, IsAdmin: in.IsAdmin}
	if in.Password != nil {
		hash, err := s.hasher.Hash(ctx, *in.Password)
		if err != nil {
			return User{}, err
		}
		fields.PasswordHash = &hash
	}
	u, err := s.repo.UpdateUser(ctx, id, fields)
	if err != nil {
		return User{}, err
	}
	if in.IsAdmin != nil {
		s.graph.InvalidateCapabilities(ctx)
	}
	return u, nil
}

// DeleteUser removes an account. Tokens issued to it stop authorizing on
// the next request because the effective set can no longer be resolved.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.graph.InvalidateCapabilities(ctx)
	return nil
}

// AssignRoles replaces the user's role set.
func (s *Service) AssignRoles(ctx context.Context, userID int64, roleIDs []int64) ([]rbac.Role, error) {
	if err := s.graph.AssignRoles(ctx, userID, roleIDs); err != nil {
		return nil, err
	}
	return s.graph.UserRoles(ctx, userID)
}
