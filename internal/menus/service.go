package menus

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/huiui/hello-antd-role/internal/shared"
)

// Service handles menu business logic.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: shared.NewValidator()}
}

// List returns all menus.
func (s *Service) List(ctx context.Context) ([]Menu, error) {
	return s.repo.List(ctx)
}

// Create validates and stores a menu.
func (s *Service) Create(ctx context.Context, in Input) (Menu, error) {
	in = clean(in)
	if verr := shared.Validate(s.validate, in); verr != nil {
		return Menu{}, verr
	}
	return s.repo.Create(ctx, in)
}

// Update validates and rewrites a menu. A menu cannot be its own parent.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Menu, error) {
	in = clean(in)
	verr := shared.Validate(s.validate, in)
	if in.ParentID != nil && *in.ParentID == id {
		if verr == nil {
			verr = shared.NewValidationError()
		}
		verr.Add("parentId", "A menu cannot be its own parent")
	}
	if verr != nil {
		return Menu{}, verr
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a menu.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func clean(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Path = strings.TrimSpace(in.Path)
	in.Title = strings.TrimSpace(in.Title)
	return in
}
