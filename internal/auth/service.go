package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/secure/precis"

	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/token"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	hasher   *Hasher
	tokens   *token.Service
	validate *validator.Validate
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher *Hasher, tokens *token.Service) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens, validate: shared.NewValidator()}
}

// NormalizeUsername maps a username to the form it is stored and compared
// in, so "Alice" and "alice" cannot both register.
func NormalizeUsername(raw string) (string, error) {
	return precis.UsernameCaseMapped.String(strings.TrimSpace(raw))
}

// Register validates the form, creates the account and issues a token.
// Every field violation is reported together.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	verr := shared.Validate(s.validate, in)
	if verr == nil {
		verr = shared.NewValidationError()
	}
	username, err := NormalizeUsername(in.Username)
	if err != nil && in.Username != "" {
		verr.Add("username", "Username is invalid")
	}
	if err := verr.OrNil(); err != nil {
		return Session{}, err
	}

	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return Session{}, ErrUsernameTaken
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return Session{}, err
	}
	user, err := s.repo.CreateUser(ctx, NewUser{Username: username, Email: in.Email, PasswordHash: hash})
	if err != nil {
		return Session{}, err
	}
	return s.issue(user)
}

// Login validates the form, checks the credentials and issues a token.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if verr := shared.Validate(s.validate, in); verr != nil {
		return Session{}, verr
	}
	user, err := s.Authenticate(ctx, in.Username, in.Password)
	if err != nil {
		return Session{}, err
	}
	return s.issue(user)
}

// Authenticate validates username/password credentials. Failures return
// *shared.AuthenticationError whose reason is only meant for logs.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	normalized, err := NormalizeUsername(username)
	if err != nil {
		if err := s.hasher.Burn(ctx, password); err != nil {
			return nil, err
		}
		return nil, &shared.AuthenticationError{Reason: shared.AuthUserNotFound}
	}
	user, err := s.repo.FindByUsername(ctx, normalized)
	if errors.Is(err, shared.ErrNotFound) {
		if err := s.hasher.Burn(ctx, password); err != nil {
			return nil, err
		}
		return nil, &shared.AuthenticationError{Reason: shared.AuthUserNotFound}
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Matches(ctx, user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &shared.AuthenticationError{Reason: shared.AuthWrongCredentials}
	}
	return user, nil
}

// CurrentUser resolves the account behind a verified identity. A user
// deleted after the token was issued is reported as unauthorized.
func (s *Service) CurrentUser(ctx context.Context, id token.Identity) (*User, error) {
	user, err := s.repo.FindByID(ctx, id.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrUnauthorized
	}
	return user, err
}

func (s *Service) issue(user *User) (Session, error) {
	id := s.tokens.NewIdentity(user.ID)
	raw, err := s.tokens.Issue(id)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Token: raw, Identity: id}, nil
}
