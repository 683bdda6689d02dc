package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/huiui/hello-antd-role/internal/platform/httpx"
	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/token"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (token.Identity, error)
}

// PermissionLoader resolves a user's effective permission set.
type PermissionLoader interface {
	EffectivePermissions(ctx context.Context, userID int64) (PermissionSet, error)
}

// DecisionObserver counts authorization outcomes.
type DecisionObserver interface {
	ObserveDecision(outcome string)
}

// Decision outcomes reported to the DecisionObserver.
const (
	OutcomeAllowed         = "allowed"
	OutcomeForbidden       = "forbidden"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeError           = "error"
)

// Middleware wires authentication and authorization for HTTP handlers.
type Middleware struct {
	Tokens      TokenVerifier
	Permissions PermissionLoader
	Registry    *Registry
	Logger      *slog.Logger
	Metrics     DecisionObserver
}

// Authenticate verifies the bearer token and stores the identity in the
// request context. Any failure ends the request with 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			m.observe(OutcomeUnauthenticated)
			httpx.RespondError(w, m.Logger, shared.ErrUnauthorized)
			return
		}
		id, err := m.Tokens.Verify(raw)
		if err != nil {
			m.logger().Info("token rejected", slog.Any("error", err), slog.String("path", r.URL.Path))
			m.observe(OutcomeUnauthenticated)
			httpx.RespondError(w, m.Logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

// Require lets the request through only when the caller holds permission.
// It panics for a name missing from the registry.
func (m Middleware) Require(permission string) func(http.Handler) http.Handler {
	return m.RequireAny(permission)
}

// RequireAny lets the request through when the caller holds at least one of
// perms. Every name must be registered.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	if len(perms) == 0 {
		panic("rbac: RequireAny needs at least one permission")
	}
	registry := m.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	required := make([]string, 0, len(perms))
	for _, p := range perms {
		required = append(required, registry.MustHave(p))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				m.observe(OutcomeUnauthenticated)
				httpx.RespondError(w, m.Logger, shared.ErrUnauthorized)
				return
			}
			set, err := m.Permissions.EffectivePermissions(r.Context(), id.UserID)
			if errors.Is(err, shared.ErrNotFound) {
				// The token outlived its user.
				m.observe(OutcomeUnauthenticated)
				httpx.RespondError(w, m.Logger, shared.ErrUnauthorized)
				return
			}
			if err != nil {
				m.logger().Error("rbac load permissions", slog.Int64("user_id", id.UserID), slog.Any("error", err))
				m.observe(OutcomeError)
				httpx.Fail(w, http.StatusInternalServerError, httpx.General(httpx.MsgInternal))
				return
			}
			if !set.HasAny(required...) {
				m.logger().Info("rbac denied",
					slog.Int64("user_id", id.UserID),
					slog.String("required", strings.Join(required, "|")),
					slog.String("path", r.URL.Path))
				m.observe(OutcomeForbidden)
				httpx.RespondError(w, m.Logger, shared.ErrForbidden)
				return
			}
			m.observe(OutcomeAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) observe(outcome string) {
	if m.Metrics != nil {
		m.Metrics.ObserveDecision(outcome)
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
