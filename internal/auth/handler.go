package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huiui/hello-antd-role/internal/platform/httpx"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/token"
)

// CapabilityProvider builds the client-side capability projection.
type CapabilityProvider interface {
	CapabilitiesOf(ctx context.Context, id token.Identity) (rbac.Capabilities, error)
}

// LoginObserver counts login outcomes.
type LoginObserver interface {
	ObserveLogin(result string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	capabilities CapabilityProvider
	rbac         rbac.Middleware
	metrics      LoginObserver
	limiter      func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance. limiter guards the public
// credential endpoints and may be nil.
func NewHandler(logger *slog.Logger, service *Service, capabilities CapabilityProvider, rbac rbac.Middleware, metrics LoginObserver, limiter func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:       logger,
		service:      service,
		capabilities: capabilities,
		rbac:         rbac,
		metrics:      metrics,
		limiter:      limiter,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter)
		}
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
	})
	r.With(h.rbac.Authenticate).Get("/currentUser", h.currentUser)
}

type sessionResponse struct {
	ID           int64              `json:"id"`
	Username     string             `json:"username"`
	Token        string             `json:"token"`
	ExpiresAt    time.Time          `json:"expiresAt"`
	Capabilities *rbac.Capabilities `json:"capabilities,omitempty"`
}

type currentUserResponse struct {
	UserID       int64             `json:"userid"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	IsAdmin      bool              `json:"isAdmin"`
	Capabilities rbac.Capabilities `json:"capabilities"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	sess, err := h.service.Register(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.logger.Info("user registered", slog.Int64("user_id", sess.User.ID), slog.String("username", sess.User.Username))
	h.respondSession(w, r, sess)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		h.observe("invalid")
		httpx.RespondError(w, h.logger, err)
		return
	}
	sess, err := h.service.Login(r.Context(), in)
	if err != nil {
		var authErr *shared.AuthenticationError
		var verr *shared.ValidationError
		switch {
		case errors.As(err, &authErr):
			h.logger.Warn("login failed", slog.String("reason", string(authErr.Reason)), slog.String("ip", r.RemoteAddr))
			h.observe(string(authErr.Reason))
		case errors.As(err, &verr):
			h.observe("invalid")
		default:
			h.observe("error")
		}
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.observe("success")
	h.respondSession(w, r, sess)
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, h.logger, shared.ErrUnauthorized)
		return
	}
	user, err := h.service.CurrentUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	caps, err := h.capabilities.CapabilitiesOf(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, currentUserResponse{
		UserID:       user.ID,
		Name:         user.Username,
		Email:        user.Email,
		IsAdmin:      user.IsAdmin,
		Capabilities: caps,
	})
}

// respondSession answers register and login. A capability lookup failure
// does not fail the sign-in; the client refreshes via currentUser.
func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, sess Session) {
	resp := sessionResponse{
		ID:        sess.User.ID,
		Username:  sess.User.Username,
		Token:     sess.Token,
		ExpiresAt: sess.Identity.ExpiresAt,
	}
	if caps, err := h.capabilities.CapabilitiesOf(r.Context(), sess.Identity); err != nil {
		h.logger.Warn("capabilities on sign-in", slog.Int64("user_id", sess.User.ID), slog.Any("error", err))
	} else {
		resp.Capabilities = &caps
	}
	httpx.OK(w, resp)
}

func (h *Handler) observe(result string) {
	if h.metrics != nil {
		h.metrics.ObserveLogin(result)
	}
}
