// Package roles exposes role administration over the authorization graph.
package roles

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/huiui/hello-antd-role/internal/platform/httpx"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/shared"
)

// Graph is the subset of the authorization graph role administration uses.
type Graph interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
	CreateRole(ctx context.Context, in rbac.RoleInput) (rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, in rbac.RoleInput) (rbac.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	AssignPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// Handler manages role management endpoints.
type Handler struct {
	logger *slog.Logger
	graph  Graph
	rbac   rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, graph Graph, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, graph: graph, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(shared.PermRoleRead)).Get("/", h.listRoles)
	r.With(h.rbac.Require(shared.PermRoleCreate)).Post("/", h.createRole)
	r.With(h.rbac.Require(shared.PermRoleRead)).Get("/{id}", h.getRole)
	r.With(h.rbac.Require(shared.PermRoleUpdate)).Put("/{id}", h.updateRole)
	r.With(h.rbac.Require(shared.PermRoleDelete)).Delete("/{id}", h.deleteRole)
	r.With(h.rbac.Require(shared.PermRoleUpdate)).Post("/{id}/permissions", h.setPermissions)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.graph.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	role, err := h.graph.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in rbac.RoleInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	role, err := h.graph.CreateRole(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in rbac.RoleInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	role, err := h.graph.UpdateRole(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.graph.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]int64{"id": id})
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var body httpx.IDList
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.graph.AssignPermissions(r.Context(), id, body.IDs); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	role, err := h.graph.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.logger.Info("role permissions replaced", slog.Int64("role_id", id), slog.Int("count", len(role.Permissions)))
	httpx.OK(w, role)
}
