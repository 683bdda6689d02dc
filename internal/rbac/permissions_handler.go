package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/huiui/hello-antd-role/internal/platform/httpx"
	"github.com/huiui/hello-antd-role/internal/shared"
)

// PermissionsHandler manages the permission catalog.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	// Role editors need the catalog to pick from.
	r.With(h.rbac.RequireAny(shared.PermPermissionRead, shared.PermRoleUpdate)).Get("/", h.list)
	r.With(h.rbac.Require(shared.PermPermissionCreate)).Post("/", h.create)
	r.With(h.rbac.Require(shared.PermPermissionUpdate)).Put("/{id}", h.update)
	r.With(h.rbac.Require(shared.PermPermissionDelete)).Delete("/{id}", h.delete)
}

func (h *PermissionsHandler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, perms)
}

func (h *PermissionsHandler) create(w http.ResponseWriter, r *http.Request) {
	var in PermissionInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.CreatePermission(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, p)
}

func (h *PermissionsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var in PermissionInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.UpdatePermission(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, p)
}

func (h *PermissionsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, map[string]int64{"id": id})
}
