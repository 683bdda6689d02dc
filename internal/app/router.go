package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/huiui/hello-antd-role/internal/auth"
	"github.com/huiui/hello-antd-role/internal/menus"
	"github.com/huiui/hello-antd-role/internal/observability"
	"github.com/huiui/hello-antd-role/internal/platform/httpx"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/roles"
	"github.com/huiui/hello-antd-role/internal/users"
	"github.com/huiui/hello-antd-role/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	MenusHandler       *menus.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	// CapabilityCache reports its version on /healthz when set.
	CapabilityCache VersionReporter
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// VersionReporter exposes a cache generation for health output.
type VersionReporter interface {
	Version(ctx context.Context) (string, error)
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, httpx.General("Resource not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, httpx.General("Method not allowed"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "ok"}
		if params.CapabilityCache != nil {
			ver, err := params.CapabilityCache.Version(r.Context())
			if err != nil {
				ver = "unavailable"
			}
			health["capabilityCache"] = ver
		}
		httpx.JSON(w, http.StatusOK, health)
	})

	if params.AuthHandler != nil {
		r.Route("/api/users", params.AuthHandler.MountRoutes)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate)
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.MenusHandler != nil {
			r.Route("/menus", params.MenusHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
