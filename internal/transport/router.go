package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/internal/access"
	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/internal/dashboard"
	"github.com/pitabwire/erpconsole/internal/definition"
	"github.com/pitabwire/erpconsole/internal/form"
	"github.com/pitabwire/erpconsole/internal/navigation"
	"github.com/pitabwire/erpconsole/internal/observability"
	"github.com/pitabwire/erpconsole/internal/session"
	"github.com/pitabwire/erpconsole/model"
)

// Dependencies holds all services needed by the HTTP handlers.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Readiness observability.ReadinessChecks

	Sessions *session.Manager
	Tokens   *session.TokenCodec
	Resolver *access.Resolver

	Backend   *backend.Client
	Auth      *backend.Auth
	Schemas   backend.ItemValidator
	Registry  *definition.Registry
	Forms     *form.Validator
	Dashboard *dashboard.Loader
	Menu      *navigation.Builder
}

// api carries the dependencies into the handler methods.
type api struct {
	Dependencies
}

// NewRouter creates the chi router with all middleware and routes.
func NewRouter(deps Dependencies) chi.Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	a := &api{Dependencies: deps}
	cfg := deps.Config

	r := chi.NewRouter()

	// Global middleware (order matters).
	r.Use(Recovery(deps.Logger))
	r.Use(CORS(cfg.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	// Public endpoints.
	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(deps.Readiness))
	if cfg.Observability.Metrics.Enabled {
		path := cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(RequestLogging(deps.Logger))
		r.Use(HandlerTimeout(cfg.Server.HandlerTimeout))

		r.Post("/ui/session", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireSession)

			r.Get("/ui/session", a.handleGetSession)
			r.Delete("/ui/session", a.handleLogout)
			r.Post("/ui/session/refresh", a.handleRefreshSession)

			r.Get("/ui/navigation", a.handleNavigation)
			r.Get("/ui/dashboard", a.handleDashboard)

			r.Get("/ui/resources/{resource}", a.handleListResource)
			r.Post("/ui/resources/{resource}", a.handleCreateResource)
			r.Post("/ui/resources/{resource}/validate", a.handleValidateResource)
			r.Get("/ui/resources/{resource}/{id}", a.handleGetResource)
			r.Put("/ui/resources/{resource}/{id}", a.handleUpdateResource)
			r.Delete("/ui/resources/{resource}/{id}", a.handleDeleteResource)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, r, "No such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, model.ErrorResponse{
			Message:    "Method not allowed",
			StatusCode: http.StatusMethodNotAllowed,
			Code:       model.ErrBadRequest,
		})
	})

	return r
}
