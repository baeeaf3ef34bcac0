// Package router arma el árbol de rutas del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authctrl "github.com/markalston/diego-auth/internal/http/controllers/auth"
	healthctrl "github.com/markalston/diego-auth/internal/http/controllers/health"
	httperrors "github.com/markalston/diego-auth/internal/http/errors"
	mw "github.com/markalston/diego-auth/internal/http/middlewares"
	"github.com/markalston/diego-auth/internal/rate"
)

// Deps contiene las dependencias del router.
type Deps struct {
	AuthControllers  *authctrl.Controllers
	HealthController *healthctrl.Controller

	CORSAllowedOrigins []string
	LoginLimiter       rate.Limiter // nil => sin rate limit
}

// New construye el router con la cadena de middlewares global:
// log → recover → CORS → CSRF. El guard CSRF corre antes de cualquier
// handler que mute estado.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRequestLog())
	r.Use(mw.WithRecover())
	r.Use(mw.WithCORS(deps.CORSAllowedOrigins))
	r.Use(mw.WithCSRF())

	r.Route("/auth", func(r chi.Router) {
		login := http.HandlerFunc(deps.AuthControllers.Login.Handle)
		if deps.LoginLimiter != nil {
			r.Method(http.MethodPost, "/login", mw.WithLoginRateLimit(deps.LoginLimiter)(login))
		} else {
			r.Post("/login", login)
		}
		r.Get("/me", deps.AuthControllers.Me.Handle)
		r.Post("/refresh", deps.AuthControllers.Refresh.Handle)
		r.Post("/logout", deps.AuthControllers.Logout.Handle)
	})

	r.Get("/healthz", deps.HealthController.Handle)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	return r
}
