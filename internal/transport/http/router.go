// Package httptransport is the thin HTTP layer: decode, delegate, encode.
// Business rules live in the services it calls into.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"termtrust/internal/jwtauth"
	"termtrust/internal/platform/middleware"
	"termtrust/pkg/platform/httputil"
)

// HealthChecker reports readiness of one backing dependency.
type HealthChecker func(ctx context.Context) error

// RouterDeps bundles everything the router mounts.
type RouterDeps struct {
	Identity *IdentityHandler
	Activity *ActivityHandler
	Admin    *AdminHandler
	JWT      *jwtauth.Service
	Logger   *slog.Logger
	// Ready checks run on /readyz; an empty map means always ready.
	Ready map[string]HealthChecker
}

// NewRouter assembles the full route tree with the shared middleware chain.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)

	deps.Identity.Register(r)
	deps.Activity.Register(r)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(jwtValidator{deps.JWT}, deps.Logger))
		deps.Admin.Register(r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(deps.Ready))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func readiness(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := make(map[string]string, len(checks)+1)
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		if status == http.StatusOK {
			body["status"] = "ready"
		} else {
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}

// jwtValidator adapts the jwtauth service to the middleware's validator
// interface.
type jwtValidator struct {
	svc *jwtauth.Service
}

func (v jwtValidator) ValidateToken(tokenString string) (*middleware.Claims, error) {
	claims, err := v.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{ActorID: claims.ActorID, Role: claims.Role}, nil
}
