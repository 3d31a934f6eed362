package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lmaertin/pooldose-go/internal/auth"
	"github.com/lmaertin/pooldose-go/internal/monitor"
)

// componentCheckTimeout bounds each component check of the health endpoint.
const componentCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth required)
	if s.metrics != nil {
		r.Handle(s.metricsPath, s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Get("/health", s.handleHealth)
		r.Get("/device", s.handleGetDevice)
		r.Get("/types", s.handleListTypes)
		r.Get("/values", s.handleListValues)
		r.Get("/values/{name}", s.handleGetValue)
		r.Get("/history/{name}", s.handleGetHistory)
		r.Get("/writes", s.handleListWrites)
		r.Get("/system/metrics", s.handleSystemMetrics)

		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(requirePermission(auth.PermValueWrite)).Put("/values/{name}", s.handleSetValue)
			r.With(requirePermission(auth.PermSystemReboot)).Post("/system/reboot", s.handleReboot)
		})
	})

	if s.panel != nil {
		r.Handle("/*", s.panel)
	}

	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Device     monitor.Health    `json:"device"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports the service, device and component health. The
// status is "degraded" when the device is not online or any component
// fails; the HTTP status stays 200 so the service itself is seen as up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: s.version,
		Device:  s.values.Health(),
	}
	if !resp.Device.Online() {
		resp.Status = "degraded"
	}

	if len(s.components) > 0 {
		resp.Components = make(map[string]string, len(s.components))
		for name, c := range s.components {
			ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
			err := c.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
