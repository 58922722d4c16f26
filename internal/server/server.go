/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Exposes the payroll pipeline to the upload page. One request is one run;
  the reference cache is shared by every request.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, logged with the run
  2. Logger:     Structured request logging (slog)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from the upload page

ROUTES:
  GET  /api/health              Liveness
  POST /api/payroll/process     Multipart upload: file, period_start, period_end
  GET  /api/reference/status    Loaded-at / expires-at of both tables
  POST /api/reference/refresh   Drop and reload both tables

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/serve.go: Server startup
*/
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/payroll", func(r chi.Router) {
			r.Post("/process", h.ProcessPayroll)
		})

		r.Route("/reference", func(r chi.Router) {
			r.Get("/status", h.ReferenceStatus)
			r.Post("/refresh", h.RefreshReference)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"took", time.Since(start))
		})
	}
}
