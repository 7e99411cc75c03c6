// Package httpapi exposes the guard over a JSON HTTP API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/transferguard/internal/guard"
	"github.com/ppiankov/transferguard/internal/logging"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(svc *guard.Service, logger *logrus.Logger) http.Handler {
	h := &Handlers{
		svc: svc,
		log: logging.Component(logger, "http"),
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Checks.
		r.Post("/validate", h.Validate)
		r.Post("/batch", h.Batch)

		// Address tools.
		r.Get("/address/{address}", h.VerifyAddress)
		r.Get("/compare", h.CompareAddresses)

		// Confirmations.
		r.Get("/pending", h.ListPending)
		r.Post("/approvals/{key}/approve", h.Approve)
		r.Post("/approvals/{key}/deny", h.Deny)

		// History.
		r.Get("/history", h.ListHistory)
		r.Get("/history/{id}", h.GetHistory)
		r.Get("/stats", h.Stats)
	})

	return r
}

func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request served")
		})
	}
}
