// Package httpapi is the HTTP adapter: routing, session middleware, and the
// mapping between the error taxonomy and status codes live here and nowhere
// else.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/propertyhub/docgate/internal/logging"
	"github.com/propertyhub/docgate/internal/server/auth"
	"github.com/propertyhub/docgate/internal/server/config"
	"github.com/propertyhub/docgate/internal/server/documents"
)

// Handler binds HTTP endpoints to the application services.
type Handler struct {
	auth   *auth.Service
	docs   *documents.Service
	cfg    *config.Config
	logger logging.Logger
}

func NewHandler(authSvc *auth.Service, docsSvc *documents.Service, cfg *config.Config, logger logging.Logger) *Handler {
	return &Handler{
		auth:   authSvc,
		docs:   docsSvc,
		cfg:    cfg,
		logger: logger.With("module", "httpapi"),
	}
}

// NewRouter registers all routes. Everything under /api except login sits
// behind the session middleware; the gate decisions themselves live in the
// services, the middleware only resolves who is calling.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/healthz", h.healthz)
	r.Post("/api/login", h.login)

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)

		r.Post("/api/logout", h.logout)
		r.Post("/api/password", h.changePassword)

		r.Post("/api/documents", h.uploadDocument)
		r.Get("/api/documents", h.listDocuments)
		r.Get("/api/documents/{id}/content", h.downloadDocument)

		r.Post("/api/invoices", h.uploadInvoice)
		r.Get("/api/invoices/{id}/content", h.downloadInvoice)

		// legacy path-addressed reads for records created before tagged refs
		r.Get("/api/files/*", h.downloadByPath)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
