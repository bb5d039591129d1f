package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodian/pkg/platform/middleware/auth"
	"custodian/pkg/platform/middleware/metadata"
	"custodian/pkg/platform/middleware/requesttime"
)

// NewRouter wires the engine's public endpoints. Authorization and audit
// queries sit behind the bearer-token middleware; health and metrics do
// not.
func NewRouter(h *Handler, validator auth.TokenValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(validator, h.logger))
		r.Post("/v1/authorize", h.handleAuthorize)
		r.Get("/v1/audit/records", h.handleAuditRecords)
	})

	return r
}
