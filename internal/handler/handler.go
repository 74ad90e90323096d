// Package handler serves the restyler's HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/server"
	"github.com/tjfontaine/headline-restyler/internal/storage"
	"github.com/tjfontaine/headline-restyler/internal/transform"
)

// maxRequestBytes caps the JSON body of a transform request.
const maxRequestBytes = 1 << 20

// HealthPath is served without authentication.
const HealthPath = "/healthz"

type Handler struct {
	service  *transform.Service
	store    storage.TransformStore
	defaults []domain.RequestOption
	logger   *slog.Logger
}

// Options configures a Handler.
type Options struct {
	// Store serves the history routes. Nil disables them.
	Store storage.TransformStore

	// Defaults apply before each request's own provider choices.
	Defaults []domain.RequestOption

	Logger *slog.Logger
}

func New(service *transform.Service, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		store:    opts.Store,
		defaults: opts.Defaults,
		logger:   logger,
	}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get(HealthPath, h.handleHealth)
	r.Post("/transform-headline", h.handleTransform)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/providers", h.handleListProviders)
		if h.store != nil {
			r.Get("/transforms", h.handleListTransforms)
			r.Get("/transforms/{id}", h.handleGetTransform)
		}
	})
}

type errorResponse struct {
	Error *domain.APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError classifies err, records it on the request log and writes the
// JSON error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	var apiErr *domain.APIError
	if errors.Is(err, storage.ErrNotFound) {
		apiErr = domain.NewAPIError(domain.ErrorTypeNotFound, err.Error())
	} else {
		apiErr = domain.ToAPIError(err)
	}

	if apiErr.Type == domain.ErrorTypeServer {
		h.logger.Error("request failed",
			slog.String("request_id", server.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, apiErr.HTTPStatusCode(), errorResponse{Error: apiErr})
}
