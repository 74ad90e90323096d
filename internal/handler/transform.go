package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/server"
	"github.com/tjfontaine/headline-restyler/internal/transform"
)

func (h *Handler) handleTransform(w http.ResponseWriter, r *http.Request) {
	var payload domain.TransformRequestPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&payload); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidRequest, err))
		return
	}

	req, err := payload.ToRequest(h.defaults...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "provider", req.Provider().String())

	ctx := transform.ContextWithRequestID(r.Context(), server.GetRequestID(r.Context()))
	result, err := h.service.TransformHeadline(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "provider_used", result.ProviderUsed.String())
	writeJSON(w, http.StatusOK, result)
}
