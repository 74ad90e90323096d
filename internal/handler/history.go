package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/storage"
)

// TransformView is the API form of a stored transform.
type TransformView struct {
	ID                  string            `json:"id"`
	Headline            string            `json:"headline"`
	Author              string            `json:"author"`
	TransformedHeadline string            `json:"transformedHeadline"`
	ProviderRequested   string            `json:"providerRequested"`
	ProviderUsed        string            `json:"providerUsed"`
	FallbackUsed        bool              `json:"fallbackUsed"`
	DurationMS          int64             `json:"durationMs"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	CreatedAt           string            `json:"createdAt"`
}

// TransformListResponse is the response for listing transforms.
type TransformListResponse struct {
	Transforms []TransformView `json:"transforms"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}

func toView(rec *storage.TransformRecord) TransformView {
	return TransformView{
		ID:                  rec.ID,
		Headline:            rec.Headline,
		Author:              rec.Author,
		TransformedHeadline: rec.TransformedHeadline,
		ProviderRequested:   rec.ProviderRequested.String(),
		ProviderUsed:        rec.ProviderUsed.String(),
		FallbackUsed:        rec.FallbackUsed,
		DurationMS:          rec.Duration.Milliseconds(),
		Metadata:            rec.Metadata,
		CreatedAt:           rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) handleListTransforms(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{Author: r.URL.Query().Get("author")}

	if q := r.URL.Query().Get("limit"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			h.writeError(w, r, domain.NewAPIError(domain.ErrorTypeInvalidRequest, "limit must be a non-negative integer"))
			return
		}
		opts.Limit = v
	}
	if q := r.URL.Query().Get("offset"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			h.writeError(w, r, domain.NewAPIError(domain.ErrorTypeInvalidRequest, "offset must be a non-negative integer"))
			return
		}
		opts.Offset = v
	}
	opts = opts.Normalize()

	records, err := h.store.ListTransforms(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := TransformListResponse{
		Transforms: make([]TransformView, 0, len(records)),
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}
	for _, rec := range records {
		resp.Transforms = append(resp.Transforms, toView(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetTransform(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetTransform(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(rec))
}
