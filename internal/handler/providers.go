package handler

import "net/http"

// ProviderView describes a registered backend.
type ProviderView struct {
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	factories := h.service.Registry().Factories()

	views := make([]ProviderView, 0, len(factories))
	for _, f := range factories {
		views = append(views, ProviderView{Kind: f.Kind.String(), Description: f.Description})
	}
	writeJSON(w, http.StatusOK, map[string][]ProviderView{"providers": views})
}
