package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/tjfontaine/headline-restyler/internal/auth"
	"github.com/tjfontaine/headline-restyler/internal/domain"
)

type apiKeyContextKey struct{}

// AuthMiddleware validates API keys and injects the matched key into the
// request context. Requests for publicPaths pass through unauthenticated.
// The API key is extracted from the Authorization header (Bearer token format).
func AuthMiddleware(authenticator *auth.Authenticator, publicPaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || slices.Contains(publicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil {
				AddError(r.Context(), err)
				writeUnauthorized(w, err.Error())
				return
			}

			key, err := authenticator.ValidateAPIKey(apiKey)
			if err != nil {
				AddError(r.Context(), err)
				writeUnauthorized(w, "Invalid API key")
				return
			}

			AddLogField(r.Context(), "api_key", key.Description)
			ctx := context.WithValue(r.Context(), apiKeyContextKey{}, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAPIKey retrieves the authenticated key from context.
// Returns nil if auth is disabled or the path is public.
func GetAPIKey(ctx context.Context) *auth.Key {
	if k, ok := ctx.Value(apiKeyContextKey{}).(*auth.Key); ok {
		return k
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]*domain.APIError{
		"error": domain.NewAPIError(domain.ErrorTypeAuthentication, message),
	})
}
