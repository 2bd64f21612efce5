// Package api implements the taskboard REST API using chi.
package api

import (
	"net/http"
	"strings"

	"github.com/starford/taskboard/internal/checksum"
)

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ifMatch returns the If-Match header digest without ETag decoration.
func ifMatch(r *http.Request) string {
	return checksum.Normalize(r.Header.Get("If-Match"))
}

// setETag exposes the active board checksum as a strong ETag.
func setETag(w http.ResponseWriter, sum string) {
	if sum != "" {
		w.Header().Set("ETag", `"`+sum+`"`)
	}
}
