package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// RequireBearer rejects requests without the configured static bearer token.
// A server with no token configured answers 500 for every protected route.
func RequireBearer(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Configured() {
				deny(w, http.StatusInternalServerError, "API bearer token is not configured")
				return
			}

			h := strings.TrimSpace(r.Header.Get("Authorization"))
			if h == "" {
				deny(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}
			if !strings.HasPrefix(h, bearerPrefix) {
				deny(w, http.StatusUnauthorized, "Authorization header must use Bearer token")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
			if token == "" {
				deny(w, http.StatusUnauthorized, "Bearer token is required")
				return
			}

			if !v.Verify(token) {
				deny(w, http.StatusForbidden, "Invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
