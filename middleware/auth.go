package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lordwilsonDev/transparency-log/authenticator"
	"github.com/lordwilsonDev/transparency-log/callerctx"
)

// RequireAuth ensures the request carries a valid bearer token.
// The verified subject is placed in the request context for handlers.
func RequireAuth(verifier authenticator.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := bearerToken(r)
			if rawToken == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				unauthorized(w, "invalid bearer token")
				return
			}

			ctx := callerctx.WithSubject(r.Context(), claims.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// unauthorized writes a JSON 401 response
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
