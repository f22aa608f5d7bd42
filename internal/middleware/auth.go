package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const SubjectKey contextKey = "subject"

// unprotected paths (no subject identity required)
func isPublicPath(path string) bool {
	return path == "/health" || path == "/metrics"
}

// SubjectAuth resolves the caller's verified subject identifier from the
// Authorization header. tokens maps bearer token -> subject; it stands in for
// the upstream identity provider, which has already verified the subject.
// Handlers downstream read the subject from the request context and never
// verify identity themselves.
func SubjectAuth(tokens map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				writeUnauthorized(w, "subject identity not found in token")
				return
			}

			// constant-time comparison to prevent timing attacks
			var subject string
			for t, s := range tokens {
				if subtle.ConstantTimeCompare([]byte(token), []byte(t)) == 1 {
					subject = s
					break
				}
			}
			if subject == "" {
				writeUnauthorized(w, "subject identity not found in token")
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubjectFromContext extracts the verified subject from context
func GetSubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(SubjectKey).(string); ok {
		return s
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "Unauthorized",
		"message": msg,
	})
}
