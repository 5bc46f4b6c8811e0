package middleware

import (
	"net/http"

	"github.com/atelier-api/internal/domain"
)

// RequireRole allows access only to sessions whose role is one of allowed.
func RequireRole(allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			for _, role := range allowed {
				if claims.Role == string(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "forbidden", "forbidden")
		})
	}
}
