package middleware

import (
	"net/http"

	"admissions/pkg/logger"
)

// Recovery converts handler panics into 500 responses instead of dropping
// the connection.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("Panic recovered in handler", map[string]interface{}{
						"path":       r.URL.Path,
						"panic":      rec,
						"request_id": RequestIDFromContext(r.Context()),
					})
					http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
