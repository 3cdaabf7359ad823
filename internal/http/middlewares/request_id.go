package middlewares

import (
	"net/http"
	"strings"

	"github.com/segmentio/ksuid"
)

// WithRequestID propaga X-Request-ID o genera uno (ksuid, ordenable por tiempo).
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if rid == "" || len(rid) > 128 {
				rid = ksuid.New().String()
			}
			w.Header().Set("X-Request-ID", rid)
			next.ServeHTTP(w, r.WithContext(setRequestID(r.Context(), rid)))
		})
	}
}
