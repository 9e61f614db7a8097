package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/auth-service/internal/shared"
	"github.com/upb/auth-service/utils"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// RequestContext stores the request id and client address in the request
// context so loggers further down can pick them up. The id is taken from the
// incoming header, then from chi's RequestID middleware, then generated.
func RequestContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = chimw.GetReqID(ctx)
			}
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx = shared.WithRequestID(ctx, id)
			ctx = shared.WithClientIP(ctx, utils.ClientIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
