package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/auth-service/internal/shared"
	"github.com/upb/auth-service/services/ratelimit"
	"github.com/upb/auth-service/services/token"
	"github.com/upb/auth-service/utils"
)

// RateLimitChecker makes admission decisions
type RateLimitChecker interface {
	Check(ctx context.Context, subject, path, route string) ratelimit.Result
}

// SubjectVerifier identifies the caller from a bearer token. Only the
// signature matters here; revocation is the auth middleware's concern.
type SubjectVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// RateLimitMiddleware enforces per-subject sliding windows and reports
// them in X-RateLimit-* headers
type RateLimitMiddleware struct {
	checker  RateLimitChecker
	verifier SubjectVerifier
}

func NewRateLimitMiddleware(checker RateLimitChecker, verifier SubjectVerifier) *RateLimitMiddleware {
	return &RateLimitMiddleware{checker: checker, verifier: verifier}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := m.checker.Check(r.Context(), m.subject(r), r.URL.Path, routeClass(r))
		if res.Exempt {
			next.ServeHTTP(w, r)
			return
		}

		status := utils.RateLimitStatus{
			Limit:      res.Limit,
			Remaining:  res.Remaining,
			ResetAt:    res.ResetAt,
			RetryAfter: res.RetryAfter,
		}
		if !res.Allowed {
			_ = utils.WriteTooManyRequests(w, status)
			return
		}
		if !res.Degraded {
			utils.SetRateLimitHeaders(w, status)
		}

		next.ServeHTTP(w, r)
	})
}

// subject is "user:{id}" for a caller with a verifiable bearer token and
// "ip:{addr}" otherwise
func (m *RateLimitMiddleware) subject(r *http.Request) string {
	if raw := utils.BearerToken(r); raw != "" && m.verifier != nil {
		if claims, err := m.verifier.Verify(raw); err == nil {
			return "user:" + claims.Subject
		}
	}
	ip := shared.ClientIP(r.Context())
	if ip == "" {
		ip = utils.ClientIP(r, false)
	}
	return "ip:" + ip
}

// unmatchedRoute is the one class shared by every path no route serves
const unmatchedRoute = "unmatched"

// routeClass is the chi pattern that will serve r, so /users/{id}/sessions
// counts as one route whatever the id. Outside a chi router it is the path.
func routeClass(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return r.URL.Path
	}
	match := chi.NewRouteContext()
	if !rctx.Routes.Match(match, r.Method, r.URL.Path) {
		return unmatchedRoute
	}
	return match.RoutePattern()
}
