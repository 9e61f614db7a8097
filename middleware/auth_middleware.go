package middleware

import (
	"context"
	"net/http"

	"github.com/upb/auth-service/services"
	"github.com/upb/auth-service/services/principal"
	"github.com/upb/auth-service/utils"
	"go.uber.org/zap"
)

// PrincipalResolver resolves the caller from an optional bearer token
type PrincipalResolver interface {
	Optional(ctx context.Context, bearer string) *principal.Principal
	Strict(ctx context.Context, bearer string) (*principal.Principal, error)
	WithRoles(ctx context.Context, bearer string, required ...string) (*principal.Principal, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	resolver PrincipalResolver
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(resolver PrincipalResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// ResolvePrincipal attaches the caller, or the anonymous principal, and
// never rejects the request
func (m *AuthMiddleware) ResolvePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := m.resolver.Optional(r.Context(), utils.BearerToken(r))
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAuth is a middleware that requires a valid access token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		p, err := m.resolver.Strict(ctx, utils.BearerToken(r))
		if err != nil {
			m.reject(w, r, err)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("user_id", p.UserID.String()))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
	})
}

// RequireRoles is a middleware that requires the caller to hold at least
// one of roles
func (m *AuthMiddleware) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			p, err := m.resolver.WithRoles(ctx, utils.BearerToken(r), roles...)
			if err != nil {
				m.reject(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
		})
	}
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestIDFromContext(r.Context())

	if services.IsForbiddenError(err) {
		m.logger.Warn("insufficient permissions",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		_ = utils.WriteForbidden(w, "Insufficient permissions")
		return
	}

	// Revocation store outages land here too: the access path fails closed.
	m.logger.Warn("authentication failed",
		zap.String("request_id", requestID),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	code := string(services.CauseCode(err))
	if code == "" {
		code = string(services.CodeUnauthorized)
	}
	_ = utils.WriteUnauthorized(w, code, "Could not validate credentials")
}
