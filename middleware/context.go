package middleware

import (
	"context"

	"github.com/upb/auth-service/internal/shared"
	"github.com/upb/auth-service/services/principal"
)

// Context key type to avoid collisions
type contextKey string

// PrincipalKey is the context key for the resolved caller
const PrincipalKey contextKey = "principal"

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	return shared.RequestID(ctx)
}

// GetPrincipalFromContext retrieves the caller resolved by AuthMiddleware
func GetPrincipalFromContext(ctx context.Context) *principal.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if p, ok := val.(*principal.Principal); ok {
			return p
		}
	}
	return nil
}

// WithPrincipal adds the resolved caller to the context
func WithPrincipal(ctx context.Context, p *principal.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}
