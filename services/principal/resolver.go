package principal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/auth-service/internal/observability"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
	"github.com/upb/auth-service/services"
	"github.com/upb/auth-service/services/token"
	"go.uber.org/zap"
)

// AnonymousUsername is reported for callers without a valid credential
const AnonymousUsername = "guest"

// Principal is the caller a request acts on behalf of
type Principal struct {
	UserID    uuid.UUID
	Username  string
	Email     string
	Roles     []string
	Anonymous bool

	// Claims of the access token that authenticated the caller, nil when anonymous
	Claims *token.Claims
}

// HasAnyRole reports whether the principal holds at least one of roles
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// AccessVerifier authenticates bearer tokens
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, accessToken string) (*token.Claims, error)
}

// Resolver turns an optional bearer token into a Principal. Optional never
// fails and falls back to the anonymous principal; Strict and WithRoles
// reject callers they cannot identify.
type Resolver struct {
	verifier AccessVerifier
	users    repositories.UserRepository
	roles    repositories.RoleRepository
	logger   *zap.Logger
}

// NewResolver creates a new principal resolver
func NewResolver(verifier AccessVerifier, users repositories.UserRepository, roles repositories.RoleRepository, logger *zap.Logger) *Resolver {
	return &Resolver{verifier: verifier, users: users, roles: roles, logger: logger}
}

// Anonymous returns the guest principal. It carries the guest role when
// that role is defined.
func (r *Resolver) Anonymous(ctx context.Context) *Principal {
	p := &Principal{Username: AnonymousUsername, Anonymous: true, Roles: []string{}}

	role, err := r.roles.FindByName(ctx, models.RoleGuest)
	if err != nil {
		observability.LoggerFromContext(ctx, r.logger).Warn("failed to load guest role", zap.Error(err))
		return p
	}
	if role != nil {
		p.Roles = []string{role.Name}
	}
	return p
}

// Optional resolves bearer or returns the anonymous principal
func (r *Resolver) Optional(ctx context.Context, bearer string) *Principal {
	if bearer == "" {
		return r.Anonymous(ctx)
	}
	p, err := r.resolve(ctx, bearer)
	if err != nil {
		observability.LoggerFromContext(ctx, r.logger).Debug("bearer token rejected, continuing as guest", zap.Error(err))
		return r.Anonymous(ctx)
	}
	return p
}

// Strict resolves bearer or fails with ErrUnauthorized wrapping the cause
func (r *Resolver) Strict(ctx context.Context, bearer string) (*Principal, error) {
	if bearer == "" {
		return nil, services.ErrUnauthorized.Wrap(fmt.Errorf("missing bearer token"))
	}
	p, err := r.resolve(ctx, bearer)
	if err != nil {
		return nil, services.ErrUnauthorized.Wrap(err)
	}
	return p, nil
}

// WithRoles is Strict plus a check that the caller holds one of required
func (r *Resolver) WithRoles(ctx context.Context, bearer string, required ...string) (*Principal, error) {
	p, err := r.Strict(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if len(required) > 0 && !p.HasAnyRole(required...) {
		return nil, services.ErrForbidden.WithDetail("required_roles", required)
	}
	return p, nil
}

func (r *Resolver) resolve(ctx context.Context, bearer string) (*Principal, error) {
	claims, err := r.verifier.VerifyAccess(ctx, bearer)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, services.ErrInvalidCredential.Wrap(err)
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return nil, services.WrapUnavailable(err)
	}
	if user == nil || !user.IsActive {
		return nil, services.ErrUserNotFound
	}

	roles, err := r.roles.RoleNamesForUser(ctx, userID)
	if err != nil {
		return nil, services.WrapUnavailable(err)
	}

	return &Principal{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Roles:    roles,
		Claims:   claims,
	}, nil
}
