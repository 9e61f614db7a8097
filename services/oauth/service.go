package oauth

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

// Accounts provisions users for first-time provider sign-ins
type Accounts interface {
	HashPassword(password string) (string, error)
	CreateWithRole(ctx context.Context, user *models.User, roleName string) error
}

// TokenIssuer opens a session for a resolved user
type TokenIssuer interface {
	IssuePair(ctx context.Context, id token.Identity) (*token.Pair, error)
}

// Service signs users in through external providers, creating and linking
// a local account the first time a provider identity is seen.
type Service struct {
	registry *Registry
	users    repositories.UserRepository
	social   repositories.SocialAccountRepository
	accounts Accounts
	tokens   TokenIssuer
	txMgr    repositories.TransactionManager
	logger   *zap.Logger
}

func NewService(
	registry *Registry,
	repos *repositories.Repositories,
	accounts Accounts,
	tokens TokenIssuer,
	txMgr repositories.TransactionManager,
	logger *zap.Logger,
) *Service {
	return &Service{
		registry: registry,
		users:    repos.Users,
		social:   repos.SocialAccounts,
		accounts: accounts,
		tokens:   tokens,
		txMgr:    txMgr,
		logger:   logger,
	}
}

// NewState returns an unguessable value for the state parameter
func NewState() string {
	return uuid.NewString()
}

// AuthorizeURL is where the browser is sent to start the flow
func (s *Service) AuthorizeURL(provider, state string) (string, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return "", err
	}
	return p.AuthorizeURL(state), nil
}

// Callback completes the code flow and opens a session for the user
func (s *Service) Callback(ctx context.Context, provider, code string) (*token.Pair, *models.User, error) {
	p, err := s.registry.Get(provider)
	if err != nil {
		return nil, nil, err
	}

	tok, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, services.ErrInvalidCredentials.Wrap(err)
	}
	ident, err := p.FetchIdentity(ctx, tok)
	if err != nil {
		return nil, nil, services.WrapError(services.ErrorTypeUnavailable, "identity provider error", err)
	}

	user, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.User, error) {
		return s.findOrCreate(ctx, p.Name(), ident)
	})
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, services.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(ctx, token.Identity{UserID: user.ID.String(), Email: user.Email})
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

func (s *Service) findOrCreate(ctx context.Context, provider string, ident *Identity) (*models.User, error) {
	link, err := s.social.Find(ctx, provider, ident.ProviderAccountID)
	if err != nil {
		return nil, services.WrapInternal("failed to look up social account", err)
	}
	if link != nil {
		user, err := s.users.FindByID(ctx, link.UserID)
		if err != nil {
			return nil, services.WrapInternal("failed to load linked user", err)
		}
		if user == nil {
			return nil, services.ErrUserNotFound
		}
		return user, nil
	}

	username, err := s.freeUsername(ctx, provider, ident)
	if err != nil {
		return nil, err
	}
	email := ident.Email
	if email == "" {
		email = models.PlaceholderEmail(username)
	}

	// Provider users never sign in with a password; this one is unguessable.
	hash, err := s.accounts.HashPassword(uuid.NewString())
	if err != nil {
		return nil, services.WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(username, email, hash)
	if err := s.accounts.CreateWithRole(ctx, user, models.RoleUser); err != nil {
		return nil, err
	}
	if err := s.social.Link(ctx, models.NewSocialAccount(user.ID, provider, ident.ProviderAccountID)); err != nil {
		return nil, services.WrapInternal("failed to link social account", err)
	}

	observability.LoggerFromContext(ctx, s.logger).Info("user provisioned from identity provider",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", provider),
	)
	return user, nil
}

// freeUsername prefers the provider login and falls back to a name derived
// from the provider account id
func (s *Service) freeUsername(ctx context.Context, provider string, ident *Identity) (string, error) {
	fallback := fmt.Sprintf("user_%s", ident.ProviderAccountID)
	if ident.Login == "" {
		return fallback, nil
	}

	taken, err := s.users.FindByUsername(ctx, ident.Login)
	if err != nil {
		return "", services.WrapInternal("failed to check username", err)
	}
	if taken == nil {
		return ident.Login, nil
	}
	return fmt.Sprintf("%s_%s", provider, ident.ProviderAccountID), nil
}

// Unlink detaches the user's account at provider
func (s *Service) Unlink(ctx context.Context, userID uuid.UUID, provider string) error {
	if _, err := s.registry.Get(provider); err != nil {
		return err
	}
	removed, err := s.social.Unlink(ctx, userID, provider)
	if err != nil {
		return services.WrapInternal("failed to unlink social account", err)
	}
	if !removed {
		return services.ErrSocialAccountNotFound
	}
	return nil
}

// Providers lists the configured provider names
func (s *Service) Providers() []string {
	return s.registry.Names()
}
