package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/auth-service/config"
	"github.com/upb/auth-service/handlers"
	"github.com/upb/auth-service/internal/observability"
	"github.com/upb/auth-service/middleware"
	"github.com/upb/auth-service/repositories"
	"github.com/upb/auth-service/repositories/postgres"
	"github.com/upb/auth-service/repositories/redisstore"
	"github.com/upb/auth-service/services/account"
	"github.com/upb/auth-service/services/audit"
	"github.com/upb/auth-service/services/oauth"
	"github.com/upb/auth-service/services/principal"
	"github.com/upb/auth-service/services/ratelimit"
	"github.com/upb/auth-service/services/token"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Redis   *redis.Client
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories and stores
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager
	Sessions    repositories.SessionRegistry
	Revocations repositories.RevocationStore

	// Services
	Signer     *token.Signer
	Tokens     *token.Service
	Accounts   *account.Service
	History    *audit.Recorder
	Roles      *account.RoleService
	Principals *principal.Resolver
	OAuth      *oauth.Service
	RateLimit  *ratelimit.Service

	// HTTP
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
	AuthHandler         *handlers.AuthHandler
	AccountHandler      *handlers.AccountHandler
	AdminHandler        *handlers.AdminHandler
	OAuthHandler        *handlers.OAuthHandler
	HealthHandler       *handlers.HealthHandler
}

// NewDependencies connects to Postgres and Redis, loads the signing keys and
// wires every component.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	rdb, err := redisstore.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	keys, err := token.LoadKeySet(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath, cfg.JWT.AdditionalPublicKeyPaths)
	if err != nil {
		_ = rdb.Close()
		_ = factory.Close()
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}

	deps, err := Assemble(cfg, logger, factory, rdb, keys, observability.NewMetrics())
	if err != nil {
		_ = rdb.Close()
		_ = factory.Close()
		return nil, err
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("signing_kid", keys.SigningKID()),
		zap.Strings("oauth_providers", deps.OAuth.Providers()))
	return deps, nil
}

// Assemble wires the service graph over already opened connections
func Assemble(
	cfg *config.Config,
	logger *zap.Logger,
	factory *postgres.RepositoryFactory,
	rdb *redis.Client,
	keys *token.KeySet,
	metrics *observability.Metrics,
) (*Dependencies, error) {
	d := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		RepoFactory: factory,
		DB:          factory.GetDB(),
		Redis:       rdb,
	}

	d.initRepositories()
	d.initServices(keys)
	if err := d.initRateLimit(); err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	if err := d.History.Start(); err != nil {
		return nil, fmt.Errorf("failed to start login history recorder: %w", err)
	}
	d.initHTTP()

	return d, nil
}

func (d *Dependencies) initRepositories() {
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()
	d.Sessions = redisstore.NewSessionRegistry(d.Redis, d.Config.JWT.RefreshTTL)
	d.Revocations = redisstore.NewRevocationStore(d.Redis)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices(keys *token.KeySet) {
	d.Signer = token.NewSigner(keys, token.SignerConfig{
		Issuer:     d.Config.JWT.Issuer,
		AccessTTL:  d.Config.JWT.AccessTTL,
		RefreshTTL: d.Config.JWT.RefreshTTL,
	})

	d.Accounts = account.NewService(d.Repos, d.TxManager, d.Logger)
	d.Roles = account.NewRoleService(d.Repos, d.Logger)
	d.History = audit.NewRecorder(d.Repos.LoginHistory, d.Logger, audit.DefaultConfig())
	d.Tokens = token.NewService(d.Signer, d.Accounts, d.Sessions, d.Revocations, d.Metrics, d.Logger)
	d.Principals = principal.NewResolver(d.Tokens, d.Repos.Users, d.Repos.Roles, d.Logger)

	registry := oauth.NewRegistryFromConfig(d.Config.OAuth)
	d.OAuth = oauth.NewService(registry, d.Repos, d.Accounts, d.Tokens, d.TxManager, d.Logger)
	if len(registry.Names()) == 0 {
		d.Logger.Warn("no oauth providers configured")
	}
}

func (d *Dependencies) initRateLimit() error {
	if !d.Config.RateLimit.Enabled {
		d.Logger.Warn("rate limiting disabled")
		return nil
	}

	rules, err := ratelimit.NewRules(d.Config.RateLimit)
	if err != nil {
		return err
	}
	d.RateLimit = ratelimit.NewService(ratelimit.NewLimiter(d.Redis), rules, d.Metrics, d.Logger)
	d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(d.RateLimit, d.Signer)
	return nil
}

func historyDrainTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			return remaining
		}
	}
	return 5 * time.Second
}

func (d *Dependencies) initHTTP() {
	cookie := handlers.NewRefreshCookie(d.Config.Cookie, d.Config.JWT.RefreshTTL)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Principals, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.Tokens, d.History, cookie, d.Logger)
	d.AccountHandler = handlers.NewAccountHandler(d.Accounts, d.Tokens, d.Logger)
	d.AdminHandler = handlers.NewAdminHandler(d.Tokens, d.Accounts, d.Roles, d.Logger)
	d.OAuthHandler = handlers.NewOAuthHandler(d.OAuth, d.History, cookie, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Redis, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.History != nil {
		if err := d.History.Stop(historyDrainTimeout(ctx)); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to drain login history: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			d.Logger.Info("redis connection closed")
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
