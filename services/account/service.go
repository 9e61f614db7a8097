package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
	"github.com/upb/auth-service/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SignupInput carries a new account's credentials
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Service owns password accounts: sign-up, updates, deletion, credential
// checks, login history and the bootstrap superuser
type Service struct {
	repos     *repositories.Repositories
	txMgr     repositories.TransactionManager
	logger    *zap.Logger
	cost      int
	dummyHash []byte
}

// Option customizes a Service
type Option func(*Service)

// WithBcryptCost overrides the hashing cost
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a new account service
func NewService(repos *repositories.Repositories, txMgr repositories.TransactionManager, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repos:  repos,
		txMgr:  txMgr,
		logger: logger,
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Compared against when the username is unknown so both failure paths
	// spend the same time hashing.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
	return s
}

// HashPassword hashes a password at the configured cost
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate checks a username and password. Unknown users, inactive
// users and wrong passwords all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repos.Users.FindByUsername(ctx, username)
	if err != nil {
		return nil, services.WrapUnavailable(err)
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, services.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, services.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, services.ErrInvalidCredentials
	}
	return user, nil
}

// Signup creates an account and grants it the default user role
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, services.WrapInternal("failed to hash password", err)
	}
	user := models.NewUser(in.Username, in.Email, hash)

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) error {
		return s.CreateWithRole(ctx, user, models.RoleUser)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
	)
	return user, nil
}

// CreateWithRole inserts user and assigns roleName. Call it with a
// transaction context.
func (s *Service) CreateWithRole(ctx context.Context, user *models.User, roleName string) error {
	if err := s.repos.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return services.ErrDuplicateUsername
		}
		return services.WrapInternal("failed to create user", err)
	}

	role, err := s.repos.Roles.FindByName(ctx, roleName)
	if err != nil {
		return services.WrapInternal("failed to load role", err)
	}
	if role == nil {
		s.logger.Warn("default role missing, user created without it", zap.String("role", roleName))
		return nil
	}
	if err := s.repos.Roles.Assign(ctx, user.ID, role.ID); err != nil {
		return services.WrapInternal("failed to assign role", err)
	}
	return nil
}

// UpdateInput changes a user's own account. Empty fields are left alone;
// a password change needs both passwords.
type UpdateInput struct {
	Username    string
	OldPassword string
	NewPassword string
}

// UpdateResult reports what Update changed
type UpdateResult struct {
	User            *models.User
	UsernameChanged bool
	PasswordChanged bool
}

// Update applies a self-service change. PasswordChanged on the result tells
// the caller to end the user's sessions.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, in UpdateInput) (*UpdateResult, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{User: user}
	if in.Username != "" && in.Username != user.Username {
		user.Username = in.Username
		res.UsernameChanged = true
	}
	if in.OldPassword != "" && in.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(in.OldPassword)); err != nil {
			return nil, services.ErrWrongPassword
		}
		hash, err := s.HashPassword(in.NewPassword)
		if err != nil {
			return nil, services.WrapInternal("failed to hash password", err)
		}
		user.HashedPassword = hash
		res.PasswordChanged = true
	}
	if !res.UsernameChanged && !res.PasswordChanged {
		return nil, services.ErrNoChanges
	}

	if err := s.repos.Users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			return nil, services.ErrDuplicateUsername
		case errors.Is(err, repositories.ErrNotFound):
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to update user", err)
	}

	s.logger.Info("user updated",
		zap.String("user_id", user.ID.String()),
		zap.Bool("username_changed", res.UsernameChanged),
		zap.Bool("password_changed", res.PasswordChanged),
	)
	return res, nil
}

// Delete removes a user together with their roles, history and social links.
// Live sessions are the caller's to revoke first.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.repos.Users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return services.ErrUserNotFound
		}
		return services.WrapInternal("failed to delete user", err)
	}
	s.logger.Info("user deleted", zap.String("user_id", userID.String()))
	return nil
}

// EnsureSuperuser makes sure username exists and holds the admin role,
// creating the user and the role as needed. An existing user keeps their
// password. Running it twice changes nothing.
func (s *Service) EnsureSuperuser(ctx context.Context, username, email, password string) (*models.User, error) {
	if password == "" {
		return nil, services.ErrInvalidInput.WithDetail("password", "required")
	}

	user, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.User, error) {
		user, err := s.repos.Users.FindByUsername(ctx, username)
		if err != nil {
			return nil, services.WrapUnavailable(err)
		}
		if user == nil {
			hash, err := s.HashPassword(password)
			if err != nil {
				return nil, services.WrapInternal("failed to hash password", err)
			}
			user = models.NewUser(username, email, hash)
			if err := s.repos.Users.Create(ctx, user); err != nil {
				return nil, services.WrapInternal("failed to create superuser", err)
			}
		}

		role, err := s.repos.Roles.FindByName(ctx, models.RoleAdmin)
		if err != nil {
			return nil, services.WrapInternal("failed to load role", err)
		}
		if role == nil {
			role = models.NewRole(models.RoleAdmin, "Administrator role")
			if err := s.repos.Roles.Create(ctx, role); err != nil {
				return nil, services.WrapInternal("failed to create admin role", err)
			}
		}
		if err := s.repos.Roles.Assign(ctx, user.ID, role.ID); err != nil {
			return nil, services.WrapInternal("failed to assign admin role", err)
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("superuser ensured",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
	)
	return user, nil
}

// GetUser loads a user by id
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repos.Users.FindByID(ctx, id)
	if err != nil {
		return nil, services.WrapUnavailable(err)
	}
	if user == nil {
		return nil, services.ErrUserNotFound
	}
	return user, nil
}

// LoginHistory pages through the user's sign-ins, newest first
func (s *Service) LoginHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.LoginHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.repos.LoginHistory.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list login history", err)
	}
	return entries, nil
}
