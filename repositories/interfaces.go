package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/auth-service/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context carrying the transaction; repositories
	// called with it run their statements inside the transaction
	Context() context.Context
}

// UserRepository handles user data operations.
// Find* methods return (nil, nil) when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// Update and Delete return ErrNotFound when the user does not exist
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RoleRepository handles roles and their assignment to users
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	List(ctx context.Context) ([]*models.Role, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByName returns (nil, nil) when the role does not exist
	FindByName(ctx context.Context, name string) (*models.Role, error)

	// RoleNamesForUser returns the names of every role assigned to the user
	RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error)

	// Assign is idempotent
	Assign(ctx context.Context, userID, roleID uuid.UUID) error
	Unassign(ctx context.Context, userID, roleID uuid.UUID) error
}

// LoginHistoryRepository records successful sign-ins
type LoginHistoryRepository interface {
	Record(ctx context.Context, entry *models.LoginHistory) error

	// ListByUser returns the newest entries first
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.LoginHistory, error)
}

// SocialAccountRepository links users to provider identities
type SocialAccountRepository interface {
	// Find returns (nil, nil) when the provider identity is not linked
	Find(ctx context.Context, provider, providerAccountID string) (*models.SocialAccount, error)
	Link(ctx context.Context, account *models.SocialAccount) error

	// Unlink reports whether a link was removed
	Unlink(ctx context.Context, userID uuid.UUID, provider string) (bool, error)
}

// RevocationStore is the shared deny-list of token ids.
// Entries expire on their own once the token they deny would have expired.
type RevocationStore interface {
	// Revoke is idempotent; a non-positive ttl is a no-op
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionRegistry tracks the live refresh token ids of each user.
// Membership is the authority on whether a refresh token is current.
type SessionRegistry interface {
	Track(ctx context.Context, userID string, session models.Session) error
	Untrack(ctx context.Context, userID, sessionID string) error

	// All returns unexpired sessions, pruning expired ones
	All(ctx context.Context, userID string) ([]models.Session, error)
	Clear(ctx context.Context, userID string) error

	// Rotate atomically replaces oldID with next and revokes oldID for
	// revokeTTL. It returns false, without changing anything, when oldID is
	// not a current session.
	Rotate(ctx context.Context, userID, oldID string, next models.Session, revokeTTL time.Duration) (bool, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Users          UserRepository
	Roles          RoleRepository
	LoginHistory   LoginHistoryRepository
	SocialAccounts SocialAccountRepository
}

var (
	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate key")

	// ErrNotFound is returned by mutations addressing a missing row
	ErrNotFound = errors.New("not found")
)
