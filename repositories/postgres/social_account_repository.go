package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
	"go.uber.org/zap"
)

// SocialAccountRepository implements the repositories.SocialAccountRepository interface
type SocialAccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSocialAccountRepository creates a new social account repository
func NewSocialAccountRepository(db *DB, logger *zap.Logger) repositories.SocialAccountRepository {
	return &SocialAccountRepository{
		db:     db,
		logger: logger,
	}
}

// Find looks up the link for a provider identity
func (r *SocialAccountRepository) Find(ctx context.Context, provider, providerAccountID string) (*models.SocialAccount, error) {
	query := `
		SELECT id, user_id, provider, provider_account_id, created_at
		FROM social_accounts
		WHERE provider = $1 AND provider_account_id = $2
	`

	acc := &models.SocialAccount{}
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, provider, providerAccountID).Scan(
		&acc.ID,
		&acc.UserID,
		&acc.Provider,
		&acc.ProviderAccountID,
		&acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get social account: %w", err)
	}
	return acc, nil
}

// Link stores a new provider identity link
func (r *SocialAccountRepository) Link(ctx context.Context, acc *models.SocialAccount) error {
	query := `
		INSERT INTO social_accounts (id, user_id, provider, provider_account_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		acc.ID, acc.UserID, acc.Provider, acc.ProviderAccountID, acc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to link social account: %w", mapError(err))
	}

	r.logger.Debug("social account linked",
		zap.String("user_id", acc.UserID.String()),
		zap.String("provider", acc.Provider))
	return nil
}

// Unlink removes the user's link to provider
func (r *SocialAccountRepository) Unlink(ctx context.Context, userID uuid.UUID, provider string) (bool, error) {
	query := `DELETE FROM social_accounts WHERE user_id = $1 AND provider = $2`

	res, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, userID, provider)
	if err != nil {
		return false, fmt.Errorf("failed to unlink social account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}
