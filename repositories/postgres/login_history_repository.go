package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
	"go.uber.org/zap"
)

// LoginHistoryRepository implements the repositories.LoginHistoryRepository interface
type LoginHistoryRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewLoginHistoryRepository creates a new login history repository
func NewLoginHistoryRepository(db *DB, logger *zap.Logger) repositories.LoginHistoryRepository {
	return &LoginHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Record inserts a login history entry
func (r *LoginHistoryRepository) Record(ctx context.Context, entry *models.LoginHistory) error {
	query := `
		INSERT INTO login_history (id, user_id, user_agent, ip_address, login_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		nullString(entry.UserAgent),
		nullString(entry.IPAddress),
		entry.LoginAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// ListByUser returns a page of a user's login history, newest first
func (r *LoginHistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.LoginHistory, error) {
	query := `
		SELECT id, user_id, COALESCE(user_agent, ''), COALESCE(ip_address, ''), login_at
		FROM login_history
		WHERE user_id = $1
		ORDER BY login_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list login history: %w", err)
	}
	defer rows.Close()

	entries := []*models.LoginHistory{}
	for rows.Next() {
		e := &models.LoginHistory{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserAgent, &e.IPAddress, &e.LoginAt); err != nil {
			return nil, fmt.Errorf("failed to scan login history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate login history: %w", err)
	}
	return entries, nil
}
