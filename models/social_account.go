package models

import (
	"time"

	"github.com/google/uuid"
)

// SocialAccount links a user to an identity at an external OAuth provider
type SocialAccount struct {
	ID                uuid.UUID `json:"id" db:"id"`
	UserID            uuid.UUID `json:"user_id" db:"user_id"`
	Provider          string    `json:"provider" db:"provider"`
	ProviderAccountID string    `json:"provider_account_id" db:"provider_account_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the SocialAccount model
func (SocialAccount) TableName() string {
	return "social_accounts"
}

// NewSocialAccount creates a new SocialAccount link
func NewSocialAccount(userID uuid.UUID, provider, providerAccountID string) *SocialAccount {
	return &SocialAccount{
		ID:                uuid.New(),
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
		CreatedAt:         time.Now().UTC(),
	}
}
