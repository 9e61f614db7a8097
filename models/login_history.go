package models

import (
	"time"

	"github.com/google/uuid"
)

// LoginHistory records a successful sign-in
type LoginHistory struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	LoginAt   time.Time `json:"login_at" db:"login_at"`
}

// TableName returns the table name for the LoginHistory model
func (LoginHistory) TableName() string {
	return "login_history"
}

// NewLoginHistory creates a new LoginHistory entry stamped with the current time
func NewLoginHistory(userID uuid.UUID, userAgent, ip string) *LoginHistory {
	return &LoginHistory{
		ID:        uuid.New(),
		UserID:    userID,
		UserAgent: userAgent,
		IPAddress: ip,
		LoginAt:   time.Now().UTC(),
	}
}
