package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User represents an account that can authenticate with a password or a linked provider
type User struct {
	ID             uuid.UUID `json:"id" db:"user_id"`
	Username       string    `json:"username" db:"username"`
	Email          string    `json:"email,omitempty" db:"email"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new active User instance
func NewUser(username, email, hashedPassword string) *User {
	now := time.Now().UTC()
	return &User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// PlaceholderEmail builds the address used for provider accounts that expose no email
func PlaceholderEmail(username string) string {
	return fmt.Sprintf("%s@no-email.local", username)
}
