package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	user := NewUser("alice", "alice@example.com", "hash")

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}

func TestUser_JSONHidesPassword(t *testing.T) {
	user := NewUser("bob", "", "secret-hash")

	data, err := json.Marshal(user)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret-hash")
	assert.NotContains(t, string(data), "email")
}

func TestPlaceholderEmail(t *testing.T) {
	assert.Equal(t, "user_42@no-email.local", PlaceholderEmail("user_42"))
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "users", User{}.TableName())
	assert.Equal(t, "roles", Role{}.TableName())
	assert.Equal(t, "login_history", LoginHistory{}.TableName())
	assert.Equal(t, "social_accounts", SocialAccount{}.TableName())
}

func TestNewSocialAccount(t *testing.T) {
	userID := uuid.New()
	acc := NewSocialAccount(userID, "google", "sub-1")

	assert.NotEqual(t, uuid.Nil, acc.ID)
	assert.Equal(t, userID, acc.UserID)
	assert.Equal(t, "google", acc.Provider)
	assert.Equal(t, "sub-1", acc.ProviderAccountID)
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()

	assert.False(t, Session{ID: "a", ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Session{ID: "b", ExpiresAt: now}.Expired(now))
	assert.True(t, Session{ID: "c", ExpiresAt: now.Add(-time.Second)}.Expired(now))
}
