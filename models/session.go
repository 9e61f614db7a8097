package models

import "time"

// Session is one live refresh token of a user, identified by the token's jti
type Session struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given instant
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
