package token

import "github.com/golang-jwt/jwt/v5"

// Kind separates short-lived access tokens from long-lived refresh tokens
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload of every token the service signs
type Claims struct {
	Email string `json:"email,omitempty"`
	Type  Kind   `json:"type"`
	jwt.RegisteredClaims
}

// Identity is what a token asserts about its holder
type Identity struct {
	UserID string
	Email  string
}

func (c *Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email}
}
