package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/auth-service/services"
)

const signingAlgorithm = "RS256"

// SignerConfig holds token lifetimes and the issuer name
type SignerConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Signer issues and verifies RS256 tokens against a KeySet
type Signer struct {
	keys   *KeySet
	cfg    SignerConfig
	now    func() time.Time
	parser *jwt.Parser
}

// SignerOption customizes a Signer
type SignerOption func(*Signer)

// WithNow overrides the clock used for iat, exp and expiry checks
func WithNow(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// NewSigner creates a new signer
func NewSigner(keys *KeySet, cfg SignerConfig, opts ...SignerOption) *Signer {
	s := &Signer{keys: keys, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	s.parser = jwt.NewParser(parserOpts...)
	return s
}

// Now returns the signer's current time
func (s *Signer) Now() time.Time {
	return s.now()
}

// TTL returns the lifetime of tokens of the given kind
func (s *Signer) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return s.cfg.RefreshTTL
	}
	return s.cfg.AccessTTL
}

// Issue signs a new token of the given kind with a fresh jti
func (s *Signer) Issue(id Identity, kind Kind) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Email: id.Email,
		Type:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL(kind))),
			ID:        uuid.NewString(),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.keys.SigningKID()

	signed, err := tok.SignedString(s.keys.signing)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, claims, nil
}

// Verify checks the signature first and expiry second. An expired but
// authentic token yields ErrExpiredCredential, anything else that fails
// yields ErrInvalidCredential.
func (s *Signer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(raw, claims, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, services.ErrExpiredCredential.Wrap(err)
		}
		return nil, services.ErrInvalidCredential.Wrap(err)
	}

	if claims.Subject == "" || claims.ID == "" {
		return nil, services.ErrInvalidCredential
	}
	if claims.Type != KindAccess && claims.Type != KindRefresh {
		return nil, services.ErrWrongTokenType
	}
	return claims, nil
}

func (s *Signer) keyFunc(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("token has no kid")
	}
	key, ok := s.keys.PublicKey(kid)
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return key, nil
}

// RemainingTTL is how long the token stays valid from now
func (s *Signer) RemainingTTL(c *Claims) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(s.now())
}

// JWKS exposes the verification keys
func (s *Signer) JWKS() JWKS {
	return s.keys.JWKS()
}
