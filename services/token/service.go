package token

import (
	"context"
	"errors"
	"time"

	"github.com/upb/auth-service/internal/observability"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
	"github.com/upb/auth-service/services"
	"go.uber.org/zap"
)

// Rotation outcomes reported to metrics
const (
	RotationSucceeded = "rotated"
	RotationReplayed  = "replayed"
	RotationFailed    = "failed"
)

// Authenticator checks a username and password pair. It must return
// services.ErrInvalidCredentials for both unknown users and wrong passwords.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

// Pair is what login and refresh hand back to the client
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Service drives the refresh token lifecycle:
// issued, then active, then one of rotated, revoked or expired.
type Service struct {
	signer      *Signer
	auth        Authenticator
	sessions    repositories.SessionRegistry
	revocations repositories.RevocationStore
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewService creates a new token service
func NewService(
	signer *Signer,
	auth Authenticator,
	sessions repositories.SessionRegistry,
	revocations repositories.RevocationStore,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		signer:      signer,
		auth:        auth,
		sessions:    sessions,
		revocations: revocations,
		metrics:     metrics,
		logger:      logger,
	}
}

// Signer exposes the underlying signer for JWKS and verification
func (s *Service) Signer() *Signer {
	return s.signer
}

// Login checks credentials and opens a new session
func (s *Service) Login(ctx context.Context, username, password string) (*Pair, *models.User, error) {
	user, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.IssuePair(ctx, Identity{UserID: user.ID.String(), Email: user.Email})
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// IssuePair signs an access and refresh token and tracks the refresh token
// under the user
func (s *Service) IssuePair(ctx context.Context, id Identity) (*Pair, error) {
	pair, refresh, err := s.sign(id)
	if err != nil {
		return nil, err
	}

	session := models.Session{ID: refresh.ID, ExpiresAt: refresh.ExpiresAt.Time}
	if err := s.sessions.Track(ctx, id.UserID, session); err != nil {
		return nil, services.WrapUnavailable(err)
	}
	return pair, nil
}

func (s *Service) sign(id Identity) (*Pair, *Claims, error) {
	access, _, err := s.signer.Issue(id, KindAccess)
	if err != nil {
		return nil, nil, services.WrapInternal("failed to issue access token", err)
	}
	refresh, refreshClaims, err := s.signer.Issue(id, KindRefresh)
	if err != nil {
		return nil, nil, services.WrapInternal("failed to issue refresh token", err)
	}

	s.metrics.TokenIssued(string(KindAccess))
	s.metrics.TokenIssued(string(KindRefresh))

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "bearer",
		ExpiresIn:        int(s.signer.TTL(KindAccess).Seconds()),
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, refreshClaims, nil
}

// Refresh rotates a refresh token. The replacement pair is signed before any
// store is touched so a failed or cancelled rotation leaves the presented
// token valid. A revoked token is refused even while it is still tracked.
// Only one rotation of a given token can succeed; a loser that raced past the
// revocation lookup fails with ErrSessionNotFound.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	claims, err := s.signer.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != KindRefresh {
		return nil, services.ErrWrongTokenType
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, services.WrapUnavailable(err)
	}
	if revoked {
		s.metrics.Rotation(RotationReplayed)
		observability.LoggerFromContext(ctx, s.logger).Warn("revoked refresh token presented",
			zap.String("user_id", claims.Subject),
			zap.String("jti", claims.ID),
		)
		return nil, services.ErrTokenRevoked
	}

	pair, next, err := s.sign(claims.Identity())
	if err != nil {
		return nil, err
	}

	rotated, err := s.sessions.Rotate(ctx, claims.Subject, claims.ID,
		models.Session{ID: next.ID, ExpiresAt: next.ExpiresAt.Time},
		s.signer.RemainingTTL(claims))
	if err != nil {
		s.metrics.Rotation(RotationFailed)
		return nil, services.WrapUnavailable(err)
	}
	if !rotated {
		s.metrics.Rotation(RotationReplayed)
		observability.LoggerFromContext(ctx, s.logger).Warn("refresh token presented after rotation",
			zap.String("user_id", claims.Subject),
			zap.String("jti", claims.ID),
		)
		return nil, services.ErrSessionNotFound
	}

	s.metrics.Rotation(RotationSucceeded)
	return pair, nil
}

// Logout revokes the presented refresh token and ends its session.
// A token that has already expired needs no bookkeeping.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.signer.Verify(refreshToken)
	if errors.Is(err, services.ErrExpiredCredential) {
		return nil
	}
	if err != nil {
		return err
	}
	if claims.Type != KindRefresh {
		return services.ErrWrongTokenType
	}

	if err := s.revocations.Revoke(ctx, claims.ID, s.signer.RemainingTTL(claims)); err != nil {
		return services.WrapUnavailable(err)
	}
	if err := s.sessions.Untrack(ctx, claims.Subject, claims.ID); err != nil {
		return services.WrapUnavailable(err)
	}
	s.metrics.Revoked(1)
	return nil
}

// LogoutAll revokes every tracked session of the user and returns how many
// were ended
func (s *Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	sessions, err := s.sessions.All(ctx, userID)
	if err != nil {
		return 0, services.WrapUnavailable(err)
	}

	now := s.signer.Now()
	for _, session := range sessions {
		if err := s.revocations.Revoke(ctx, session.ID, session.ExpiresAt.Sub(now)); err != nil {
			return 0, services.WrapUnavailable(err)
		}
	}
	if err := s.sessions.Clear(ctx, userID); err != nil {
		return 0, services.WrapUnavailable(err)
	}

	s.metrics.Revoked(len(sessions))
	observability.LoggerFromContext(ctx, s.logger).Info("all sessions revoked",
		zap.String("user_id", userID),
		zap.Int("sessions", len(sessions)),
	)
	return len(sessions), nil
}

// RevokeAccess denies an access token for the rest of its lifetime
func (s *Service) RevokeAccess(ctx context.Context, claims *Claims) error {
	if err := s.revocations.Revoke(ctx, claims.ID, s.signer.RemainingTTL(claims)); err != nil {
		return services.WrapUnavailable(err)
	}
	s.metrics.Revoked(1)
	return nil
}

// Sessions lists the live sessions of a user
func (s *Service) Sessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := s.sessions.All(ctx, userID)
	if err != nil {
		return nil, services.WrapUnavailable(err)
	}
	return sessions, nil
}

// VerifyAccess authenticates a bearer token. An unreachable revocation store
// fails the check rather than admitting a possibly revoked token.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.signer.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != KindAccess {
		return nil, services.ErrWrongTokenType
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, services.WrapUnavailable(err)
	}
	if revoked {
		return nil, services.ErrTokenRevoked
	}
	return claims, nil
}
