package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/repositories"
)

// rotateScript swaps the old session for the new one only if the old one is
// still a member. ZREM's return value is the ownership test, so two callers
// presenting the same refresh token cannot both succeed.
//
// KEYS[1] sessions set, KEYS[2] revocation key of the old id
// ARGV[1] old id, ARGV[2] new id, ARGV[3] new expiry (unix seconds),
// ARGV[4] set ttl (seconds), ARGV[5] old id revocation ttl (ms)
var rotateScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[4])
if tonumber(ARGV[5]) > 0 then
  redis.call('SET', KEYS[2], '1', 'PX', ARGV[5])
end
return 1
`)

// SessionRegistry implements repositories.SessionRegistry on one sorted set
// per user: member = refresh jti, score = its expiry in unix seconds.
type SessionRegistry struct {
	client redis.UniversalClient
	// Lifetime of the set key, refreshed on every write. Equal to the refresh
	// token lifetime so the key outlives every member it holds.
	ttl time.Duration
	now func() time.Time
}

// SessionRegistryOption configures a SessionRegistry
type SessionRegistryOption func(*SessionRegistry)

// WithClock overrides the clock used to prune expired sessions
func WithClock(now func() time.Time) SessionRegistryOption {
	return func(r *SessionRegistry) { r.now = now }
}

func NewSessionRegistry(client redis.UniversalClient, ttl time.Duration, opts ...SessionRegistryOption) *SessionRegistry {
	r := &SessionRegistry{client: client, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ repositories.SessionRegistry = (*SessionRegistry)(nil)

func (r *SessionRegistry) Track(ctx context.Context, userID string, session models.Session) error {
	key := sessionsKey(userID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", r.nowScore())
		p.ZAdd(ctx, key, redis.Z{Score: float64(session.ExpiresAt.Unix()), Member: session.ID})
		p.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to track session: %w", err)
	}
	return nil
}

func (r *SessionRegistry) Untrack(ctx context.Context, userID, sessionID string) error {
	if err := r.client.ZRem(ctx, sessionsKey(userID), sessionID).Err(); err != nil {
		return fmt.Errorf("failed to untrack session: %w", err)
	}
	return nil
}

func (r *SessionRegistry) All(ctx context.Context, userID string) ([]models.Session, error) {
	key := sessionsKey(userID)

	var members *redis.ZSliceCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", r.nowScore())
		members = p.ZRangeWithScores(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]models.Session, 0, len(members.Val()))
	for _, z := range members.Val() {
		id, _ := z.Member.(string)
		sessions = append(sessions, models.Session{ID: id, ExpiresAt: time.Unix(int64(z.Score), 0)})
	}
	return sessions, nil
}

func (r *SessionRegistry) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, sessionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return nil
}

func (r *SessionRegistry) Rotate(ctx context.Context, userID, oldID string, next models.Session, revokeTTL time.Duration) (bool, error) {
	keys := []string{sessionsKey(userID), revokedKey(oldID)}
	res, err := rotateScript.Run(ctx, r.client, keys,
		oldID,
		next.ID,
		next.ExpiresAt.Unix(),
		int64(r.ttl/time.Second),
		revokeTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to rotate session: %w", err)
	}
	return res == 1, nil
}

// nowScore is the inclusive prune bound: a session expiring at this second is gone
func (r *SessionRegistry) nowScore() string {
	return strconv.FormatInt(r.now().Unix(), 10)
}
