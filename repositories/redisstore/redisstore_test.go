package redisstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/auth-service/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRevocationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("revoke is idempotent and expires", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := NewRevocationStore(client)

		require.NoError(t, store.Revoke(ctx, "jti-1", time.Minute))
		require.NoError(t, store.Revoke(ctx, "jti-1", time.Minute))

		revoked, err := store.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)
		assert.Equal(t, time.Minute, mr.TTL("revoked:jti-1"))
		assert.Len(t, mr.Keys(), 1)

		mr.FastForward(time.Minute + time.Second)
		revoked, err = store.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("non-positive ttl is a no-op", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := NewRevocationStore(client)

		require.NoError(t, store.Revoke(ctx, "jti-0", 0))
		require.NoError(t, store.Revoke(ctx, "jti-neg", -time.Second))
		assert.Empty(t, mr.Keys())
	})

	t.Run("unknown id is not revoked", func(t *testing.T) {
		_, client := newTestRedis(t)
		revoked, err := NewRevocationStore(client).IsRevoked(ctx, "never")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("store failure is reported", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := NewRevocationStore(client)
		mr.Close()

		_, err := store.IsRevoked(ctx, "jti-1")
		assert.Error(t, err)
	})
}

func TestSessionRegistry_TrackAndList(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	now := time.Unix(1_700_000_000, 0)
	reg := NewSessionRegistry(client, 7*24*time.Hour, WithClock(func() time.Time { return now }))

	require.NoError(t, reg.Track(ctx, "u1", models.Session{ID: "a", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, reg.Track(ctx, "u1", models.Session{ID: "b", ExpiresAt: now.Add(2 * time.Hour)}))
	assert.Equal(t, 7*24*time.Hour, mr.TTL("sessions:u1"))

	sessions, err := reg.All(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, now.Add(time.Hour).Unix(), sessions[0].ExpiresAt.Unix())

	// "a" expires; listing prunes it from the set
	now = now.Add(time.Hour)
	sessions, err = reg.All(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "b", sessions[0].ID)
	members, err := mr.ZMembers("sessions:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)

	require.NoError(t, reg.Untrack(ctx, "u1", "b"))
	sessions, err = reg.All(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSessionRegistry_Clear(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	reg := NewSessionRegistry(client, time.Hour)

	require.NoError(t, reg.Track(ctx, "u1", models.Session{ID: "a", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, reg.Clear(ctx, "u1"))
	assert.False(t, mr.Exists("sessions:u1"))
}

func TestSessionRegistry_Rotate(t *testing.T) {
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	t.Run("replaces member and revokes old id", func(t *testing.T) {
		mr, client := newTestRedis(t)
		reg := NewSessionRegistry(client, time.Hour)
		require.NoError(t, reg.Track(ctx, "u1", models.Session{ID: "old", ExpiresAt: exp}))

		ok, err := reg.Rotate(ctx, "u1", "old", models.Session{ID: "new", ExpiresAt: exp.Add(time.Minute)}, 30*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		members, err := mr.ZMembers("sessions:u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"new"}, members)
		assert.True(t, mr.Exists("revoked:old"))
		assert.Equal(t, 30*time.Second, mr.TTL("revoked:old"))
	})

	t.Run("replay of a rotated id changes nothing", func(t *testing.T) {
		mr, client := newTestRedis(t)
		reg := NewSessionRegistry(client, time.Hour)
		require.NoError(t, reg.Track(ctx, "u1", models.Session{ID: "old", ExpiresAt: exp}))

		ok, err := reg.Rotate(ctx, "u1", "old", models.Session{ID: "n1", ExpiresAt: exp}, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = reg.Rotate(ctx, "u1", "old", models.Session{ID: "n2", ExpiresAt: exp}, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		members, err := mr.ZMembers("sessions:u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"n1"}, members)
	})

	t.Run("concurrent rotations of one id have a single winner", func(t *testing.T) {
		mr, client := newTestRedis(t)
		reg := NewSessionRegistry(client, time.Hour)
		require.NoError(t, reg.Track(ctx, "u1", models.Session{ID: "old", ExpiresAt: exp}))

		const workers = 16
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := reg.Rotate(ctx, "u1", "old", models.Session{ID: fmt.Sprintf("new-%d", i), ExpiresAt: exp}, time.Minute)
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		members, err := mr.ZMembers("sessions:u1")
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})
}
