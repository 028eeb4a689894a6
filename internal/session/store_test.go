package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/erpconsole/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testRecord(id string, ttl time.Duration) Record {
	now := time.Now().UTC().Truncate(time.Second)
	return Record{
		ID: id,
		Identity: model.Identity{
			Username:    "alice",
			Roles:       []string{"hr_manager"},
			Permissions: model.NewPermissionSet("employees:view"),
		},
		BackendCookies: []Cookie{{Name: "sid", Value: "backend-1"}},
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := testRecord("s1", time.Hour)
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Identity.Username)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "s1"))
}

func TestMemoryStore_expiredRecordIsDropped(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, testRecord("s1", time.Minute)))
	s.now = func() time.Time { return now.Add(2 * time.Minute) }

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := testRecord("s1", time.Hour)
	require.NoError(t, s.Put(ctx, rec))
	assert.True(t, mr.Exists(redisKeyPrefix+"s1"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(redisKeyPrefix+"s1").Seconds(), 5)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, rec.Identity.Username, got.Identity.Username)
	assert.True(t, got.Identity.Permissions.Has("employees:view"))
	assert.Equal(t, rec.BackendCookies, got.BackendCookies)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_keyExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client)

	require.NoError(t, s.Put(ctx, testRecord("s1", time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_putExpiredDeletes(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client)

	require.NoError(t, s.Put(ctx, testRecord("s1", time.Hour)))
	require.NoError(t, s.Put(ctx, testRecord("s1", -time.Minute)))
	assert.False(t, mr.Exists(redisKeyPrefix+"s1"))
}

func TestRedisStore_healthCheck(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStore(client)

	assert.NoError(t, s.HealthCheck(context.Background()))
	mr.Close()
	assert.Error(t, s.HealthCheck(context.Background()))
}
