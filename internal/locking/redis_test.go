package locking

import (
	"bytes"
	"context"
	"testing"
	"time"

	"hotelsync/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr(), PoolSize: 2})
	defer Close(client)

	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	locker := NewRedisLocker(client, time.Minute, 100*time.Millisecond, nil)
	locker.poll = 10 * time.Millisecond

	t.Run("AcquireAndRelease", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "room_lock:grand:1")
		require.NoError(t, err)
		assert.True(t, s.Exists("room_lock:grand:1"))
		assert.Greater(t, s.TTL("room_lock:grand:1"), time.Duration(0))

		unlock()
		assert.False(t, s.Exists("room_lock:grand:1"))
	})

	t.Run("WaitTimesOut", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "room_lock:grand:2")
		require.NoError(t, err)
		defer unlock()

		_, err = locker.Lock(ctx, "room_lock:grand:2")
		assert.ErrorIs(t, err, ErrLockTimeout)
	})

	t.Run("ExpiredLockIsNotStolenBack", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "room_lock:grand:3")
		require.NoError(t, err)

		s.FastForward(2 * time.Minute)
		unlockOther, err := locker.Lock(ctx, "room_lock:grand:3")
		require.NoError(t, err)

		// the first holder's release must not drop the new holder's lock
		unlock()
		assert.True(t, s.Exists("room_lock:grand:3"))

		unlockOther()
		assert.False(t, s.Exists("room_lock:grand:3"))
	})

	t.Run("ServerDown", func(t *testing.T) {
		broken := NewRedisLocker(NewRedisClient(config.RedisConfig{Address: "127.0.0.1:1"}), time.Minute, 0, nil)
		_, err := broken.Lock(ctx, "room_lock:grand:4")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrLockTimeout)
	})
}

func TestRedisLocker_ReleaseFailureIsLogged(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := NewRedisClient(config.RedisConfig{Address: s.Addr(), PoolSize: 1})
	defer Close(client)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	locker := NewRedisLocker(client, time.Minute, 0, &logger)

	unlock, err := locker.Lock(context.Background(), "room_lock:grand:7")
	require.NoError(t, err)

	s.Close()
	unlock()

	assert.Contains(t, buf.String(), "Failed to release room lock")
	assert.Contains(t, buf.String(), "room_lock:grand:7")
}
