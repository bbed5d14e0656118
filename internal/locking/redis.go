package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelsync/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLockTimeout is returned when a room lock could not be taken in time.
var ErrLockTimeout = errors.New("room lock wait timed out")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds room locks in Redis so several processes can reconcile
// the same property.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	logger *zerolog.Logger
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, logger *zerolog.Logger) *RedisLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		poll:   50 * time.Millisecond,
		logger: logger,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// release with a fresh context so a cancelled caller still frees the room
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
					// ключ освободится сам по TTL
					l.logger.Error().Err(err).Str("key", key).Dur("ttl", l.ttl).Msg("Failed to release room lock")
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
