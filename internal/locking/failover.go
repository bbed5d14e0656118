package locking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hotelsync/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverLocker uses the primary locker and falls back to the in-process one
// while the primary is unreachable. A wait timeout is not a failure.
type FailoverLocker struct {
	primary   domain.RoomLocker
	fallback  domain.RoomLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLocker(primary, fallback domain.RoomLocker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *FailoverLocker) Lock(ctx context.Context, key string) (func(), error) {
	if !l.isDown.Load() || l.recoveryDue() {
		unlock, err := l.primary.Lock(ctx, key)
		if err == nil {
			if l.isDown.Swap(false) {
				l.logger.Info().Msg("Primary room locker recovered")
			}
			return unlock, nil
		}
		if errors.Is(err, ErrLockTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !l.isDown.Swap(true) {
			l.logger.Error().Err(err).Msg("Primary room locker failed, falling back to memory")
		}
		l.markChecked()
	}

	return l.fallback.Lock(ctx, key)
}

func (l *FailoverLocker) recoveryDue() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Since(l.lastCheck) > recoveryInterval
}

func (l *FailoverLocker) markChecked() {
	l.mu.Lock()
	l.lastCheck = time.Now()
	l.mu.Unlock()
}
