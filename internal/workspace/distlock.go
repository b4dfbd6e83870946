package workspace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// LockStore is the atomic set-if-absent store behind a DistributedLock.
type LockStore interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) (bool, error)
}

// DistributedLock extends the in-process lock across index nodes sharing the
// same shard directory. Acquire polls until the key is free.
type DistributedLock struct {
	store    LockStore
	key      string
	ttl      time.Duration
	pollWait time.Duration
	logger   *slog.Logger
}

func NewDistributedLock(store LockStore, key string, ttl, pollWait time.Duration) *DistributedLock {
	if pollWait <= 0 {
		pollWait = 50 * time.Millisecond
	}
	return &DistributedLock{
		store:    store,
		key:      key,
		ttl:      ttl,
		pollWait: pollWait,
		logger:   slog.Default().With("component", "distributed-lock", "key", key),
	}
}

// Acquire blocks until the lock is held and returns the token that must be
// passed to Release.
func (l *DistributedLock) Acquire(ctx context.Context) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	wait := l.pollWait
	for {
		ok, err := l.store.TryLock(ctx, l.key, token, l.ttl)
		if err != nil {
			return "", err
		}
		if ok {
			l.logger.Debug("distributed lock acquired")
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
		if wait < 8*l.pollWait {
			wait *= 2
		}
	}
}

// Release gives the lock back. A lock that already expired is logged, not
// treated as an error.
func (l *DistributedLock) Release(ctx context.Context, token string) error {
	released, err := l.store.Unlock(ctx, l.key, token)
	if err != nil {
		return err
	}
	if !released {
		l.logger.Warn("distributed lock expired before release", "ttl", l.ttl)
	}
	return nil
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
