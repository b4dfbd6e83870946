// Package workspace provides the index resources a dispatch cycle runs
// against: an exclusive lock, lazily opened reader and writer handles, and
// the post-write maintenance hook.
package workspace

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/work"
)

// Provider hands out the index resources of one shard.
type Provider interface {
	// Lock blocks until the index is exclusively held or ctx ends.
	Lock(ctx context.Context) error
	Unlock()
	OpenReader() (work.ReaderHandle, error)
	CloseReader(h work.ReaderHandle) error
	OpenWriter(batch bool) (work.WriterHandle, error)
	CloseWriter(h work.WriterHandle) error
	// PostWriteMaintenance runs once after a non-empty writer phase.
	PostWriteMaintenance() error
}

// WithLock runs fn while p is locked. The lock is released on every exit
// path, panics included.
func WithLock(ctx context.Context, p Provider, fn func() error) error {
	if err := p.Lock(ctx); err != nil {
		return err
	}
	defer p.Unlock()
	return fn()
}
