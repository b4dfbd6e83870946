package backend

import (
	"context"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/work"
)

// Applier applies one batch of work items.
type Applier interface {
	Apply(ctx context.Context, items []work.Item) (Report, error)
}

// PendingSet gathers items from concurrent producers until they are flushed
// as a single dispatch cycle.
type PendingSet struct {
	applier Applier
	mu      sync.Mutex
	items   []work.Item
}

func NewPendingSet(applier Applier) *PendingSet {
	return &PendingSet{applier: applier}
}

func (s *PendingSet) Add(items ...work.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
}

func (s *PendingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Flush swaps out the gathered items and applies them. Items added while the
// flush runs wait for the next one.
func (s *PendingSet) Flush(ctx context.Context) (Report, error) {
	s.mu.Lock()
	items := s.items
	s.items = nil
	s.mu.Unlock()
	if len(items) == 0 {
		return Report{}, nil
	}
	return s.applier.Apply(ctx, items)
}
