package cache

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/modstore/internal/core"
)

// StampedePreventer coordinates concurrent loads of the same key: only one
// caller runs the loader while the others wait for its result.
type StampedePreventer struct {
	mu      sync.Mutex
	pending map[string]*pendingRead
}

type pendingRead struct {
	done    chan struct{}
	records []core.Record
	err     error
}

// NewStampedePreventer creates a new stampede preventer.
func NewStampedePreventer() *StampedePreventer {
	return &StampedePreventer{
		pending: make(map[string]*pendingRead),
	}
}

// Do runs load for key unless a load for the same key is already in flight,
// in which case it waits for that load's result. Waiters receive clones.
func (sp *StampedePreventer) Do(ctx context.Context, key string, load func() ([]core.Record, error)) ([]core.Record, error) {
	sp.mu.Lock()
	if p, exists := sp.pending[key]; exists {
		sp.mu.Unlock()
		select {
		case <-p.done:
			if p.err != nil {
				return nil, p.err
			}
			return cloneRecords(p.records), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p := &pendingRead{done: make(chan struct{})}
	sp.pending[key] = p
	sp.mu.Unlock()

	p.records, p.err = load()

	sp.mu.Lock()
	delete(sp.pending, key)
	sp.mu.Unlock()
	close(p.done)

	return p.records, p.err
}

// InFlight reports whether a load for key is running.
func (sp *StampedePreventer) InFlight(key string) bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	_, exists := sp.pending[key]
	return exists
}

func cloneRecords(records []core.Record) []core.Record {
	if records == nil {
		return nil
	}
	out := make([]core.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
