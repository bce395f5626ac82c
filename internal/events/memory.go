package events

import (
	"context"
	"sync"
)

// MemoryBus delivers events between subscribers of the same process. Every
// subscriber gets its own copy of each event.
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers []*MemorySubscriber
	bufferSize  int
	closed      bool
}

// NewMemoryBus creates an in-memory bus. bufferSize bounds each subscriber's
// backlog.
func NewMemoryBus(bufferSize int) *MemoryBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &MemoryBus{bufferSize: bufferSize}
}

// Subscribe registers a new subscriber that sees events published from now on.
func (b *MemoryBus) Subscribe() *MemorySubscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &MemorySubscriber{bus: b, queue: make(chan Event, b.bufferSize)}
	if b.closed {
		s.closed = true
		close(s.queue)
		return s
	}
	b.subscribers = append(b.subscribers, s)
	return s
}

// Publish hands event to every subscriber. A full subscriber does not block
// the others; ErrBusFull is reported once all were tried.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	if err := event.validate(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	var full bool
	for _, s := range b.subscribers {
		select {
		case s.queue <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			full = true
		}
	}
	if full {
		return ErrBusFull
	}
	return nil
}

// Close closes the bus and every subscriber.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subscribers {
		s.close()
	}
	b.subscribers = nil
	return nil
}

func (b *MemoryBus) remove(target *MemorySubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s == target {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			break
		}
	}
	target.close()
}

// MemorySubscriber is one reader of a MemoryBus.
type MemorySubscriber struct {
	bus    *MemoryBus
	queue  chan Event
	mu     sync.Mutex
	closed bool
}

// Receive returns the events queued so far, up to max. It does not wait.
func (s *MemorySubscriber) Receive(ctx context.Context, max int) ([]Event, error) {
	if max <= 0 {
		max = 100
	}

	out := make([]Event, 0, max)
	for i := 0; i < max; i++ {
		select {
		case event, ok := <-s.queue:
			if !ok {
				if len(out) == 0 {
					return nil, ErrBusClosed
				}
				return out, nil
			}
			out = append(out, event)
		case <-ctx.Done():
			return out, ctx.Err()
		default:
			return out, nil
		}
	}
	return out, nil
}

// Size returns the number of queued events.
func (s *MemorySubscriber) Size() int {
	return len(s.queue)
}

// Close detaches the subscriber from its bus.
func (s *MemorySubscriber) Close() error {
	s.bus.remove(s)
	return nil
}

func (s *MemorySubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}
