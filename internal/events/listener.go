package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Handler applies one event received from another server.
type Handler func(ctx context.Context, event Event) error

// ListenerConfig contains configuration for the listener.
type ListenerConfig struct {
	// Rate is the maximum number of events applied per second.
	Rate int

	// Burst is how many events may be applied back to back.
	Burst int

	// BatchSize is how many events to receive at once.
	BatchSize int

	// PollInterval is how long to sleep when nothing arrived.
	PollInterval time.Duration
}

// DefaultListenerConfig returns sensible defaults for the listener.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		Rate:         50,
		Burst:        10,
		BatchSize:    100,
		PollInterval: 100 * time.Millisecond,
	}
}

// ListenerStats counts what a listener did with the events it received.
type ListenerStats struct {
	Applied uint64
	Skipped uint64
	Failed  uint64
}

// Listener receives events in the background and hands those published by
// other servers to a handler at a bounded rate.
type Listener struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}

	serverID   string
	subscriber Subscriber
	handler    Handler
	config     ListenerConfig

	applied atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

// NewListener creates a listener. Events whose Server equals serverID are
// skipped.
func NewListener(serverID string, subscriber Subscriber, handler Handler, config ListenerConfig) *Listener {
	defaults := DefaultListenerConfig()
	if config.Rate <= 0 {
		config.Rate = defaults.Rate
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}

	return &Listener{
		serverID:   serverID,
		subscriber: subscriber,
		handler:    handler,
		config:     config,
	}
}

// Start runs the listener goroutine until Stop is called or ctx ends.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		log.Printf("[LISTENER:%s] Already running", l.serverID)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.running = true
	l.cancel = cancel
	l.doneCh = make(chan struct{})

	go l.run(runCtx, l.doneCh)
	log.Printf("[LISTENER:%s] Started with rate: %d events/sec, burst: %d", l.serverID, l.config.Rate, l.config.Burst)
}

// Stop cancels the listener and waits for the event in hand to finish.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, done := l.cancel, l.doneCh
	l.mu.Unlock()

	cancel()
	<-done
	log.Printf("[LISTENER:%s] Stopped", l.serverID)
}

// IsRunning returns whether the listener goroutine is active.
func (l *Listener) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Stats returns the counters accumulated so far.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Applied: l.applied.Load(),
		Skipped: l.skipped.Load(),
		Failed:  l.failed.Load(),
	}
}

func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(rate.Limit(l.config.Rate), l.config.Burst)
	start := time.Now()

	for {
		if ctx.Err() != nil {
			log.Printf("[LISTENER:%s] Context cancelled, applied %d events in %v",
				l.serverID, l.applied.Load(), time.Since(start))
			return
		}

		batch, err := l.subscriber.Receive(ctx, l.config.BatchSize)
		if errors.Is(err, ErrBusClosed) {
			log.Printf("[LISTENER:%s] Bus closed, applied %d events", l.serverID, l.applied.Load())
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return
		}
		if err != nil && ctx.Err() == nil {
			log.Printf("[LISTENER:%s] Receive error: %v", l.serverID, err)
		}

		for _, event := range batch {
			if event.Server == l.serverID {
				l.skipped.Add(1)
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if err := l.handler(ctx, event); err != nil {
				l.failed.Add(1)
				log.Printf("[LISTENER:%s] ERROR: Failed to apply %s event for %s/%s: %v",
					l.serverID, event.Kind, event.Collection, event.Key, err)
				continue
			}
			l.applied.Add(1)
		}

		if len(batch) == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(l.config.PollInterval):
			}
		}
	}
}
