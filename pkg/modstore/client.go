package modstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/rzpsarthak13/modstore/internal/cache"
	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/driver"
	"github.com/rzpsarthak13/modstore/internal/events"
	"github.com/rzpsarthak13/modstore/internal/moderation"
	"github.com/rzpsarthak13/modstore/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Client is the entry point for a server using the moderation store.
//
// Typical usage:
//
//	client, _ := modstore.NewClient(ctx, config)
//	defer client.Close()
//
//	client.Start(ctx) // listen for other servers' changes
//	client.Moderation().Bans().Add(ctx, ban)
type Client interface {
	// Moderation returns the user and punishment repositories.
	Moderation() *moderation.Service

	// Store returns the connected DataStore, traced when tracing is on.
	Store() core.DataStore

	// ServerID identifies this process on the event bus.
	ServerID() string

	// Start begins applying invalidation events from other servers.
	// It is a no-op when events are disabled.
	Start(ctx context.Context) error

	// Stop stops the event listener.
	Stop() error

	// IsRunning returns whether the event listener is running.
	IsRunning() bool

	// Close stops the listener and releases the store, cache and event bus.
	Close() error
}

// Option customises NewClient.
type Option func(*options)

type options struct {
	factory  *driver.Factory
	tracer   trace.TracerProvider
	bus      *events.MemoryBus
	noSchema bool
}

// WithFactory replaces the builtin driver factory.
func WithFactory(f *driver.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithTracerProvider traces the store with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithMemoryBus connects the client to a shared in-process bus, overriding
// the configured event transport.
func WithMemoryBus(bus *events.MemoryBus) Option {
	return func(o *options) { o.bus = bus }
}

// WithoutSchema skips creating collections and indexes on start.
func WithoutSchema() Option {
	return func(o *options) { o.noSchema = true }
}

// sharedBus publishes to a bus the client does not own.
type sharedBus struct {
	*events.MemoryBus
}

func (sharedBus) Close() error { return nil }

type client struct {
	mu        sync.Mutex
	store     core.DataStore
	cache     *cache.RecordCache
	transport *events.Transport
	listener  *events.Listener
	svc       *moderation.Service
	serverID  string
	shutdown  func(context.Context) error
	closed    bool
}

// NewClient connects the configured store, cache and event transport and
// prepares the schema. Partially built resources are released on failure.
func NewClient(ctx context.Context, config *Config, opts ...Option) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.factory == nil {
		o.factory = driver.NewFactory()
	}

	c := &client{shutdown: func(context.Context) error { return nil }}
	if err := c.init(ctx, config, o); err != nil {
		c.Close()
		return nil, err
	}

	log.Printf("[CLIENT] Ready: store=%s cache=%s events=%s server=%s",
		c.store.Type(), config.Cache.Type, config.Events.Type, c.serverID)
	return c, nil
}

func (c *client) init(ctx context.Context, config *Config, o options) error {
	var err error

	if config.Store.TraceEndpoint != "" {
		shutdown, err := telemetry.Setup(ctx, "modstore", config.Store.TraceEndpoint)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		c.shutdown = shutdown
	}

	c.store, err = o.factory.Open(ctx, config.Store)
	if err != nil {
		return err
	}
	if config.Store.Tracing {
		c.store = telemetry.Wrap(c.store, o.tracer)
	}

	c.cache, err = cache.New(ctx, config.Cache)
	if err != nil {
		return err
	}

	switch {
	case o.bus != nil:
		c.transport = &events.Transport{ServerID: events.ServerID(config.Events), Publisher: sharedBus{o.bus}, Subscriber: o.bus.Subscribe()}
	default:
		c.transport, err = events.New(config.Events)
		if err != nil {
			return fmt.Errorf("failed to create event transport: %w", err)
		}
	}

	modOpts := moderation.Options{Cache: c.cache}
	if c.transport != nil {
		c.serverID = c.transport.ServerID
		modOpts.Publisher = c.transport.Publisher
		modOpts.ServerID = c.serverID
	}
	c.svc = moderation.New(c.store, modOpts)

	if !o.noSchema {
		if err := c.svc.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	if c.transport != nil {
		c.listener = events.NewListener(c.serverID, c.transport.Subscriber, c.svc.Evict, events.ListenerConfig{
			Rate:      config.Events.Rate,
			Burst:     config.Events.Burst,
			BatchSize: config.Events.BufferSize,
		})
	}
	return nil
}

func (c *client) Moderation() *moderation.Service { return c.svc }

func (c *client) Store() core.DataStore { return c.store }

func (c *client) ServerID() string { return c.serverID }

// Start begins applying invalidation events from other servers.
func (c *client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if c.listener != nil {
		c.listener.Start(ctx)
	}
	return nil
}

// Stop stops the event listener.
func (c *client) Stop() error {
	if c.listener != nil {
		c.listener.Stop()
	}
	return nil
}

// IsRunning returns whether the event listener is running.
func (c *client) IsRunning() bool {
	return c.listener != nil && c.listener.IsRunning()
}

// Close releases everything in reverse order of creation.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.Stop()

	var errs []error
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event transport: %w", err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if c.store != nil {
		if err := c.store.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if err := c.shutdown(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		log.Printf("[CLIENT] ERROR: Close: %v", err)
		return err
	}
	return nil
}
