package driver

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/database"
	"github.com/rzpsarthak13/modstore/internal/document"
	"github.com/rzpsarthak13/modstore/internal/registry"
)

// Constructor builds a fresh, unconnected DataStore.
type Constructor func() core.DataStore

// Factory maps driver types to constructors. Every call to New returns a
// new instance; the factory keeps no reference to what it built.
type Factory struct {
	mu           sync.RWMutex
	constructors map[core.DriverType]Constructor
}

// NewFactory returns a factory with the builtin MySQL, SQLite and DynamoDB
// drivers registered.
func NewFactory() *Factory {
	f := NewEmptyFactory()
	f.Register(core.DriverRelationalNetworked, func() core.DataStore { return database.NewMySQLDriver() })
	f.Register(core.DriverRelationalEmbedded, func() core.DataStore { return database.NewSQLiteDriver() })
	f.Register(core.DriverDocument, func() core.DataStore { return document.NewDriver() })
	return f
}

// NewEmptyFactory returns a factory with nothing registered.
func NewEmptyFactory() *Factory {
	return &Factory{constructors: make(map[core.DriverType]Constructor)}
}

// Register adds a constructor. It panics if the type is empty, the
// constructor is nil, or the type is already registered.
func (f *Factory) Register(t core.DriverType, ctor Constructor) {
	if ctor == nil {
		panic("constructor cannot be nil")
	}
	if t == "" {
		panic("driver type cannot be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.constructors[t]; exists {
		panic(fmt.Sprintf("constructor for driver type %q is already registered", t))
	}
	f.constructors[t] = ctor
}

// New returns a fresh unconnected driver of the given type.
func (f *Factory) New(t core.DriverType) (core.DataStore, error) {
	f.mu.RLock()
	ctor, exists := f.constructors[t]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported driver type: %s", t)
	}
	return ctor(), nil
}

// Open creates the configured driver and connects it. The connect attempt
// is bounded by cfg.ConnectTimeout when set.
func (f *Factory) Open(ctx context.Context, cfg registry.StoreConfig) (core.DataStore, error) {
	t, err := cfg.DriverType()
	if err != nil {
		return nil, err
	}
	store, err := f.New(t)
	if err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	log.Printf("[FACTORY] Opening %s driver", t)
	if err := store.Connect(ctx, cfg.Endpoint, cfg.Username, cfg.Password); err != nil {
		return nil, fmt.Errorf("failed to connect %s driver: %w", t, err)
	}
	return store, nil
}

// Types returns the registered driver types in sorted order.
func (f *Factory) Types() []core.DriverType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]core.DriverType, 0, len(f.constructors))
	for t := range f.constructors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IsRegistered checks if a driver type has a constructor.
func (f *Factory) IsRegistered(t core.DriverType) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, exists := f.constructors[t]
	return exists
}
