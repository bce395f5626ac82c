package moderation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rzpsarthak13/modstore/internal/cache"
	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/events"
)

// Options wires the optional collaborators of a Service.
type Options struct {
	// Cache fronts reads. Nil disables caching.
	Cache *cache.RecordCache

	// Publisher announces mutations to other servers. Nil publishes nothing.
	Publisher events.Publisher

	// ServerID is stamped on published events.
	ServerID string

	// Now overrides the clock.
	Now func() time.Time
}

// Service owns one DataStore and serialises every call to it; a DataStore
// has a single session and must not be used concurrently.
type Service struct {
	mu        sync.Mutex
	store     core.DataStore
	cache     *cache.RecordCache
	publisher events.Publisher
	serverID  string
	now       func() time.Time

	Users       *UserRepository
	punishments map[Kind]*PunishmentRepository
}

// New creates a Service over a connected store.
func New(store core.DataStore, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NewRecordCache(nil, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		store:       store,
		cache:       opts.Cache,
		publisher:   opts.Publisher,
		serverID:    opts.ServerID,
		now:         opts.Now,
		punishments: make(map[Kind]*PunishmentRepository, len(Kinds)),
	}
	s.Users = &UserRepository{svc: s}
	for _, k := range Kinds {
		s.punishments[k] = &PunishmentRepository{svc: s, kind: k, table: PunishmentTable(k)}
	}
	return s
}

// Bans returns the ban repository.
func (s *Service) Bans() *PunishmentRepository { return s.punishments[KindBan] }

// Mutes returns the mute repository.
func (s *Service) Mutes() *PunishmentRepository { return s.punishments[KindMute] }

// Warnings returns the warning repository.
func (s *Service) Warnings() *PunishmentRepository { return s.punishments[KindWarn] }

// Kicks returns the kick repository.
func (s *Service) Kicks() *PunishmentRepository { return s.punishments[KindKick] }

// Punishments returns the repository for kind.
func (s *Service) Punishments(kind Kind) (*PunishmentRepository, error) {
	repo, ok := s.punishments[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown punishment kind %q", ErrInvalidArgument, kind)
	}
	return repo, nil
}

// Store returns the underlying DataStore.
func (s *Service) Store() core.DataStore {
	return s.store
}

// EnsureSchema creates every collection the service uses.
func (s *Service) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EnsureSchema(ctx, s.store)
}

// Evict drops cached data named by an event from another server. It is
// the handler given to an events.Listener.
func (s *Service) Evict(ctx context.Context, event events.Event) error {
	return s.cache.Invalidate(ctx, event.Collection, event.Key)
}

// selectWhere runs an equality select under the store lock.
func (s *Service) selectWhere(ctx context.Context, collection, field string, value interface{}) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Select(ctx, collection, core.Equals(s.store.Type(), field, value))
}

// atomically runs fn inside a transaction when the backend has them, and
// directly otherwise. The caller holds s.mu.
func (s *Service) atomically(ctx context.Context, fn func() error) error {
	err := s.store.StartTransaction(ctx)
	if errors.Is(err, core.ErrUnsupported) {
		return fn()
	}
	if err != nil {
		return err
	}

	if err := fn(); err != nil {
		if rbErr := s.store.RollbackTransaction(ctx); rbErr != nil {
			log.Printf("[MODERATION] ERROR: Rollback failed: %v", rbErr)
		}
		return err
	}
	if err := s.store.CommitTransaction(ctx); err != nil {
		if rbErr := s.store.RollbackTransaction(ctx); rbErr != nil {
			log.Printf("[MODERATION] ERROR: Rollback after failed commit failed: %v", rbErr)
		}
		return err
	}
	return nil
}

// changed invalidates the local cache entry and tells other servers to do
// the same. Neither failure undoes the mutation, so both are only logged.
func (s *Service) changed(ctx context.Context, kind events.Kind, collection, key string) {
	if err := s.cache.Invalidate(ctx, collection, key); err != nil {
		log.Printf("[MODERATION] ERROR: Failed to invalidate %s/%s: %v", collection, key, err)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewEvent(s.serverID, kind, collection, key)); err != nil {
		log.Printf("[MODERATION] ERROR: Failed to publish %s event for %s/%s: %v", kind, collection, key, err)
	}
}
