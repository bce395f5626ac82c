package moderation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/events"
)

// UserRepository stores the players the server has seen.
type UserRepository struct {
	svc *Service
}

// Upsert inserts u or, when its UUID is known, updates name, IP and last
// seen. A zero LastSeen is set to now.
func (r *UserRepository) Upsert(ctx context.Context, u User) error {
	u.UUID = strings.TrimSpace(u.UUID)
	if u.UUID == "" {
		return fmt.Errorf("%w: user uuid is required", ErrInvalidArgument)
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = r.svc.now()
	}
	record := userRecord(u)
	if err := UsersTable.Validate(record); err != nil {
		return err
	}

	s := r.svc
	s.mu.Lock()
	err := s.atomically(ctx, func() error {
		existing, err := s.store.Select(ctx, CollectionUsers, core.Equals(s.store.Type(), fieldUUID, u.UUID))
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return s.store.Insert(ctx, CollectionUsers, record)
		}
		changes := record.Clone()
		changes.Delete(fieldUUID)
		return s.store.Update(ctx, CollectionUsers, fieldUUID, u.UUID, changes)
	})
	s.mu.Unlock()
	if err != nil {
		log.Printf("[MODERATION] ERROR: Failed to save user %s: %v", u.UUID, err)
		return fmt.Errorf("failed to save user %s: %w", u.UUID, err)
	}

	s.changed(ctx, events.KindUser, CollectionUsers, u.UUID)
	return nil
}

// ByUUID returns the user with the given UUID. The boolean is false when
// no such user exists.
func (r *UserRepository) ByUUID(ctx context.Context, uuid string) (User, bool, error) {
	records, err := r.svc.cache.Load(ctx, CollectionUsers, uuid, func(ctx context.Context) ([]core.Record, error) {
		return r.svc.selectWhere(ctx, CollectionUsers, fieldUUID, uuid)
	})
	if err != nil {
		return User{}, false, fmt.Errorf("failed to look up user %s: %w", uuid, err)
	}
	if len(records) == 0 {
		return User{}, false, nil
	}
	return userFromRecord(records[0]), true, nil
}

// ByName returns every user last seen with name, most recent first.
func (r *UserRepository) ByName(ctx context.Context, name string) ([]User, error) {
	records, err := r.svc.selectWhere(ctx, CollectionUsers, fieldName, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %q: %w", name, err)
	}
	users := make([]User, 0, len(records))
	for _, rec := range records {
		users = append(users, userFromRecord(rec))
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].LastSeen.After(users[j].LastSeen)
	})
	return users, nil
}
