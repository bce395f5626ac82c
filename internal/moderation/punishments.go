package moderation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/events"
)

// PunishmentRepository stores the punishments of one kind. Reads are cached
// per target; every mutation invalidates that target's entry.
type PunishmentRepository struct {
	svc   *Service
	kind  Kind
	table Table
}

// Kind returns the punishment kind this repository stores.
func (r *PunishmentRepository) Kind() Kind {
	return r.kind
}

// Add records p. ID and Created are filled in when empty, colour codes are
// stripped from the reason and over-long reasons are cut. Lasting kinds are
// stored active; kicks are stored inactive.
func (r *PunishmentRepository) Add(ctx context.Context, p Punishment) (Punishment, error) {
	p.Target = strings.TrimSpace(p.Target)
	if p.Target == "" {
		return Punishment{}, fmt.Errorf("%w: punishment target is required", ErrInvalidArgument)
	}
	if p.IPBan && r.kind != KindBan {
		return Punishment{}, fmt.Errorf("%w: only bans can target an IP", ErrInvalidArgument)
	}
	if p.IPBan && p.TargetIP == "" {
		return Punishment{}, fmt.Errorf("%w: IP ban without an IP", ErrInvalidArgument)
	}

	now := r.svc.now()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Created.IsZero() {
		p.Created = now
	}
	if !p.Expires.IsZero() && !p.Expires.After(p.Created) {
		return Punishment{}, fmt.Errorf("%w: expiry must be after creation", ErrInvalidArgument)
	}
	p.Kind = r.kind
	p.Reason = truncate(StripColors(p.Reason), MaxReasonLength)
	p.Active = r.kind.Lasting()
	p.RevokedBy = ""
	p.RevokedAt = time.Time{}

	record := punishmentRecord(p)
	if err := r.table.Validate(record); err != nil {
		return Punishment{}, err
	}

	r.svc.mu.Lock()
	err := r.svc.store.Insert(ctx, r.table.Name, record)
	r.svc.mu.Unlock()
	if err != nil {
		log.Printf("[MODERATION] ERROR: Failed to add %s for %s: %v", r.kind, p.Target, err)
		return Punishment{}, fmt.Errorf("failed to add %s: %w", r.kind, err)
	}

	log.Printf("[MODERATION] %s %s added for %s by %s", r.kind, p.ID, p.Target, p.Actor)
	r.svc.changed(ctx, events.KindPunished, r.table.Name, p.Target)
	return p, nil
}

// Revoke deactivates every punishment in force against target and returns
// how many were revoked. The updates run in one transaction where the
// backend supports it.
func (r *PunishmentRepository) Revoke(ctx context.Context, target, actor string) (int, error) {
	s := r.svc
	now := s.now()
	revoked := 0

	s.mu.Lock()
	err := s.atomically(ctx, func() error {
		records, err := s.store.Select(ctx, r.table.Name, core.Equals(s.store.Type(), fieldTarget, target))
		if err != nil {
			return err
		}
		changes := core.NewRecord(
			fieldActive, false,
			fieldRevokedBy, actor,
			fieldRevokedAt, toMillis(now),
		)
		for _, rec := range records {
			p := punishmentFromRecord(r.kind, rec)
			if !p.InForce(now) {
				continue
			}
			if err := s.store.Update(ctx, r.table.Name, fieldID, p.ID, changes); err != nil {
				return err
			}
			revoked++
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		log.Printf("[MODERATION] ERROR: Failed to revoke %s for %s: %v", r.kind, target, err)
		return 0, fmt.Errorf("failed to revoke %s: %w", r.kind, err)
	}

	if revoked > 0 {
		log.Printf("[MODERATION] %d %s(s) revoked for %s by %s", revoked, r.kind, target, actor)
		s.changed(ctx, events.KindRevoked, r.table.Name, target)
	}
	return revoked, nil
}

// History returns every punishment of this kind against target, newest
// first.
func (r *PunishmentRepository) History(ctx context.Context, target string) ([]Punishment, error) {
	records, err := r.svc.cache.Load(ctx, r.table.Name, target, func(ctx context.Context) ([]core.Record, error) {
		return r.svc.selectWhere(ctx, r.table.Name, fieldTarget, target)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s history of %s: %w", r.kind, target, err)
	}
	return r.fromRecords(records), nil
}

// Active returns the punishments in force against target, newest first.
// Expired punishments are left out even if never revoked.
func (r *PunishmentRepository) Active(ctx context.Context, target string) ([]Punishment, error) {
	all, err := r.History(ctx, target)
	if err != nil {
		return nil, err
	}
	now := r.svc.now()
	active := all[:0]
	for _, p := range all {
		if p.InForce(now) {
			active = append(active, p)
		}
	}
	return active, nil
}

// IsPunished reports whether any punishment is in force against target.
func (r *PunishmentRepository) IsPunished(ctx context.Context, target string) (bool, error) {
	active, err := r.Active(ctx, target)
	return len(active) > 0, err
}

// ActiveForIP returns the IP bans in force against ip. It is not cached.
func (r *PunishmentRepository) ActiveForIP(ctx context.Context, ip string) ([]Punishment, error) {
	records, err := r.svc.selectWhere(ctx, r.table.Name, fieldIP, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s for %s: %w", r.kind, ip, err)
	}
	now := r.svc.now()
	var out []Punishment
	for _, p := range r.fromRecords(records) {
		if p.IPBan && p.InForce(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ByID returns one punishment.
func (r *PunishmentRepository) ByID(ctx context.Context, id string) (Punishment, error) {
	records, err := r.svc.selectWhere(ctx, r.table.Name, fieldID, id)
	if err != nil {
		return Punishment{}, fmt.Errorf("failed to look up %s %s: %w", r.kind, id, err)
	}
	if len(records) == 0 {
		return Punishment{}, fmt.Errorf("%s %s: %w", r.kind, id, ErrNotFound)
	}
	return punishmentFromRecord(r.kind, records[0]), nil
}

// All returns every punishment of this kind, newest first.
func (r *PunishmentRepository) All(ctx context.Context) ([]Punishment, error) {
	r.svc.mu.Lock()
	records, err := r.svc.store.SelectAll(ctx, r.table.Name)
	r.svc.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table.Name, err)
	}
	return r.fromRecords(records), nil
}

// Delete removes the punishment with the given id.
func (r *PunishmentRepository) Delete(ctx context.Context, id string) error {
	p, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}

	r.svc.mu.Lock()
	err = r.svc.store.Delete(ctx, r.table.Name, fieldID, id)
	r.svc.mu.Unlock()
	if err != nil {
		log.Printf("[MODERATION] ERROR: Failed to delete %s %s: %v", r.kind, id, err)
		return fmt.Errorf("failed to delete %s %s: %w", r.kind, id, err)
	}

	r.svc.changed(ctx, events.KindDeleted, r.table.Name, p.Target)
	return nil
}

func (r *PunishmentRepository) fromRecords(records []core.Record) []Punishment {
	out := make([]Punishment, 0, len(records))
	for _, rec := range records {
		out = append(out, punishmentFromRecord(r.kind, rec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
