// Package moderation is the caller-facing layer over a DataStore: users and
// the punishments issued against them.
package moderation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rzpsarthak13/modstore/internal/core"
)

var (
	// ErrNotFound is returned when a lookup by id matches nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for missing or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Kind is a punishment type. Each kind lives in its own collection.
type Kind string

const (
	KindBan  Kind = "ban"
	KindMute Kind = "mute"
	KindWarn Kind = "warn"
	KindKick Kind = "kick"
)

// Kinds lists every punishment kind.
var Kinds = []Kind{KindBan, KindMute, KindWarn, KindKick}

// Collection names.
const (
	CollectionUsers    = "users"
	CollectionBans     = "bans"
	CollectionMutes    = "mutes"
	CollectionWarnings = "warnings"
	CollectionKicks    = "kicks"
)

// Collection returns the collection holding punishments of kind k.
func (k Kind) Collection() string {
	switch k {
	case KindBan:
		return CollectionBans
	case KindMute:
		return CollectionMutes
	case KindWarn:
		return CollectionWarnings
	case KindKick:
		return CollectionKicks
	}
	return ""
}

// Lasting reports whether punishments of kind k stay in force until they
// expire or are revoked. Kicks only happen once.
func (k Kind) Lasting() bool {
	return k != KindKick
}

// ParseKind accepts a kind or its collection name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if s == string(k) || s == k.Collection() {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown punishment kind %q", ErrInvalidArgument, s)
}

// User is a player the server has seen.
type User struct {
	UUID     string
	Name     string
	IP       string
	LastSeen time.Time
}

// Punishment is one ban, mute, warning or kick.
type Punishment struct {
	ID     string
	Kind   Kind
	Target string
	// TargetIP is recorded so IP bans can be matched on join.
	TargetIP  string
	IPBan     bool
	Actor     string
	Reason    string
	Created   time.Time
	Expires   time.Time // zero means permanent
	Active    bool
	RevokedBy string
	RevokedAt time.Time
}

// Permanent reports whether p never expires.
func (p Punishment) Permanent() bool {
	return p.Expires.IsZero()
}

// InForce reports whether p is active and not yet expired at now.
func (p Punishment) InForce(now time.Time) bool {
	return p.Active && (p.Permanent() || now.Before(p.Expires))
}

// Field names shared by every backend.
const (
	fieldUUID      = "uuid"
	fieldName      = "name"
	fieldIP        = "ip"
	fieldLastSeen  = "last_seen"
	fieldID        = "id"
	fieldTarget    = "target"
	fieldIPBan     = "ip_ban"
	fieldActor     = "actor"
	fieldReason    = "reason"
	fieldCreated   = "created"
	fieldExpires   = "expires"
	fieldActive    = "active"
	fieldRevokedBy = "revoked_by"
	fieldRevokedAt = "revoked_at"
)

// Times are stored as unix milliseconds so every backend can sort and
// compare them.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func userRecord(u User) core.Record {
	return core.NewRecord(
		fieldUUID, u.UUID,
		fieldName, u.Name,
		fieldIP, u.IP,
		fieldLastSeen, toMillis(u.LastSeen),
	)
}

func userFromRecord(r core.Record) User {
	return User{
		UUID:     asString(r.Value(fieldUUID)),
		Name:     asString(r.Value(fieldName)),
		IP:       asString(r.Value(fieldIP)),
		LastSeen: fromMillis(asInt64(r.Value(fieldLastSeen))),
	}
}

func punishmentRecord(p Punishment) core.Record {
	return core.NewRecord(
		fieldID, p.ID,
		fieldTarget, p.Target,
		fieldIP, p.TargetIP,
		fieldIPBan, p.IPBan,
		fieldActor, p.Actor,
		fieldReason, p.Reason,
		fieldCreated, toMillis(p.Created),
		fieldExpires, toMillis(p.Expires),
		fieldActive, p.Active,
		fieldRevokedBy, p.RevokedBy,
		fieldRevokedAt, toMillis(p.RevokedAt),
	)
}

func punishmentFromRecord(kind Kind, r core.Record) Punishment {
	return Punishment{
		ID:        asString(r.Value(fieldID)),
		Kind:      kind,
		Target:    asString(r.Value(fieldTarget)),
		TargetIP:  asString(r.Value(fieldIP)),
		IPBan:     asBool(r.Value(fieldIPBan)),
		Actor:     asString(r.Value(fieldActor)),
		Reason:    asString(r.Value(fieldReason)),
		Created:   fromMillis(asInt64(r.Value(fieldCreated))),
		Expires:   fromMillis(asInt64(r.Value(fieldExpires))),
		Active:    asBool(r.Value(fieldActive)),
		RevokedBy: asString(r.Value(fieldRevokedBy)),
		RevokedAt: fromMillis(asInt64(r.Value(fieldRevokedAt))),
	}
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

// Relational engines hand booleans back as 0/1.
func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	}
	return asInt64(v) != 0
}
