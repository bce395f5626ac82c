// Package events carries cache invalidation notices between servers that
// share one moderation store.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBusClosed is returned when publishing to or reading from a closed bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrBusFull is returned when a subscriber buffer cannot take more events.
	ErrBusFull = errors.New("event bus is full")

	// ErrInvalidEvent is returned for events without a collection.
	ErrInvalidEvent = errors.New("invalid event")
)

// Kind names the change an event reports.
type Kind string

const (
	KindPunished Kind = "punished"
	KindRevoked  Kind = "revoked"
	KindDeleted  Kind = "deleted"
	KindUser     Kind = "user"
)

// Event tells other servers that cached data for Key in Collection is stale.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Server     string    `json:"server"`
	Kind       Kind      `json:"kind"`
	Collection string    `json:"collection"`
	Key        string    `json:"key"`
	Time       time.Time `json:"time"`
}

// NewEvent stamps a new event with a random id and the current time.
func NewEvent(server string, kind Kind, collection, key string) Event {
	return Event{
		ID:         uuid.New(),
		Server:     server,
		Kind:       kind,
		Collection: collection,
		Key:        key,
		Time:       time.Now().UTC(),
	}
}

func (e Event) validate() error {
	if e.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidEvent)
	}
	return nil
}

// Publisher sends events to every other server.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Subscriber receives events published by any server, this one included.
type Subscriber interface {
	// Receive returns up to max events. It returns an empty batch when
	// nothing arrived within the transport's wait time.
	Receive(ctx context.Context, max int) ([]Event, error)
	Close() error
}
