package events

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/modstore/internal/registry"
)

// Transport bundles the two halves of an event bus.
type Transport struct {
	ServerID   string
	Publisher  Publisher
	Subscriber Subscriber
}

// Close closes both halves.
func (t *Transport) Close() error {
	perr := t.Publisher.Close()
	serr := t.Subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}

// ServerID returns cfg.ServerID or a fresh random id.
func ServerID(cfg registry.EventsConfig) string {
	if cfg.ServerID != "" {
		return cfg.ServerID
	}
	return uuid.NewString()
}

// New creates the transport selected by cfg.Type. The "none" type yields a
// nil transport and no error. A memory transport only loops back into this
// process.
func New(cfg registry.EventsConfig) (*Transport, error) {
	serverID := ServerID(cfg)

	switch cfg.Type {
	case registry.EventsNone, "":
		return nil, nil
	case registry.EventsMemory:
		bus := NewMemoryBus(cfg.BufferSize)
		return &Transport{ServerID: serverID, Publisher: bus, Subscriber: bus.Subscribe()}, nil
	case registry.EventsKafka:
		pub, err := NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		// One group per server so every server sees every event.
		sub, err := NewKafkaSubscriber(cfg.Kafka, cfg.Kafka.GroupID+"-"+serverID)
		if err != nil {
			pub.Close()
			return nil, err
		}
		return &Transport{ServerID: serverID, Publisher: pub, Subscriber: sub}, nil
	default:
		return nil, fmt.Errorf("unsupported event transport: %s", cfg.Type)
	}
}
