package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rzpsarthak13/modstore/internal/registry"
	"github.com/segmentio/kafka-go"
)

const (
	headerKind       = "kind"
	headerCollection = "collection"
	headerServer     = "server"

	// batchWait bounds the fetches after the first one in a batch.
	batchWait = 50 * time.Millisecond
)

// KafkaPublisher writes events to a Kafka topic keyed by collection, so the
// events of one collection stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	mu     sync.RWMutex
	closed bool
}

// NewKafkaPublisher creates a synchronous Kafka writer.
func NewKafkaPublisher(cfg registry.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchBytes:   int64(cfg.MaxMessageBytes),
		MaxAttempts:  3,
		Async:        false,
	}

	log.Printf("[KAFKA] Producer ready for topic %s on %v (acks: %d)", cfg.Topic, cfg.Brokers, cfg.RequiredAcks)
	return &KafkaPublisher{writer: writer, topic: cfg.Topic}, nil
}

// Publish writes one event and waits for the broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrBusClosed
	}

	message, err := toMessage(event)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to write %s event for %s/%s to topic %s: %v (Duration: %v)",
			event.Kind, event.Collection, event.Key, p.topic, err, time.Since(start))
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// KafkaSubscriber reads events through a consumer group. Each server needs
// its own group id to see every event.
type KafkaSubscriber struct {
	reader   *kafka.Reader
	topic    string
	groupID  string
	readWait time.Duration
	mu       sync.RWMutex
	closed   bool
}

// NewKafkaSubscriber creates a reader that starts at the newest offset for a
// new group. Invalidations older than the process are of no use to it.
func NewKafkaSubscriber(cfg registry.KafkaConfig, groupID string) (*KafkaSubscriber, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if groupID == "" {
		return nil, fmt.Errorf("Kafka consumer group is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     groupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		MaxWait:     cfg.MaxWait,
		StartOffset: kafka.LastOffset,
	})

	readWait := cfg.ReadTimeout
	if readWait <= 0 {
		readWait = 5 * time.Second
	}

	log.Printf("[KAFKA] Consumer ready for topic %s with group %s", cfg.Topic, groupID)
	return &KafkaSubscriber{reader: reader, topic: cfg.Topic, groupID: groupID, readWait: readWait}, nil
}

// Receive fetches up to max events. Offsets are committed as soon as a
// message is decoded; an undecodable message is skipped and committed too.
func (s *KafkaSubscriber) Receive(ctx context.Context, max int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrBusClosed
	}
	if max <= 0 {
		max = 100
	}

	out := make([]Event, 0, max)
	for i := 0; i < max; i++ {
		wait := s.readWait
		if i > 0 {
			wait = batchWait
		}
		readCtx, cancel := context.WithTimeout(ctx, wait)
		message, err := s.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return out, ctx.Err()
			}
			log.Printf("[KAFKA] ERROR: Failed to read message from topic '%s': %v", s.topic, err)
			return out, fmt.Errorf("failed to read message from Kafka: %w", err)
		}

		event, err := fromMessage(message)
		if err != nil {
			log.Printf("[KAFKA] ERROR: Failed to unmarshal message (Partition: %d, Offset: %d), skipping: %v",
				message.Partition, message.Offset, err)
		} else {
			out = append(out, event)
		}

		if err := s.reader.CommitMessages(ctx, message); err != nil {
			log.Printf("[KAFKA] WARNING: Failed to commit message offset (Partition: %d, Offset: %d): %v",
				message.Partition, message.Offset, err)
		}
	}
	return out, nil
}

// Close closes the reader and leaves the consumer group.
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.reader.Close(); err != nil {
		log.Printf("[KAFKA] ERROR: Failed to close reader: %v", err)
		return err
	}
	return nil
}

func toMessage(event Event) (kafka.Message, error) {
	if err := event.validate(); err != nil {
		return kafka.Message{}, err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.Collection),
		Value: data,
		Time:  event.Time,
		Headers: []kafka.Header{
			{Key: headerKind, Value: []byte(event.Kind)},
			{Key: headerCollection, Value: []byte(event.Collection)},
			{Key: headerServer, Value: []byte(event.Server)},
		},
	}, nil
}

func fromMessage(message kafka.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return Event{}, err
	}
	if err := event.validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}
