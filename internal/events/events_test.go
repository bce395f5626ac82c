package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/modstore/internal/registry"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent("srv-1", KindPunished, "bans", "uuid-1")
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, "srv-1", e.Server)
	assert.WithinDuration(t, time.Now(), e.Time, time.Minute)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.Kind, back.Kind)
	assert.True(t, e.Time.Equal(back.Time))
}

func TestMemoryBusFanOut(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(10)
	a := bus.Subscribe()
	b := bus.Subscribe()

	require.NoError(t, bus.Publish(ctx, NewEvent("s", KindRevoked, "mutes", "k1")))
	require.NoError(t, bus.Publish(ctx, NewEvent("s", KindRevoked, "mutes", "k2")))

	for _, sub := range []*MemorySubscriber{a, b} {
		got, err := sub.Receive(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "k1", got[0].Key)
		assert.Equal(t, "k2", got[1].Key)
	}

	got, err := a.Receive(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryBusRejectsInvalidEvent(t *testing.T) {
	bus := NewMemoryBus(1)
	err := bus.Publish(context.Background(), Event{Key: "x"})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestMemoryBusFull(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(1)
	slow := bus.Subscribe()

	require.NoError(t, bus.Publish(ctx, NewEvent("s", KindUser, "users", "1")))
	assert.ErrorIs(t, bus.Publish(ctx, NewEvent("s", KindUser, "users", "2")), ErrBusFull)
	assert.Equal(t, 1, slow.Size())
}

func TestMemoryBusClose(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(4)
	sub := bus.Subscribe()
	require.NoError(t, bus.Publish(ctx, NewEvent("s", KindUser, "users", "1")))
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	got, err := sub.Receive(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = sub.Receive(ctx, 10)
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.ErrorIs(t, bus.Publish(ctx, NewEvent("s", KindUser, "users", "2")), ErrBusClosed)
	assert.NoError(t, sub.Close())
}

func TestMemorySubscriberCloseDetaches(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(1)
	sub := bus.Subscribe()
	require.NoError(t, sub.Close())

	require.NoError(t, bus.Publish(ctx, NewEvent("s", KindUser, "users", "1")))
	_, err := sub.Receive(ctx, 1)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestKafkaMessageRoundTrip(t *testing.T) {
	e := NewEvent("srv", KindDeleted, "warnings", "u-9")
	msg, err := toMessage(e)
	require.NoError(t, err)
	assert.Equal(t, []byte("warnings"), msg.Key)
	assert.Contains(t, msg.Headers, kafka.Header{Key: headerKind, Value: []byte("deleted")})
	assert.Contains(t, msg.Headers, kafka.Header{Key: headerServer, Value: []byte("srv")})

	back, err := fromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.Key, back.Key)

	_, err = fromMessage(kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
	_, err = fromMessage(kafka.Message{Value: []byte(`{"key":"x"}`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = toMessage(Event{})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestKafkaConstructorsValidate(t *testing.T) {
	_, err := NewKafkaPublisher(registry.KafkaConfig{Topic: "t"})
	assert.Error(t, err)
	_, err = NewKafkaPublisher(registry.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
	_, err = NewKafkaSubscriber(registry.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, "")
	assert.Error(t, err)
}

func TestNewTransport(t *testing.T) {
	tr, err := New(registry.EventsConfig{Type: registry.EventsNone})
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = New(registry.EventsConfig{Type: registry.EventsMemory, ServerID: "me", BufferSize: 4})
	require.NoError(t, err)
	assert.Equal(t, "me", tr.ServerID)
	require.NoError(t, tr.Publisher.Publish(context.Background(), NewEvent("me", KindUser, "users", "1")))
	got, err := tr.Subscriber.Receive(context.Background(), 4)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, tr.Close())

	_, err = New(registry.EventsConfig{Type: "nats"})
	assert.Error(t, err)

	assert.NotEmpty(t, ServerID(registry.EventsConfig{}))
	assert.NotEqual(t, ServerID(registry.EventsConfig{}), ServerID(registry.EventsConfig{}))
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	fail   string
}

func (r *recorder) handle(ctx context.Context, e Event) error {
	if e.Key == r.fail {
		return errors.New("handler failed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Key
	}
	return out
}

func TestListenerSkipsOwnEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(10)
	rec := &recorder{fail: "bad"}
	l := NewListener("me", bus.Subscribe(), rec.handle, ListenerConfig{Rate: 1000, Burst: 10, PollInterval: 5 * time.Millisecond})

	l.Start(ctx)
	l.Start(ctx)
	assert.True(t, l.IsRunning())

	require.NoError(t, bus.Publish(ctx, NewEvent("me", KindPunished, "bans", "mine")))
	require.NoError(t, bus.Publish(ctx, NewEvent("other", KindPunished, "bans", "theirs")))
	require.NoError(t, bus.Publish(ctx, NewEvent("other", KindPunished, "bans", "bad")))

	require.Eventually(t, func() bool {
		s := l.Stats()
		return s.Applied == 1 && s.Skipped == 1 && s.Failed == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"theirs"}, rec.keys())

	l.Stop()
	l.Stop()
	assert.False(t, l.IsRunning())
}

func TestListenerRateLimits(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(10)
	rec := &recorder{}
	l := NewListener("me", bus.Subscribe(), rec.handle, ListenerConfig{Rate: 20, Burst: 1, PollInterval: 5 * time.Millisecond})

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, NewEvent("other", KindUser, "users", "k")))
	}

	start := time.Now()
	l.Start(ctx)
	defer l.Stop()
	require.Eventually(t, func() bool { return l.Stats().Applied == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestListenerStopsWhenBusCloses(t *testing.T) {
	bus := NewMemoryBus(1)
	l := NewListener("me", bus.Subscribe(), (&recorder{}).handle, ListenerConfig{PollInterval: time.Millisecond})
	l.Start(context.Background())
	require.NoError(t, bus.Close())

	require.Eventually(t, func() bool { return !l.IsRunning() }, time.Second, time.Millisecond)
	l.Stop()
}
