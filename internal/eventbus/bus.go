// Package eventbus implements the mutation event bus (§4.J): every
// successful Plan/Task/Notes mutation and per-file sync ingest broadcasts
// an Event to local subscribers, best-effort, plus an optional pluggable
// external emitter.
//
// Grounded on the teacher's GlassBoxEventBus (internal/transparency):
// per-subscriber buffered channel, non-blocking send with drop-on-full via
// a select/default. This bus skips the teacher's batching window (events
// here are already coarse-grained, one per mutation) and instead tracks a
// per-subscriber lagged counter so a slow consumer can tell it missed
// events rather than silently losing them.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeforge/internal/logging"
	"codeforge/internal/model"
)

// Action classifies what happened to an entity.
type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionDeleted  Action = "deleted"
	ActionLinked   Action = "linked"
	ActionUnlinked Action = "unlinked"
)

// Event is one mutation notification.
type Event struct {
	EntityType model.EntityType
	EntityID   string
	Action     Action
	Related    *model.Anchor // set for linked/unlinked events, the other side of the relation
	Payload    interface{}
	ProjectID  string
	Timestamp  time.Time
}

// Emitter is a pluggable sink for events beyond local subscribers, e.g. a
// webhook or message-queue forwarder. The default NoopEmitter discards.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, Event) {}

const subscriberBuffer = 64

type subscriber struct {
	ch     chan Event
	lagged atomic.Uint64
}

// Bus fans out Events to local subscribers and one external Emitter.
// Safe for concurrent use. A slow subscriber never blocks Publish: once its
// buffer is full, the oldest buffered event is dropped to make room and the
// subscriber's lagged counter is incremented.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
	emitter     Emitter
	sequence    atomic.Uint64
}

// New creates a Bus. A nil emitter defaults to NoopEmitter.
func New(emitter Emitter) *Bus {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &Bus{subscribers: make(map[int]*subscriber), emitter: emitter}
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	id     int
	bus    *Bus
	Events <-chan Event
}

// Lagged reports how many events this subscriber has missed due to a full
// buffer since the subscription started.
func (s *Subscription) Lagged() uint64 {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	sub, ok := s.bus.subscribers[s.id]
	if !ok {
		return 0
	}
	return sub.lagged.Load()
}

// Unsubscribe stops delivery and closes the channel. Safe to call more than
// once or concurrently with Publish.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	sub, ok := s.bus.subscribers[s.id]
	if !ok {
		return
	}
	delete(s.bus.subscribers, s.id)
	close(sub.ch)
}

// Subscribe registers a new local subscriber and returns its handle.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	b.subscribers[id] = sub
	return &Subscription{id: id, bus: b, Events: sub.ch}
}

// Publish broadcasts ev to every current subscriber (non-blocking, drop-
// oldest-on-full) and hands it to the external emitter. Safe to call from
// any goroutine.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.sequence.Add(1)

	b.mu.RLock()
	for _, sub := range b.subscribers {
		deliver(sub, ev)
	}
	b.mu.RUnlock()

	logging.EventBusDebug("publish %s %s/%s", ev.Action, ev.EntityType, ev.EntityID)
	b.emitter.Emit(ctx, ev)
}

// deliver sends ev to sub without blocking. If the buffer is full it drops
// the oldest queued event to make room rather than block the publisher.
func deliver(sub *subscriber, ev Event) {
	select {
	case sub.ch <- ev:
		return
	default:
	}

	select {
	case <-sub.ch:
		sub.lagged.Add(1)
	default:
	}
	select {
	case sub.ch <- ev:
	default:
		sub.lagged.Add(1)
	}
}

// Close unsubscribes and closes every remaining subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
