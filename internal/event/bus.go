// Package event provides the best-effort, in-process broadcast bus the
// Orchestrator dispatches committed events to. Delivery is at-most-once:
// subscribers that aren't listening when an event fires miss it, and
// must catch up by reading the Event Store directly.
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topic identifies the kind of broadcast notification.
type Topic string

const (
	// EventNew fires once per successful append, carrying an
	// EventNewData (session id, event id and kind of the committed event).
	EventNew Topic = "event_new"

	// The remaining topics name UI-facing wrappers over store-state
	// changes. Of these, the Orchestrator and Session Context publish
	// only ErrorPersistence; nothing in this module publishes the others.
	AgentEvent         Topic = "agent_event"
	AgentTurn          Topic = "agent_turn"
	BrowserFrame       Topic = "browser.frame"
	TodosUpdated       Topic = "todos_updated"
	ContextCleared     Topic = "context_cleared"
	CompactionComplete Topic = "compaction_completed"
	PlanModeEntered    Topic = "plan.mode_entered"
	PlanModeExited     Topic = "plan.mode_exited"
	ErrorPersistence   Topic = "error.persistence"
)

// EventNewPayload pairs a session id with a full committed event. The
// Orchestrator and Session Context publish EventNewData on EventNew,
// not this type.
type EventNewPayload struct {
	SessionID string
	Event     any
}

// Notification is one message published to the bus.
type Notification struct {
	Topic Topic `json:"topic"`
	Data  any   `json:"data"`
}

// Subscriber receives notifications.
type Subscriber func(Notification)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus is the broadcast bus, built on watermill's in-process gochannel
// pub/sub. It keeps a direct subscriber map (preserving Go type
// information for Data) rather than routing every notification through
// watermill's byte-message envelope, the way the teacher's event.Bus
// does.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[Topic][]subscriberEntry
	global      []subscriberEntry

	nextID       uint64
	closed       bool
	closedCancel context.CancelFunc
	closedCtx    context.Context
}

// New creates a broadcast bus.
func New() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers:  make(map[Topic][]subscriberEntry),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers fn for one topic. The returned func unsubscribes.
func (b *Bus) Subscribe(topic Topic, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[topic] = append(b.subscribers[topic], subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribe(topic, id) }
}

// SubscribeAll registers fn for every topic.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})
	return func() { b.unsubscribeGlobal(id) }
}

func (b *Bus) unsubscribe(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			return
		}
	}
}

// Publish dispatches n to subscribers asynchronously, never blocking the
// caller's commit on subscriber delivery (spec invariant: broadcast is
// out-of-band and best-effort).
func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]Subscriber, 0, len(b.subscribers[n.Topic])+len(b.global))
	for _, entry := range b.subscribers[n.Topic] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		go sub(n)
	}
}

// PublishSync dispatches n to subscribers in the calling goroutine. Used
// by tests that need delivery before asserting.
func (b *Bus) PublishSync(n Notification) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]Subscriber, 0, len(b.subscribers[n.Topic])+len(b.global))
	for _, entry := range b.subscribers[n.Topic] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(n)
	}
}

// Close shuts the bus down; subsequent Publish/Subscribe calls are
// no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()
	b.subscribers = make(map[Topic][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub exposes the underlying watermill GoChannel for advanced
// consumers (middleware, routing, or a future distributed backend).
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}
