// Package event provides the pub/sub surface a UI layer observes a chat
// session through, backed by watermill's gochannel.
package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type identifies the kind of event.
type Type string

const (
	MessagesUpdated  Type = "messages.updated"
	DataReceived     Type = "data.received"
	InputChanged     Type = "input.changed"
	LoadingChanged   Type = "loading.changed"
	ChatFinished     Type = "chat.finished"
	ChatErrored      Type = "chat.errored"
	ToolCallObserved Type = "toolcall.observed"
)

// Event is a single notification delivered to subscribers.
type Event struct {
	Type Type
	Data any
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus is an instance-scoped event bus. Each chat session owns one, so
// tests and independent sessions never observe each other's events.
// Subscriber dispatch is direct to preserve type information; every
// event is additionally mirrored as a JSON message onto a watermill
// gochannel topic per type, consumable via Stream.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[Type][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 64,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[Type][]subscriberEntry),
	}
}

// Subscribe registers a subscriber for a specific event type and returns
// an unsubscribe function.
func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.subscribers[t] = append(b.subscribers[t], subscriberEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[t]
		for i, entry := range subs {
			if entry.id == id {
				b.subscribers[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// SubscribeAll registers a subscriber for every event type and returns an
// unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, entry := range b.global {
			if entry.id == id {
				b.global = append(b.global[:i], b.global[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers an event to all matching subscribers in the calling
// goroutine. Stream updates are applied one at a time, so synchronous
// delivery keeps the order a subscriber sees identical to the order of
// store writes.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]Subscriber, 0, len(b.subscribers[event.Type])+len(b.global))
	for _, entry := range b.subscribers[event.Type] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(event)
	}

	if payload, err := json.Marshal(event.Data); err == nil {
		msg := message.NewMessage(watermill.NewUUID(), payload)
		_ = b.pubsub.Publish(string(event.Type), msg)
	}
}

// Stream returns a watermill channel of JSON-encoded events of one type,
// for consumers that prefer a channel over callbacks. The subscription
// ends when ctx is canceled or the bus closes.
func (b *Bus) Stream(ctx context.Context, t Type) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, string(t))
}

// Close shuts down the bus. Further Publish and Subscribe calls are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[Type][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
