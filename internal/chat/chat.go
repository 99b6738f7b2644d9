// Package chat implements the conversation controller: it submits message
// lists to a streaming chat endpoint, reconciles partial updates into the
// session history, and automatically continues the exchange when the model
// requests tool executions and every call has a result.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/spiritledsoftware/ai/internal/event"
	"github.com/spiritledsoftware/ai/internal/store"
	"github.com/spiritledsoftware/ai/internal/transport"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// Chat is one conversation session. Accessors and Stop are safe for
// concurrent use; mutating operations (Append, Reload, SetMessages,
// AddToolResult) are supersession-safe rather than linearizable — at most
// one network exchange is in flight at a time, and starting a new one
// retires the previous abort handle so its eventual completion is
// ignored — and are expected to be driven from one goroutine.
type Chat struct {
	opts   resolved
	key    string
	store  store.Store
	caller transport.Caller
	bus    *event.Bus

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	loading    bool
	err        error
	input      string
	data       []json.RawMessage
}

// New creates a chat session from the given options.
func New(opts Options) *Chat {
	r, st, caller, bus := opts.normalize()
	c := &Chat{
		opts:   r,
		key:    store.Key(r.endpoint, r.chatID),
		store:  st,
		caller: caller,
		bus:    bus,
		input:  opts.InitialInput,
	}
	if len(opts.InitialMessages) > 0 {
		seeded := types.CloneMessages(opts.InitialMessages)
		for i := range seeded {
			if seeded[i].ID == "" {
				seeded[i].ID = r.generateID()
			}
		}
		st.Set(c.key, seeded)
	}
	return c
}

// ID returns the conversation id.
func (c *Chat) ID() string {
	return c.opts.chatID
}

// Messages returns the current conversation history.
func (c *Chat) Messages() []types.Message {
	return c.store.Get(c.key)
}

// Data returns the side-channel records received so far.
func (c *Chat) Data() []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]json.RawMessage(nil), c.data...)
}

// Err returns the error from the last failed exchange, nil after a
// successful one.
func (c *Chat) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// IsLoading reports whether an exchange is in flight.
func (c *Chat) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Input returns the current input-box text.
func (c *Chat) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SetInput replaces the input-box text.
func (c *Chat) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
	c.bus.Publish(event.Event{Type: event.InputChanged, Data: event.InputChangedData{Input: text}})
}

// Subscribe registers an observer for a session event type and returns an
// unsubscribe function.
func (c *Chat) Subscribe(t event.Type, fn event.Subscriber) func() {
	return c.bus.Subscribe(t, fn)
}

// SubscribeAll registers an observer for every session event.
func (c *Chat) SubscribeAll(fn event.Subscriber) func() {
	return c.bus.SubscribeAll(fn)
}

// Stream returns a channel of JSON-encoded session events of one type,
// for consumers that prefer channels over callbacks.
func (c *Chat) Stream(ctx context.Context, t event.Type) (<-chan *message.Message, error) {
	return c.bus.Stream(ctx, t)
}

// Close stops any in-flight exchange and shuts down the event bus.
func (c *Chat) Close() error {
	c.Stop()
	return c.bus.Close()
}

// Append adds a message to the history and triggers a request with the
// extended message list. A missing message id is generated.
func (c *Chat) Append(ctx context.Context, msg types.Message, opts ...types.RequestOptions) error {
	if msg.ID == "" {
		msg.ID = c.opts.generateID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	messages := append(c.store.Get(c.key), msg)
	return c.trigger(ctx, messages, firstOption(opts))
}

// Reload regenerates the latest assistant response: when the last message
// is assistant-authored it is dropped and the remaining history
// resubmitted, otherwise the history is resubmitted unchanged. An empty
// history is a no-op.
func (c *Chat) Reload(ctx context.Context, opts ...types.RequestOptions) error {
	messages := c.store.Get(c.key)
	if len(messages) == 0 {
		return nil
	}
	if messages[len(messages)-1].Role == types.RoleAssistant {
		messages = messages[:len(messages)-1]
	}
	return c.trigger(ctx, messages, firstOption(opts))
}

// Stop aborts the in-flight exchange, if any. Content already streamed is
// kept and no error is surfaced. Safe to call at any time.
func (c *Chat) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SetMessages replaces the history directly without triggering a request.
func (c *Chat) SetMessages(messages []types.Message) {
	c.store.Set(c.key, messages)
	c.bus.Publish(event.Event{Type: event.MessagesUpdated, Data: event.MessagesUpdatedData{
		Messages: types.CloneMessages(messages),
	}})
}

// AddToolResult resolves a tool call on the last assistant message and
// persists the updated history. When this makes the message fully
// resolved, a continuation request is triggered regardless of the
// roundtrip budget. Unknown or already-resolved call ids are a silent
// no-op.
func (c *Chat) AddToolResult(ctx context.Context, toolCallID string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode tool result: %w", err)
	}

	messages := c.store.Get(c.key)
	if len(messages) == 0 {
		return nil
	}
	last := &messages[len(messages)-1]
	if last.Role != types.RoleAssistant {
		return nil
	}

	resolved := false
	for i := range last.ToolInvocations {
		inv := &last.ToolInvocations[i]
		if inv.ToolCallID == toolCallID && !inv.Resolved() {
			inv.Result = payload
			resolved = true
			break
		}
	}
	if !resolved {
		return nil
	}

	c.SetMessages(messages)

	if last.ToolCallsResolved() {
		return c.trigger(ctx, messages, types.RequestOptions{})
	}
	return nil
}

func firstOption(opts []types.RequestOptions) types.RequestOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return types.RequestOptions{}
}
