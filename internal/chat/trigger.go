package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spiritledsoftware/ai/internal/codec"
	"github.com/spiritledsoftware/ai/internal/event"
	"github.com/spiritledsoftware/ai/internal/logging"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// trigger runs the request orchestration plus the tool-roundtrip
// continuation. An explicit loop rather than recursion keeps stack depth
// constant and puts the termination guard in one place; the guard is
// re-evaluated on every iteration against the latest message list.
func (c *Chat) trigger(ctx context.Context, messages []types.Message, ro types.RequestOptions) error {
	for {
		countBefore := len(messages)

		current, err := c.exchange(ctx, messages, ro)
		if err != nil || !current {
			return err
		}

		latest := c.store.Get(c.key)
		if !shouldAutoContinue(latest, countBefore, c.opts.maxToolRoundtrips) {
			return nil
		}
		logging.Debug().Int("messages", len(latest)).Msg("tool roundtrip continuation")
		messages = latest
	}
}

// shouldAutoContinue decides whether the roundtrip controller loops back
// into another request: new messages were appended, the last one is an
// assistant message whose tool calls all have results, the feature is
// enabled, and the run of trailing assistant messages has not exhausted
// the budget.
func shouldAutoContinue(messages []types.Message, countBefore, budget int) bool {
	if budget <= 0 || len(messages) <= countBefore {
		return false
	}
	if !messages[len(messages)-1].ToolCallsResolved() {
		return false
	}
	return countTrailingAssistantMessages(messages) <= budget
}

// countTrailingAssistantMessages counts the consecutive assistant-authored
// messages at the end of the list.
func countTrailingAssistantMessages(messages []types.Message) int {
	count := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != types.RoleAssistant {
			break
		}
		count++
	}
	return count
}

// exchange performs one network roundtrip: optimistic write, streaming
// consumption with cumulative store writes, and settlement. The returned
// bool reports whether this call still owned the session when it finished;
// a superseded call must not evaluate continuation.
func (c *Chat) exchange(parent context.Context, messages []types.Message, ro types.RequestOptions) (bool, error) {
	snapshot := c.store.Get(c.key)

	ctx, gen := c.begin(parent)

	// Optimistic write so the caller's message is visible immediately.
	c.commit(gen, messages)

	req := &types.ChatRequest{Messages: messages, Options: c.requestOptions(ro)}
	resp, err := c.caller.Call(ctx, req, c.opts.sendExtraFields)
	if err != nil {
		return c.settle(ctx, gen, err, snapshot)
	}
	defer resp.Body.Close()

	if c.opts.onResponse != nil {
		c.opts.onResponse(resp)
	}

	dec := codec.NewDecoder(c.opts.protocol, resp.Body, c.opts.generateID, c.toolCallFunc())

	seenData := 0
	for {
		update, derr := dec.Next()
		if derr == io.EOF {
			break
		}
		if derr != nil {
			return c.settle(ctx, gen, derr, snapshot)
		}

		// Each write fully supersedes the previous partial one.
		merged := append(types.CloneMessages(messages), update.Messages...)
		if !c.commit(gen, merged) {
			return false, nil
		}

		if len(update.Data) > seenData {
			added := update.Data[seenData:]
			seenData = len(update.Data)
			c.appendData(gen, added)
		}
	}

	current := c.end(gen)
	if !current {
		return false, nil
	}

	c.setError(nil)
	if msg, ok := dec.Message(); ok {
		c.bus.Publish(event.Event{Type: event.ChatFinished, Data: event.ChatFinishedData{
			Message: msg,
			Info:    dec.Finish(),
		}})
		if c.opts.onFinish != nil {
			c.opts.onFinish(msg, dec.Finish())
		}
	}
	return true, nil
}

// settle converts an exchange failure into session state. Aborts are
// benign: partial content is kept and no error surfaces. Real failures
// roll the store back to the pre-request snapshot.
func (c *Chat) settle(ctx context.Context, gen uint64, err error, snapshot []types.Message) (bool, error) {
	// Evaluate before end, which cancels the exchange context.
	aborted := isAbort(ctx, err)
	current := c.end(gen)

	if aborted {
		logging.Debug().Msg("chat exchange aborted")
		return current, nil
	}

	if current {
		c.commit(gen, snapshot)
		c.setError(err)
		c.bus.Publish(event.Event{Type: event.ChatErrored, Data: event.ChatErroredData{Err: err}})
		if c.opts.onError != nil {
			c.opts.onError(err)
		}
		logging.Error().Err(err).Msg("chat exchange failed")
	}
	return current, err
}

func isAbort(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}

// begin registers a fresh abort handle for a new exchange, retiring any
// previous one so its eventual completion becomes a no-op.
func (c *Chat) begin(parent context.Context) (context.Context, uint64) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation
	c.cancel = cancel
	c.loading = true
	c.mu.Unlock()

	c.bus.Publish(event.Event{Type: event.LoadingChanged, Data: event.LoadingChangedData{Loading: true}})
	return ctx, gen
}

// end clears the in-flight state when the call still owns the session.
// Runs on every outcome: success, abort, and failure.
func (c *Chat) end(gen uint64) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	c.loading = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.bus.Publish(event.Event{Type: event.LoadingChanged, Data: event.LoadingChangedData{Loading: false}})
	return true
}

// commit writes the message list if this call still owns the session.
func (c *Chat) commit(gen uint64, messages []types.Message) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	c.store.Set(c.key, messages)
	c.mu.Unlock()

	c.bus.Publish(event.Event{Type: event.MessagesUpdated, Data: event.MessagesUpdatedData{
		Messages: types.CloneMessages(messages),
	}})
	return true
}

func (c *Chat) appendData(gen uint64, records []json.RawMessage) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.data = append(c.data, records...)
	c.mu.Unlock()

	c.bus.Publish(event.Event{Type: event.DataReceived, Data: event.DataReceivedData{Records: records}})
}

func (c *Chat) setError(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *Chat) toolCallFunc() codec.ToolCallFunc {
	if c.opts.onToolCall == nil {
		return nil
	}
	return func(call types.ToolCall) (json.RawMessage, error) {
		c.bus.Publish(event.Event{Type: event.ToolCallObserved, Data: event.ToolCallObservedData{Call: call}})

		result, err := c.opts.onToolCall(call)
		if err != nil || result == nil {
			return nil, err
		}
		if raw, ok := result.(json.RawMessage); ok {
			return raw, nil
		}
		payload, merr := json.Marshal(result)
		if merr != nil {
			return nil, fmt.Errorf("encode result of tool %s: %w", call.ToolName, merr)
		}
		return payload, nil
	}
}

// requestOptions merges the session-level body extension with the
// per-call one; per-call fields win.
func (c *Chat) requestOptions(ro types.RequestOptions) types.RequestOptions {
	if len(c.opts.body) == 0 {
		return ro
	}
	merged := make(map[string]any, len(c.opts.body)+len(ro.Body))
	for k, v := range c.opts.body {
		merged[k] = v
	}
	for k, v := range ro.Body {
		merged[k] = v
	}
	ro.Body = merged
	return ro
}
