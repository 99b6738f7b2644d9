// Package types defines the data model shared by the chat engine, the
// stream codec, and the transport layer.
package types

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
	RoleTool      Role = "tool"
	RoleData      Role = "data"
)

// ToolInvocation records a tool call requested by the assistant and, once
// the caller or the server supplies one, its result.
type ToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Resolved reports whether the invocation carries a result.
func (t ToolInvocation) Resolved() bool {
	return len(t.Result) > 0
}

// Message is a single conversation entry. Identity is ID; IDs must be
// unique within a conversation.
type Message struct {
	ID              string            `json:"id"`
	Role            Role              `json:"role"`
	Content         string            `json:"content"`
	CreatedAt       time.Time         `json:"createdAt"`
	Name            string            `json:"name,omitempty"`
	Data            json.RawMessage   `json:"data,omitempty"`
	Annotations     []json.RawMessage `json:"annotations,omitempty"`
	ToolInvocations []ToolInvocation  `json:"toolInvocations,omitempty"`
}

// ToolCallsResolved reports whether the message requested at least one
// tool call and every requested call has a result. Messages like this are
// what the roundtrip controller continues from.
func (m Message) ToolCallsResolved() bool {
	if m.Role != RoleAssistant || len(m.ToolInvocations) == 0 {
		return false
	}
	for _, inv := range m.ToolInvocations {
		if !inv.Resolved() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the message. Raw JSON fields and the
// invocation slice are copied so the two values never share mutable state.
func (m Message) Clone() Message {
	out := m
	out.Data = cloneRaw(m.Data)
	if m.Annotations != nil {
		out.Annotations = make([]json.RawMessage, len(m.Annotations))
		for i, a := range m.Annotations {
			out.Annotations[i] = cloneRaw(a)
		}
	}
	if m.ToolInvocations != nil {
		out.ToolInvocations = make([]ToolInvocation, len(m.ToolInvocations))
		for i, inv := range m.ToolInvocations {
			inv.Args = cloneRaw(inv.Args)
			inv.Result = cloneRaw(inv.Result)
			out.ToolInvocations[i] = inv
		}
	}
	return out
}

// CloneMessages deep-copies a message list. A nil input stays nil.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
