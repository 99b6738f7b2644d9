// Package tools provides client-executed tools for chat tool calls: the
// Tool interface, a registry that dispatches stream tool calls to
// implementations, and built-in tools plus an MCP server adapter.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is a capability the assistant can invoke mid-stream. Execute
// returns a JSON-marshalable result that is sent back as the tool result.
type Tool interface {
	// ID returns the tool identifier.
	ID() string

	// Description returns the tool description.
	Description() string

	// Parameters returns the JSON Schema for tool arguments.
	Parameters() json.RawMessage

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Func is a Tool built from a function.
type Func struct {
	id          string
	description string
	parameters  json.RawMessage
	fn          func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewFunc wraps a function as a Tool.
func NewFunc(id, description string, parameters json.RawMessage, fn func(context.Context, json.RawMessage) (any, error)) *Func {
	return &Func{id: id, description: description, parameters: parameters, fn: fn}
}

func (t *Func) ID() string                  { return t.id }
func (t *Func) Description() string         { return t.description }
func (t *Func) Parameters() json.RawMessage { return t.parameters }

func (t *Func) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	return t.fn(ctx, args)
}
