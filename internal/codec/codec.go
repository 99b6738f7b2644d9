// Package codec consumes a started streaming chat response and turns it
// into a sequence of message-list updates.
//
// Two protocols are supported. In text mode the body is a growing blob
// interpreted as one assistant message's content. In data mode the body is
// a sequence of line-framed typed parts that incrementally build one
// assistant message including partial tool-call arguments.
package codec

import (
	"encoding/json"
	"io"

	"github.com/spiritledsoftware/ai/pkg/types"
)

// Protocol selects how a response body is decoded.
type Protocol string

const (
	ProtocolText Protocol = "text"
	ProtocolData Protocol = "data"
)

// ToolCallFunc is invoked synchronously when a complete tool call (name
// plus final arguments) is observed, before the server finishes the turn.
// A non-nil result is injected as the call's result in the continuing
// stream; a non-nil error fails the decode.
type ToolCallFunc func(call types.ToolCall) (json.RawMessage, error)

// Decoder yields successive stream updates for one response body. Next
// returns io.EOF when the stream is exhausted; a decoder is not
// restartable, a new network call is required to derive a fresh one.
type Decoder interface {
	Next() (*types.StreamUpdate, error)

	// Message returns the assistant message assembled so far and whether
	// the stream produced one at all.
	Message() (types.Message, bool)

	// Finish returns the finish metadata observed on the stream, if any.
	Finish() types.FinishInfo
}

// NewDecoder creates a decoder for the given protocol. The onToolCall
// callback only applies to data mode; text mode has no tool frames.
func NewDecoder(p Protocol, body io.Reader, newID func() string, onToolCall ToolCallFunc) Decoder {
	if p == ProtocolText {
		return NewTextDecoder(body, newID)
	}
	return NewDataDecoder(body, newID, onToolCall)
}
