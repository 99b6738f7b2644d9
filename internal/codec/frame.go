package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spiritledsoftware/ai/pkg/types"
)

// Frame codes of the data stream protocol. A frame is one line of the
// response body: `<code>:<JSON payload>`.
const (
	codeText          = "0" // JSON string, appended to the assistant content
	codeData          = "2" // JSON array of side-channel records
	codeError         = "3" // JSON string, terminates the stream as a failure
	codeAnnotations   = "8" // JSON array, appended to message annotations
	codeToolCall      = "9" // complete tool call {toolCallId, toolName, args}
	codeToolResult    = "a" // {toolCallId, result}
	codeToolCallStart = "b" // {toolCallId, toolName}
	codeToolCallDelta = "c" // {toolCallId, argsTextDelta}
	codeFinish        = "d" // {finishReason, usage}
)

var (
	// ErrMalformedFrame reports a line that is not a valid protocol frame.
	// A malformed frame fails the whole decode; skipping it could leave
	// message history silently corrupted.
	ErrMalformedFrame = errors.New("malformed stream frame")

	// ErrStream wraps an error frame sent by the server.
	ErrStream = errors.New("stream error")
)

type frame struct {
	code    string
	payload json.RawMessage
}

func parseFrame(line string) (frame, error) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return frame{}, fmt.Errorf("%w: missing code separator in %q", ErrMalformedFrame, clip(line))
	}

	code := line[:idx]
	switch code {
	case codeText, codeData, codeError, codeAnnotations,
		codeToolCall, codeToolResult, codeToolCallStart, codeToolCallDelta,
		codeFinish:
	default:
		return frame{}, fmt.Errorf("%w: unknown frame code %q", ErrMalformedFrame, code)
	}

	payload := json.RawMessage(line[idx+1:])
	if !json.Valid(payload) {
		return frame{}, fmt.Errorf("%w: invalid payload for code %q", ErrMalformedFrame, code)
	}

	return frame{code: code, payload: payload}, nil
}

func clip(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}

// The Format helpers render protocol frames. Server-side fixtures and the
// mock stream server use them so tests and the decoder agree on framing.

// FormatText renders a text-delta frame.
func FormatText(text string) string {
	return formatFrame(codeText, text)
}

// FormatData renders a side-channel data frame carrying the given records.
func FormatData(records ...any) string {
	return formatFrame(codeData, records)
}

// FormatError renders an error frame.
func FormatError(message string) string {
	return formatFrame(codeError, message)
}

// FormatAnnotations renders a message-annotations frame.
func FormatAnnotations(annotations ...any) string {
	return formatFrame(codeAnnotations, annotations)
}

// FormatToolCall renders a complete tool-call frame.
func FormatToolCall(call types.ToolCall) string {
	return formatFrame(codeToolCall, call)
}

// FormatToolCallStart renders a tool-call start frame.
func FormatToolCallStart(toolCallID, toolName string) string {
	return formatFrame(codeToolCallStart, map[string]string{
		"toolCallId": toolCallID,
		"toolName":   toolName,
	})
}

// FormatToolCallDelta renders a tool-call argument delta frame.
func FormatToolCallDelta(toolCallID, argsTextDelta string) string {
	return formatFrame(codeToolCallDelta, map[string]string{
		"toolCallId":    toolCallID,
		"argsTextDelta": argsTextDelta,
	})
}

// FormatToolResult renders a tool-result frame.
func FormatToolResult(toolCallID string, result any) string {
	return formatFrame(codeToolResult, map[string]any{
		"toolCallId": toolCallID,
		"result":     result,
	})
}

// FormatFinish renders a finish frame.
func FormatFinish(info types.FinishInfo) string {
	return formatFrame(codeFinish, info)
}

func formatFrame(code string, payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		// Only reachable with an unmarshalable fixture value.
		panic(fmt.Sprintf("codec: cannot marshal %s frame: %v", code, err))
	}
	return code + ":" + string(data) + "\n"
}
