package types

import "encoding/json"

// StreamUpdate is one reconciliation step produced while a response
// streams in. Messages is the full replacement for the in-flight
// assistant turn, not a delta: each update supersedes the previous one.
// Data holds side-channel records received so far.
type StreamUpdate struct {
	Messages []Message
	Data     []json.RawMessage
}

// ToolCall is the payload handed to the tool-call callback when a
// complete call (name plus final arguments) is observed mid-stream.
type ToolCall struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

// Usage reports token consumption for a completed turn.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// FinishInfo accompanies the finish callback on successful completion.
type FinishInfo struct {
	Reason string `json:"finishReason"`
	Usage  Usage  `json:"usage"`
}
