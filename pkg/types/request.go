package types

import "encoding/json"

// RequestOptions carries per-call extensions for one exchange: extra
// headers, extra top-level body fields, and side-channel data forwarded to
// the server. The zero value adds nothing.
type RequestOptions struct {
	Headers map[string]string
	Body    map[string]any
	Data    json.RawMessage
}

// ChatRequest is the unit submitted to the transport layer for a single
// network exchange. It is transient and rebuilt per call.
type ChatRequest struct {
	Messages []Message
	Options  RequestOptions
}
