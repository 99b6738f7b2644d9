// Package transport issues the streaming chat request over HTTP. It is
// the injected network capability of a session: it builds the outgoing
// payload, starts the call, checks the status, and hands back the still
// streaming response body.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spiritledsoftware/ai/internal/logging"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// Caller starts one chat exchange and returns the streaming response.
// Cancellation is honored through the request context.
type Caller interface {
	Call(ctx context.Context, req *types.ChatRequest, sendExtraFields bool) (*http.Response, error)
}

// Client is the HTTP Caller used by default.
type Client struct {
	endpoint string
	headers  map[string]string
	http     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHeaders sets headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) { c.headers = headers }
}

// WithHTTPClient injects the underlying http.Client, which owns transport
// policy such as cookies, proxies, and TLS.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client posting to the given endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireMessage is the trimmed form a message takes on the wire. By default
// only role and content are sent; the remaining fields ride along when the
// session enables extra message fields.
type wireMessage struct {
	Role            types.Role             `json:"role"`
	Content         string                 `json:"content"`
	Name            string                 `json:"name,omitempty"`
	Data            json.RawMessage        `json:"data,omitempty"`
	Annotations     []json.RawMessage      `json:"annotations,omitempty"`
	ToolInvocations []types.ToolInvocation `json:"toolInvocations,omitempty"`
}

// Call posts the chat request and returns the started response. The body
// is left open for the stream decoder; the caller owns closing it.
func (c *Client) Call(ctx context.Context, req *types.ChatRequest, sendExtraFields bool) (*http.Response, error) {
	payload := make(map[string]any, 2+len(req.Options.Body))
	for k, v := range req.Options.Body {
		payload[k] = v
	}
	payload["messages"] = trimMessages(req.Messages, sendExtraFields)
	if len(req.Options.Data) > 0 {
		payload["data"] = req.Options.Data
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Options.Headers {
		httpReq.Header.Set(k, v)
	}

	logging.Debug().
		Str("endpoint", c.endpoint).
		Int("messages", len(req.Messages)).
		Msg("chat request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("chat request failed: %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	return resp, nil
}

func trimMessages(messages []types.Message, sendExtraFields bool) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		out[i] = wireMessage{Role: m.Role, Content: m.Content}
		if sendExtraFields {
			out[i].Name = m.Name
			out[i].Data = m.Data
			out[i].Annotations = m.Annotations
			out[i].ToolInvocations = m.ToolInvocations
		}
	}
	return out
}
