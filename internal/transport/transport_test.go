package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiritledsoftware/ai/pkg/types"
)

func captureBody(t *testing.T, got *map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, got))
		w.WriteHeader(http.StatusOK)
	}
}

func TestClient_TrimsMessagesByDefault(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(captureBody(t, &got))
	defer srv.Close()

	c := New(srv.URL)
	req := &types.ChatRequest{Messages: []types.Message{{
		ID:      "m1",
		Role:    types.RoleUser,
		Content: "hello",
		Name:    "alice",
		ToolInvocations: []types.ToolInvocation{
			{ToolCallID: "c1", ToolName: "t"},
		},
	}}}

	resp, err := c.Call(context.Background(), req, false)
	require.NoError(t, err)
	resp.Body.Close()

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "hello", msg["content"])
	assert.NotContains(t, msg, "id")
	assert.NotContains(t, msg, "name")
	assert.NotContains(t, msg, "toolInvocations")
}

func TestClient_SendExtraFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(captureBody(t, &got))
	defer srv.Close()

	c := New(srv.URL)
	req := &types.ChatRequest{Messages: []types.Message{{
		Role:    types.RoleAssistant,
		Content: "calling",
		Name:    "bot",
		ToolInvocations: []types.ToolInvocation{
			{ToolCallID: "c1", ToolName: "weather", Args: json.RawMessage(`{}`)},
		},
	}}}

	resp, err := c.Call(context.Background(), req, true)
	require.NoError(t, err)
	resp.Body.Close()

	msg := got["messages"].([]any)[0].(map[string]any)
	assert.Equal(t, "bot", msg["name"])
	assert.Contains(t, msg, "toolInvocations")
}

func TestClient_MergesBodyHeadersAndData(t *testing.T) {
	var got map[string]any
	var auth, extra string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		extra = r.Header.Get("X-Request-Source")
		captureBody(t, &got)(w, r)
	}))
	defer srv.Close()

	c := New(srv.URL, WithHeaders(map[string]string{"Authorization": "Bearer tok"}))
	req := &types.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
		Options: types.RequestOptions{
			Headers: map[string]string{"X-Request-Source": "test"},
			Body:    map[string]any{"model": "small", "temperature": 0.2},
			Data:    json.RawMessage(`{"flag":true}`),
		},
	}

	resp, err := c.Call(context.Background(), req, false)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "test", extra)
	assert.Equal(t, "small", got["model"])
	assert.Equal(t, map[string]any{"flag": true}, got["data"])
}

func TestClient_NonSuccessStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Call(context.Background(), &types.ChatRequest{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL)
	_, err := c.Call(ctx, &types.ChatRequest{}, false)
	require.ErrorIs(t, err, context.Canceled)
}
