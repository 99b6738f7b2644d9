package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spiritledsoftware/ai/pkg/types"
)

func echoTool(id string) Tool {
	return NewFunc(id, "echoes its arguments", json.RawMessage(`{"type":"object"}`),
		func(_ context.Context, args json.RawMessage) (any, error) {
			return string(args), nil
		})
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("echo"))

	got, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.ID())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryIDsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("zeta"))
	r.Register(echoTool("alpha"))
	r.Register(echoTool("mid"))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.IDs())
	assert.Len(t, r.List(), 3)
}

func TestHandlerDispatches(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("echo"))

	handler := r.Handler(context.Background())
	result, err := handler(types.ToolCall{
		ToolCallID: "c1",
		ToolName:   "echo",
		Args:       json.RawMessage(`{"x":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, result)
}

func TestHandlerWrapsToolFailure(t *testing.T) {
	boom := errors.New("backend unavailable")
	r := NewRegistry()
	r.Register(NewFunc("flaky", "", nil, func(context.Context, json.RawMessage) (any, error) {
		return nil, boom
	}))

	_, err := r.Handler(context.Background())(types.ToolCall{ToolName: "flaky"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "flaky")
}

func TestHandlerUnknownToolSuggestsClosest(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("webfetch"))
	r.Register(echoTool("glob"))

	_, err := r.Handler(context.Background())(types.ToolCall{ToolName: "webfech"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"webfech"`)
	assert.Contains(t, err.Error(), `"webfetch"`)
}

func TestHandlerUnknownToolNoNearMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool("glob"))

	_, err := r.Handler(context.Background())(types.ToolCall{ToolName: "completely-different"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}
