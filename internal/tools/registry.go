package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/spiritledsoftware/ai/internal/logging"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// maxSuggestionDistance bounds how far an unknown tool name may be from a
// registered one before the error stops suggesting it.
const maxSuggestionDistance = 3

// Registry manages tool registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any tool with the same id.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by id.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// IDs returns the registered tool ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns all registered tools, sorted by id.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0)
	for _, id := range r.IDs() {
		if t, ok := r.Get(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// Handler adapts the registry into a tool-call callback for a chat
// session. The context bounds every execution started through it.
func (r *Registry) Handler(ctx context.Context) func(types.ToolCall) (any, error) {
	return func(call types.ToolCall) (any, error) {
		tool, ok := r.Get(call.ToolName)
		if !ok {
			return nil, r.unknownToolError(call.ToolName)
		}

		logging.Debug().Str("tool", call.ToolName).Str("callID", call.ToolCallID).Msg("executing tool")
		result, err := tool.Execute(ctx, call.Args)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", call.ToolName, err)
		}
		return result, nil
	}
}

// unknownToolError builds the lookup failure, suggesting the closest
// registered id when one is plausibly a typo away.
func (r *Registry) unknownToolError(name string) error {
	best := ""
	bestDist := maxSuggestionDistance + 1
	for _, id := range r.IDs() {
		if d := levenshtein.ComputeDistance(name, id); d < bestDist {
			best = id
			bestDist = d
		}
	}
	if best != "" {
		return fmt.Errorf("unknown tool %q (did you mean %q?)", name, best)
	}
	return fmt.Errorf("unknown tool %q", name)
}
