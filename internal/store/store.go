// Package store provides the keyed message cache shared by chat sessions.
// The store is injected into each session so callers control its lifetime;
// tests get isolation from a fresh store per test.
package store

import (
	"sync"

	"github.com/spiritledsoftware/ai/pkg/types"
)

// Store is a keyed cache of message lists. Both operations are synchronous
// and a Set must be visible to any subsequent Get for the same key.
type Store interface {
	// Get returns the message list for key, or nil for an unseen key.
	Get(key string) []types.Message

	// Set replaces the message list for key.
	Set(key string, messages []types.Message)
}

// Key derives the cache key for a conversation from its endpoint and id.
func Key(endpoint, chatID string) string {
	return endpoint + "|" + chatID
}

// Memory is an in-process Store. Values are deep-copied on both paths so
// a reader can never observe a write in progress.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]types.Message
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]types.Message)}
}

func (m *Memory) Get(key string) []types.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.CloneMessages(m.entries[key])
}

func (m *Memory) Set(key string, messages []types.Message) {
	cloned := types.CloneMessages(messages)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = cloned
}
