// Package ai provides a streaming chat session controller: it posts
// message histories to a chat endpoint, incrementally reconciles the
// streamed response into the conversation, executes tool calls, and
// exposes the session state to interactive frontends.
//
// The root package is a facade over the internal packages; most programs
// only need NewChat and the types re-exported here.
package ai

import (
	"github.com/spiritledsoftware/ai/internal/chat"
	"github.com/spiritledsoftware/ai/internal/codec"
	"github.com/spiritledsoftware/ai/internal/event"
	"github.com/spiritledsoftware/ai/internal/store"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// Chat is a conversation session. See NewChat.
type Chat = chat.Chat

// Options configures a chat session.
type Options = chat.Options

// Core message and request types.
type (
	Message        = types.Message
	Role           = types.Role
	ToolInvocation = types.ToolInvocation
	ToolCall       = types.ToolCall
	RequestOptions = types.RequestOptions
	FinishInfo     = types.FinishInfo
	Usage          = types.Usage
)

// Message roles.
const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
	RoleFunction  = types.RoleFunction
	RoleTool      = types.RoleTool
	RoleData      = types.RoleData
)

// Protocol selects how the response stream is decoded.
type Protocol = codec.Protocol

const (
	// ProtocolText treats the body as raw text chunks.
	ProtocolText = codec.ProtocolText

	// ProtocolData decodes line-framed CODE:JSON records.
	ProtocolData = codec.ProtocolData
)

// Session events, observable via Chat.Subscribe.
type (
	Event      = event.Event
	EventType  = event.Type
	Subscriber = event.Subscriber

	MessagesUpdatedData  = event.MessagesUpdatedData
	DataReceivedData     = event.DataReceivedData
	InputChangedData     = event.InputChangedData
	LoadingChangedData   = event.LoadingChangedData
	ChatFinishedData     = event.ChatFinishedData
	ChatErroredData      = event.ChatErroredData
	ToolCallObservedData = event.ToolCallObservedData
)

const (
	EventMessagesUpdated  = event.MessagesUpdated
	EventDataReceived     = event.DataReceived
	EventInputChanged     = event.InputChanged
	EventLoadingChanged   = event.LoadingChanged
	EventChatFinished     = event.ChatFinished
	EventChatErrored      = event.ChatErrored
	EventToolCallObserved = event.ToolCallObserved
)

// MessageStore is the pluggable conversation cache.
type MessageStore = store.Store

// NewMemoryStore returns an in-memory MessageStore that can be shared
// between sessions.
func NewMemoryStore() MessageStore {
	return store.NewMemory()
}

// NewFileStore returns a disk-backed MessageStore rooted at dir, so a
// chat id can be resumed across process restarts.
func NewFileStore(dir string) MessageStore {
	return store.NewFile(dir)
}

// NewChat creates a chat session.
func NewChat(opts Options) *Chat {
	return chat.New(opts)
}
