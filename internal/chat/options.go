package chat

import (
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/spiritledsoftware/ai/internal/codec"
	"github.com/spiritledsoftware/ai/internal/event"
	"github.com/spiritledsoftware/ai/internal/store"
	"github.com/spiritledsoftware/ai/internal/transport"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// Options configures a chat session. The zero value needs at least
// Endpoint; everything else has a default. Options are normalized once at
// construction into a plain resolved struct, so later behavior never
// depends on which fields the caller left unset.
type Options struct {
	// Endpoint is the chat API URL the session posts to.
	Endpoint string

	// ChatID names the conversation. Generated when empty. Together with
	// Endpoint it identifies the message-store entry; changing either
	// starts a logically new conversation.
	ChatID string

	// Headers are sent with every request.
	Headers map[string]string

	// Body holds extra top-level fields merged into every request body.
	Body map[string]any

	// HTTPClient owns transport policy (cookies, TLS, proxies). Defaults
	// to http.DefaultClient.
	HTTPClient *http.Client

	// Protocol selects the stream decoding mode. Defaults to data mode.
	Protocol codec.Protocol

	// SendExtraMessageFields sends name, data, annotations, and tool
	// invocations on the wire instead of the trimmed role/content form.
	SendExtraMessageFields bool

	// MaxToolRoundtrips bounds automatic continuation after resolved tool
	// calls. Zero disables the feature.
	MaxToolRoundtrips int

	// InitialMessages seeds the conversation history.
	InitialMessages []types.Message

	// InitialInput seeds the input-box state.
	InitialInput string

	// GenerateID produces message ids and, when ChatID is empty, the
	// conversation id. Defaults to ULIDs.
	GenerateID func() string

	// OnResponse fires once response headers are available.
	OnResponse func(*http.Response)

	// OnFinish fires after a turn completes successfully.
	OnFinish func(message types.Message, info types.FinishInfo)

	// OnToolCall is invoked when a complete tool call is observed
	// mid-stream. A non-nil result is injected into the stream.
	OnToolCall func(call types.ToolCall) (any, error)

	// OnError fires on non-abort failures.
	OnError func(error)

	// Store is the injected message cache. Defaults to a private
	// in-memory store.
	Store store.Store

	// Caller overrides the network capability, mainly for tests.
	Caller transport.Caller
}

// resolved is the normalized form of Options used by the session.
type resolved struct {
	endpoint          string
	chatID            string
	protocol          codec.Protocol
	sendExtraFields   bool
	maxToolRoundtrips int
	generateID        func() string
	onResponse        func(*http.Response)
	onFinish          func(types.Message, types.FinishInfo)
	onToolCall        func(types.ToolCall) (any, error)
	onError           func(error)
	body              map[string]any
}

func (o Options) normalize() (resolved, store.Store, transport.Caller, *event.Bus) {
	r := resolved{
		endpoint:          o.Endpoint,
		chatID:            o.ChatID,
		protocol:          o.Protocol,
		sendExtraFields:   o.SendExtraMessageFields,
		maxToolRoundtrips: o.MaxToolRoundtrips,
		generateID:        o.GenerateID,
		onResponse:        o.OnResponse,
		onFinish:          o.OnFinish,
		onToolCall:        o.OnToolCall,
		onError:           o.OnError,
		body:              o.Body,
	}

	if r.generateID == nil {
		r.generateID = func() string { return ulid.Make().String() }
	}
	if r.chatID == "" {
		r.chatID = r.generateID()
	}
	if r.protocol == "" {
		r.protocol = codec.ProtocolData
	}

	st := o.Store
	if st == nil {
		st = store.NewMemory()
	}

	caller := o.Caller
	if caller == nil {
		topts := []transport.Option{transport.WithHeaders(o.Headers)}
		if o.HTTPClient != nil {
			topts = append(topts, transport.WithHTTPClient(o.HTTPClient))
		}
		caller = transport.New(o.Endpoint, topts...)
	}

	return r, st, caller, event.NewBus()
}
