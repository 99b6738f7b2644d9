package event

import (
	"encoding/json"

	"github.com/spiritledsoftware/ai/pkg/types"
)

// MessagesUpdatedData is the data for messages.updated events. Messages is
// the full current history, never a partial merge.
type MessagesUpdatedData struct {
	Messages []types.Message
}

// DataReceivedData is the data for data.received events. Records holds the
// side-channel values added by the latest stream update.
type DataReceivedData struct {
	Records []json.RawMessage
}

// InputChangedData is the data for input.changed events.
type InputChangedData struct {
	Input string
}

// LoadingChangedData is the data for loading.changed events.
type LoadingChangedData struct {
	Loading bool
}

// ChatFinishedData is the data for chat.finished events.
type ChatFinishedData struct {
	Message types.Message
	Info    types.FinishInfo
}

// ChatErroredData is the data for chat.errored events.
type ChatErroredData struct {
	Err error
}

// ToolCallObservedData is the data for toolcall.observed events.
type ToolCallObservedData struct {
	Call types.ToolCall
}
