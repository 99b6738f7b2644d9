package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spiritledsoftware/ai/internal/logging"
	"github.com/spiritledsoftware/ai/pkg/types"
)

// DataDecoder decodes the line-framed data protocol.
type DataDecoder struct {
	r          *bufio.Reader
	newID      func() string
	onToolCall ToolCallFunc

	msg     *types.Message
	data    []json.RawMessage
	argText map[string]string
	finish  types.FinishInfo
	done    bool
}

// NewDataDecoder creates a decoder for a started response body. newID is
// used once for the id of the assembled assistant message.
func NewDataDecoder(body io.Reader, newID func() string, onToolCall ToolCallFunc) *DataDecoder {
	return &DataDecoder{
		r:          bufio.NewReader(body),
		newID:      newID,
		onToolCall: onToolCall,
		argText:    make(map[string]string),
	}
}

// Next reads the next well-formed frame and returns the cumulative
// update; blank lines are skipped. io.EOF signals a finished stream.
func (d *DataDecoder) Next() (*types.StreamUpdate, error) {
	if d.done {
		return nil, io.EOF
	}

	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			d.done = true
			return nil, err
		}

		atEOF := err == io.EOF
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if atEOF {
				d.done = true
				return nil, io.EOF
			}
			continue
		}

		fr, perr := parseFrame(line)
		if perr != nil {
			d.done = true
			return nil, perr
		}

		logging.Debug().Str("code", fr.code).Msg("stream frame")

		if aerr := d.apply(fr); aerr != nil {
			d.done = true
			return nil, aerr
		}

		if atEOF {
			d.done = true
		}
		return d.update(), nil
	}
}

// Message returns the assistant message assembled so far.
func (d *DataDecoder) Message() (types.Message, bool) {
	if d.msg == nil {
		return types.Message{}, false
	}
	return d.msg.Clone(), true
}

// Finish returns metadata from the finish frame, zero when none was seen.
func (d *DataDecoder) Finish() types.FinishInfo {
	return d.finish
}

func (d *DataDecoder) apply(fr frame) error {
	switch fr.code {
	case codeText:
		var text string
		if err := json.Unmarshal(fr.payload, &text); err != nil {
			return fmt.Errorf("%w: text payload: %v", ErrMalformedFrame, err)
		}
		d.message().Content += text

	case codeData:
		var records []json.RawMessage
		if err := json.Unmarshal(fr.payload, &records); err != nil {
			return fmt.Errorf("%w: data payload: %v", ErrMalformedFrame, err)
		}
		d.data = append(d.data, records...)

	case codeAnnotations:
		var annotations []json.RawMessage
		if err := json.Unmarshal(fr.payload, &annotations); err != nil {
			return fmt.Errorf("%w: annotations payload: %v", ErrMalformedFrame, err)
		}
		msg := d.message()
		msg.Annotations = append(msg.Annotations, annotations...)

	case codeError:
		var message string
		if err := json.Unmarshal(fr.payload, &message); err != nil {
			return fmt.Errorf("%w: error payload: %v", ErrMalformedFrame, err)
		}
		return fmt.Errorf("%w: %s", ErrStream, message)

	case codeToolCallStart:
		var start struct {
			ToolCallID string `json:"toolCallId"`
			ToolName   string `json:"toolName"`
		}
		if err := json.Unmarshal(fr.payload, &start); err != nil || start.ToolCallID == "" {
			return fmt.Errorf("%w: tool-call start payload", ErrMalformedFrame)
		}
		msg := d.message()
		msg.ToolInvocations = append(msg.ToolInvocations, types.ToolInvocation{
			ToolCallID: start.ToolCallID,
			ToolName:   start.ToolName,
		})
		d.argText[start.ToolCallID] = ""

	case codeToolCallDelta:
		var delta struct {
			ToolCallID    string `json:"toolCallId"`
			ArgsTextDelta string `json:"argsTextDelta"`
		}
		if err := json.Unmarshal(fr.payload, &delta); err != nil {
			return fmt.Errorf("%w: tool-call delta payload", ErrMalformedFrame)
		}
		inv := d.invocation(delta.ToolCallID)
		if inv == nil {
			return fmt.Errorf("%w: delta for unknown tool call %q", ErrMalformedFrame, delta.ToolCallID)
		}
		d.argText[delta.ToolCallID] += delta.ArgsTextDelta
		// Concatenated deltas may not parse until the last one arrives.
		if acc := d.argText[delta.ToolCallID]; json.Valid([]byte(acc)) {
			inv.Args = json.RawMessage(acc)
		}

	case codeToolCall:
		var call types.ToolCall
		if err := json.Unmarshal(fr.payload, &call); err != nil || call.ToolCallID == "" {
			return fmt.Errorf("%w: tool-call payload", ErrMalformedFrame)
		}
		msg := d.message()
		inv := d.invocation(call.ToolCallID)
		if inv == nil {
			msg.ToolInvocations = append(msg.ToolInvocations, types.ToolInvocation{
				ToolCallID: call.ToolCallID,
			})
			inv = &msg.ToolInvocations[len(msg.ToolInvocations)-1]
		}
		inv.ToolName = call.ToolName
		inv.Args = call.Args

		if d.onToolCall != nil {
			result, err := d.onToolCall(call)
			if err != nil {
				return fmt.Errorf("tool call %s: %w", call.ToolName, err)
			}
			if result != nil && !inv.Resolved() {
				inv.Result = result
			}
		}

	case codeToolResult:
		var res struct {
			ToolCallID string          `json:"toolCallId"`
			Result     json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(fr.payload, &res); err != nil || res.ToolCallID == "" {
			return fmt.Errorf("%w: tool-result payload", ErrMalformedFrame)
		}
		inv := d.invocation(res.ToolCallID)
		if inv == nil {
			return fmt.Errorf("%w: result for unknown tool call %q", ErrMalformedFrame, res.ToolCallID)
		}
		// First result wins; a resolved call is immutable for the turn.
		if !inv.Resolved() {
			inv.Result = res.Result
		}

	case codeFinish:
		if err := json.Unmarshal(fr.payload, &d.finish); err != nil {
			return fmt.Errorf("%w: finish payload: %v", ErrMalformedFrame, err)
		}
	}

	return nil
}

func (d *DataDecoder) message() *types.Message {
	if d.msg == nil {
		d.msg = &types.Message{
			ID:        d.newID(),
			Role:      types.RoleAssistant,
			CreatedAt: time.Now(),
		}
	}
	return d.msg
}

func (d *DataDecoder) invocation(toolCallID string) *types.ToolInvocation {
	if d.msg == nil {
		return nil
	}
	for i := range d.msg.ToolInvocations {
		if d.msg.ToolInvocations[i].ToolCallID == toolCallID {
			return &d.msg.ToolInvocations[i]
		}
	}
	return nil
}

func (d *DataDecoder) update() *types.StreamUpdate {
	u := &types.StreamUpdate{
		Data: append([]json.RawMessage(nil), d.data...),
	}
	if d.msg != nil {
		u.Messages = []types.Message{d.msg.Clone()}
	}
	return u
}
