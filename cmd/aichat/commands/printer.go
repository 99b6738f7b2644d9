package commands

import (
	"fmt"
	"io"
	"sync"

	ai "github.com/spiritledsoftware/ai"
)

// streamPrinter renders session events to a terminal: assistant text is
// printed incrementally as deltas arrive, tool calls are announced once.
type streamPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed int
	curID   string
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{out: out}
}

// reset starts a new turn.
func (p *streamPrinter) reset() {
	p.mu.Lock()
	p.printed = 0
	p.curID = ""
	p.mu.Unlock()
}

// finishTurn terminates the line after a turn, if anything was printed.
func (p *streamPrinter) finishTurn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed > 0 {
		fmt.Fprintln(p.out)
	}
}

func (p *streamPrinter) observe(e ai.Event) {
	switch e.Type {
	case ai.EventMessagesUpdated:
		p.printDelta(e.Data.(ai.MessagesUpdatedData).Messages)
	case ai.EventToolCallObserved:
		call := e.Data.(ai.ToolCallObservedData).Call
		fmt.Fprintf(p.out, "\n[tool call: %s]\n", call.ToolName)
		p.reset()
	case ai.EventChatErrored:
		// Printed by the command loop.
	}
}

// printDelta writes the unseen suffix of the latest assistant message.
func (p *streamPrinter) printDelta(messages []ai.Message) {
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	if last.Role != ai.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if last.ID != p.curID {
		p.curID = last.ID
		p.printed = 0
	}
	if len(last.Content) > p.printed {
		fmt.Fprint(p.out, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}
