package codec

import (
	"io"
	"time"
	"unicode/utf8"

	"github.com/spiritledsoftware/ai/pkg/types"
)

// TextDecoder interprets the response body as a growing text blob forming
// a single assistant message.
type TextDecoder struct {
	r     io.Reader
	newID func() string
	buf   []byte
	tail  []byte
	msg   *types.Message
	done  bool
}

// NewTextDecoder creates a text-mode decoder for a started response body.
func NewTextDecoder(body io.Reader, newID func() string) *TextDecoder {
	return &TextDecoder{
		r:     body,
		newID: newID,
		buf:   make([]byte, 4096),
	}
}

// Next reads the next chunk and returns the cumulative update. io.EOF
// signals a finished stream.
func (d *TextDecoder) Next() (*types.StreamUpdate, error) {
	if d.done {
		return nil, io.EOF
	}

	for {
		n, err := d.r.Read(d.buf)
		if n > 0 {
			content := d.consume(d.buf[:n])
			if err == io.EOF {
				d.done = true
				content += d.flush()
			} else if err != nil {
				d.done = true
				return nil, err
			}
			if content == "" && !d.done {
				// The chunk ended mid-rune and contributed nothing
				// visible yet.
				continue
			}
			d.grow(content)
			return &types.StreamUpdate{Messages: []types.Message{d.msg.Clone()}}, nil
		}
		if err != nil {
			d.done = true
			if err != io.EOF {
				return nil, err
			}
			if rest := d.flush(); rest != "" {
				d.grow(rest)
				return &types.StreamUpdate{Messages: []types.Message{d.msg.Clone()}}, nil
			}
			return nil, io.EOF
		}
	}
}

// consume appends p to any held-back bytes and returns the longest prefix
// that does not end inside a multi-byte rune; the incomplete remainder is
// held until the next read so partial updates never surface a split rune.
func (d *TextDecoder) consume(p []byte) string {
	b := append(d.tail, p...)
	d.tail = nil
	keep := len(b)
	for i := len(b) - 1; i >= 0 && len(b)-i < utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			keep = i
		}
		break
	}
	d.tail = append(d.tail, b[keep:]...)
	return string(b[:keep])
}

// flush releases held-back bytes at end of stream, complete or not, so the
// final content always matches the wire exactly.
func (d *TextDecoder) flush() string {
	rest := string(d.tail)
	d.tail = nil
	return rest
}

func (d *TextDecoder) grow(content string) {
	if d.msg == nil {
		d.msg = &types.Message{
			ID:        d.newID(),
			Role:      types.RoleAssistant,
			CreatedAt: time.Now(),
		}
	}
	d.msg.Content += content
}

// Message returns the assistant message assembled so far.
func (d *TextDecoder) Message() (types.Message, bool) {
	if d.msg == nil {
		return types.Message{}, false
	}
	return d.msg.Clone(), true
}

// Finish always returns zero metadata; the text protocol carries none.
func (d *TextDecoder) Finish() types.FinishInfo {
	return types.FinishInfo{}
}
