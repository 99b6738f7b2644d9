package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const timeDescription = `Returns the current date and time.

Usage:
- Optionally pass an IANA timezone name (e.g. "America/New_York")
- Optionally pass a Go reference layout; defaults to RFC 3339`

// TimeInput is the argument shape of the time tool.
type TimeInput struct {
	Timezone string `json:"timezone,omitempty"`
	Layout   string `json:"layout,omitempty"`
}

// TimeOutput is returned as the tool result.
type TimeOutput struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Unix     int64  `json:"unix"`
}

// Time reports the current time. The clock is injectable for tests.
type Time struct {
	now func() time.Time
}

// NewTime creates the time tool backed by the wall clock.
func NewTime() *Time {
	return &Time{now: time.Now}
}

func (t *Time) ID() string          { return "time" }
func (t *Time) Description() string { return timeDescription }

func (t *Time) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {
				"type": "string",
				"description": "IANA timezone name (default: local)"
			},
			"layout": {
				"type": "string",
				"description": "Go time layout (default: RFC 3339)"
			}
		}
	}`)
}

func (t *Time) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var params TimeInput
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := t.now()
	if params.Timezone != "" {
		loc, err := time.LoadLocation(params.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", params.Timezone, err)
		}
		now = now.In(loc)
	}

	layout := params.Layout
	if layout == "" {
		layout = time.RFC3339
	}

	return &TimeOutput{
		Time:     now.Format(layout),
		Timezone: now.Location().String(),
		Unix:     now.Unix(),
	}, nil
}
