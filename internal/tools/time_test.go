package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTime() *Time {
	return &Time{now: func() time.Time {
		return time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	}}
}

func TestTimeDefaultsToRFC3339(t *testing.T) {
	out, err := fixedTime().Execute(context.Background(), nil)
	require.NoError(t, err)

	result, ok := out.(*TimeOutput)
	require.True(t, ok)
	assert.Equal(t, "2024-06-01T12:30:00Z", result.Time)
	assert.Equal(t, "UTC", result.Timezone)
	assert.Equal(t, int64(1717245000), result.Unix)
}

func TestTimeCustomLayout(t *testing.T) {
	args := json.RawMessage(`{"layout": "2006-01-02"}`)
	out, err := fixedTime().Execute(context.Background(), args)
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", out.(*TimeOutput).Time)
}

func TestTimeUnknownTimezone(t *testing.T) {
	args := json.RawMessage(`{"timezone": "Nowhere/Particular"}`)
	_, err := fixedTime().Execute(context.Background(), args)
	assert.Error(t, err)
}

func TestTimeRejectsMalformedArgs(t *testing.T) {
	_, err := fixedTime().Execute(context.Background(), json.RawMessage(`{`))
	assert.Error(t, err)
}
