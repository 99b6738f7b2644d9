package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestInit_WritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: zerolog.DebugLevel, Output: &buf})
	defer Init(Config{Level: zerolog.Disabled})

	Debug().Str("component", "codec").Msg("frame decoded")

	out := buf.String()
	assert.True(t, strings.Contains(out, "frame decoded"), "log output: %s", out)
	assert.True(t, strings.Contains(out, "codec"), "log output: %s", out)
}

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: zerolog.ErrorLevel, Output: &buf})
	defer Init(Config{Level: zerolog.Disabled})

	Info().Msg("filtered")
	Error().Msg("kept")

	out := buf.String()
	assert.False(t, strings.Contains(out, "filtered"))
	assert.True(t, strings.Contains(out, "kept"))
}
