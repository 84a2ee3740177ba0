package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	Init("info", false)
	assert.NotNil(t, Get())

	Init("debug", true)
	assert.NotNil(t, Get())
}

func TestInit_LogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			Init(tt.level, false)
			assert.Equal(t, tt.expected, zerolog.GlobalLevel())
		})
	}
}

func TestInitWithWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", false)

	Info().Msg("hello board")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello board", entry["message"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", false)

	l := WithComponent("socket")
	l.Info().Msg("test message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "socket", entry["component"])
	assert.Equal(t, "test message", entry["message"])
}

func TestWithSprint(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", false)

	l := WithSprint("42")
	l.Info().Msg("sprint message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "42", entry["sprint_id"])
}

func TestWithModel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info", false)

	l := WithModel("task", "7")
	l.Info().Msg("task message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "task", entry["model"])
	assert.Equal(t, "7", entry["id"])
}

func TestLogLevels_Filtered(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", false)

	Debug().Msg("debug message")
	Info().Msg("info message")
	assert.Empty(t, buf.String())

	Warn().Msg("warn message")
	assert.Contains(t, buf.String(), "warn message")
	buf.Reset()

	Error().Msg("error message")
	assert.Contains(t, buf.String(), "error message")
}
