package pkg

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			assert.Equal(t, tt.level, GetLogLevel())
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, nil)
	require.NotNil(t, logger)

	logger.Warn("test message")
	assert.Contains(t, buf.String(), `"msg":"test message"`)
}

func TestLogComponents(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
		msg       string
	}{
		{"trace", LogTrace, ComponentSim, "IN"},
		{"debug", LogDebug, ComponentControl, "setup received"},
		{"info", LogInfo, ComponentDriver, "bus reset"},
		{"warn", LogWarn, ComponentPMA, "rx overflow"},
		{"error", LogError, ComponentCDC, "write failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: LevelTrace}))

			tt.log(tt.component, tt.msg, "endpoint", 0)
			out := buf.String()
			assert.Contains(t, out, tt.msg)
			assert.Contains(t, out, "component="+string(tt.component))
			assert.Contains(t, out, "endpoint=0")
		})
	}
}

func TestLogLevelFiltersOutput(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	LogTrace(ComponentSim, "hidden")
	LogDebug(ComponentEndpoint, "hidden")
	LogInfo(ComponentEndpoint, "hidden too")
	assert.Empty(t, buf.String())

	LogWarn(ComponentEndpoint, "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetLoggerNilDiscards(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	SetLogger(nil)
	require.NotNil(t, Logger())
	LogError(ComponentDiag, "goes nowhere")
}
