package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetupConsoleSplit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, closers, err := Setup(Options{Level: "debug", Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)
	assert.Empty(t, closers)

	logger.Debug("enumerated", "address", 7)
	logger.Error("stalled", "ep", 0)

	assert.Contains(t, stdout.String(), "msg=enumerated")
	assert.Contains(t, stdout.String(), "address=7")
	assert.NotContains(t, stdout.String(), "stalled")
	assert.Contains(t, stderr.String(), "msg=stalled")
	assert.NotContains(t, stderr.String(), "enumerated")
}

func TestSetupLevelFiltering(t *testing.T) {
	var stdout bytes.Buffer
	logger, _, err := Setup(Options{Level: "warn", Stdout: &stdout, Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "shown")
}

func TestSetupTraceLevelName(t *testing.T) {
	var stdout bytes.Buffer
	logger, _, err := Setup(Options{Level: "trace", Stdout: &stdout})
	require.NoError(t, err)

	logger.Log(t.Context(), LevelTrace, "packet")
	assert.Contains(t, stdout.String(), "level=TRACE")
}

func TestSetupJSON(t *testing.T) {
	var stdout bytes.Buffer
	logger, _, err := Setup(Options{Format: "json", Stdout: &stdout})
	require.NoError(t, err)

	logger.Info("configured", "value", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rec))
	assert.Equal(t, "configured", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.EqualValues(t, 1, rec["value"])
}

func TestSetupUnknownFormat(t *testing.T) {
	_, _, err := Setup(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmasim.log")
	var stdout, stderr bytes.Buffer

	logger, closers, err := Setup(Options{Level: "info", File: path, Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Info("to file")
	logger.Error("to both")
	for _, c := range closers {
		require.NoError(t, c.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, string(data), "to both")
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "to both")
	assert.NotContains(t, stderr.String(), "to file")
}

func TestMultiHandlerWithAttrs(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	)
	slog.New(h).With("component", "cdc").WithGroup("line").Info("coding", "rate", 9600)

	for _, out := range []string{a.String(), b.String()} {
		assert.Contains(t, out, "component=cdc")
		assert.Contains(t, out, "line.rate=9600")
	}
}
