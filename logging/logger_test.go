package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*StreamLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = buf
	return NewLogger(cfg), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestStreamLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestStreamLogger_KeyValueAndPrintfArgs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.WithComponent("run").WithRun("r-1").Info("run started", "grace", "50ms")
	l.Info("delivered %d chunks", 3)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "run", lines[0]["component"])
	assert.Equal(t, "r-1", lines[0]["run_id"])
	assert.Equal(t, "50ms", lines[0]["grace"])
	assert.Equal(t, "delivered 3 chunks", lines[1]["msg"])
}

func TestStreamLogger_WithContextDoesNotLeak(t *testing.T) {
	base, buf := newBufferLogger(LogLevelInfo)
	_ = base.WithContext("k", "v")
	base.Info("plain")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["k"]
	assert.False(t, ok)
}

func TestStreamLogger_LogRun(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.LogRun("r-2", "error", 4, time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.EqualValues(t, 4, lines[0]["chunk_count"])
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestSlogAdapter(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewSlogAdapter(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.Debug("a", "k", 1)
	l.Error("b")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.EqualValues(t, 1, lines[0]["k"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
}

func TestNewLogger_BindsConfiguredAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(&LoggerConfig{
		Level:       LogLevelDebug,
		Format:      "text",
		Output:      buf,
		Component:   "server",
		CustomAttrs: map[string]any{"region": "eu"},
	})
	l.Debug("server.chat.write", "bytes", 12)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, "component=server")
	assert.Contains(t, out, "region=eu")
	assert.Contains(t, out, "bytes=12")
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
