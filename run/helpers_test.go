package run

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/assistantstream/chunk"
	"github.com/hupe1980/assistantstream/metrics"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }

func (l *recordingLogger) warnings() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == "warn" {
			out = append(out, e)
		}
	}
	return out
}

func (e logEntry) String() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, a := range e.args {
		fmt.Fprintf(&b, " %v", a)
	}
	return b.String()
}

type recordingMetrics struct {
	mu         sync.Mutex
	started    int
	outcomes   []string
	chunks     map[string]int
	forced     int
	suppressed map[string]int
	shutdowns  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{chunks: map[string]int{}, suppressed: map[string]int{}}
}

func (m *recordingMetrics) RunStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) RunFinished(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) ChunkEmitted(t string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[t]++
}

func (m *recordingMetrics) ForcedCancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced++
}

func (m *recordingMetrics) SuppressedError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed[kind]++
}

func (m *recordingMetrics) ShutdownDuration(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdowns++
}

type metricsSnapshot struct {
	started    int
	outcomes   []string
	chunks     map[string]int
	forced     int
	suppressed map[string]int
	shutdowns  int
}

func (m *recordingMetrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metricsSnapshot{
		started:    m.started,
		outcomes:   slices.Clone(m.outcomes),
		chunks:     maps.Clone(m.chunks),
		forced:     m.forced,
		suppressed: maps.Clone(m.suppressed),
		shutdowns:  m.shutdowns,
	}
}

var _ metrics.Recorder = (*recordingMetrics)(nil)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func collect(t *testing.T, s *Stream) ([]chunk.Chunk, error) {
	t.Helper()
	return Collect(testContext(t), s)
}

func types(chunks []chunk.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Type()
	}
	return out
}

func nextChunk(t *testing.T, s *Stream) chunk.Chunk {
	t.Helper()
	require.True(t, s.Next(testContext(t)), "expected a chunk, err=%v", s.Err())
	return s.Current()
}

func waitClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}
