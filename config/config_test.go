package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistantstream/encoding"
	"github.com/hupe1980/assistantstream/logging"
)

func withEnv(env map[string]string) func(o *LoadOptions) {
	return func(o *LoadOptions) {
		o.LookupEnv = func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assistantstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", withEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, encoding.FormatDataStream, cfg.Server.DefaultFormat)
	assert.Equal(t, 50*time.Millisecond, cfg.Run.GracePeriod)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
  default_format: sse
run:
  grace_period: 2s
agent:
  provider: openai
  model: gpt-4o-mini
  max_steps: 3
log:
  level: debug
  format: json
`)

	cfg, err := Load(path, withEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, encoding.FormatSSE, cfg.Server.DefaultFormat)
	assert.Equal(t, 2*time.Second, cfg.Run.GracePeriod)
	assert.Equal(t, "openai", cfg.Agent.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Agent.Model)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	assert.Equal(t, logging.LogLevelDebug, cfg.Log.ParseLogLevel())
	// Untouched keys keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Agent.Streaming)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server:\n  addr: \":9090\"\n")

	cfg, err := Load(path, withEnv(map[string]string{
		"ASSISTANTSTREAM_SERVER_ADDR":              ":7070",
		"ASSISTANTSTREAM_RUN_GRACE_PERIOD":         "250ms",
		"ASSISTANTSTREAM_AGENT_STREAMING":          "false",
		"ASSISTANTSTREAM_AGENT_TEMPERATURE":        "0.2",
		"ASSISTANTSTREAM_AGENT_MAX_PARALLEL_TOOLS": "4",
		"ASSISTANTSTREAM_METRICS_ENABLED":          "false",
		"ASSISTANTSTREAM_LOG_LEVEL":                "",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Run.GracePeriod)
	assert.False(t, cfg.Agent.Streaming)
	assert.InDelta(t, 0.2, cfg.Agent.Temperature, 1e-9)
	assert.Equal(t, 4, cfg.Agent.MaxParallelTools)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_CustomPrefix(t *testing.T) {
	cfg, err := Load("", withEnv(map[string]string{"APP_SERVER_ADDR": ":1234"}), func(o *LoadOptions) {
		o.EnvPrefix = "APP"
	})
	require.NoError(t, err)
	assert.Equal(t, ":1234", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), withEnv(nil))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "server: [unclosed"), withEnv(nil))
	assert.Error(t, err)

	_, err = Load("", withEnv(map[string]string{"ASSISTANTSTREAM_RUN_GRACE_PERIOD": "soon"}))
	assert.ErrorContains(t, err, "ASSISTANTSTREAM_RUN_GRACE_PERIOD")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Server.Addr = ""
	cfg.Server.DefaultFormat = "xml"
	cfg.Run.GracePeriod = -time.Second
	cfg.Agent.Provider = "gemini"
	cfg.Agent.MaxSteps = 0
	cfg.Log.Level = "loud"
	cfg.Log.Format = "yaml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.addr", "server.default_format", "run.grace_period", "agent.provider", "agent.max_steps", "log.level", "log.format"} {
		assert.ErrorContains(t, err, want)
	}
}
