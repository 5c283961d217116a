package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistantstream"
	"github.com/hupe1980/assistantstream/config"
	"github.com/hupe1980/assistantstream/run"
	"github.com/hupe1980/assistantstream/tool"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	require.NoError(t, chatCmd.Flags().Set("format", ""))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "assistantstream version "+assistantstream.Version+"\n", out)
}

func TestChatCommand_Text(t *testing.T) {
	out, _, err := execute(t, "chat", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello\n", out)
}

func TestChatCommand_DataStream(t *testing.T) {
	out, _, err := execute(t, "chat", "--format", "data-stream", "hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, `aui-state:[{"type":"set","path":["steps"],"value":1}]`)
	assert.Contains(t, out, `0:"there"`)
}

func TestChatCommand_RequiresPrompt(t *testing.T) {
	_, _, err := execute(t, "chat")
	assert.Error(t, err)
}

func TestNewApp(t *testing.T) {
	var logs bytes.Buffer
	a, err := newApp(config.Default(), &logs)
	require.NoError(t, err)

	assert.NotNil(t, a.registry)
	assert.Equal(t, []string{"current_time", "state_manager"}, a.agent.ListTools())

	cfg := config.Default()
	cfg.Metrics.Enabled = false
	a, err = newApp(cfg, &logs)
	require.NoError(t, err)
	assert.Nil(t, a.registry)
}

func TestNewModel_UnknownProvider(t *testing.T) {
	_, err := newModel(config.AgentConfig{Provider: "unknown"})
	assert.Error(t, err)
}

func TestCurrentTimeTool(t *testing.T) {
	ct := currentTimeTool()

	stream := run.Create(context.Background(), func(ctx context.Context, c *run.Controller) error {
		res, err := ct.Call(tool.NewContext(ctx, "call_1", c.State(), nil), map[string]any{"timezone": "UTC"})
		if err != nil {
			return err
		}
		c.AddData(res)

		_, err = ct.Call(tool.NewContext(ctx, "call_2", c.State(), nil), map[string]any{"timezone": "Mars/Olympus"})
		if err == nil {
			c.AddError("expected an error for an unknown zone")
		}
		return nil
	})

	chunks, err := run.Collect(context.Background(), stream)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "data", chunks[0].Type())
}

func TestChatCommand_UnknownFormat(t *testing.T) {
	_, _, err := execute(t, "chat", "--format", "xml", "hi")
	assert.ErrorContains(t, err, "unknown format")
}
