package agent

import (
	"errors"
	"testing"

	"github.com/hupe1980/assistantstream/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*state.Proxy) (string, error) { return m.text, m.err }

func newTestState(t *testing.T, initial any) *state.Proxy {
	t.Helper()
	store, err := state.New(nil, initial)
	require.NoError(t, err)
	return store.State()
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(newTestState(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_TemplateUsesRunState(t *testing.T) {
	inst := NewInstructionFromText(`You help {{.user.name | upper}} in {{default "en" .lang}}.`)

	got, err := inst.Resolve(newTestState(t, map[string]any{"user": map[string]any{"name": "ann"}}))
	require.NoError(t, err)
	assert.Equal(t, "You help ANN in en.", got)
}

func TestInstruction_TemplateParseError(t *testing.T) {
	_, err := NewInstructionFromText("{{.broken").Resolve(nil)
	assert.Error(t, err)
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(st *state.Proxy) (string, error) {
		return "steps so far: " + st.Key("mode").Get().(string), nil
	})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(newTestState(t, map[string]any{"mode": "fast"}))
	require.NoError(t, err)
	assert.Equal(t, "steps so far: fast", got)
}

func TestInstruction_NewInstructionFromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "provider text"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "provider text", got)
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	expectedErr := errors.New("boom")
	_, err := NewInstructionFromProvider(mockProvider{err: expectedErr}).Resolve(nil)
	assert.ErrorIs(t, err, expectedErr)
}
