package agent

import (
	"strings"

	"github.com/hupe1980/assistantstream/internal/util"
	"github.com/hupe1980/assistantstream/state"
)

// InstructionProvider computes the system prompt for a run from its state.
type InstructionProvider interface {
	Instruction(st *state.Proxy) (string, error)
}

// InstructionFunc adapts a plain function to InstructionProvider.
type InstructionFunc func(*state.Proxy) (string, error)

func (f InstructionFunc) Instruction(st *state.Proxy) (string, error) { return f(st) }

// Instruction is the system prompt of a ChatAgent: either a text/template
// rendered against the run state on every run, or a provider.
type Instruction struct {
	text     string
	provider InstructionProvider
}

func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

func NewInstructionFromProvider(p InstructionProvider) Instruction {
	return Instruction{provider: p}
}

func NewInstructionFromFunc(f func(*state.Proxy) (string, error)) Instruction {
	return NewInstructionFromProvider(InstructionFunc(f))
}

// IsStatic reports whether the instruction is template text.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve produces the prompt for the current run state. st may be nil.
func (i Instruction) Resolve(st *state.Proxy) (string, error) {
	if !i.IsStatic() {
		return i.provider.Instruction(st)
	}
	if !strings.Contains(i.text, "{{") {
		return i.text, nil
	}

	var data any
	if st != nil {
		data = st.Get()
	}
	return util.RenderTemplate(i.text, data)
}
