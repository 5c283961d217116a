package chunk

import "fmt"

// Operation types understood by state consumers.
const (
	OpSet        = "set"
	OpAppendText = "append-text"
)

// Operation is a single state mutation addressed by a key path. An empty path
// addresses the whole state.
type Operation struct {
	Type  string   `json:"type"`
	Path  []string `json:"path"`
	Value any      `json:"value"`
}

// SetOp records "set value at path".
func SetOp(path []string, value any) Operation {
	return Operation{Type: OpSet, Path: clonePath(path), Value: value}
}

// AppendTextOp records "append text to the string at path".
func AppendTextOp(path []string, text string) Operation {
	return Operation{Type: OpAppendText, Path: clonePath(path), Value: text}
}

// Validate reports whether the operation is well formed.
func (o Operation) Validate() error {
	switch o.Type {
	case OpSet:
		return nil
	case OpAppendText:
		if _, ok := o.Value.(string); !ok {
			return fmt.Errorf("append-text at %v: value must be a string, got %T", o.Path, o.Value)
		}
		return nil
	default:
		return fmt.Errorf("unsupported operation type %q", o.Type)
	}
}

func clonePath(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}
