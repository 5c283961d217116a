// Package state holds the mutable structured state of a run.
//
// Mutations are recorded as chunk.Operation values and applied immediately to
// an in-memory JSON document, so reads always observe pending writes. Flush
// packages everything recorded since the previous flush into one
// chunk.UpdateState and hands it to the flush callback.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/assistantstream/chunk"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrNotText is returned when append-text targets a non-string value.
var ErrNotText = errors.New("state: value at path is not a string")

// FlushFunc receives one batch of operations. It is called with the store
// lock held and must not call back into the store.
type FlushFunc func(chunk.UpdateState)

// Store is the per-run state container. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	doc     []byte
	pending []chunk.Operation
	flush   FlushFunc
}

// New builds a store seeded with initial. A nil initial value yields a null
// document.
func New(flush FlushFunc, initial any) (*Store, error) {
	doc, err := json.Marshal(initial)
	if err != nil {
		return nil, fmt.Errorf("state: encode initial value: %w", err)
	}
	if flush == nil {
		flush = func(chunk.UpdateState) {}
	}
	return &Store{doc: doc, flush: flush}, nil
}

// AddOperations applies ops in order and queues them for the next flush. On
// error the operations before the failing one stay applied.
func (s *Store) AddOperations(ops ...chunk.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
		if err := s.applyLocked(op); err != nil {
			return err
		}
		s.pending = append(s.pending, op)
	}
	return nil
}

// Flush emits pending operations as one chunk. Without pending operations it
// is a no-op, so repeated flushes never duplicate chunks.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return
	}
	ops := s.pending
	s.pending = nil
	s.flush(chunk.UpdateState{Operations: ops})
}

// Pending reports the number of operations waiting for a flush.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Get returns the current value at path (nil when absent). Objects decode to
// map[string]any, arrays to []any and numbers to float64.
func (s *Store) Get(path ...string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(path) == 0 {
		var v any
		_ = json.Unmarshal(s.doc, &v)
		return v
	}
	return gjson.GetBytes(s.doc, gjsonPath(path)).Value()
}

// Decode unmarshals the value at path into dst.
func (s *Store) Decode(dst any, path ...string) error {
	s.mu.Lock()
	raw := s.doc
	if len(path) > 0 {
		res := gjson.GetBytes(s.doc, gjsonPath(path))
		if !res.Exists() {
			s.mu.Unlock()
			return fmt.Errorf("state: no value at %v", path)
		}
		raw = []byte(res.Raw)
	}
	s.mu.Unlock()

	return json.Unmarshal(raw, dst)
}

// Snapshot returns a copy of the current JSON document.
func (s *Store) Snapshot() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.doc))
	copy(out, s.doc)
	return out
}

// State returns a proxy rooted at the whole state.
func (s *Store) State() *Proxy { return &Proxy{store: s} }

func (s *Store) applyLocked(op chunk.Operation) error {
	switch op.Type {
	case chunk.OpSet:
		return s.setLocked(op.Path, op.Value)
	case chunk.OpAppendText:
		cur := s.doc
		if len(op.Path) > 0 {
			res := gjson.GetBytes(s.doc, gjsonPath(op.Path))
			if res.Exists() && res.Type != gjson.String && res.Type != gjson.Null {
				return fmt.Errorf("%w: %v", ErrNotText, op.Path)
			}
			return s.setLocked(op.Path, res.String()+op.Value.(string))
		}
		var text string
		if err := json.Unmarshal(cur, &text); err != nil && string(cur) != "null" {
			return fmt.Errorf("%w: <root>", ErrNotText)
		}
		return s.setLocked(nil, text+op.Value.(string))
	}
	return fmt.Errorf("unsupported operation type %q", op.Type)
}

func (s *Store) setLocked(path []string, value any) error {
	if len(path) == 0 {
		doc, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("state: encode value: %w", err)
		}
		s.doc = doc
		return nil
	}

	base := s.doc
	if r := gjson.ParseBytes(base); !r.IsObject() && !r.IsArray() {
		base = []byte("{}")
	}
	doc, err := sjson.SetBytes(base, sjsonPath(base, path), value)
	if err != nil {
		return fmt.Errorf("state: set %v: %w", path, err)
	}
	if !gjson.GetBytes(doc, gjsonPath(path)).Exists() {
		return fmt.Errorf("state: set %v: path is not addressable", path)
	}
	s.doc = doc
	return nil
}

// pathSpecials are the characters with a meaning in gjson or sjson paths.
const pathSpecials = `\.*?|#@!=<>%:[{`

func escapeKey(k string) string {
	if !strings.ContainsAny(k, pathSpecials) {
		return k
	}
	var b strings.Builder
	for _, r := range k {
		if strings.ContainsRune(pathSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func gjsonPath(path []string) string {
	parts := make([]string, len(path))
	for i, k := range path {
		parts[i] = escapeKey(k)
	}
	return strings.Join(parts, ".")
}

// sjsonPath builds the write path for doc. Numeric keys index into existing
// arrays; everywhere else they are forced to object keys, so sjson never
// creates an array where a reader expects an object.
func sjsonPath(doc []byte, path []string) string {
	parts := make([]string, len(path))
	parent := gjson.ParseBytes(doc)
	for i, k := range path {
		switch {
		case isIndex(k) && parent.IsArray():
			parts[i] = k
		case isIndex(k) || k == "-1":
			parts[i] = ":" + k
		default:
			parts[i] = escapeKey(k)
		}
		if parent.Exists() {
			parent = parent.Get(escapeKey(k))
		}
	}
	return strings.Join(parts, ".")
}

func isIndex(k string) bool {
	if k == "" {
		return false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < '0' || k[i] > '9' {
			return false
		}
	}
	return true
}
