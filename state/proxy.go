package state

import (
	"strconv"

	"github.com/hupe1980/assistantstream/chunk"
)

// Proxy is a path-addressed handle into a Store. Navigation never touches the
// store; only Set and AppendText record operations, and those batch until the
// next flush.
//
//	p := store.State()
//	p.Key("user").Key("name").Set("Bob")
//	p.Key("messages").AppendText(" world")
//	name := p.Key("user").Key("name").Get()
type Proxy struct {
	store *Store
	path  []string
}

// Key navigates to an object member.
func (p *Proxy) Key(k string) *Proxy { return p.child(k) }

// Index navigates to an array element.
func (p *Proxy) Index(i int) *Proxy { return p.child(strconv.Itoa(i)) }

// Path returns a copy of the proxy's key path.
func (p *Proxy) Path() []string {
	out := make([]string, len(p.path))
	copy(out, p.path)
	return out
}

// Get returns the current value at the proxy's path.
func (p *Proxy) Get() any { return p.store.Get(p.path...) }

// Decode unmarshals the value at the proxy's path into dst.
func (p *Proxy) Decode(dst any) error { return p.store.Decode(dst, p.path...) }

// Set records a set operation at the proxy's path.
func (p *Proxy) Set(v any) error {
	return p.store.AddOperations(chunk.SetOp(p.path, v))
}

// AppendText records an append-text operation at the proxy's path.
func (p *Proxy) AppendText(s string) error {
	return p.store.AddOperations(chunk.AppendTextOp(p.path, s))
}

func (p *Proxy) child(k string) *Proxy {
	path := make([]string, len(p.path)+1)
	copy(path, p.path)
	path[len(p.path)] = k
	return &Proxy{store: p.store, path: path}
}
