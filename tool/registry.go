package tool

import (
	"fmt"
	"strings"
)

// Registry is the keyed table of tools available to an agent. It is filled
// once at construction and read-only afterwards, so lookups need no locking.
type Registry struct {
	order []string
	byKey map[string]Descriptor
}

// NewRegistry validates and registers descs in order. Duplicate names are an
// error.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byKey[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", d.Name)
		}
		r.byKey[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for tests and
// static wiring.
func MustRegistry(descs ...Descriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the descriptor registered under name or *InvalidToolError.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	if r != nil {
		if d, ok := r.byKey[name]; ok {
			return d, nil
		}
	}
	return Descriptor{}, &InvalidToolError{Name: name, Available: r.Names()}
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byKey[n])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Describe renders one "name: description" line per tool for prompts.
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, d := range r.Descriptors() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(d.Name)
		b.WriteString(": ")
		b.WriteString(d.Description)
	}
	return b.String()
}
