package tool

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hupe1980/chatagent/logging"
	"github.com/hupe1980/chatagent/model"
)

// Spec is the configuration of one tool instance.
type Spec struct {
	Name        string
	Module      string
	Description string
	Wait        time.Duration
	Parameters  map[string]any
}

// Deps are the shared collaborators a factory may hand to the tool it builds.
type Deps struct {
	// Backend lets tools call the language model (for example to summarize).
	Backend model.Model
	Logger  logging.Logger
	// WebApp is set when a remote front end renders results, so tools return
	// metadata instead of acting on the local machine.
	WebApp bool
	// Output receives anything a tool displays locally.
	Output io.Writer
}

// Factory constructs a tool from its spec.
type Factory func(spec Spec, deps Deps) (Tool, error)

// Factories maps module identifiers to factories. Modules are registered
// explicitly at startup; nothing is resolved by reflection.
type Factories struct {
	mu sync.RWMutex
	m  map[string]Factory
}

// NewFactories creates an empty factory table.
func NewFactories() *Factories {
	return &Factories{m: make(map[string]Factory)}
}

// Register binds module to f, replacing any earlier binding.
func (f *Factories) Register(module string, fn Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[module] = fn
}

// Modules lists registered module identifiers, sorted.
func (f *Factories) Modules() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.m))
	for k := range f.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds one tool.
func (f *Factories) New(spec Spec, deps Deps) (Tool, error) {
	f.mu.RLock()
	fn, ok := f.m[spec.Module]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %q: unknown module %q (known: %v)", spec.Name, spec.Module, f.Modules())
	}
	t, err := fn(spec, deps)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", spec.Name, err)
	}
	return t, nil
}

// Build constructs every spec and registers the results in order.
func (f *Factories) Build(specs []Spec, deps Deps) (*Registry, error) {
	descs := make([]Descriptor, 0, len(specs))
	for _, s := range specs {
		t, err := f.New(s, deps)
		if err != nil {
			return nil, err
		}
		descs = append(descs, NewDescriptor(s.Name, s.Description, s.Wait, t))
	}
	return NewRegistry(descs...)
}

// IntParam reads an integer parameter, accepting the numeric shapes produced
// by YAML and JSON decoders.
func IntParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// FloatParam reads a floating point parameter.
func FloatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// StringParam reads a string parameter.
func StringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// BoolParam reads a boolean parameter.
func BoolParam(params map[string]any, key string, def bool) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
