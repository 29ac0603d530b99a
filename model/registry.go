package model

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ProviderConfig carries the generation parameters of one provider. Zero
// values mean "use the adapter default".
type ProviderConfig struct {
	Provider         string
	Model            string
	APIKey           string
	APIKeyEnv        string // environment variable holding the key
	BaseURL          string
	Temperature      *float64
	TopP             *float64
	TopK             *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
	MaxTokens        int
}

// ResolveAPIKey returns APIKey, or the value of the APIKeyEnv variable.
func (c ProviderConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

// Factory constructs a backend from its configuration.
type Factory func(ctx context.Context, cfg ProviderConfig) (Model, error)

// Registry maps provider identifiers to factories. Providers are registered
// explicitly at startup.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Factory
}

// NewRegistry creates a registry that already knows the "dummy" provider.
func NewRegistry() *Registry {
	r := &Registry{m: make(map[string]Factory)}
	r.Register("dummy", func(context.Context, ProviderConfig) (Model, error) {
		return NewScriptedModel(), nil
	})
	return r
}

// Register binds name to f, replacing any earlier binding.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[name] = f
}

// Providers lists the registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the backend for cfg.Provider.
func (r *Registry) New(ctx context.Context, cfg ProviderConfig) (Model, error) {
	r.mu.RLock()
	f, ok := r.m[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", cfg.Provider, r.Providers())
	}
	m, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", cfg.Provider, err)
	}
	return m, nil
}
