// Package gollm exposes every provider supported by github.com/teilomillet/gollm
// (Ollama, Mistral, Cohere, OpenRouter, ...) as a model.Model.
package gollm

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/model"
)

// Options configures the adapter.
type Options struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	TopP        *float64
	// Extra is appended to the generated gollm configuration.
	Extra []gollm.ConfigOption
}

// Model wraps a gollm.LLM.
type Model struct {
	llm  gollm.LLM
	opts Options
}

// NewModel creates a gollm backed model. When APIKey is empty gollm looks the
// key up in the provider's usual environment variable.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Provider:    "ollama",
		Model:       "llama3",
		MaxTokens:   1024,
		Temperature: 0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := []gollm.ConfigOption{
		gollm.SetProvider(opts.Provider),
		gollm.SetModel(opts.Model),
		gollm.SetMaxTokens(opts.MaxTokens),
		gollm.SetTemperature(opts.Temperature),
		gollm.SetMaxRetries(0), // the agent loop never retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if opts.TopP != nil {
		cfg = append(cfg, gollm.SetTopP(*opts.TopP))
	}
	if opts.APIKey != "" {
		cfg = append(cfg, gollm.SetAPIKey(opts.APIKey))
	}
	cfg = append(cfg, opts.Extra...)

	llm, err := gollm.NewLLM(cfg...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", opts.Provider, err)
	}
	return &Model{llm: llm, opts: opts}, nil
}

// NewModelFromLLM wraps an existing gollm.LLM instance.
func NewModelFromLLM(llm gollm.LLM, optFns ...func(o *Options)) *Model {
	opts := Options{Provider: "gollm"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{llm: llm, opts: opts}
}

// Complete implements model.Model.
func (m *Model) Complete(ctx context.Context, messages []core.Message) (string, error) {
	system, text := renderPrompt(messages)

	var promptOpts []gollm.PromptOption
	if system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	prompt := gollm.NewPrompt(text, promptOpts...)

	out, err := m.llm.Generate(ctx, prompt)
	if err != nil {
		return "", model.NewProviderError(m.Info(), fmt.Errorf("generate: %w", err))
	}
	if strings.TrimSpace(out) == "" {
		return "", model.NewProviderError(m.Info(), model.ErrEmptyResponse)
	}
	return out, nil
}

// renderPrompt separates the system prompt and flattens the conversation into
// a Human/AI transcript, since gollm prompts are a single input text.
func renderPrompt(messages []core.Message) (system, text string) {
	system, rest := model.Split(messages)
	text = model.Flatten(rest)
	if len(rest) > 0 && rest[len(rest)-1].Role != core.RoleAssistant {
		text += "\n\nAI:"
	}
	return system, text
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: m.opts.Provider}
}

// Factory returns a model.Factory that drives gollm's provider named provider.
func Factory(provider string) model.Factory {
	return func(_ context.Context, cfg model.ProviderConfig) (model.Model, error) {
		return NewModel(func(o *Options) {
			o.Provider = provider
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			o.TopP = cfg.TopP
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.APIKey = cfg.ResolveAPIKey()
		})
	}
}
