// Package gemini provides a model.Model backed by the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/model"
)

// Options configures the Gemini adapter.
type Options struct {
	Model       string
	Temperature *float64
	TopP        *float64
	TopK        *float64
	MaxTokens   int32
	APIKey      string
	BaseURL     string
}

// Model wraps genai's GenerateContent behind model.Model.
type Model struct {
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:     "gemini-2.0-flash",
		MaxTokens: 1024,
	}
}

// NewModel creates a Gemini model. Without an APIKey the SDK reads
// GOOGLE_API_KEY / GEMINI_API_KEY.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model. The system prompt is sent as system
// instruction, assistant turns use the "model" role.
func (m *Model) Complete(ctx context.Context, messages []core.Message) (string, error) {
	system, rest := model.Split(messages)
	contents, config := m.build(system, rest)

	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
	if err != nil {
		return "", model.NewProviderError(m.Info(), fmt.Errorf("generate content: %w", err))
	}
	text := resp.Text()
	if text == "" {
		return "", model.NewProviderError(m.Info(), model.ErrEmptyResponse)
	}
	return text, nil
}

func (m *Model) build(system string, messages []core.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range model.MergeConsecutive(messages) {
		role := genai.Role(genai.RoleUser)
		if msg.Role == core.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}

	config := &genai.GenerateContentConfig{MaxOutputTokens: m.opts.MaxTokens}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if m.opts.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*m.opts.Temperature))
	}
	if m.opts.TopP != nil {
		config.TopP = genai.Ptr(float32(*m.opts.TopP))
	}
	if m.opts.TopK != nil {
		config.TopK = genai.Ptr(float32(*m.opts.TopK))
	}
	return contents, config
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini"}
}

// Factory builds Gemini models from provider configuration.
func Factory(ctx context.Context, cfg model.ProviderConfig) (model.Model, error) {
	return NewModel(ctx, func(o *Options) {
		if cfg.Model != "" {
			o.Model = cfg.Model
		}
		o.Temperature = cfg.Temperature
		o.TopP = cfg.TopP
		o.TopK = cfg.TopK
		if cfg.MaxTokens > 0 {
			o.MaxTokens = int32(cfg.MaxTokens)
		}
		o.APIKey = cfg.ResolveAPIKey()
		o.BaseURL = cfg.BaseURL
	})
}
