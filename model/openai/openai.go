// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API. Any OpenAI compatible endpoint (Groq, local gateways)
// works by pointing BaseURL at it.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/model"
)

// GroqBaseURL is the OpenAI compatible endpoint of Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1/"

// Options configure the OpenAI model adapter.
type Options struct {
	Provider            string // reported in Info and errors, "openai" by default
	Model               string
	Temperature         float64
	TopP                *float64
	PresencePenalty     *float64
	FrequencyPenalty    *float64
	MaxCompletionTokens int64
	APIKey              string
	BaseURL             string
	// RequestOptions are passed to the client as is.
	RequestOptions []option.RequestOption
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Provider:            "openai",
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
}

// NewModel creates a new OpenAI model using the official client. Without an
// APIKey the client falls back to OPENAI_API_KEY.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := append([]option.RequestOption{}, opts.RequestOptions...)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model.
func (m *Model) Complete(ctx context.Context, messages []core.Message) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(messages))
	if err != nil {
		return "", model.NewProviderError(m.Info(), fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", model.NewProviderError(m.Info(), model.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (m *Model) buildParams(messages []core.Message) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(messages),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if m.opts.TopP != nil {
		params.TopP = openai.Float(*m.opts.TopP)
	}
	if m.opts.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*m.opts.PresencePenalty)
	}
	if m.opts.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*m.opts.FrequencyPenalty)
	}
	return params
}

func buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text))
		case core.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text))
		default:
			out = append(out, openai.UserMessage(msg.Text))
		}
	}
	return out
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: m.opts.Provider,
	}
}

// Factory returns a model.Factory for the named provider. For "groq" the
// Groq endpoint is used unless the configuration sets its own base URL.
func Factory(provider string) model.Factory {
	return func(_ context.Context, cfg model.ProviderConfig) (model.Model, error) {
		key := cfg.ResolveAPIKey()
		if key == "" && provider != "openai" {
			return nil, fmt.Errorf("missing api key (set %s)", cfg.APIKeyEnv)
		}
		return NewModel(func(o *Options) {
			o.Provider = provider
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.Temperature != nil {
				o.Temperature = *cfg.Temperature
			}
			o.TopP = cfg.TopP
			o.PresencePenalty = cfg.PresencePenalty
			o.FrequencyPenalty = cfg.FrequencyPenalty
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = key
			o.BaseURL = cfg.BaseURL
			if o.BaseURL == "" && provider == "groq" {
				o.BaseURL = GroqBaseURL
			}
		}), nil
	}
}
