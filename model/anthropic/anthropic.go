// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model          anthropic.Model
	Temperature    float64
	TopP           *float64
	TopK           *int64
	MaxTokens      int64
	APIKey         string
	BaseURL        string
	RequestOptions []option.RequestOption
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// NewModel creates a new Anthropic model using the official client
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

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Complete implements model.Model. Leading system messages become the system
// blocks of the request.
func (m *Model) Complete(ctx context.Context, messages []core.Message) (string, error) {
	system, rest := model.Split(messages)

	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    buildMessages(rest),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if m.opts.TopP != nil {
		params.TopP = anthropic.Float(*m.opts.TopP)
	}
	if m.opts.TopK != nil {
		params.TopK = anthropic.Int(*m.opts.TopK)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", model.NewProviderError(m.Info(), fmt.Errorf("messages: %w", err))
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	if b.Len() == 0 {
		return "", model.NewProviderError(m.Info(), model.ErrEmptyResponse)
	}
	return b.String(), nil
}

// buildMessages converts the conversation to Anthropic messages. Adjacent
// messages of one role are merged and a leading assistant message is
// preceded by an empty user turn, since the API expects alternation starting
// with the user.
func buildMessages(messages []core.Message) []anthropic.MessageParam {
	merged := model.MergeConsecutive(messages)
	out := make([]anthropic.MessageParam, 0, len(merged)+1)
	for i, msg := range merged {
		block := anthropic.NewTextBlock(msg.Text)
		switch msg.Role {
		case core.RoleAssistant:
			if i == 0 {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock("...")))
			}
			out = append(out, anthropic.NewAssistantMessage(block))
		default:
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     string(m.opts.Model),
		Provider: "anthropic",
	}
}

// Factory builds Anthropic models from provider configuration.
func Factory(_ context.Context, cfg model.ProviderConfig) (model.Model, error) {
	return NewModel(func(o *Options) {
		if cfg.Model != "" {
			o.Model = anthropic.Model(cfg.Model)
		}
		if cfg.Temperature != nil {
			o.Temperature = *cfg.Temperature
		}
		o.TopP = cfg.TopP
		if cfg.TopK != nil {
			k := int64(*cfg.TopK)
			o.TopK = &k
		}
		if cfg.MaxTokens > 0 {
			o.MaxTokens = int64(cfg.MaxTokens)
		}
		o.APIKey = cfg.ResolveAPIKey()
		o.BaseURL = cfg.BaseURL
	}), nil
}
