package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/chatagent/core"
)

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", ...
}

// Model is the backend capability the agent loop drives: one prompt in, one
// completion out.
type Model interface {
	Complete(ctx context.Context, messages []core.Message) (string, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrEmptyResponse is wrapped by adapters when the provider returns no text.
var ErrEmptyResponse = errors.New("empty response")

// ProviderError reports a failed backend call (transport, auth, rate limit or
// unusable output).
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err unless it already is a *ProviderError. Context
// cancellation is wrapped too, and stays detectable with errors.Is.
func NewProviderError(info Info, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: info.Provider, Model: info.Name, Err: err}
}

// Split separates the leading system messages (joined by blank lines) from the
// rest of the conversation.
func Split(messages []core.Message) (system string, rest []core.Message) {
	var parts []string
	i := 0
	for ; i < len(messages) && messages[i].Role == core.RoleSystem; i++ {
		parts = append(parts, messages[i].Text)
	}
	return strings.Join(parts, "\n\n"), messages[i:]
}

// MergeConsecutive joins adjacent messages of the same role with a blank line.
// Some providers reject two user messages in a row.
func MergeConsecutive(messages []core.Message) []core.Message {
	out := make([]core.Message, 0, len(messages))
	for _, m := range messages {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Text += "\n\n" + m.Text
			out[n-1].Tokens += m.Tokens
			continue
		}
		out = append(out, m)
	}
	return out
}

// Flatten renders messages as a single transcript for text-only backends.
func Flatten(messages []core.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case core.RoleUser:
			b.WriteString("Human: ")
		case core.RoleAssistant:
			b.WriteString("AI: ")
		}
		b.WriteString(m.Text)
	}
	return b.String()
}

// ScriptedModel replays canned completions in order. It is deterministic and
// useful for tests, demos and offline runs.
type ScriptedModel struct {
	mu        sync.Mutex
	info      Info
	responses []string
	errs      map[int]error
	calls     [][]core.Message
	fallback  string
}

// NewScriptedModel creates a ScriptedModel that answers with responses in order.
func NewScriptedModel(responses ...string) *ScriptedModel {
	return &ScriptedModel{
		info:      Info{Name: "scripted", Provider: "dummy"},
		responses: responses,
		errs:      map[int]error{},
		fallback:  "Final Answer: I have nothing more to say.",
	}
}

// AddResponse appends a completion to the script.
func (m *ScriptedModel) AddResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, response)
}

// FailAt makes the call with zero based index call fail with err.
func (m *ScriptedModel) FailAt(call int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[call] = err
}

// Complete implements Model. Once the script is exhausted it returns the
// fallback final answer.
func (m *ScriptedModel) Complete(ctx context.Context, messages []core.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewProviderError(m.info, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.calls)
	cp := make([]core.Message, len(messages))
	copy(cp, messages)
	m.calls = append(m.calls, cp)

	if err, ok := m.errs[idx]; ok {
		return "", NewProviderError(m.info, err)
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return m.fallback, nil
}

// Calls returns the prompts received so far.
func (m *ScriptedModel) Calls() [][]core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]core.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info { return m.info }
