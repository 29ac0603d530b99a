package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/logging"
)

// ErrSystemPromptTooLarge reports a configuration where the system prompt and
// the response reserve alone exceed the context budget.
var ErrSystemPromptTooLarge = errors.New("system prompt does not fit the context budget")

// Options configures a Conversation.
type Options struct {
	// MaxContextTokens is the total token budget of a rendered prompt plus the
	// model's response.
	MaxContextTokens int
	// ResponseTokens is reserved for the model's answer.
	ResponseTokens int
	// Counter estimates message sizes.
	Counter TokenCounter
	Logger  logging.Logger
}

// Conversation is a token-budgeted rolling transcript.
//
// After every mutation tokens(system) + tokens(history) + ResponseTokens is
// at most MaxContextTokens, unless the system prompt alone is too large (see
// Validate). Eviction removes whole messages, oldest first, and never touches
// the system prompt.
type Conversation struct {
	mu      sync.RWMutex
	opts    Options
	system  core.Message
	history []core.Message
	total   int // tokens(history)
}

// New creates a conversation pinned to systemPrompt.
func New(systemPrompt string, optFns ...func(o *Options)) *Conversation {
	opts := Options{
		MaxContextTokens: 4096,
		ResponseTokens:   512,
		Counter:          HeuristicCounter{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Counter == nil {
		opts.Counter = HeuristicCounter{}
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	c := &Conversation{opts: opts}
	c.system = c.measure(core.NewMessage(core.RoleSystem, systemPrompt))
	return c
}

func (c *Conversation) measure(m core.Message) core.Message {
	m.Tokens = c.opts.Counter.Count(m)
	return m
}

func (c *Conversation) budget() int {
	return c.opts.MaxContextTokens - c.opts.ResponseTokens - c.system.Tokens
}

// Validate reports ErrSystemPromptTooLarge when nothing but the system prompt
// could ever be rendered.
func (c *Conversation) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.budget() < 0 {
		return fmt.Errorf("%w: system=%d reserve=%d max=%d", ErrSystemPromptTooLarge,
			c.system.Tokens, c.opts.ResponseTokens, c.opts.MaxContextTokens)
	}
	return nil
}

// Add appends a message and evicts the oldest history until the budget
// holds. The stored message (with its token count) is returned together with
// the number of messages evicted. A message larger than the whole budget is
// evicted as well.
func (c *Conversation) Add(role core.Role, text string) (core.Message, int) {
	m := c.measure(core.NewMessage(role, text))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, m)
	c.total += m.Tokens

	evicted := 0
	for len(c.history) > 0 && c.total > c.budget() {
		c.total -= c.history[0].Tokens
		c.history[0] = core.Message{}
		c.history = c.history[1:]
		evicted++
	}
	if evicted > 0 {
		c.opts.Logger.Debug("memory.evicted", "count", evicted, "tokens", c.total)
	}
	if len(c.history) == 0 {
		c.opts.Logger.Warn("memory.message_dropped", "role", string(role), "tokens", m.Tokens, "budget", c.budget())
	}
	return m, evicted
}

// RenderPrompt returns the system prompt followed by the history in
// chronological order. The slice is a copy.
func (c *Conversation) RenderPrompt() []core.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.Message, 0, len(c.history)+1)
	out = append(out, c.system)
	return append(out, c.history...)
}

// RenderWith renders the prompt followed by transient pending messages that
// are not part of the history, typically (action, observation) pairs. Oldest
// history is left out of the rendered view, never out of the history itself,
// until the pending messages fit too. If they still do not fit, the oldest
// pending pairs are left out as well; the last pair is always included, so
// an oversized last pair is rendered over budget with a warning.
func (c *Conversation) RenderWith(pending ...core.Message) []core.Message {
	if len(pending) == 0 {
		return c.RenderPrompt()
	}

	extra := 0
	measured := make([]core.Message, len(pending))
	for i, p := range pending {
		measured[i] = c.measure(p)
		extra += measured[i].Tokens
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	start, total := 0, c.total
	for start < len(c.history) && total+extra > c.budget() {
		total -= c.history[start].Tokens
		start++
	}

	dropped := 0
	for total+extra > c.budget() && len(measured) > 2 {
		extra -= measured[0].Tokens + measured[1].Tokens
		measured = measured[2:]
		dropped += 2
	}
	if dropped > 0 {
		c.opts.Logger.Warn("memory.pending.trimmed", "dropped", dropped, "kept", len(measured))
	}
	if over := total + extra - c.budget(); over > 0 {
		c.opts.Logger.Warn("memory.render.over_budget", "over_tokens", over, "pending_tokens", extra)
	}

	out := make([]core.Message, 0, len(c.history)-start+len(measured)+1)
	out = append(out, c.system)
	out = append(out, c.history[start:]...)
	return append(out, measured...)
}

// Tokens returns the token estimate of system prompt plus history.
func (c *Conversation) Tokens() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.system.Tokens + c.total
}

// Len returns the number of history messages (excluding the system prompt).
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history)
}

// System returns the pinned system prompt.
func (c *Conversation) System() core.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.system
}

// Reset clears the history, keeping the system prompt.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.total = 0
}

// Budget returns the configured context limit and response reserve.
func (c *Conversation) Budget() (maxContext, reserve int) {
	return c.opts.MaxContextTokens, c.opts.ResponseTokens
}
