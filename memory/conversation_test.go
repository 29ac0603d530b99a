package memory

import (
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/logging"
)

// lenCounter makes token counts equal to the text length.
var lenCounter = TokenCounterFunc(func(m core.Message) int { return len(m.Text) })

func newTestConversation(system string, maxTokens, reserve int) *Conversation {
	return New(system, func(o *Options) {
		o.MaxContextTokens = maxTokens
		o.ResponseTokens = reserve
		o.Counter = lenCounter
	})
}

func texts(msgs []core.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestConversation_BudgetInvariant(t *testing.T) {
	c := newTestConversation(strings.Repeat("s", 20), 100, 10)
	require.NoError(t, c.Validate())

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		c.Add(role, strings.Repeat("x", 1+rng.Intn(40)))

		assert.LessOrEqual(t, c.Tokens()+10, 100)
		prompt := c.RenderPrompt()
		require.NotEmpty(t, prompt)
		assert.Equal(t, core.RoleSystem, prompt[0].Role)
	}
}

func TestConversation_EvictsOldestFirst(t *testing.T) {
	c := newTestConversation(strings.Repeat("s", 20), 100, 10) // 70 tokens for history
	a := strings.Repeat("a", 30)
	b := strings.Repeat("b", 30)
	d := strings.Repeat("d", 30)

	_, evicted := c.Add(core.RoleUser, a)
	assert.Equal(t, 0, evicted)
	c.Add(core.RoleAssistant, b)
	_, evicted = c.Add(core.RoleUser, d)
	assert.Equal(t, 1, evicted)

	prompt := c.RenderPrompt()
	assert.Equal(t, []string{strings.Repeat("s", 20), b, d}, texts(prompt))
	assert.Equal(t, 80, c.Tokens())
}

func TestConversation_AddReturnsMeasuredMessage(t *testing.T) {
	c := newTestConversation("sys", 100, 10)
	m, _ := c.Add(core.RoleUser, "hello")
	assert.Equal(t, 5, m.Tokens)
	assert.Equal(t, core.RoleUser, m.Role)
	assert.Equal(t, 3, c.System().Tokens)
}

func TestConversation_SystemPromptTooLarge(t *testing.T) {
	c := newTestConversation(strings.Repeat("s", 95), 100, 10)
	assert.ErrorIs(t, c.Validate(), ErrSystemPromptTooLarge)

	c.Add(core.RoleUser, "hi")
	assert.Equal(t, 0, c.Len())
	prompt := c.RenderPrompt()
	require.Len(t, prompt, 1)
	assert.Equal(t, core.RoleSystem, prompt[0].Role)
}

func TestConversation_OversizedMessageDropped(t *testing.T) {
	c := newTestConversation("sys", 100, 10)
	c.Add(core.RoleUser, "short")
	c.Add(core.RoleUser, strings.Repeat("z", 90))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, c.Tokens())
}

func TestConversation_RenderWithDoesNotMutate(t *testing.T) {
	c := newTestConversation(strings.Repeat("s", 20), 100, 10)
	b := strings.Repeat("b", 30)
	d := strings.Repeat("d", 30)
	c.Add(core.RoleUser, b)
	c.Add(core.RoleAssistant, d)

	trail := core.NewMessage(core.RoleUser, strings.Repeat("o", 25))
	view := c.RenderWith(trail)

	assert.Equal(t, []string{strings.Repeat("s", 20), d, trail.Text}, texts(view))
	assert.Equal(t, 25, view[len(view)-1].Tokens)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, texts(c.RenderPrompt()), []string{strings.Repeat("s", 20), b, d})
}

type warnRecorder struct {
	logging.NoOpLogger
	mu    sync.Mutex
	warns []string
}

func (r *warnRecorder) Warn(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, msg)
}

func TestConversation_RenderWithTrimsOldestPendingPairs(t *testing.T) {
	rec := &warnRecorder{}
	c := New("sys", func(o *Options) {
		o.MaxContextTokens = 100
		o.ResponseTokens = 10
		o.Counter = lenCounter
		o.Logger = rec
	})
	c.Add(core.RoleUser, "question")

	a1 := core.NewMessage(core.RoleAssistant, strings.Repeat("a", 30))
	o1 := core.NewMessage(core.RoleUser, strings.Repeat("o", 30))
	a2 := core.NewMessage(core.RoleAssistant, strings.Repeat("b", 30))
	o2 := core.NewMessage(core.RoleUser, strings.Repeat("p", 25))
	view := c.RenderWith(a1, o1, a2, o2)

	assert.Equal(t, []string{"sys", a2.Text, o2.Text}, texts(view))
	tokens := 0
	for _, m := range view {
		tokens += m.Tokens
	}
	assert.LessOrEqual(t, tokens, 100-10)
	assert.Equal(t, []string{"memory.pending.trimmed"}, rec.warns)
	assert.Equal(t, 1, c.Len(), "history is untouched")
}

func TestConversation_RenderWithOversizedLastPair(t *testing.T) {
	rec := &warnRecorder{}
	c := New("sys", func(o *Options) {
		o.MaxContextTokens = 100
		o.ResponseTokens = 10
		o.Counter = lenCounter
		o.Logger = rec
	})

	a := core.NewMessage(core.RoleAssistant, strings.Repeat("a", 60))
	o := core.NewMessage(core.RoleUser, strings.Repeat("o", 60))
	view := c.RenderWith(a, o)

	assert.Equal(t, []string{"sys", a.Text, o.Text}, texts(view))
	assert.Equal(t, []string{"memory.render.over_budget"}, rec.warns)
}

func TestConversation_RenderWithoutPending(t *testing.T) {
	c := newTestConversation("sys", 100, 10)
	c.Add(core.RoleUser, "q")
	assert.Equal(t, c.RenderPrompt(), c.RenderWith())
}

func TestConversation_RenderPromptIsCopy(t *testing.T) {
	c := newTestConversation("sys", 100, 10)
	c.Add(core.RoleUser, "q")
	p := c.RenderPrompt()
	p[1].Text = "mutated"
	assert.Equal(t, "q", c.RenderPrompt()[1].Text)
}

func TestConversation_Reset(t *testing.T) {
	c := newTestConversation("sys", 100, 10)
	c.Add(core.RoleUser, "q")
	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, c.Tokens())
}

func TestHeuristicCounter(t *testing.T) {
	h := HeuristicCounter{}
	assert.Equal(t, messageOverhead, h.Count(core.NewMessage(core.RoleUser, "")))
	// eight chars in two words: two tokens by characters
	assert.Equal(t, 2+messageOverhead, h.Count(core.NewMessage(core.RoleUser, "abcd efg")))
	// many short words: one token per word
	assert.Equal(t, 5+messageOverhead, h.Count(core.NewMessage(core.RoleUser, "a b c d e")))
	// monotonic in length
	short := h.Count(core.NewMessage(core.RoleUser, strings.Repeat("x", 10)))
	long := h.Count(core.NewMessage(core.RoleUser, strings.Repeat("x", 100)))
	assert.Less(t, short, long)
}

func TestTiktokenCounter_FallsBackOnUnknownEncoding(t *testing.T) {
	c := NewTiktokenCounter("no_such_encoding")
	assert.Error(t, c.Err())
	msg := core.NewMessage(core.RoleUser, "hello there")
	assert.Equal(t, HeuristicCounter{}.Count(msg), c.Count(msg))
}

func TestNewCounter(t *testing.T) {
	assert.IsType(t, HeuristicCounter{}, NewCounter(""))
	assert.IsType(t, &TiktokenCounter{}, NewCounter("tiktoken"))
}
