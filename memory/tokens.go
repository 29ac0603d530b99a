package memory

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hupe1980/chatagent/core"
)

// messageOverhead approximates the per-message framing (role markers,
// separators) that chat APIs add on top of the text itself.
const messageOverhead = 4

// TokenCounter estimates the size of a message in tokens. Estimates need not
// be exact but must be deterministic so that eviction converges.
type TokenCounter interface {
	Count(m core.Message) int
}

// TokenCounterFunc adapts a plain function to TokenCounter.
type TokenCounterFunc func(core.Message) int

// Count implements TokenCounter.
func (f TokenCounterFunc) Count(m core.Message) int { return f(m) }

// HeuristicCounter estimates roughly four characters per token, and at least
// one token per word.
type HeuristicCounter struct{}

// Count implements TokenCounter.
func (HeuristicCounter) Count(m core.Message) int {
	return heuristicTokens(m.Text) + messageOverhead
}

func heuristicTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	byChars := (chars + 3) / 4
	words := len(strings.Fields(text))
	if words > byChars {
		return words
	}
	return byChars
}

// TiktokenCounter counts BPE tokens with the given encoding and falls back to
// HeuristicCounter when the encoding cannot be loaded (offline, unknown name).
type TiktokenCounter struct {
	encoding string
	once     sync.Once
	tk       *tiktoken.Tiktoken
	loadErr  error
}

// NewTiktokenCounter creates a counter for encoding, "cl100k_base" when empty.
// The encoding is loaded lazily on first use.
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding}
}

func (c *TiktokenCounter) load() {
	c.once.Do(func() {
		c.tk, c.loadErr = tiktoken.GetEncoding(c.encoding)
	})
}

// Err reports why the encoding could not be loaded, if it could not.
func (c *TiktokenCounter) Err() error {
	c.load()
	return c.loadErr
}

// Count implements TokenCounter.
func (c *TiktokenCounter) Count(m core.Message) int {
	c.load()
	if c.tk == nil {
		return HeuristicCounter{}.Count(m)
	}
	return len(c.tk.Encode(m.Text, nil, nil)) + messageOverhead
}

// NewCounter returns the counter named by kind ("heuristic" or "tiktoken").
func NewCounter(kind string) TokenCounter {
	if strings.EqualFold(kind, "tiktoken") {
		return NewTiktokenCounter("")
	}
	return HeuristicCounter{}
}
