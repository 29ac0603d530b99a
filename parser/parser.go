// Package parser turns free-form model output into a core.Directive using the
// Thought / Action / Action Input / Final Answer protocol.
//
// Parse is total: text without recognizable markers becomes a final answer so
// that malformed output can never stall the agent loop.
package parser

import (
	"regexp"
	"strings"

	"github.com/hupe1980/chatagent/core"
)

const (
	// FinalAnswerMarker introduces the terminal answer.
	FinalAnswerMarker = "Final Answer:"
	// ObservationMarker introduces a tool result in the prompt.
	ObservationMarker = "Observation:"
)

var (
	thoughtRe = regexp.MustCompile(`Thought:[ \t]*([^\n]*)`)
	// the name ends with its line; the input may span several
	actionRe = regexp.MustCompile(`Action:[ \t]*([^\n]*)`)
	inputRe  = regexp.MustCompile(`(?s)Action Input:\s*(.*)`)
	// models sometimes continue past the action and invent the tool's result
	hallucinatedObs = regexp.MustCompile(`\n\s*Observation:`)
	codeFenceRe     = regexp.MustCompile("(?s)```.*?```")
)

// Parse extracts the directive and the optional thought (empty when absent)
// from text. It never fails.
func Parse(text string) (core.Directive, string) {
	thought := ParseThought(text)

	if idx := strings.LastIndex(text, FinalAnswerMarker); idx >= 0 {
		return core.Final(strings.TrimSpace(text[idx+len(FinalAnswerMarker):])), thought
	}

	if name, input, ok := parseAction(text); ok {
		return core.Action(name, cleanInput(input)), thought
	}

	return core.Final(strings.TrimSpace(text)), thought
}

// ParseThought returns the text following the first Thought: marker up to the
// end of its line, or "" when there is none.
func ParseThought(text string) string {
	m := thoughtRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return unbracket(m[1])
}

// parseAction finds the first Action: line and the Action Input: that
// follows it. Text between the two lines is ignored.
func parseAction(text string) (name, input string, ok bool) {
	loc := actionRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", "", false
	}
	line := text[loc[2]:loc[3]]
	rest := text[loc[3]:]
	if idx := strings.Index(line, "Action Input:"); idx >= 0 {
		rest = line[idx:] + rest
		line = line[:idx]
	}

	name = unbracket(line)
	m := inputRe.FindStringSubmatch(rest)
	if name == "" || m == nil {
		return "", "", false
	}
	return name, m[1], true
}

// unbracket trims s and strips one pair of enclosing square brackets.
func unbracket(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func cleanInput(s string) string {
	if loc := hallucinatedObs.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = strings.TrimSpace(s)
	return unquote(s)
}

// unquote strips one layer of matching quotes.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first == last && (first == '"' || first == '\'' || first == '`') {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// ExtractCode finds the first fenced code block in text. It returns the block
// including its fences, and text with the block replaced by placeholder.
func ExtractCode(text, placeholder string) (code, rest string, ok bool) {
	loc := codeFenceRe.FindStringIndex(text)
	if loc == nil {
		return "", text, false
	}
	code = text[loc[0]:loc[1]]
	rest = strings.TrimSpace(text[:loc[0]] + placeholder + text[loc[1]:])
	return code, rest, true
}

// FormatObservation renders a tool result the way the model expects to read it.
func FormatObservation(result string) string {
	return ObservationMarker + " " + result
}
