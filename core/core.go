package core

import "fmt"

// Role identifies the speaker of a Message.
type Role string

const (
	// RoleSystem marks the pinned system prompt.
	RoleSystem Role = "system"
	// RoleUser marks human input.
	RoleUser Role = "user"
	// RoleAssistant marks model output recorded as a final answer.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one utterance of the conversation. Tokens is filled in by the
// memory when the message is stored and is zero for transient messages.
type Message struct {
	Role   Role   `json:"role"`
	Text   string `json:"text"`
	Tokens int    `json:"tokens,omitempty"`
}

// NewMessage creates a message without a token count.
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Text: text}
}

// DirectiveKind distinguishes the two outcomes of parsing a model response.
type DirectiveKind int

const (
	// DirectiveFinal ends the turn with Content as the answer.
	DirectiveFinal DirectiveKind = iota
	// DirectiveAction asks for tool Name to be invoked with Input.
	DirectiveAction
)

// String returns a readable name.
func (k DirectiveKind) String() string {
	switch k {
	case DirectiveFinal:
		return "final"
	case DirectiveAction:
		return "action"
	default:
		return fmt.Sprintf("DirectiveKind(%d)", int(k))
	}
}

// Directive is the parsed intent of one model response.
type Directive struct {
	Kind    DirectiveKind
	Content string // final answer text (DirectiveFinal)
	Name    string // tool name (DirectiveAction)
	Input   string // tool input (DirectiveAction)
}

// Final builds a final directive.
func Final(content string) Directive {
	return Directive{Kind: DirectiveFinal, Content: content}
}

// Action builds a tool directive.
func Action(name, input string) Directive {
	return Directive{Kind: DirectiveAction, Name: name, Input: input}
}

// IsFinal reports whether the directive ends the turn.
func (d Directive) IsFinal() bool { return d.Kind == DirectiveFinal }
