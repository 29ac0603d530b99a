package core

import (
	"time"

	"github.com/google/uuid"
)

// StatusKind classifies an outbound status message.
type StatusKind string

const (
	// StatusThought carries the model's reasoning for the current round.
	StatusThought StatusKind = "thought"
	// StatusHeartbeat signals that a supervised tool is still running.
	StatusHeartbeat StatusKind = "heartbeat"
	// StatusAnswer is the final answer of a successful turn.
	StatusAnswer StatusKind = "answer"
	// StatusError ends a turn that failed.
	StatusError StatusKind = "error"
	// StatusTimeout ends a turn whose tool did not finish in time.
	StatusTimeout StatusKind = "timeout"
)

// Terminal reports whether statuses of this kind end a turn.
func (k StatusKind) Terminal() bool {
	return k == StatusAnswer || k == StatusError || k == StatusTimeout
}

// Status is the unit a turn reports to its consumer. Every turn produces zero
// or more non-final statuses followed by exactly one final status. After
// emission a Status should be treated as immutable.
type Status struct {
	ID        string     `json:"id"`
	TurnID    string     `json:"turn_id"`
	Final     bool       `json:"final"`
	Kind      StatusKind `json:"kind"`
	Text      string     `json:"text"`
	Metadata  any        `json:"metadata,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewStatus creates a status bound to a turn. Final is derived from kind.
func NewStatus(turnID string, kind StatusKind, text string) Status {
	return Status{
		ID:        NewID(),
		TurnID:    turnID,
		Final:     kind.Terminal(),
		Kind:      kind,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// WithMetadata returns a copy carrying metadata.
func (s Status) WithMetadata(md any) Status {
	s.Metadata = md
	return s
}

// Emitter receives statuses in order. Implementations must not retain the
// caller's goroutine for long; the runner uses a buffered channel.
type Emitter func(Status)

// Discard is an Emitter that drops everything.
func Discard(Status) {}

// NewID generates a new unique identifier for statuses and turns.
func NewID() string { return uuid.NewString() }
