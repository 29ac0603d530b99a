package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/chatagent/core"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	// SpeakerHuman marks user input.
	SpeakerHuman Speaker = "Human"
	// SpeakerAI marks agent thoughts and answers.
	SpeakerAI Speaker = "AI"
)

// ErrInvalidID is returned for an empty session identifier.
var ErrInvalidID = errors.New("invalid session id")

// Entry is one line of a transcript.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry creates an entry stamped with a fresh id and the current time.
func NewEntry(sessionID string, speaker Speaker, text string) Entry {
	return Entry{
		ID:        core.NewID(),
		SessionID: sessionID,
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// String renders the entry the way transcripts are written.
func (e Entry) String() string {
	return fmt.Sprintf("%s: %s", e.Speaker, e.Text)
}

// Store appends and reads transcript entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Entries(ctx context.Context, sessionID string) ([]Entry, error)
	Close() error
}

func validate(e Entry) error {
	if e.SessionID == "" {
		return ErrInvalidID
	}
	return nil
}
