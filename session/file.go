package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore writes one human readable transcript per session into dir:
//
//	Human: what's the weather?
//
//	AI: Final answer text
//
// Entries parses the file back; ids and timestamps are not recorded.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the transcript file of a session.
func (s *FileStore) Path(sessionID string) string {
	return filepath.Join(s.dir, "chat-"+filepath.Base(sessionID)+".log")
}

// Append writes the entry followed by a blank line.
func (s *FileStore) Append(_ context.Context, e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.Path(e.SessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(e.String() + "\n\n"); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// Entries parses the session transcript. A missing file is an empty transcript.
func (s *FileStore) Entries(_ context.Context, sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}
	s.mu.Lock()
	data, err := os.ReadFile(s.Path(sessionID))
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return parseTranscript(sessionID, string(data)), nil
}

func parseTranscript(sessionID, data string) []Entry {
	entries := []Entry{}
	for _, block := range strings.Split(strings.TrimRight(data, "\n"), "\n\n") {
		if block == "" && len(entries) == 0 {
			continue
		}
		speaker, text, ok := splitSpeaker(block)
		if !ok && len(entries) > 0 {
			last := &entries[len(entries)-1]
			last.Text += "\n\n" + block
			continue
		}
		entries = append(entries, Entry{SessionID: sessionID, Speaker: speaker, Text: text})
	}
	return entries
}

func splitSpeaker(block string) (Speaker, string, bool) {
	for _, sp := range []Speaker{SpeakerHuman, SpeakerAI} {
		prefix := string(sp) + ": "
		if strings.HasPrefix(block, prefix) {
			return sp, block[len(prefix):], true
		}
	}
	return "", block, false
}

// Close is a no-op; files are opened per append.
func (s *FileStore) Close() error { return nil }
