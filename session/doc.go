// Package session persists conversation transcripts: what the human said and
// what the agent answered or thought, in order.
//
// Three Store implementations are provided:
//
//   - InMemoryStore for tests and ephemeral servers
//   - FileStore writing one plain text transcript per session
//   - SQLiteStore backed by modernc.org/sqlite (pure Go, no cgo)
//
// Transcripts are a record for humans. The agent never reads them back, and
// a failing store never fails a turn.
package session
