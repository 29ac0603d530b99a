// Package memory holds the rolling conversation of one agent: a pinned
// system prompt followed by user and assistant messages, kept under a token
// budget by evicting the oldest messages first.
//
// A Conversation is owned by a single agent. It is safe for concurrent use,
// but the agent never mutates it from more than one turn at a time.
package memory
