// Package testutil contains helpers shared by tests: a status recorder that
// checks the one-final-per-turn contract and tools with controllable timing.
// They are not intended for production usage.
package testutil
