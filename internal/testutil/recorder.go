package testutil

import (
	"sync"

	"github.com/hupe1980/chatagent/core"
)

// StatusRecorder collects emitted statuses. Emit is safe for concurrent use.
type StatusRecorder struct {
	mu       sync.Mutex
	statuses []core.Status
}

// NewStatusRecorder creates an empty recorder.
func NewStatusRecorder() *StatusRecorder { return &StatusRecorder{} }

// Emit implements core.Emitter.
func (r *StatusRecorder) Emit(s core.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

// Statuses returns a copy of everything recorded.
func (r *StatusRecorder) Statuses() []core.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

// Kinds returns the recorded kinds in order.
func (r *StatusRecorder) Kinds() []core.StatusKind {
	out := []core.StatusKind{}
	for _, s := range r.Statuses() {
		out = append(out, s.Kind)
	}
	return out
}

// Final returns the last status and whether it is final.
func (r *StatusRecorder) Final() (core.Status, bool) {
	all := r.Statuses()
	if len(all) == 0 {
		return core.Status{}, false
	}
	last := all[len(all)-1]
	return last, last.Final
}

// FinalCount counts final statuses.
func (r *StatusRecorder) FinalCount() int {
	n := 0
	for _, s := range r.Statuses() {
		if s.Final {
			n++
		}
	}
	return n
}

// WellFormed reports whether the recording is zero or more non-final
// statuses followed by exactly one final status.
func WellFormed(statuses []core.Status) bool {
	if len(statuses) == 0 {
		return false
	}
	for i, s := range statuses {
		if s.Final != (i == len(statuses)-1) {
			return false
		}
	}
	return true
}
