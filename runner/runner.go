package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/chatagent/agent"
	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/logging"
)

// Turns is the part of an agent the runner drives.
type Turns interface {
	RunTurn(ctx context.Context, turnID, text string, emit core.Emitter) error
}

var _ Turns = (*agent.Agent)(nil)

// Options holds configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for statuses.
	EventBufferSize int
	Logger          logging.Logger
}

// Reply is the drained outcome of one turn.
type Reply struct {
	TurnID   string        `json:"turn_id"`
	Final    core.Status   `json:"final"`
	Statuses []core.Status `json:"statuses"` // non-final statuses in order
}

// Runner coordinates turn execution. Public methods are safe for concurrent
// use.
type Runner struct {
	agent           Turns
	eventBufferSize int
	logger          logging.Logger

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New constructs a Runner with optional overrides.
func New(a Turns, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.EventBufferSize < 0 {
		opts.EventBufferSize = 0
	}

	return &Runner{
		agent:           a,
		eventBufferSize: opts.EventBufferSize,
		logger:          logging.OrNoOp(opts.Logger),
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// Submit starts a turn on its own goroutine. The returned channel delivers
// the turn's statuses in order and is closed after the final one. Sends block
// until the consumer receives them or ctx ends.
//
// agent.ErrTurnInProgress is returned while another turn is running.
func (r *Runner) Submit(ctx context.Context, text string) (string, <-chan core.Status, error) {
	turnID, out, _, err := r.start(ctx, text)
	return turnID, out, err
}

// Ask submits text and waits for the turn to finish. The error is the turn's
// failure, if any; the reply is filled either way.
func (r *Runner) Ask(ctx context.Context, text string) (Reply, error) {
	turnID, out, done, err := r.start(ctx, text)
	if err != nil {
		return Reply{}, err
	}

	reply := Reply{TurnID: turnID}
	for s := range out {
		if s.Final {
			reply.Final = s
			continue
		}
		reply.Statuses = append(reply.Statuses, s)
	}

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return reply, err
}

func (r *Runner) start(ctx context.Context, text string) (string, <-chan core.Status, <-chan error, error) {
	turnID := core.NewID()
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if len(r.activeRuns) > 0 {
		r.mu.Unlock()
		cancel()
		return "", nil, nil, agent.ErrTurnInProgress
	}
	r.activeRuns[turnID] = cancel
	r.mu.Unlock()

	out := make(chan core.Status, r.eventBufferSize)
	done := make(chan error, 1)

	emit := func(s core.Status) {
		select {
		case out <- s:
			r.logger.Debug("runner delivered status", "turn_id", turnID, "kind", string(s.Kind))
		case <-ctx.Done():
			r.logger.Warn("runner dropped status", "turn_id", turnID, "kind", string(s.Kind))
		}
	}

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.activeRuns, turnID)
			r.mu.Unlock()
			cancel()
			close(out)
		}()

		err := r.agent.RunTurn(runCtx, turnID, text, emit)
		if err != nil {
			r.logger.Debug("runner turn failed", "turn_id", turnID, "error", err.Error())
		}
		done <- err
	}()

	return turnID, out, done, nil
}

// Cancel cancels a running turn by ID.
func (r *Runner) Cancel(turnID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[turnID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("turn %s not found", turnID)
	}

	cancel()

	return nil
}

// Active returns the id of the running turn, or "".
func (r *Runner) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.activeRuns {
		return id
	}
	return ""
}
