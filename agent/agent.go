package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/executor"
	"github.com/hupe1980/chatagent/logging"
	"github.com/hupe1980/chatagent/memory"
	"github.com/hupe1980/chatagent/model"
	"github.com/hupe1980/chatagent/parser"
	"github.com/hupe1980/chatagent/session"
	"github.com/hupe1980/chatagent/tool"
)

var (
	// ErrTurnInProgress is returned when Run is called while another turn of
	// the same agent is still running.
	ErrTurnInProgress = errors.New("a turn is already in progress")
	// ErrStepLimit is returned when a turn exceeds MaxSteps model rounds.
	ErrStepLimit = errors.New("step limit reached")
)

// DefaultObservationLimit caps the characters of one observation fed back
// to the model.
const DefaultObservationLimit = 8000

// Displayer shows a fenced code block extracted from a final answer.
type Displayer interface {
	Display(ctx context.Context, code string) error
}

// DisplayerFunc adapts a function to Displayer.
type DisplayerFunc func(ctx context.Context, code string) error

// Display implements Displayer.
func (f DisplayerFunc) Display(ctx context.Context, code string) error { return f(ctx, code) }

// FailureKind names why a turn ended without an answer.
type FailureKind string

const (
	FailureProvider    FailureKind = "provider_error"
	FailureInvalidTool FailureKind = "invalid_tool"
	FailureTimeout     FailureKind = "tool_timeout"
	FailureTool        FailureKind = "tool_error"
	FailureStepLimit   FailureKind = "step_limit"
	FailureCancelled   FailureKind = "cancelled"
)

// Failure is the metadata of a terminal error or timeout status.
type Failure struct {
	Kind FailureKind `json:"kind"`
	Tool string      `json:"tool,omitempty"`
}

// Options configures an Agent.
type Options struct {
	// Memory overrides the conversation built from the system prompt.
	Memory        *memory.Conversation
	MemoryOptions []func(o *memory.Options)
	Executor      *executor.Executor
	Logger        logging.Logger
	Tracer        trace.Tracer
	// Transcript receives the user text, thoughts and answers. Optional.
	Transcript session.Store
	SessionID  string
	// MaxSteps bounds model rounds per turn; 0 means unlimited.
	MaxSteps int
	// ObservationLimit truncates long tool results; <= 0 disables truncation.
	ObservationLimit int
	// Displayer receives fenced code found in final answers. Optional.
	Displayer          Displayer
	DisplayPlaceholder string
}

// Agent runs ReAct turns against one conversation. Turns are serialized:
// a concurrent Run fails fast with ErrTurnInProgress.
type Agent struct {
	backend  model.Model
	registry *tool.Registry
	memory   *memory.Conversation
	exec     *executor.Executor
	logger   logging.Logger
	tracer   trace.Tracer
	opts     Options
	busy     atomic.Bool
}

// New creates an agent. It fails when the system prompt does not fit the
// memory budget.
func New(backend model.Model, registry *tool.Registry, systemPrompt string, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		ObservationLimit:   DefaultObservationLimit,
		DisplayPlaceholder: "<Displayed>",
		SessionID:          core.NewID(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if backend == nil {
		return nil, errors.New("agent requires a model")
	}
	if registry == nil {
		registry = tool.MustRegistry()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/hupe1980/chatagent/agent")
	}
	if opts.Executor == nil {
		opts.Executor = executor.New(func(o *executor.Options) {
			o.Logger = opts.Logger
			o.Tracer = opts.Tracer
		})
	}

	mem := opts.Memory
	if mem == nil {
		memOpts := append([]func(o *memory.Options){func(o *memory.Options) { o.Logger = opts.Logger }}, opts.MemoryOptions...)
		mem = memory.New(systemPrompt, memOpts...)
	}
	if err := mem.Validate(); err != nil {
		return nil, err
	}

	return &Agent{
		backend:  backend,
		registry: registry,
		memory:   mem,
		exec:     opts.Executor,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
		opts:     opts,
	}, nil
}

// Memory exposes the conversation for inspection.
func (a *Agent) Memory() *memory.Conversation { return a.memory }

// Registry returns the tools available to the agent.
func (a *Agent) Registry() *tool.Registry { return a.registry }

// SessionID identifies the agent's transcript.
func (a *Agent) SessionID() string { return a.opts.SessionID }

// Busy reports whether a turn is running.
func (a *Agent) Busy() bool { return a.busy.Load() }

// Run executes one turn with a fresh turn id. See RunTurn.
func (a *Agent) Run(ctx context.Context, text string, emit core.Emitter) error {
	return a.RunTurn(ctx, core.NewID(), text, emit)
}

// RunTurn executes one turn. emit receives zero or more non-final statuses
// followed by exactly one final status, unless the agent is busy, in which
// case ErrTurnInProgress is returned and nothing is emitted.
//
// The returned error is nil for an answered turn; otherwise it is the cause
// also described by the final status.
func (a *Agent) RunTurn(ctx context.Context, turnID, text string, emit core.Emitter) error {
	if !a.busy.CompareAndSwap(false, true) {
		return ErrTurnInProgress
	}
	defer a.busy.Store(false)

	if emit == nil {
		emit = core.Discard
	}

	ctx, span := a.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("turn.id", turnID),
		attribute.String("model.provider", a.backend.Info().Provider),
		attribute.String("model.name", a.backend.Info().Name),
	))
	defer span.End()

	t := &turn{
		Agent:   a,
		id:      turnID,
		emit:    emit,
		logger:  a.logger,
		limiter: core.NewStepLimiter(a.opts.MaxSteps),
	}
	if l, ok := a.logger.(*logging.ChatLogger); ok {
		t.logger = l.WithTurn(turnID)
	}

	answer, err := t.run(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.fail(err)
		return err
	}

	span.SetAttributes(
		attribute.Int("turn.rounds", t.limiter.Count()),
		attribute.Int("turn.remaining_steps", t.limiter.Remaining()),
	)
	emit(core.NewStatus(turnID, core.StatusAnswer, answer))
	return nil
}

// turn holds the state of one user turn.
type turn struct {
	*Agent
	id      string
	emit    core.Emitter
	logger  logging.Logger
	limiter *core.StepLimiter
	// trail alternates the model's action output with its observation
	trail []core.Message
}

func (t *turn) run(ctx context.Context, text string) (string, error) {
	t.logger.Info("turn.start", "turn_id", t.id, "input_chars", len(text))
	t.transcribe(ctx, session.SpeakerHuman, text)

	if _, evicted := t.memory.Add(core.RoleUser, text); evicted > 0 {
		t.logger.Debug("memory.evicted", "messages", evicted)
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := t.limiter.Increment(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStepLimit, err)
		}

		output, err := t.complete(ctx)
		if err != nil {
			return "", err
		}

		directive, thought := parser.Parse(output)
		if thought != "" {
			t.transcribe(ctx, session.SpeakerAI, thought)
			t.emit(core.NewStatus(t.id, core.StatusThought, thought))
		}

		if directive.IsFinal() {
			answer := t.display(ctx, directive.Content)
			t.memory.Add(core.RoleAssistant, answer)
			t.transcribe(ctx, session.SpeakerAI, answer)
			t.logger.Info("turn.completed", "turn_id", t.id, "rounds", t.limiter.Count())
			return answer, nil
		}

		observation, err := t.act(ctx, directive)
		if err != nil {
			return "", err
		}
		t.trail = append(t.trail,
			core.NewMessage(core.RoleAssistant, output),
			core.NewMessage(core.RoleUser, parser.FormatObservation(observation)),
		)
	}
}

func (t *turn) complete(ctx context.Context) (string, error) {
	prompt := t.memory.RenderWith(t.trail...)

	start := time.Now()
	output, err := t.backend.Complete(ctx, prompt)
	logging.LogLLMCall(t.logger, t.backend.Info().Name, promptTokens(prompt), time.Since(start), err)
	if err != nil {
		var perr *model.ProviderError
		if !errors.As(err, &perr) {
			err = model.NewProviderError(t.backend.Info(), err)
		}
		return "", err
	}
	t.logger.Debug("llm.output", "text", output)
	return output, nil
}

func promptTokens(msgs []core.Message) int {
	n := 0
	for _, m := range msgs {
		n += m.Tokens
	}
	return n
}

// act runs one tool directive and returns the observation text.
func (t *turn) act(ctx context.Context, d core.Directive) (string, error) {
	desc, err := t.registry.Lookup(d.Name)
	if err != nil {
		return "", err
	}

	res, err := t.exec.Invoke(ctx, desc, d.Input, func(text string, _ int) {
		t.emit(core.NewStatus(t.id, core.StatusHeartbeat, text))
	})
	if err != nil {
		return "", err
	}

	if pp, ok := desc.Tool.(tool.PostProcessor); ok && res.Metadata != nil {
		if perr := pp.PostProcess(ctx, res.Metadata); perr != nil {
			t.logger.Warn("tool.postprocess.failed", "tool", desc.Name, "error", perr.Error())
		}
	}

	return tool.Truncate(res.Text, t.opts.ObservationLimit, tool.TruncateHeadTail), nil
}

// display hands the first code block of answer to the Displayer and returns
// the answer with the block replaced by the placeholder.
func (t *turn) display(ctx context.Context, answer string) string {
	if t.opts.Displayer == nil {
		return answer
	}
	code, rest, ok := parser.ExtractCode(answer, t.opts.DisplayPlaceholder)
	if !ok {
		return answer
	}
	if err := t.opts.Displayer.Display(ctx, code); err != nil {
		t.logger.Warn("display.failed", "error", err.Error())
		return answer
	}
	return rest
}

func (t *turn) transcribe(ctx context.Context, speaker session.Speaker, text string) {
	if t.opts.Transcript == nil {
		return
	}
	// the transcript must outlive a cancelled turn
	if err := t.opts.Transcript.Append(context.WithoutCancel(ctx), session.NewEntry(t.opts.SessionID, speaker, text)); err != nil {
		t.logger.Warn("transcript.append.failed", "error", err.Error())
	}
}

// fail emits the single terminal status describing err.
func (t *turn) fail(err error) {
	failure := Classify(err)
	kind := core.StatusError
	if failure.Kind == FailureTimeout {
		kind = core.StatusTimeout
	}
	t.logger.Error("turn.failed", "turn_id", t.id, "kind", string(failure.Kind), "error", err.Error())
	t.emit(core.NewStatus(t.id, kind, err.Error()).WithMetadata(failure))
}

// Classify maps a turn error to its failure kind.
func Classify(err error) Failure {
	var (
		perr    *model.ProviderError
		invalid *tool.InvalidToolError
		timeout *tool.TimeoutError
		terr    *tool.ToolError
	)
	switch {
	case errors.As(err, &timeout):
		return Failure{Kind: FailureTimeout, Tool: timeout.Tool}
	case errors.As(err, &invalid):
		return Failure{Kind: FailureInvalidTool, Tool: invalid.Name}
	case errors.As(err, &terr):
		return Failure{Kind: FailureTool, Tool: terr.Tool}
	case errors.Is(err, ErrStepLimit):
		return Failure{Kind: FailureStepLimit}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Failure{Kind: FailureCancelled}
	case errors.As(err, &perr):
		return Failure{Kind: FailureProvider}
	default:
		return Failure{Kind: FailureTool}
	}
}
