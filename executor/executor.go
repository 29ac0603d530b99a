// Package executor runs tool invocations for the agent loop.
//
// Synchronous tools run inline. Supervised tools run in their own goroutine
// while the caller waits on a one-shot completion channel with a timed
// receive; every expired wait produces one heartbeat, and after MaxPolls
// heartbeats the invocation fails with *tool.TimeoutError.
//
// A timed-out tool is not killed. Its context is cancelled and the executor
// stops waiting; a tool that ignores cancellation keeps running until it
// returns on its own, and its late result is dropped. Each Invoke owns its
// completion channel, so a late result can never reach a later invocation.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/chatagent/logging"
	"github.com/hupe1980/chatagent/tool"
)

const (
	// DefaultMaxPolls bounds the number of heartbeats of one supervised invocation.
	DefaultMaxPolls = 10
	// DefaultHeartbeatText is sent with every heartbeat.
	DefaultHeartbeatText = "Working..."
)

// HeartbeatFunc is called from the waiting goroutine after each expired wait.
// poll counts from 1.
type HeartbeatFunc func(text string, poll int)

// Options configures an Executor.
type Options struct {
	MaxPolls      int
	HeartbeatText string
	Logger        logging.Logger
	Tracer        trace.Tracer
}

// Executor invokes tools according to their descriptor mode. It holds no
// per-invocation state and is safe for concurrent use.
type Executor struct {
	opts Options
}

// New creates an executor.
func New(optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxPolls:      DefaultMaxPolls,
		HeartbeatText: DefaultHeartbeatText,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	if opts.HeartbeatText == "" {
		opts.HeartbeatText = DefaultHeartbeatText
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/hupe1980/chatagent/executor")
	}
	return &Executor{opts: opts}
}

// MaxPolls returns the configured heartbeat bound.
func (e *Executor) MaxPolls() int { return e.opts.MaxPolls }

type outcome struct {
	res tool.Result
	err error
}

// Invoke runs desc.Tool with input. heartbeat may be nil.
//
// Errors: *tool.ToolError when the tool fails or panics, *tool.TimeoutError
// when a supervised tool exhausts its polls, ctx.Err() when the caller gives up.
func (e *Executor) Invoke(ctx context.Context, desc tool.Descriptor, input string, heartbeat HeartbeatFunc) (tool.Result, error) {
	if heartbeat == nil {
		heartbeat = func(string, int) {}
	}

	ctx, span := e.opts.Tracer.Start(ctx, "tool."+desc.Name)
	span.SetAttributes(
		attribute.String("tool.name", desc.Name),
		attribute.String("tool.mode", desc.Mode.String()),
		attribute.Int("tool.input_chars", len(input)),
	)
	defer span.End()

	start := time.Now()
	e.opts.Logger.Debug("tool.invoke.start", "tool", desc.Name, "mode", desc.Mode.String())

	var (
		res tool.Result
		err error
	)
	if err = ctx.Err(); err == nil {
		if desc.Mode == tool.ModeSupervised {
			res, err = e.supervise(ctx, desc, input, heartbeat)
		} else {
			res, err = run(ctx, desc, input)
		}
	}

	logging.LogToolCall(e.opts.Logger, desc.Name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return tool.Result{}, err
	}
	span.SetAttributes(attribute.Int("tool.result_chars", len(res.Text)))
	return res, nil
}

func (e *Executor) supervise(ctx context.Context, desc tool.Descriptor, input string, heartbeat HeartbeatFunc) (tool.Result, error) {
	toolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so an abandoned tool goroutine can always deliver and exit
	done := make(chan outcome, 1)
	go func() {
		res, err := run(toolCtx, desc, input)
		done <- outcome{res: res, err: err}
	}()

	timer := time.NewTimer(desc.WaitTimeout)
	defer timer.Stop()

	for poll := 1; ; poll++ {
		select {
		case o := <-done:
			return o.res, o.err
		case <-ctx.Done():
			e.opts.Logger.Warn("tool.invoke.abandoned", "tool", desc.Name, "polls", poll-1, "error", ctx.Err().Error())
			return tool.Result{}, ctx.Err()
		case <-timer.C:
			e.opts.Logger.Debug("tool.invoke.heartbeat", "tool", desc.Name, "poll", poll, "max_polls", e.opts.MaxPolls)
			heartbeat(e.opts.HeartbeatText, poll)
			if poll >= e.opts.MaxPolls {
				e.opts.Logger.Warn("tool.invoke.timeout", "tool", desc.Name, "polls", poll, "wait", desc.WaitTimeout)
				return tool.Result{}, &tool.TimeoutError{Tool: desc.Name, Polls: poll, Wait: desc.WaitTimeout}
			}
			timer.Reset(desc.WaitTimeout)
		}
	}
}

// run calls the tool, converting panics and foreign errors into *tool.ToolError.
func run(ctx context.Context, desc tool.Descriptor, input string) (res tool.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &tool.ToolError{
				Tool:    desc.Name,
				Message: fmt.Sprintf("panic: %v", r),
				Code:    tool.CodePanic,
				Details: string(debug.Stack()),
			}
		}
	}()

	res, err = desc.Tool.Run(ctx, input)
	if err != nil {
		if _, ok := err.(*tool.ToolError); !ok {
			err = &tool.ToolError{Tool: desc.Name, Message: err.Error(), Code: tool.CodeExecution, Err: err}
		}
		return tool.Result{}, err
	}
	return res, nil
}
