package tool

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/chatagent/logging"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a Tool.
//
// Error semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name   string
	fn     func(ctx context.Context, input string) (Result, error)
	post   func(ctx context.Context, metadata any) error
	logger logging.Logger
}

// FunctionOptions configures a FunctionTool.
type FunctionOptions struct {
	// PostProcess becomes the tool's PostProcessor hook when set.
	PostProcess func(ctx context.Context, metadata any) error
	Logger      logging.Logger
}

// NewFunctionTool wraps fn as a tool named name.
//
// Example:
//
//	echo := tool.NewFunctionTool("echo", func(_ context.Context, in string) (tool.Result, error) {
//	  return tool.Result{Text: in}, nil
//	})
func NewFunctionTool(name string, fn func(ctx context.Context, input string) (Result, error), optFns ...func(o *FunctionOptions)) *FunctionTool {
	opts := FunctionOptions{}
	for _, f := range optFns {
		f(&opts)
	}
	return &FunctionTool{
		name:   name,
		fn:     fn,
		post:   opts.PostProcess,
		logger: logging.OrNoOp(opts.Logger),
	}
}

// NewTextTool wraps a function that only produces observation text.
func NewTextTool(name string, fn func(ctx context.Context, input string) (string, error)) *FunctionTool {
	return NewFunctionTool(name, func(ctx context.Context, input string) (Result, error) {
		text, err := fn(ctx, input)
		return Result{Text: text}, err
	})
}

// Name returns the tool name used for error attribution.
func (t *FunctionTool) Name() string { return t.name }

// Run invokes the wrapped function. Failures are normalized to *ToolError.
func (t *FunctionTool) Run(ctx context.Context, input string) (Result, error) {
	start := time.Now()

	t.logger.Debug("tool.call.start", "tool", t.name, "input_chars", len(input))

	result, err := t.fn(ctx, input)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) { // Already a ToolError -> just log and forward
			t.logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return Result{}, toolErr
		}

		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return Result{}, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
			Err:     err,
		}
	}

	t.logger.Debug("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// PostProcess runs the configured hook, if any.
func (t *FunctionTool) PostProcess(ctx context.Context, metadata any) error {
	if t.post == nil {
		return nil
	}
	return t.post(ctx, metadata)
}
