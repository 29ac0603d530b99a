// Package tool implements the tool subsystem of the agent: the Tool contract,
// descriptors carrying the execution mode and wait timeout, the registry the
// agent looks actions up in, and the error types tool execution can produce.
package tool

import (
	"context"
	"fmt"
	"time"
)

// Result is what a tool hands back: the observation text fed to the model and
// optional opaque metadata for the consumer (links, references, ...).
type Result struct {
	Text     string
	Metadata any
}

// Tool is a capability the model can invoke by name.
//
// Run receives the raw action input. Implementations should honour ctx
// cancellation where they can; supervised invocations cancel ctx once the
// executor stops waiting, but nothing forces a tool to return.
type Tool interface {
	Run(ctx context.Context, input string) (Result, error)
}

// PostProcessor is implemented by tools that want to act on their own result
// metadata after the observation has been recorded (for example opening a
// link). Failures are logged by the agent and otherwise ignored.
type PostProcessor interface {
	PostProcess(ctx context.Context, metadata any) error
}

// Mode selects how the executor runs a tool.
type Mode int

const (
	// ModeSynchronous runs the tool inline in the caller's goroutine.
	ModeSynchronous Mode = iota
	// ModeSupervised runs the tool in its own goroutine under poll-based
	// timeout supervision with heartbeats.
	ModeSupervised
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSynchronous:
		return "synchronous"
	case ModeSupervised:
		return "supervised"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ModeFor derives the mode from a wait timeout: zero runs inline.
func ModeFor(wait time.Duration) Mode {
	if wait > 0 {
		return ModeSupervised
	}
	return ModeSynchronous
}

// Descriptor registers a tool under a unique name. Description is only used
// to build the system prompt. WaitTimeout is the per-poll timeout of a
// supervised invocation.
type Descriptor struct {
	Name        string
	Description string
	WaitTimeout time.Duration
	Mode        Mode
	Tool        Tool
}

// NewDescriptor builds a descriptor whose mode follows from wait.
func NewDescriptor(name, description string, wait time.Duration, t Tool) Descriptor {
	return Descriptor{
		Name:        name,
		Description: description,
		WaitTimeout: wait,
		Mode:        ModeFor(wait),
		Tool:        t,
	}
}

// Validate checks that the descriptor is usable.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool descriptor without name")
	}
	if d.Tool == nil {
		return fmt.Errorf("tool %q has no implementation", d.Name)
	}
	if d.Mode == ModeSupervised && d.WaitTimeout <= 0 {
		return fmt.Errorf("supervised tool %q needs a positive wait timeout", d.Name)
	}
	if d.WaitTimeout < 0 {
		return fmt.Errorf("tool %q has a negative wait timeout", d.Name)
	}
	return nil
}

// Error codes carried by ToolError.
const (
	CodeExecution = "EXECUTION_ERROR"
	CodePanic     = "PANIC"
	CodeInput     = "INVALID_INPUT"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// InvalidToolError reports an action naming a tool that is not registered.
type InvalidToolError struct {
	Name      string
	Available []string
}

func (e *InvalidToolError) Error() string {
	return fmt.Sprintf("invalid tool %q (available: %v)", e.Name, e.Available)
}

// TimeoutError reports a supervised invocation that did not complete within
// Polls consecutive waits of Wait each.
type TimeoutError struct {
	Tool  string
	Polls int
	Wait  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %d polls of %s", e.Tool, e.Polls, e.Wait)
}

// Timeout marks the error for net.Error style checks.
func (e *TimeoutError) Timeout() bool { return true }
