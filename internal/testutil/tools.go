package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hupe1980/chatagent/tool"
)

// BlockingTool blocks until Release is called or its context ends. It never
// honors cancellation when IgnoreCancel is set.
type BlockingTool struct {
	release      chan struct{}
	IgnoreCancel bool
	Result       tool.Result
	calls        atomic.Int32
	finished     atomic.Int32
}

// NewBlockingTool creates a tool that returns result once released.
func NewBlockingTool(result string) *BlockingTool {
	return &BlockingTool{release: make(chan struct{}), Result: tool.Result{Text: result}}
}

// Run implements tool.Tool.
func (b *BlockingTool) Run(ctx context.Context, _ string) (tool.Result, error) {
	b.calls.Add(1)
	defer b.finished.Add(1)
	if b.IgnoreCancel {
		<-b.release
		return b.Result, nil
	}
	select {
	case <-b.release:
		return b.Result, nil
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	}
}

// Release unblocks all current and future runs.
func (b *BlockingTool) Release() { close(b.release) }

// Calls returns how many runs started.
func (b *BlockingTool) Calls() int { return int(b.calls.Load()) }

// Finished returns how many runs returned.
func (b *BlockingTool) Finished() int { return int(b.finished.Load()) }

// SleepTool returns Result after Delay.
type SleepTool struct {
	Delay  time.Duration
	Result tool.Result
}

// Run implements tool.Tool.
func (s SleepTool) Run(ctx context.Context, _ string) (tool.Result, error) {
	select {
	case <-time.After(s.Delay):
		return s.Result, nil
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	}
}
