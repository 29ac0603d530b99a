package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatagent/tool"
)

type heartbeats struct {
	mu    sync.Mutex
	polls []int
	texts []string
}

func (h *heartbeats) fn(text string, poll int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.polls = append(h.polls, poll)
	h.texts = append(h.texts, text)
}

func (h *heartbeats) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.polls)
}

func textTool(fn func(ctx context.Context, in string) (string, error)) tool.Tool {
	return tool.NewTextTool("t", fn)
}

func TestInvoke_Synchronous(t *testing.T) {
	e := New()
	var hb heartbeats
	desc := tool.NewDescriptor("echo", "", 0, textTool(func(_ context.Context, in string) (string, error) {
		return "echo: " + in, nil
	}))

	res, err := e.Invoke(context.Background(), desc, "hi", hb.fn)
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", res.Text)
	assert.Equal(t, 0, hb.count())
}

func TestInvoke_SynchronousPanic(t *testing.T) {
	desc := tool.NewDescriptor("boom", "", 0, tool.NewFunctionTool("boom", func(context.Context, string) (tool.Result, error) {
		panic("kaboom")
	}))
	_, err := New().Invoke(context.Background(), desc, "", nil)
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodePanic, te.Code)
	assert.Contains(t, te.Message, "kaboom")
}

type plainTool struct{ err error }

func (p plainTool) Run(context.Context, string) (tool.Result, error) { return tool.Result{}, p.err }

func TestInvoke_WrapsForeignErrors(t *testing.T) {
	cause := errors.New("disk full")
	_, err := New().Invoke(context.Background(), tool.NewDescriptor("p", "", 0, plainTool{err: cause}), "", nil)
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeExecution, te.Code)
	assert.ErrorIs(t, err, cause)
}

func TestInvoke_SupervisedFastTool(t *testing.T) {
	var hb heartbeats
	desc := tool.NewDescriptor("fast", "", time.Second, textTool(func(context.Context, string) (string, error) {
		return "quick", nil
	}))
	res, err := New().Invoke(context.Background(), desc, "", hb.fn)
	require.NoError(t, err)
	assert.Equal(t, "quick", res.Text)
	assert.Equal(t, 0, hb.count())
}

func TestInvoke_SupervisedHeartbeatsThenResult(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	var hb heartbeats
	beat := func(text string, poll int) {
		hb.fn(text, poll)
		if poll == 2 {
			once.Do(func() { close(release) })
		}
	}

	desc := tool.NewDescriptor("slow", "", 10*time.Millisecond, textTool(func(context.Context, string) (string, error) {
		<-release
		return "finally", nil
	}))
	e := New(func(o *Options) { o.MaxPolls = 1000 })

	res, err := e.Invoke(context.Background(), desc, "", beat)
	require.NoError(t, err)
	assert.Equal(t, "finally", res.Text)
	assert.GreaterOrEqual(t, hb.count(), 2)
	assert.Equal(t, []int{1, 2}, hb.polls[:2])
	assert.Equal(t, DefaultHeartbeatText, hb.texts[0])
}

func TestInvoke_HeartbeatBoundAndTimeout(t *testing.T) {
	cancelled := make(chan struct{})
	desc := tool.NewDescriptor("hang", "", 5*time.Millisecond, textTool(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	}))
	e := New(func(o *Options) {
		o.MaxPolls = 3
		o.HeartbeatText = "still busy"
	})

	var hb heartbeats
	start := time.Now()
	_, err := e.Invoke(context.Background(), desc, "", hb.fn)
	elapsed := time.Since(start)

	var te *tool.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "hang", te.Tool)
	assert.Equal(t, 3, te.Polls)
	assert.Equal(t, []int{1, 2, 3}, hb.polls)
	assert.Equal(t, []string{"still busy", "still busy", "still busy"}, hb.texts)
	assert.GreaterOrEqual(t, elapsed, 3*desc.WaitTimeout)
	assert.Less(t, elapsed, 3*desc.WaitTimeout+200*time.Millisecond)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned tool context was not cancelled")
	}
}

func TestInvoke_DefaultMaxPolls(t *testing.T) {
	e := New(func(o *Options) { o.MaxPolls = 0 })
	assert.Equal(t, DefaultMaxPolls, e.MaxPolls())

	block := make(chan struct{})
	defer close(block)
	desc := tool.NewDescriptor("hang", "", time.Millisecond, textTool(func(context.Context, string) (string, error) {
		<-block // ignores cancellation on purpose
		return "late", nil
	}))
	var hb heartbeats
	_, err := e.Invoke(context.Background(), desc, "", hb.fn)
	var te *tool.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, DefaultMaxPolls, hb.count())
}

func TestInvoke_LateResultNotDelivered(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Bool
	stale := tool.NewDescriptor("stale", "", time.Millisecond, textTool(func(context.Context, string) (string, error) {
		<-release
		finished.Store(true)
		return "stale", nil
	}))
	e := New(func(o *Options) { o.MaxPolls = 1 })

	_, err := e.Invoke(context.Background(), stale, "", nil)
	var te *tool.TimeoutError
	require.ErrorAs(t, err, &te)

	close(release)
	require.Eventually(t, finished.Load, time.Second, time.Millisecond)

	fresh := tool.NewDescriptor("stale", "", time.Second, textTool(func(context.Context, string) (string, error) {
		return "fresh", nil
	}))
	res, err := e.Invoke(context.Background(), fresh, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", res.Text)
}

func TestInvoke_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	desc := tool.NewDescriptor("hang", "", time.Hour, textTool(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := New().Invoke(ctx, desc, "", nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = New().Invoke(ctx, tool.NewDescriptor("sync", "", 0, plainTool{}), "", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvoke_SupervisedPanic(t *testing.T) {
	desc := tool.NewDescriptor("boom", "", time.Second, tool.NewFunctionTool("boom", func(context.Context, string) (tool.Result, error) {
		panic(errors.New("bad"))
	}))
	_, err := New().Invoke(context.Background(), desc, "", nil)
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodePanic, te.Code)
}
