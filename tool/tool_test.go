package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Tool = (*FunctionTool)(nil)
var _ PostProcessor = (*FunctionTool)(nil)

func echoTool() *FunctionTool {
	return NewTextTool("echo", func(_ context.Context, in string) (string, error) { return in, nil })
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModeSynchronous, ModeFor(0))
	assert.Equal(t, ModeSupervised, ModeFor(time.Second))
	assert.Equal(t, "supervised", ModeSupervised.String())
}

func TestDescriptorValidate(t *testing.T) {
	assert.NoError(t, NewDescriptor("echo", "d", 0, echoTool()).Validate())
	assert.Error(t, NewDescriptor("", "d", 0, echoTool()).Validate())
	assert.Error(t, NewDescriptor("x", "d", 0, nil).Validate())
	assert.Error(t, NewDescriptor("x", "d", -time.Second, echoTool()).Validate())
	assert.Error(t, Descriptor{Name: "x", Mode: ModeSupervised, Tool: echoTool()}.Validate())
}

func TestRegistry_Lookup(t *testing.T) {
	r, err := NewRegistry(
		NewDescriptor("echo", "Repeats the input", 0, echoTool()),
		NewDescriptor("slow", "Takes a while", time.Second, echoTool()),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"echo", "slow"}, r.Names())

	d, err := r.Lookup("slow")
	require.NoError(t, err)
	assert.Equal(t, ModeSupervised, d.Mode)
	assert.Equal(t, time.Second, d.WaitTimeout)

	_, err = r.Lookup("missing")
	var invalid *InvalidToolError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "missing", invalid.Name)
	assert.Equal(t, []string{"echo", "slow"}, invalid.Available)

	assert.Equal(t, "echo: Repeats the input\nslow: Takes a while", r.Describe())
}

func TestRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(NewDescriptor("a", "", 0, echoTool()), NewDescriptor("a", "", 0, echoTool()))
	assert.Error(t, err)
	assert.Panics(t, func() { MustRegistry(NewDescriptor("", "", 0, echoTool())) })
}

func TestRegistry_NamesIsCopy(t *testing.T) {
	r := MustRegistry(NewDescriptor("a", "", 0, echoTool()))
	names := r.Names()
	names[0] = "b"
	assert.Equal(t, []string{"a"}, r.Names())
}

func TestFunctionTool_Run(t *testing.T) {
	res, err := echoTool().Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
}

func TestFunctionTool_WrapsErrors(t *testing.T) {
	cause := errors.New("backend down")
	ft := NewTextTool("broken", func(context.Context, string) (string, error) { return "", cause })
	_, err := ft.Run(context.Background(), "")
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeExecution, te.Code)
	assert.Equal(t, "broken", te.Tool)
	assert.ErrorIs(t, err, cause)

	custom := NewToolError("custom", "bad input", CodeInput)
	ft = NewTextTool("custom", func(context.Context, string) (string, error) { return "", custom })
	_, err = ft.Run(context.Background(), "")
	assert.Same(t, custom, err)
}

func TestFunctionTool_PostProcess(t *testing.T) {
	var got any
	ft := NewFunctionTool("links", func(context.Context, string) (Result, error) {
		return Result{Text: "ok", Metadata: "https://example.com"}, nil
	}, func(o *FunctionOptions) {
		o.PostProcess = func(_ context.Context, md any) error {
			got = md
			return nil
		}
	})
	res, err := ft.Run(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, ft.PostProcess(context.Background(), res.Metadata))
	assert.Equal(t, "https://example.com", got)

	assert.NoError(t, echoTool().PostProcess(context.Background(), nil))
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, (&TimeoutError{Tool: "search", Polls: 10, Wait: time.Second}).Error(), "timed out after 10 polls")
	assert.True(t, (&TimeoutError{}).Timeout())
	assert.Equal(t, "tool error [PANIC] in x: boom", NewToolError("x", "boom", CodePanic).Error())
	assert.Equal(t, "tool error in x: boom", NewToolError("x", "boom", "").Error())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10, TruncateHeadTail))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0, TruncateHeadTail))

	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	out := Truncate(long, 20, TruncateHeadTail)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 10)))
	assert.True(t, strings.HasSuffix(out, strings.Repeat("b", 10)))
	assert.Contains(t, out, "80 characters were removed")

	out = Truncate(long, 20, TruncateTail)
	assert.True(t, strings.HasSuffix(out, strings.Repeat("b", 20)))
	assert.Contains(t, out, "First 80 characters")
}

func TestFactories_Build(t *testing.T) {
	f := NewFactories()
	f.Register("echo", func(spec Spec, _ Deps) (Tool, error) {
		prefix := StringParam(spec.Parameters, "prefix", "")
		return NewTextTool(spec.Name, func(_ context.Context, in string) (string, error) {
			return prefix + in, nil
		}), nil
	})
	f.Register("failing", func(Spec, Deps) (Tool, error) { return nil, errors.New("no key") })
	assert.Equal(t, []string{"echo", "failing"}, f.Modules())

	r, err := f.Build([]Spec{
		{Name: "shout", Module: "echo", Description: "echo loudly", Wait: 2 * time.Second, Parameters: map[string]any{"prefix": "!"}},
	}, Deps{})
	require.NoError(t, err)
	d, err := r.Lookup("shout")
	require.NoError(t, err)
	assert.Equal(t, ModeSupervised, d.Mode)
	res, err := d.Tool.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "!hi", res.Text)

	_, err = f.Build([]Spec{{Name: "x", Module: "nope"}}, Deps{})
	assert.ErrorContains(t, err, "unknown module")

	_, err = f.Build([]Spec{{Name: "x", Module: "failing"}}, Deps{})
	assert.ErrorContains(t, err, "no key")
}

func TestParams(t *testing.T) {
	p := map[string]any{"i": 3, "f": 2.5, "s": "7", "b": true, "bs": "false", "fi": float64(4)}
	assert.Equal(t, 3, IntParam(p, "i", 0))
	assert.Equal(t, 4, IntParam(p, "fi", 0))
	assert.Equal(t, 7, IntParam(p, "s", 0))
	assert.Equal(t, 9, IntParam(p, "missing", 9))
	assert.Equal(t, 2.5, FloatParam(p, "f", 0))
	assert.Equal(t, 3.0, FloatParam(p, "i", 0))
	assert.True(t, BoolParam(p, "b", false))
	assert.False(t, BoolParam(p, "bs", true))
	assert.Equal(t, "d", StringParam(p, "missing", "d"))
}
