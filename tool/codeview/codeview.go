// Package codeview renders code blocks on the terminal with glamour. The
// Viewer is both a tool and the agent's code displayer.
package codeview

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/hupe1980/chatagent/tool"
)

// Options configures a Viewer.
type Options struct {
	Output io.Writer
	// Style is a glamour standard style ("dark", "light", "notty", ...);
	// empty picks one from the terminal.
	Style string
	Width int
}

// Viewer renders fenced code to Output.
type Viewer struct {
	opts     Options
	mu       sync.Mutex
	renderer *glamour.TermRenderer
}

// New creates a Viewer.
func New(optFns ...func(o *Options)) (*Viewer, error) {
	opts := Options{Output: os.Stdout, Width: 100}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	style := glamour.WithAutoStyle()
	if opts.Style != "" {
		style = glamour.WithStandardStyle(opts.Style)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(opts.Width))
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return &Viewer{opts: opts, renderer: r}, nil
}

// Factory builds the tool from configuration.
func Factory(spec tool.Spec, deps tool.Deps) (tool.Tool, error) {
	return New(func(o *Options) {
		if deps.Output != nil {
			o.Output = deps.Output
		}
		o.Style = tool.StringParam(spec.Parameters, "style", o.Style)
		o.Width = tool.IntParam(spec.Parameters, "width", o.Width)
	})
}

// Run displays code and tells the model it was shown.
func (v *Viewer) Run(ctx context.Context, code string) (tool.Result, error) {
	if strings.TrimSpace(code) == "" {
		return tool.Result{}, tool.NewToolError("codeview", "no code to display", tool.CodeInput)
	}
	if err := v.Display(ctx, code); err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Text: "code opened"}, nil
}

// Display renders code, adding fences when they are missing.
func (v *Viewer) Display(_ context.Context, code string) error {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, "```") {
		code = "```\n" + code + "\n```"
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	out, err := v.renderer.Render(code)
	if err != nil {
		return fmt.Errorf("render code: %w", err)
	}
	_, err = io.WriteString(v.opts.Output, out)
	return err
}
