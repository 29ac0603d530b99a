// Package browser implements a tool that opens links in the user's web
// browser. When a remote front end renders the conversation, the link is
// returned as metadata instead and the front end opens it.
package browser

import (
	"context"
	"net/url"
	"strings"

	pkgbrowser "github.com/pkg/browser"

	"github.com/hupe1980/chatagent/logging"
	"github.com/hupe1980/chatagent/tool"
)

// Opener opens a link locally.
type Opener func(link string) error

// Options configures a Tool.
type Options struct {
	// WebApp returns the link as metadata instead of opening it.
	WebApp bool
	// OpenOnPostProcess opens links returned as metadata during post
	// processing; used when the agent and the browser share a machine.
	OpenOnPostProcess bool
	Opener            Opener
	Logger            logging.Logger
}

// Tool opens links.
type Tool struct {
	opts Options
}

// New creates a browser tool.
func New(optFns ...func(o *Options)) *Tool {
	opts := Options{Opener: pkgbrowser.OpenURL}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Opener == nil {
		opts.Opener = pkgbrowser.OpenURL
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Tool{opts: opts}
}

// Factory builds the tool from configuration.
func Factory(spec tool.Spec, deps tool.Deps) (tool.Tool, error) {
	return New(func(o *Options) {
		o.WebApp = deps.WebApp || tool.BoolParam(spec.Parameters, "web_app", false)
		o.OpenOnPostProcess = tool.BoolParam(spec.Parameters, "open_on_post_process", false)
		o.Logger = deps.Logger
	}), nil
}

// Run opens link. Only http and https links are accepted.
func (t *Tool) Run(_ context.Context, link string) (tool.Result, error) {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return tool.Result{}, tool.NewToolError("browser", "not a valid http(s) link: "+link, tool.CodeInput)
	}

	if t.opts.WebApp {
		return tool.Result{Text: "web app", Metadata: link}, nil
	}
	if err := t.opts.Opener(link); err != nil {
		return tool.Result{}, err
	}
	t.opts.Logger.Info("browser.opened", "link", link)
	return tool.Result{Text: "link opened"}, nil
}

// PostProcess opens a link returned as metadata when configured to.
func (t *Tool) PostProcess(_ context.Context, metadata any) error {
	link, ok := metadata.(string)
	if !ok || !t.opts.OpenOnPostProcess {
		return nil
	}
	return t.opts.Opener(link)
}
