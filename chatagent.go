// Package chatagent wires a complete conversational agent from a config.Config:
// the language model backend, the tool registry, the token-budgeted memory,
// the supervised executor, the transcript store and a runner that front ends
// drive. Providers and tool modules are registered explicitly; applications
// that add their own pass custom registries through Options.
package chatagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/chatagent/agent"
	"github.com/hupe1980/chatagent/artifact"
	"github.com/hupe1980/chatagent/config"
	"github.com/hupe1980/chatagent/core"
	"github.com/hupe1980/chatagent/executor"
	"github.com/hupe1980/chatagent/logging"
	"github.com/hupe1980/chatagent/memory"
	"github.com/hupe1980/chatagent/model"
	"github.com/hupe1980/chatagent/model/anthropic"
	"github.com/hupe1980/chatagent/model/gemini"
	"github.com/hupe1980/chatagent/model/gollm"
	"github.com/hupe1980/chatagent/model/openai"
	"github.com/hupe1980/chatagent/runner"
	"github.com/hupe1980/chatagent/session"
	"github.com/hupe1980/chatagent/tool"
	"github.com/hupe1980/chatagent/tool/browser"
	"github.com/hupe1980/chatagent/tool/codeview"
	"github.com/hupe1980/chatagent/tool/phone"
	"github.com/hupe1980/chatagent/tool/websearch"
)

// DefaultProviders returns a registry with every built-in backend.
func DefaultProviders() *model.Registry {
	r := model.NewRegistry()
	r.Register("openai", openai.Factory("openai"))
	r.Register("groq", openai.Factory("groq"))
	r.Register("anthropic", anthropic.Factory)
	r.Register("gemini", gemini.Factory)
	r.Register("ollama", gollm.Factory("ollama"))
	r.Register("mistral", gollm.Factory("mistral"))
	return r
}

// DefaultTools returns a factory table with every built-in tool module.
func DefaultTools() *tool.Factories {
	f := tool.NewFactories()
	f.Register("websearch", websearch.Factory)
	f.Register("browser", browser.Factory)
	f.Register("phone", phone.Factory)
	f.Register("codeview", codeview.Factory)
	return f
}

// Options configures Build.
type Options struct {
	Providers *model.Registry
	Tools     *tool.Factories
	// Logger overrides the logger built from the logging section.
	Logger logging.Logger
	Tracer trace.Tracer
	// Output receives code rendered by the codeview tool and displayer.
	Output io.Writer
	// WebApp makes tools return metadata instead of acting locally.
	WebApp bool
	// Backend overrides the configured provider.
	Backend model.Model
	// Artifacts receives code blocks in web-app mode. Defaults to an
	// in-memory store.
	Artifacts artifact.Store
}

// App is a built agent with everything it owns.
type App struct {
	Config  *config.Config
	Backend model.Model
	Agent   *agent.Agent
	Runner  *runner.Runner
	Logger  logging.Logger
	// Artifacts holds code shown to web-app clients.
	Artifacts artifact.Store

	closers []io.Closer
}

// Build validates cfg and constructs the application. Close releases the
// log file and the transcript store.
func Build(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*App, error) {
	opts := Options{Output: os.Stdout}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Providers == nil {
		opts.Providers = DefaultProviders()
	}
	if opts.Tools == nil {
		opts.Tools = DefaultTools()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if opts.Artifacts == nil {
		opts.Artifacts = artifact.NewInMemoryStore()
	}

	app := &App{Config: cfg, Artifacts: opts.Artifacts}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	logger, err := app.buildLogger(cfg.Logging, opts.Logger)
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	backend := opts.Backend
	if backend == nil {
		pc, err := cfg.ProviderConfig()
		if err != nil {
			return nil, err
		}
		if backend, err = opts.Providers.New(ctx, pc); err != nil {
			return nil, err
		}
	}
	app.Backend = backend

	registry, err := opts.Tools.Build(cfg.ToolSpecs(), tool.Deps{
		Backend: backend,
		Logger:  logger,
		WebApp:  opts.WebApp,
		Output:  opts.Output,
	})
	if err != nil {
		return nil, err
	}

	tmpl, err := config.ReadOptional(cfg.Agent.SystemPromptFile)
	if err != nil {
		return nil, fmt.Errorf("read system prompt: %w", err)
	}
	profile, err := config.ReadOptional(cfg.Agent.UserProfileFile)
	if err != nil {
		return nil, fmt.Errorf("read user profile: %w", err)
	}
	systemPrompt, err := agent.RenderSystemPrompt(tmpl, agent.NewPromptData(registry, profile))
	if err != nil {
		return nil, err
	}

	transcript, err := openTranscript(cfg.Transcript)
	if err != nil {
		return nil, err
	}
	if transcript != nil {
		app.closers = append(app.closers, transcript)
	}

	sessionID := core.NewID()

	var displayer agent.Displayer
	switch {
	case !cfg.Agent.DisplayCode:
	case opts.WebApp:
		displayer = &artifact.CodeDisplayer{Store: opts.Artifacts, SessionID: sessionID}
	default:
		viewer, err := codeview.New(func(o *codeview.Options) { o.Output = opts.Output })
		if err != nil {
			return nil, err
		}
		displayer = viewer
	}

	exec := executor.New(func(o *executor.Options) {
		o.MaxPolls = cfg.Agent.MaxPolls
		o.HeartbeatText = cfg.Agent.HeartbeatText
		o.Logger = logger
		o.Tracer = opts.Tracer
	})

	a, err := agent.New(backend, registry, systemPrompt, func(o *agent.Options) {
		o.MemoryOptions = append(o.MemoryOptions, func(mo *memory.Options) {
			mo.MaxContextTokens = cfg.Memory.MaxContextTokens
			mo.ResponseTokens = cfg.Memory.ResponseTokens
			mo.Counter = memory.NewCounter(cfg.Memory.Tokenizer)
			mo.Logger = logger
		})
		o.Executor = exec
		o.Logger = logger
		o.Tracer = opts.Tracer
		o.Transcript = transcript
		o.SessionID = sessionID
		o.MaxSteps = cfg.Agent.MaxSteps
		o.ObservationLimit = cfg.Agent.ObservationLimit
		o.Displayer = displayer
	})
	if err != nil {
		return nil, err
	}
	app.Agent = a
	app.Runner = runner.New(a, func(o *runner.Options) { o.Logger = logger })

	logger.Info("chatagent.ready",
		"provider", backend.Info().Provider,
		"model", backend.Info().Name,
		"tools", registry.Names(),
		"session_id", a.SessionID(),
	)
	ok = true
	return app, nil
}

func (app *App) buildLogger(cfg config.LoggingConfig, override logging.Logger) (logging.Logger, error) {
	if override != nil {
		return override, nil
	}
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var out io.Writer = os.Stderr
	if cfg.Dir != "" {
		f, err := logging.OpenLogFile(cfg.Dir)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, f)
		out = f
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    out,
		Component: "chatagent",
	}), nil
}

func openTranscript(cfg config.TranscriptConfig) (session.Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return session.NewInMemoryStore(), nil
	case "file":
		s, err := session.NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := session.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown transcript driver %q", cfg.Driver)
	}
}

// Close releases resources opened by Build.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
