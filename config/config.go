// Package config loads the chatagent configuration from a YAML (or any other
// viper supported) file, environment variables prefixed with CHATAGENT_ and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chatagent/logging"
	"github.com/hupe1980/chatagent/model"
	"github.com/hupe1980/chatagent/tool"
)

// EnvPrefix prefixes environment overrides, e.g. CHATAGENT_PROVIDER or
// CHATAGENT_MEMORY_MAX_CONTEXT_TOKENS.
const EnvPrefix = "CHATAGENT"

// Config holds the complete application configuration.
type Config struct {
	Provider   string                    `mapstructure:"provider" yaml:"provider"`
	Providers  map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Memory     MemoryConfig              `mapstructure:"memory" yaml:"memory"`
	Agent      AgentConfig               `mapstructure:"agent" yaml:"agent"`
	Tools      []ToolConfig              `mapstructure:"tools" yaml:"tools"`
	Logging    LoggingConfig             `mapstructure:"logging" yaml:"logging"`
	Transcript TranscriptConfig          `mapstructure:"transcript" yaml:"transcript"`
	Server     ServerConfig              `mapstructure:"server" yaml:"server"`
}

// ProviderConfig holds per-provider generation parameters.
type ProviderConfig struct {
	Model            string   `mapstructure:"model" yaml:"model"`
	APIKeyEnv        string   `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	BaseURL          string   `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature      *float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	TopP             *float64 `mapstructure:"top_p" yaml:"top_p,omitempty"`
	TopK             *float64 `mapstructure:"top_k" yaml:"top_k,omitempty"`
	PresencePenalty  *float64 `mapstructure:"presence_penalty" yaml:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `mapstructure:"frequency_penalty" yaml:"frequency_penalty,omitempty"`
	MaxTokens        int      `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

// MemoryConfig holds the context budget.
type MemoryConfig struct {
	MaxContextTokens int    `mapstructure:"max_context_tokens" yaml:"max_context_tokens"`
	ResponseTokens   int    `mapstructure:"response_tokens" yaml:"response_tokens"`
	Tokenizer        string `mapstructure:"tokenizer" yaml:"tokenizer"` // heuristic or tiktoken
}

// AgentConfig holds agent loop settings.
type AgentConfig struct {
	MaxPolls         int    `mapstructure:"max_polls" yaml:"max_polls"`
	MaxSteps         int    `mapstructure:"max_steps" yaml:"max_steps"`
	HeartbeatText    string `mapstructure:"heartbeat_text" yaml:"heartbeat_text"`
	ObservationLimit int    `mapstructure:"observation_limit" yaml:"observation_limit"`
	SystemPromptFile string `mapstructure:"system_prompt_file" yaml:"system_prompt_file,omitempty"`
	UserProfileFile  string `mapstructure:"user_profile_file" yaml:"user_profile_file,omitempty"`
	DisplayCode      bool   `mapstructure:"display_code" yaml:"display_code"`
}

// ToolConfig configures one tool instance.
type ToolConfig struct {
	Name        string         `mapstructure:"name" yaml:"name"`
	Module      string         `mapstructure:"module" yaml:"module"`
	Description string         `mapstructure:"description" yaml:"description"`
	Wait        float64        `mapstructure:"wait" yaml:"wait"` // seconds per poll, 0 runs inline
	Parameters  map[string]any `mapstructure:"parameters" yaml:"parameters,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// Dir receives chatlog-<timestamp>.log files; empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// TranscriptConfig selects where conversations are recorded.
type TranscriptConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // none, memory, file or sqlite
	Path   string `mapstructure:"path" yaml:"path,omitempty"`
}

// ServerConfig holds websocket server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns a configuration that runs offline with the dummy provider.
func Default() *Config {
	return &Config{
		Provider: "dummy",
		Providers: map[string]ProviderConfig{
			"dummy":     {Model: "scripted"},
			"openai":    {Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY", MaxTokens: 512},
			"groq":      {Model: "llama-3.1-8b-instant", APIKeyEnv: "GROQ_API_KEY", MaxTokens: 512},
			"anthropic": {Model: "claude-3-5-haiku-latest", APIKeyEnv: "ANTHROPIC_API_KEY", MaxTokens: 512},
			"gemini":    {Model: "gemini-2.0-flash", APIKeyEnv: "GEMINI_API_KEY", MaxTokens: 512},
			"ollama":    {Model: "llama3.2", MaxTokens: 512},
		},
		Memory: MemoryConfig{
			MaxContextTokens: 4096,
			ResponseTokens:   512,
			Tokenizer:        "heuristic",
		},
		Agent: AgentConfig{
			MaxPolls:         10,
			MaxSteps:         8,
			HeartbeatText:    "Working...",
			ObservationLimit: 8000,
		},
		Tools: []ToolConfig{
			{
				Name:        "Search",
				Module:      "websearch",
				Description: "searches the web for current information; input is a search query",
				Wait:        5,
				Parameters:  map[string]any{"num_search": 4, "k_best": 3, "summarize": false},
			},
			{
				Name:        "Browser",
				Module:      "browser",
				Description: "opens a link in the web browser; input is a URL",
			},
			{
				Name:        "Phone",
				Module:      "phone",
				Description: "calls a phone number; input is the number",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Transcript: TranscriptConfig{
			Driver: "file",
			Path:   "chats",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; with no arguments ".env" is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration. An explicit path must exist; without one,
// chatagent.yaml is searched in the working directory and in
// $HOME/.config/chatagent, and defaults are used when none is found.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chatagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/chatagent")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = Default().Providers
	}
	if !v.IsSet("tools") {
		cfg.Tools = Default().Tools
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("provider", d.Provider)
	v.SetDefault("memory.max_context_tokens", d.Memory.MaxContextTokens)
	v.SetDefault("memory.response_tokens", d.Memory.ResponseTokens)
	v.SetDefault("memory.tokenizer", d.Memory.Tokenizer)
	v.SetDefault("agent.max_polls", d.Agent.MaxPolls)
	v.SetDefault("agent.max_steps", d.Agent.MaxSteps)
	v.SetDefault("agent.heartbeat_text", d.Agent.HeartbeatText)
	v.SetDefault("agent.observation_limit", d.Agent.ObservationLimit)
	v.SetDefault("agent.system_prompt_file", "")
	v.SetDefault("agent.user_profile_file", "")
	v.SetDefault("agent.display_code", d.Agent.DisplayCode)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.dir", "")
	v.SetDefault("transcript.driver", d.Transcript.Driver)
	v.SetDefault("transcript.path", d.Transcript.Path)
	v.SetDefault("server.addr", d.Server.Addr)
}

// WriteDefault writes Default() as YAML to path. An existing file is not
// overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return Default().Save(path)
}

// Save writes c as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the configuration for errors that would only surface later.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := c.Providers[c.Provider]; !ok {
		errs = append(errs, fmt.Errorf("provider %q has no entry under providers", c.Provider))
	}
	if c.Memory.MaxContextTokens <= 0 {
		errs = append(errs, errors.New("memory.max_context_tokens must be positive"))
	}
	if c.Memory.ResponseTokens < 0 || c.Memory.ResponseTokens >= c.Memory.MaxContextTokens {
		errs = append(errs, errors.New("memory.response_tokens must be between 0 and max_context_tokens"))
	}
	switch c.Memory.Tokenizer {
	case "", "heuristic", "tiktoken":
	default:
		errs = append(errs, fmt.Errorf("unknown memory.tokenizer %q", c.Memory.Tokenizer))
	}
	if c.Agent.MaxPolls < 0 || c.Agent.MaxSteps < 0 {
		errs = append(errs, errors.New("agent.max_polls and agent.max_steps must not be negative"))
	}
	seen := map[string]bool{}
	for i, t := range c.Tools {
		switch {
		case t.Name == "":
			errs = append(errs, fmt.Errorf("tools[%d]: name is required", i))
		case seen[t.Name]:
			errs = append(errs, fmt.Errorf("tools[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true
		if t.Module == "" {
			errs = append(errs, fmt.Errorf("tools[%d]: module is required", i))
		}
		if t.Wait < 0 {
			errs = append(errs, fmt.Errorf("tools[%d]: wait must not be negative", i))
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Transcript.Driver {
	case "", "none", "memory":
	case "file", "sqlite":
		if c.Transcript.Path == "" {
			errs = append(errs, fmt.Errorf("transcript.path is required for driver %q", c.Transcript.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transcript.driver %q", c.Transcript.Driver))
	}
	return errors.Join(errs...)
}

// ProviderConfig returns the settings of the selected provider.
func (c *Config) ProviderConfig() (model.ProviderConfig, error) {
	p, ok := c.Providers[c.Provider]
	if !ok {
		return model.ProviderConfig{}, fmt.Errorf("provider %q is not configured", c.Provider)
	}
	return model.ProviderConfig{
		Provider:         c.Provider,
		Model:            p.Model,
		APIKeyEnv:        p.APIKeyEnv,
		BaseURL:          p.BaseURL,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		TopK:             p.TopK,
		PresencePenalty:  p.PresencePenalty,
		FrequencyPenalty: p.FrequencyPenalty,
		MaxTokens:        p.MaxTokens,
	}, nil
}

// ToolSpecs converts the tool list for tool.Factories.Build.
func (c *Config) ToolSpecs() []tool.Spec {
	specs := make([]tool.Spec, 0, len(c.Tools))
	for _, t := range c.Tools {
		specs = append(specs, tool.Spec{
			Name:        t.Name,
			Module:      t.Module,
			Description: t.Description,
			Wait:        time.Duration(t.Wait * float64(time.Second)),
			Parameters:  t.Parameters,
		})
	}
	return specs
}

// ReadOptional returns the content of path, or "" when path is empty.
func ReadOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
