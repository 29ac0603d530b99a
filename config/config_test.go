package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestWriteDefault_LoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "chatagent.yaml")
	require.NoError(t, WriteDefault(path))
	require.Error(t, WriteDefault(path), "existing files are kept")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	d := Default()
	assert.Equal(t, d.Provider, cfg.Provider)
	assert.Equal(t, d.Memory, cfg.Memory)
	assert.Equal(t, d.Agent, cfg.Agent)
	assert.Equal(t, d.Transcript, cfg.Transcript)
	require.Len(t, cfg.Tools, len(d.Tools))
	assert.Equal(t, "Search", cfg.Tools[0].Name)
	assert.Equal(t, 5.0, cfg.Tools[0].Wait)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Providers["openai"].APIKeyEnv)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatagent.yaml")
	content := `provider: openai
providers:
  openai:
    model: gpt-4o
    temperature: 0.2
    max_tokens: 256
memory:
  max_context_tokens: 2048
tools:
  - name: Phone
    module: phone
    description: calls people
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CHATAGENT_AGENT_MAX_STEPS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 2048, cfg.Memory.MaxContextTokens)
	assert.Equal(t, 512, cfg.Memory.ResponseTokens)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "phone", cfg.Tools[0].Module)

	pc, err := cfg.ProviderConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", pc.Model)
	require.NotNil(t, pc.Temperature)
	assert.InDelta(t, 0.2, *pc.Temperature, 1e-9)
	assert.Nil(t, pc.TopP)
	assert.Equal(t, 256, pc.MaxTokens)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Provider = "nope"
	cfg.Memory.Tokenizer = "bpe"
	cfg.Tools = append(cfg.Tools, ToolConfig{Name: "Phone", Module: ""})
	cfg.Transcript.Driver = "s3"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"nope", "bpe", "duplicate", "module is required", "s3"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestToolSpecs(t *testing.T) {
	cfg := &Config{Tools: []ToolConfig{{Name: "Search", Module: "websearch", Wait: 1.5, Parameters: map[string]any{"k_best": 2}}}}
	specs := cfg.ToolSpecs()
	require.Len(t, specs, 1)
	assert.Equal(t, 1500*time.Millisecond, specs[0].Wait)
	assert.Equal(t, 2, specs[0].Parameters["k_best"])
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("CHATAGENT_TEST_KEY=secret\n"), 0o644))
	t.Setenv("CHATAGENT_TEST_KEY", "")
	os.Unsetenv("CHATAGENT_TEST_KEY")

	require.NoError(t, LoadEnv(env, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "secret", os.Getenv("CHATAGENT_TEST_KEY"))
}

func TestReadOptional(t *testing.T) {
	s, err := ReadOptional("")
	require.NoError(t, err)
	assert.Empty(t, s)

	path := filepath.Join(t.TempDir(), "profile.txt")
	require.NoError(t, os.WriteFile(path, []byte("likes tea"), 0o644))
	s, err = ReadOptional(path)
	require.NoError(t, err)
	assert.Equal(t, "likes tea", s)
}
