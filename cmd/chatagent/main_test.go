package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatagent/agent"
	"github.com/hupe1980/chatagent/model"
	"github.com/hupe1980/chatagent/runner"
	"github.com/hupe1980/chatagent/tool"
)

func newTestRunner(t *testing.T, m model.Model) *runner.Runner {
	t.Helper()
	a, err := agent.New(m, tool.MustRegistry(), "You are a test agent.")
	require.NoError(t, err)
	return runner.New(a)
}

func TestREPL_GreetsAndEndsOnGoodbye(t *testing.T) {
	m := model.NewScriptedModel(
		"Final Answer: Hi there!",
		"Thought: the user asks about Go\nFinal Answer: Go is a language.",
		"Final Answer: Bye!",
	)
	r := newTestRunner(t, m)

	var out bytes.Buffer
	in := strings.NewReader("what is go?\ngoodbye\nnever read\n")
	require.NoError(t, repl(context.Background(), r, in, &out, "hello"))

	s := out.String()
	assert.Contains(t, s, "Hi there!")
	assert.Contains(t, s, "Thought: the user asks about Go")
	assert.Contains(t, s, "Go is a language.")
	assert.Contains(t, s, "Bye!")
	assert.Contains(t, s, "done!")
	assert.Len(t, m.Calls(), 3)
	assert.Equal(t, "hello", m.Calls()[0][1].Text)
}

func TestREPL_StopsAtEndOfInput(t *testing.T) {
	m := model.NewScriptedModel("Final Answer: one")
	r := newTestRunner(t, m)

	var out bytes.Buffer
	require.NoError(t, repl(context.Background(), r, strings.NewReader("first\n\n"), &out, ""))
	assert.Contains(t, out.String(), "one")
	assert.Len(t, m.Calls(), 1, "blank lines are skipped")
}

func TestREPL_ShowsFailures(t *testing.T) {
	m := model.NewScriptedModel()
	m.FailAt(0, assert.AnError)
	r := newTestRunner(t, m)

	var out bytes.Buffer
	require.NoError(t, repl(context.Background(), r, strings.NewReader(""), &out, "hello"))
	assert.Contains(t, out.String(), "AI:")
	assert.Contains(t, out.String(), assert.AnError.Error())
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatagent.yaml")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "--config", path, "--env-file", filepath.Join(t.TempDir(), "none.env")})
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), path)

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "validate", "--config", path, "--env-file", filepath.Join(t.TempDir(), "none.env")})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "configuration is valid")
}

func TestChatCommand_DummyProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: dummy\ntranscript:\n  driver: none\nlogging:\n  dir: "+filepath.Join(dir, "logs")+"\n"), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("goodbye\n"))
	cmd.SetArgs([]string{"--config", path, "--env-file", filepath.Join(dir, "none.env")})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "I have nothing more to say.")
	assert.Contains(t, out.String(), "done!")
}
