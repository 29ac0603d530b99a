package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatagent/tool"
)

var _ tool.PostProcessor = (*Tool)(nil)

func recordingOpener(opened *[]string) Opener {
	return func(link string) error {
		*opened = append(*opened, link)
		return nil
	}
}

func TestRun_OpensLink(t *testing.T) {
	var opened []string
	b := New(func(o *Options) { o.Opener = recordingOpener(&opened) })

	res, err := b.Run(context.Background(), " https://go.dev ")
	require.NoError(t, err)
	assert.Equal(t, "link opened", res.Text)
	assert.Nil(t, res.Metadata)
	assert.Equal(t, []string{"https://go.dev"}, opened)
}

func TestRun_WebAppReturnsMetadata(t *testing.T) {
	var opened []string
	b := New(func(o *Options) {
		o.WebApp = true
		o.Opener = recordingOpener(&opened)
	})

	res, err := b.Run(context.Background(), "https://go.dev")
	require.NoError(t, err)
	assert.Equal(t, "web app", res.Text)
	assert.Equal(t, "https://go.dev", res.Metadata)
	assert.Empty(t, opened)

	require.NoError(t, b.PostProcess(context.Background(), res.Metadata))
	assert.Empty(t, opened, "post processing is off by default")
}

func TestPostProcess_Opens(t *testing.T) {
	var opened []string
	b := New(func(o *Options) {
		o.WebApp = true
		o.OpenOnPostProcess = true
		o.Opener = recordingOpener(&opened)
	})
	require.NoError(t, b.PostProcess(context.Background(), "https://go.dev"))
	require.NoError(t, b.PostProcess(context.Background(), 42))
	assert.Equal(t, []string{"https://go.dev"}, opened)
}

func TestRun_RejectsBadLinks(t *testing.T) {
	b := New(func(o *Options) { o.Opener = func(string) error { return errors.New("unreachable") } })
	for _, in := range []string{"", "go.dev", "file:///etc/passwd", "javascript:alert(1)"} {
		_, err := b.Run(context.Background(), in)
		var terr *tool.ToolError
		require.ErrorAs(t, err, &terr, in)
		assert.Equal(t, tool.CodeInput, terr.Code)
	}
}

func TestFactory(t *testing.T) {
	built, err := Factory(tool.Spec{Name: "Browser", Module: "browser"}, tool.Deps{WebApp: true})
	require.NoError(t, err)
	assert.True(t, built.(*Tool).opts.WebApp)
}
