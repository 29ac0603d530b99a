package artifact

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_SaveGetIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	data := []byte("hello")
	v, err := s.Save(ctx, "s1", Artifact{Name: "a1", Data: data})
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	data[0] = 'H'
	out, err := s.Get(ctx, "s1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out.Data))
	assert.False(t, out.CreatedAt.IsZero())

	out.Data[0] = 'x'
	out, _ = s.Get(ctx, "s1", "a1")
	assert.Equal(t, "hello", string(out.Data))
}

func TestInMemoryStore_Versions(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, err := s.Save(ctx, "s1", Artifact{Name: "a", Data: []byte("1")})
	require.NoError(t, err)
	v, err := s.Save(ctx, "s1", Artifact{Name: "a", Data: []byte("2")})
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	a, err := s.Get(ctx, "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Version)
	assert.Equal(t, "2", string(a.Data))

	_, err = s.Save(ctx, "", Artifact{Name: "a"})
	require.Error(t, err)
}

func TestInMemoryStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, _ = s.Save(ctx, "s1", Artifact{Name: "b"})
	_, _ = s.Save(ctx, "s1", Artifact{Name: "a"})
	_, _ = s.Save(ctx, "s2", Artifact{Name: "c"})

	names, err := s.List(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, s.Delete(ctx, "s1", "a"))
	_, err = s.Get(ctx, "s1", "a")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "s1", "a"), ErrNotFound)

	names, _ = s.List(ctx, "unknown")
	assert.Empty(t, names)
}

func TestInMemoryStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, "s1", Artifact{Name: fmt.Sprintf("a%d", i%10), Data: []byte("data")})
			assert.NoError(t, err)
			_, _ = s.List(ctx, "s1")
		}()
	}
	wg.Wait()

	names, err := s.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, names, 10)
	a, err := s.Get(ctx, "s1", "a3")
	require.NoError(t, err)
	assert.Equal(t, 10, a.Version)
}

func TestCodeDisplayer(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	d := &CodeDisplayer{Store: s, SessionID: "s1"}

	require.NoError(t, d.Display(ctx, "```go\nx := 1\n```"))
	require.NoError(t, d.Display(ctx, "print(1)"))

	names, err := s.List(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"code-1.md", "code-2.md"}, names)

	a, err := s.Get(ctx, "s1", "code-2.md")
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", a.MediaType)
	assert.Equal(t, "print(1)", string(a.Data))
}
