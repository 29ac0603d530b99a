package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStatus_FinalDerivedFromKind(t *testing.T) {
	cases := map[StatusKind]bool{
		StatusThought:   false,
		StatusHeartbeat: false,
		StatusAnswer:    true,
		StatusError:     true,
		StatusTimeout:   true,
	}
	for kind, final := range cases {
		s := NewStatus("turn-1", kind, "x")
		assert.Equal(t, final, s.Final, kind)
		assert.Equal(t, "turn-1", s.TurnID)
		assert.NotEmpty(t, s.ID)
		assert.False(t, s.Timestamp.IsZero())
	}
}

func TestStatus_WithMetadataCopies(t *testing.T) {
	s := NewStatus("t", StatusAnswer, "done")
	m := s.WithMetadata(map[string]string{"link": "https://example.com"})
	assert.Nil(t, s.Metadata)
	assert.NotNil(t, m.Metadata)
	assert.Equal(t, s.ID, m.ID)
}

func TestDirectiveConstructors(t *testing.T) {
	f := Final("42")
	assert.True(t, f.IsFinal())
	assert.Equal(t, "final", f.Kind.String())

	a := Action("search", "weather")
	assert.False(t, a.IsFinal())
	assert.Equal(t, "search", a.Name)
	assert.Equal(t, "weather", a.Input)
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("tool").Valid())
}

func TestStepLimiter_Event(t *testing.T) {
	l := NewStepLimiter(2)
	assert.NoError(t, l.Increment())
	assert.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())
	assert.Error(t, l.Increment())
	assert.Equal(t, 3, l.Count())

	unlimited := NewStepLimiter(0)
	for i := 0; i < 100; i++ {
		assert.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}
