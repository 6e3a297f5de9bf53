package pipe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct {
	greeting string
}

func TestBind(t *testing.T) {
	t.Parallel()

	g := &greeter{greeting: "hello"}
	action := Bind(g, func(s *greeter, _ *Context, v any) (any, error) {
		return s.greeting + " " + v.(string), nil
	})

	out, err := action(nil, "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	g.greeting = "bye"
	out, _ = action(nil, "world")
	assert.Equal(t, "bye world", out)

	assert.Nil(t, Bind[*greeter](g, nil))
}

func TestTyped(t *testing.T) {
	t.Parallel()

	upper := Typed(func(_ *Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	})

	out, err := upper(nil, "abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)

	out, err = upper(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	_, err = upper(nil, 42)
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "string", te.Want)
	assert.Equal(t, 42, te.Got)
	assert.Contains(t, err.Error(), "got int")
}

func TestStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "unknown", Status(99).String())

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusPassed.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusSkipped.IsTerminal())

	assert.True(t, CanTransition(StatusPending, StatusRunning))
	assert.True(t, CanTransition(StatusPending, StatusSkipped))
	assert.True(t, CanTransition(StatusRunning, StatusFailed))
	assert.False(t, CanTransition(StatusPassed, StatusPending))
	assert.False(t, CanTransition(StatusRunning, StatusPending))
}

func TestKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "task", KindTask.String())
	assert.Equal(t, "routine", KindRoutine.String())
}

func TestIsNil(t *testing.T) {
	t.Parallel()

	var task *Task
	var unit WorkUnit = task

	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(unit))
	assert.False(t, IsNil(0))
	assert.False(t, IsNil(&greeter{}))
}
