package event

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvent_EmitInOrder(t *testing.T) {
	t.Parallel()

	e := New[int]("tick")
	var got []int
	e.Listen(func(v int) { got = append(got, v*10) })
	e.Listen(func(v int) { got = append(got, v*100) })

	e.Emit(1)
	e.Emit(2)

	assert.Equal(t, "tick", e.Name())
	assert.Equal(t, []int{10, 100, 20, 200}, got)
}

func TestEvent_Unlisten(t *testing.T) {
	t.Parallel()

	e := New[string]("msg")
	var calls int
	unlisten := e.Listen(func(string) { calls++ })
	assert.Equal(t, 1, e.Len())

	e.Emit("a")
	unlisten()
	unlisten()
	e.Emit("b")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, e.Len())
}

func TestEvent_NilListenerIgnored(t *testing.T) {
	t.Parallel()

	e := New[int]("nil")
	e.Listen(nil)()
	assert.Equal(t, 0, e.Len())
	e.Emit(1)
}

func TestEvent_PanicIsLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := New[int]("fragile", WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	var after bool
	e.Listen(func(int) { panic("broken listener") })
	e.Listen(func(int) { after = true })

	assert.NotPanics(t, func() { e.Emit(1) })
	assert.True(t, after)
	assert.Contains(t, buf.String(), "event listener panicked")
	assert.Contains(t, buf.String(), "broken listener")
	assert.Contains(t, buf.String(), "event=fragile")
}

func TestEvent_ListenDuringEmit(t *testing.T) {
	t.Parallel()

	e := New[int]("grow")
	var late int
	e.Listen(func(int) {
		e.Listen(func(int) { late++ })
	})

	e.Emit(1)
	assert.Equal(t, 0, late)
	e.Emit(2)
	assert.Equal(t, 1, late)
}

func TestEvent_ConcurrentEmit(t *testing.T) {
	t.Parallel()

	e := New[int]("busy")
	var (
		mu  sync.Mutex
		sum int
	)
	e.Listen(func(v int) {
		mu.Lock()
		sum += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Emit(i)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5050, sum)
}

func TestBailEvent_StopsAtFirstBail(t *testing.T) {
	t.Parallel()

	e := NewBail[string]("run")
	var seen []string
	e.Listen(func(s string) bool { seen = append(seen, "first:"+s); return false })
	e.Listen(func(s string) bool { seen = append(seen, "second:"+s); return s == "stop" })
	e.Listen(func(s string) bool { seen = append(seen, "third:"+s); return false })

	assert.False(t, e.Emit("go"))
	assert.True(t, e.Emit("stop"))

	assert.Equal(t, []string{
		"first:go", "second:go", "third:go",
		"first:stop", "second:stop",
	}, seen)
}

func TestBailEvent_PanicDoesNotBail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := NewBail[int]("run", WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	e.Listen(func(int) bool { panic("nope") })

	assert.False(t, e.Emit(1))
	assert.Contains(t, buf.String(), "nope")
}
