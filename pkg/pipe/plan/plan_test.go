package plan

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := osexec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestFormatFor(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]Format{
		"plan.yaml": FormatYAML,
		"plan.YML":  FormatYAML,
		"plan.toml": FormatTOML,
	} {
		got, err := FormatFor(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFor("plan.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_YAMLAndTOMLAgree(t *testing.T) {
	t.Parallel()

	fromYAML, err := Load(filepath.Join("testdata", "release.yaml"))
	require.NoError(t, err)
	fromTOML, err := Load(filepath.Join("testdata", "release.toml"))
	require.NoError(t, err)

	for _, p := range []*Plan{fromYAML, fromTOML} {
		assert.Equal(t, "Release", p.Title)
		assert.Equal(t, "v1", p.Value)
		require.Len(t, p.Tasks, 2)
		assert.Equal(t, "tag", p.Tasks[0].Title)
		assert.NotEmpty(t, p.Tasks[0].Run)
		assert.NotEmpty(t, p.Tasks[1].Lua)
		require.Len(t, p.Routines, 1)
		assert.Equal(t, "publish", p.Routines[0].Key)
		assert.Equal(t, "synchronize", p.Routines[0].Strategy)
		require.Len(t, p.Routines[0].Tasks, 3)
		assert.True(t, p.Routines[0].Tasks[2].Skip)
	}
}

func TestParse_ValidationNamesPath(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		doc  string
		want string
		is   error
	}{
		"missing title": {
			doc:  "strategy: serial\n",
			want: "title",
			is:   pipe.ErrInvalidTitle,
		},
		"unknown strategy": {
			doc:  "title: x\nstrategy: sideways\n",
			want: "strategy",
			is:   pipe.ErrUnknownStrategy,
		},
		"nested task title": {
			doc:  "title: x\nroutines:\n  - key: a\n  - key: b\n    tasks:\n      - run: 'true'\n",
			want: "routines[1].tasks[0]",
			is:   pipe.ErrInvalidTitle,
		},
		"duplicate key": {
			doc:  "title: x\nroutines:\n  - key: a\n  - key: a\n",
			want: "routines[1]",
			is:   pipe.ErrDuplicateKey,
		},
		"missing key": {
			doc:  "title: x\nroutines:\n  - title: nameless\n",
			want: "routines[0]",
			is:   pipe.ErrInvalidKey,
		},
		"run and lua": {
			doc:  "title: x\ntasks:\n  - title: both\n    run: 'true'\n    lua: return 1\n",
			want: "tasks[0]: run and lua",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tc.doc), FormatYAML)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPlan)
			assert.Contains(t, err.Error(), tc.want)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestBuild_Tree(t *testing.T) {
	t.Parallel()

	p, err := Load(filepath.Join("testdata", "release.yaml"))
	require.NoError(t, err)

	root, err := Build(p)
	require.NoError(t, err)

	assert.Equal(t, DefaultKey, root.Key())
	assert.Equal(t, "Release", root.Title())
	require.Len(t, root.Tasks(), 2)
	require.Len(t, root.Routines(), 1)

	publish := root.Routines()[0]
	assert.Equal(t, "publish", publish.Key())
	assert.Equal(t, 1, publish.Depth())

	cfg := root.Tasks()[0].(*pipe.Task).Config()
	assert.Equal(t, ".", cfg["dir"])
	assert.Equal(t, "sh", cfg["shell"])
}

func TestBuild_Run(t *testing.T) {
	requireShell(t)
	t.Parallel()

	for _, file := range []string{"release.yaml", "release.toml"} {
		t.Run(file, func(t *testing.T) {
			t.Parallel()

			p, err := Load(filepath.Join("testdata", file))
			require.NoError(t, err)

			root, err := Build(p)
			require.NoError(t, err)

			ctx := p.NewContext(context.Background())
			out, err := root.Run(ctx, p.Value)
			require.NoError(t, err)

			assert.Equal(t, []any{"uploaded v1-rc", "announced v1-rc", "v1-rc"}, out)

			tagged, ok := pipe.Lookup[string](ctx, "tagged")
			require.True(t, ok)
			assert.Equal(t, "v1-rc", tagged)

			count, ok := pipe.Lookup[int](ctx, "count")
			require.True(t, ok)
			assert.Equal(t, 3, count)

			assert.True(t, root.HasPassed())
			assert.True(t, root.Routines()[0].HasPassed())
		})
	}
}

func TestBuild_AggregatedFailureFailsRoutine(t *testing.T) {
	requireShell(t)
	t.Parallel()

	p, err := Parse([]byte(`
title: checks
strategy: pool
concurrency: 2
tasks:
  - title: ok
    run: echo ok
  - title: broken
    run: echo nope >&2; exit 4
  - title: fine
    lua: return 1
`), FormatYAML)
	require.NoError(t, err)

	root, err := Build(p)
	require.NoError(t, err)

	_, err = root.Run(nil, nil)
	require.Error(t, err)
	assert.True(t, root.HasFailed())

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "nope", cmdErr.Stderr)
	assert.Equal(t, "echo nope >&2; exit 4", cmdErr.Command)

	tasks := root.Tasks()
	assert.True(t, tasks[0].HasPassed())
	assert.True(t, tasks[1].HasFailed())
	assert.True(t, tasks[2].HasPassed())
}

func TestBuild_SkippedRoutine(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(`
title: skip
value: 7
routines:
  - key: never
    skip: true
    tasks:
      - title: boom
        lua: error("must not run")
`), FormatYAML)
	require.NoError(t, err)

	root, err := Build(p)
	require.NoError(t, err)

	out, err := root.Run(nil, p.Value)
	require.NoError(t, err)
	assert.Equal(t, 7, out)

	never := root.Routines()[0]
	assert.True(t, never.IsSkipped())
	assert.True(t, never.(interface{ Tasks() []pipe.WorkUnit }).Tasks()[0].IsPending())
}

func TestLuaAction(t *testing.T) {
	t.Parallel()

	ctx := pipe.NewContext(context.Background(), map[string]any{"count": 3, "gone": true})

	out, err := luaAction(`
ctx.count = ctx.count * 2
ctx.gone = nil
ctx.list = {"a", "b"}
return value * 2
`)(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	assert.Equal(t, map[string]any{"count": 6, "list": []any{"a", "b"}}, ctx.Snapshot())

	out, err = luaAction(`local x = 1`)(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, "same", out)

	out, err = luaAction(`return "first", "second"`)(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = luaAction(`return nil, "second"`)(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "kept", out)

	_, err = luaAction(`error("bad input")`)(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")
}

func TestLuaAction_OpaqueValuesSurvive(t *testing.T) {
	t.Parallel()

	type token struct{ id int }
	tok := &token{id: 1}
	ctx := pipe.NewContext(context.Background(), map[string]any{"token": tok})

	out, err := luaAction(`return {name = "x", n = 1.5}`)(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "x", "n": 1.5}, out)

	got, ok := pipe.Lookup[*token](ctx, "token")
	require.True(t, ok)
	assert.Same(t, tok, got)
}

func TestLuaAction_ConcurrentContextWrites(t *testing.T) {
	t.Parallel()

	var units []pipe.WorkUnit
	for i := 0; i < 8; i++ {
		task, err := pipe.NewTask("inc", luaAction(`ctx.count = ctx.count + 1`))
		require.NoError(t, err)
		units = append(units, task)
	}

	ctx := pipe.NewContext(context.Background(), map[string]any{"count": 0})
	_, err := exec.Parallel(ctx, units, nil, nil)
	require.NoError(t, err)

	count, _ := pipe.Lookup[int](ctx, "count")
	assert.Equal(t, 8, count)
}

func TestShellAction(t *testing.T) {
	requireShell(t)
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := pipe.Options{"env": map[string]any{"GREETING": "hi"}}
	ctx := pipe.NewContext(context.Background(), nil)

	out, err := shellAction("greet", `echo "$GREETING $WORKPIPE_VALUE"`, cfg, logger)(ctx, []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "hi a\nb", out)
	assert.Contains(t, buf.String(), `"line":"hi a"`)
	assert.Contains(t, buf.String(), `"line":"b"`)

	out, err = shellAction("noop", `true`, cfg, logger)(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	_, err = shellAction("exit", `echo bad >&2; exit 2`, cfg, logger)(ctx, nil)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "bad", cmdErr.Stderr)
	var exitErr *osexec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestBuild_ExplicitEmptyDirOverridesDefault(t *testing.T) {
	requireShell(t)
	t.Parallel()

	p, err := Parse([]byte(`
title: where
defaults:
  dir: /
tasks:
  - title: here
    run: pwd -P
    config:
      dir: ""
`), FormatYAML)
	require.NoError(t, err)

	root, err := Build(p)
	require.NoError(t, err)
	assert.Equal(t, "", root.Tasks()[0].(*pipe.Task).Config()["dir"])

	out, err := root.Run(nil, nil)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	wd, err = filepath.EvalSymlinks(wd)
	require.NoError(t, err)
	assert.Equal(t, wd, out)
}

func TestBuild_EmptyShellKeepsDefault(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte("title: x\ntasks:\n  - title: t\n    run: 'true'\n"), FormatYAML)
	require.NoError(t, err)

	root, err := Build(p, WithShell(""), WithDebounce(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, "sh", root.Tasks()[0].(*pipe.Task).Config()["shell"])
}

func TestWatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("title: one\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func() { calls <- struct{}{} }, WithDebounce(20*time.Millisecond))
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("title: two\n"), 0o644))

	select {
	case <-calls:
	case <-ctx.Done():
		t.Fatal("watch callback not called")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatch_MissingFile(t *testing.T) {
	t.Parallel()

	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), func() {})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
