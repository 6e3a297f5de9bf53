package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_Passes(t *testing.T) {
	t.Parallel()

	path := writePlan(t, "plan.yaml", `
title: double
value: 21
tasks:
  - title: twice
    lua: return value * 2
`)

	var stderr bytes.Buffer
	code := run([]string{"-log-format", "json", path}, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stderr.String(), `"msg":"plan passed"`)
	assert.Contains(t, stderr.String(), `"output":42`)
	assert.Contains(t, stderr.String(), "2 passed, 0 failed, 0 skipped")
}

func TestRun_FailureExitCode(t *testing.T) {
	t.Parallel()

	path := writePlan(t, "plan.toml", `
title = "broken"

[[tasks]]
title = "explode"
lua = "error('kaboom')"
`)

	var stderr bytes.Buffer
	code := run([]string{path}, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unit failed")
	assert.Contains(t, stderr.String(), "kaboom")
}

func TestRun_ReportsEachAggregatedFailure(t *testing.T) {
	t.Parallel()

	path := writePlan(t, "plan.yaml", `
title: checks
strategy: synchronize
tasks:
  - title: lint
    lua: error("lint broke")
  - title: ok
    lua: return 1
  - title: vet
    lua: error("vet broke")
`)

	var stderr bytes.Buffer
	code := run([]string{"-log-format", "json", path}, &stderr)

	out := stderr.String()
	assert.Equal(t, 1, code)
	assert.Contains(t, out, `"failures":2`)
	assert.Equal(t, 2, strings.Count(out, `"msg":"failure"`))
	assert.Contains(t, out, "lint broke")
	assert.Contains(t, out, "vet broke")
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stderr))
	assert.Contains(t, stderr.String(), "usage: workpipe")

	stderr.Reset()
	assert.Equal(t, 2, run([]string{"-log-format", "xml", "plan.yaml"}, &stderr))
	assert.Contains(t, stderr.String(), "invalid log format")
}

func TestRun_InvalidPlan(t *testing.T) {
	t.Parallel()

	path := writePlan(t, "plan.yaml", "strategy: sideways\n")

	var stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{path}, &stderr))
	assert.Contains(t, stderr.String(), "loading plan")
}
