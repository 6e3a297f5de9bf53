package pipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeOptions_FillsMissing(t *testing.T) {
	t.Parallel()

	opts := Options{"shell": "bash"}
	merged := MergeOptions(opts,
		Options{"shell": "sh", "dir": "/tmp"},
		Options{"dir": "/var", "retries": 3},
	)

	assert.Equal(t, Options{"shell": "bash", "dir": "/tmp", "retries": 3}, merged)
	assert.Equal(t, Options{"shell": "bash"}, opts)
}

func TestMergeOptions_Nil(t *testing.T) {
	t.Parallel()

	merged := MergeOptions(nil)
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestMergeOptions_KeepsExplicitZeroValues(t *testing.T) {
	t.Parallel()

	merged := MergeOptions(
		Options{"dir": "", "verbose": false, "retries": 0, "env": nil},
		Options{"dir": "/tmp", "verbose": true, "retries": 3, "env": map[string]any{"A": "1"}},
	)

	assert.Equal(t, Options{"dir": "", "verbose": false, "retries": 0, "env": nil}, merged)
}

func TestMergeOptions_NestedMapsFilledOnCopy(t *testing.T) {
	t.Parallel()

	in := Options{"env": map[string]any{"A": 1, "B": ""}}
	defaults := Options{"env": map[string]any{"B": 2, "C": 3}, "list": []any{map[string]any{"x": 1}}}

	merged := MergeOptions(in, defaults)

	assert.Equal(t, Options{
		"env":  map[string]any{"A": 1, "B": "", "C": 3},
		"list": []any{map[string]any{"x": 1}},
	}, merged)
	assert.Equal(t, map[string]any{"A": 1, "B": ""}, in["env"])

	merged["list"].([]any)[0].(map[string]any)["x"] = 9
	merged["env"].(map[string]any)["C"] = 4
	assert.Equal(t, []any{map[string]any{"x": 1}}, defaults["list"])
	assert.Equal(t, map[string]any{"B": 2, "C": 3}, defaults["env"])
}

func TestOptions_Getters(t *testing.T) {
	t.Parallel()

	o := Options{
		"name":  "x",
		"int":   3,
		"int64": int64(4),
		"float": float64(5),
		"flag":  true,
	}

	assert.Equal(t, "x", o.GetString("name", ""))
	assert.Equal(t, "def", o.GetString("int", "def"))
	assert.Equal(t, 3, o.GetInt("int", 0))
	assert.Equal(t, 4, o.GetInt("int64", 0))
	assert.Equal(t, 5, o.GetInt("float", 0))
	assert.Equal(t, 9, o.GetInt("missing", 9))
	assert.True(t, o.GetBool("flag", false))
	assert.True(t, o.GetBool("missing", true))

	var empty Options
	assert.NotNil(t, empty.Clone())
}
