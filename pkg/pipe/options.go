package pipe

import (
	"maps"
)

// Options is the free-form configuration attached to tasks and routines.
type Options map[string]any

// MergeOptions returns a deep copy of opts where keys missing from it are
// filled from each defaults map in turn. Nested maps held on both sides are
// filled the same way. A key that is present keeps its value even when it is
// the zero value. Neither opts nor defaults are modified.
func MergeOptions(opts Options, defaults ...Options) Options {
	out := Options(cloneMap(opts))
	for _, d := range defaults {
		fillMissing(out, d)
	}
	return out
}

func fillMissing(dst, src map[string]any) {
	for k, v := range src {
		cur, ok := dst[k]
		if !ok {
			dst[k] = cloneValue(v)
			continue
		}
		dm, ok := asMap(cur)
		if !ok {
			continue
		}
		if sm, ok := asMap(v); ok {
			fillMissing(dm, sm)
		}
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Options:
		return m, true
	default:
		return nil, false
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Options:
		return Options(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Clone returns a shallow copy, never nil.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	maps.Copy(out, o)
	return out
}

// GetString returns the string stored under key, or def.
func (o Options) GetString(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// GetInt returns the integer stored under key, or def. Decoded numbers of any
// integer or float kind are accepted.
func (o Options) GetInt(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetBool returns the bool stored under key, or def.
func (o Options) GetBool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}
