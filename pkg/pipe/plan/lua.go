package plan

import (
	"fmt"
	"math"

	"github.com/ib-77/workpipe/pkg/pipe"
	lua "github.com/yuin/gopher-lua"
)

// luaAction runs script in a fresh state. The input is the global value, the
// shared context is the table ctx, and whatever the chunk returns becomes the
// output. The whole run holds the context lock, so scripts of concurrent
// tasks never interleave their context writes.
func luaAction(script string) pipe.Action {
	return func(ctx *pipe.Context, value any) (out any, err error) {
		ctx.Mutate(func(data map[string]any) {
			out, err = runLua(ctx, script, value, data)
		})
		return out, err
	}
}

func runLua(ctx *pipe.Context, script string, value any, data map[string]any) (any, error) {
	// an LState must not be shared between goroutines
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	L.SetContext(ctx)

	table := toTable(L, data)
	L.SetGlobal("value", toLua(L, value))
	L.SetGlobal("ctx", table)

	base := L.GetTop()
	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("lua: %w", err)
	}

	writeBack(table, data)

	// only the first returned value is the output
	if L.GetTop() == base {
		return value, nil
	}
	ret := L.Get(base + 1)
	if ret == lua.LNil {
		return value, nil
	}
	return fromLua(ret), nil
}

// writeBack copies string keys of the ctx table into data. Keys assigned nil
// are removed.
func writeBack(table *lua.LTable, data map[string]any) {
	for k := range data {
		if table.RawGetString(k) == lua.LNil {
			delete(data, k)
		}
	}
	table.ForEach(func(k, v lua.LValue) {
		if key, ok := k.(lua.LString); ok {
			data[string(key)] = fromLua(v)
		}
	})
}

func toTable(L *lua.LState, m map[string]any) *lua.LTable {
	t := L.NewTable()
	for k, v := range m {
		t.RawSetString(k, toLua(L, v))
	}
	return t
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	case map[string]any:
		return toTable(L, val)
	default:
		// kept opaque so it survives the round trip
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

func fromLua(lv lua.LValue) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f)
		}
		return f
	case *lua.LTable:
		return tableToGo(v)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

// tableToGo returns a []any for sequences and a map[string]any otherwise.
func tableToGo(t *lua.LTable) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		list := make([]any, n)
		for i := 1; i <= n; i++ {
			list[i-1] = fromLua(t.RawGetInt(i))
		}
		return list
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = fromLua(v)
	})
	return m
}
