package expression

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/Shopify/go-lua"
)

// Lua is an Evaluator that interprets expressions as Lua.
//
// Conditions and numbers are Lua expressions, such as "amount > 100". Scripts
// are Lua chunks that may return a table, each string key of which is
// assigned as a variable. Variables are exposed to Lua as globals.
//
// Each evaluation uses a new interpreter, so evaluations can not share state.
type Lua struct{}

// Condition evaluates a boolean expression using Lua truthiness, such that
// nil and false are false and all other values are true.
func (Lua) Condition(ctx context.Context, expr string, vars map[string]any) (bool, error) {
	var result bool

	err := eval(ctx, "return "+expr, expr, vars, func(state *lua.State) error {
		result = state.ToBoolean(-1)
		return nil
	})

	return result, err
}

// Number evaluates a numeric expression.
func (Lua) Number(ctx context.Context, expr string, vars map[string]any) (float64, error) {
	var result float64

	err := eval(ctx, "return "+expr, expr, vars, func(state *lua.State) error {
		if state.TypeOf(-1) != lua.TypeNumber {
			return fmt.Errorf("expected a number, got %s", lua.TypeNameOf(state, -1))
		}

		result, _ = state.ToNumber(-1)
		return nil
	})

	return result, err
}

// Script runs a Lua chunk.
func (Lua) Script(ctx context.Context, source string, vars map[string]any) (map[string]any, error) {
	var result map[string]any

	err := eval(ctx, source, source, vars, func(state *lua.State) error {
		switch state.TypeOf(-1) {
		case lua.TypeNil:
			return nil
		case lua.TypeTable:
			result = tableToMap(state, -1)
			return nil
		default:
			return fmt.Errorf("expected the script to return a table, got %s", lua.TypeNameOf(state, -1))
		}
	})

	return result, err
}

// eval loads and runs a chunk, then calls fn with the chunk's single result on
// the top of the stack.
func eval(
	ctx context.Context,
	chunk, expr string,
	vars map[string]any,
	fn func(*lua.State) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	state := newState()

	if err := setGlobals(state, vars); err != nil {
		return &Error{expr, err}
	}

	if err := lua.LoadString(state, chunk); err != nil {
		return &Error{expr, err}
	}

	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return &Error{expr, err}
	}

	if err := fn(state); err != nil {
		return &Error{expr, err}
	}

	return nil
}

// newState returns an interpreter with only the side-effect-free standard
// libraries loaded.
func newState() *lua.State {
	state := lua.NewState()

	for _, lib := range []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "math", Function: lua.MathOpen},
	} {
		lua.Require(state, lib.Name, lib.Function, true)
		state.Pop(1)
	}

	return state
}

func setGlobals(state *lua.State, vars map[string]any) error {
	for name, value := range vars {
		if err := push(state, value); err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
		state.SetGlobal(name)
	}

	return nil
}

// push pushes a Go value onto the Lua stack.
func push(state *lua.State, v any) error {
	switch v := v.(type) {
	case nil:
		state.PushNil()
	case bool:
		state.PushBoolean(v)
	case string:
		state.PushString(v)
	case float64:
		state.PushNumber(v)
	case float32:
		state.PushNumber(float64(v))
	case int:
		state.PushInteger(v)
	case int32:
		state.PushInteger(int(v))
	case int64:
		state.PushNumber(float64(v))
	case uint:
		state.PushNumber(float64(v))
	case uint64:
		state.PushNumber(float64(v))
	case []any:
		state.NewTable()
		for i, e := range v {
			if err := push(state, e); err != nil {
				state.Pop(1)
				return err
			}
			state.RawSetInt(-2, i+1)
		}
	case map[string]any:
		state.NewTable()

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if err := push(state, v[k]); err != nil {
				state.Pop(1)
				return err
			}
			state.SetField(-2, k)
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fmt.Errorf("unsupported type %T", v)
		}

		state.NewTable()
		for i := 0; i < rv.Len(); i++ {
			if err := push(state, rv.Index(i).Interface()); err != nil {
				state.Pop(1)
				return err
			}
			state.RawSetInt(-2, i+1)
		}
	}

	return nil
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

// luaToGo converts the value at index to a JSON-compatible Go value. All
// numbers are converted to float64.
func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return value
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo converts a table to a []any if it is a sequence, otherwise to a
// map[string]any.
func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}
