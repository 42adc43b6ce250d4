package builtins

import (
	"vela/internal/errors"
	"vela/internal/value"
	"vela/internal/vm"
)

var mapNames = []string{"keys", "values", "has"}

// RegisterMapFunctions wires Map method-call builtins (`m.keys()`, ...).
func RegisterMapFunctions(v *vm.VM) {
	v.RegisterBuiltin("keys", mapKeys)
	v.RegisterBuiltin("values", mapValues)
	v.RegisterBuiltin("has", mapHas)
}

func asMap(v value.Value, who string) (*value.Map, *errors.RuntimeError) {
	m, ok := v.(*value.Map)
	if !ok {
		return nil, errors.NewTypeError(who + " requires a Map receiver")
	}
	return m, nil
}

func mapKeys(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	m, rerr := asMap(args[0], "keys")
	if rerr != nil {
		return nil, rerr
	}
	keys := m.Keys()
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		out[i] = value.String(k)
	}
	return &value.Array{Elements: out}, nil
}

func mapValues(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	m, rerr := asMap(args[0], "values")
	if rerr != nil {
		return nil, rerr
	}
	keys := m.Keys()
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		v, _ := m.Get(k)
		out[i] = v
	}
	return &value.Array{Elements: out}, nil
}

func mapHas(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	m, rerr := asMap(args[0], "has")
	if rerr != nil {
		return nil, rerr
	}
	key, ok := args[1].(value.String)
	if !ok {
		return nil, errors.NewTypeError("has key must be a Str")
	}
	_, found := m.Get(string(key))
	return value.Bool(found), nil
}
