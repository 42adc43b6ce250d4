package builtins

import (
	"vela/internal/errors"
	"vela/internal/value"
	"vela/internal/vm"
)

var arrayNames = []string{
	"push", "pop", "first", "last", "reverse", "join",
}

// RegisterArrayFunctions wires Array method-call builtins (`a.push(x)`, ...).
func RegisterArrayFunctions(v *vm.VM) {
	v.RegisterBuiltin("push", arrPush)
	v.RegisterBuiltin("pop", arrPop)
	v.RegisterBuiltin("first", arrFirst)
	v.RegisterBuiltin("last", arrLast)
	v.RegisterBuiltin("reverse", arrReverse)
	v.RegisterBuiltin("join", arrJoin)
}

func asArray(v value.Value, who string) (*value.Array, *errors.RuntimeError) {
	a, ok := v.(*value.Array)
	if !ok {
		return nil, errors.NewTypeError(who + " requires an Array receiver")
	}
	return a, nil
}

// arrPush returns a new array with the element appended; arrays are not
// mutated in place through a method call receiver since the receiver is a
// plain stack value, not an addressable binding.
func arrPush(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	if len(args) != 2 {
		return nil, errors.NewTypeError("push expects 1 argument")
	}
	a, rerr := asArray(args[0], "push")
	if rerr != nil {
		return nil, rerr
	}
	out := append(append([]value.Value(nil), a.Elements...), args[1])
	return &value.Array{Elements: out}, nil
}

func arrPop(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	a, rerr := asArray(args[0], "pop")
	if rerr != nil {
		return nil, rerr
	}
	if len(a.Elements) == 0 {
		return nil, errors.NewIndexOutOfBounds(0, 0)
	}
	last := a.Elements[len(a.Elements)-1]
	rest := append([]value.Value(nil), a.Elements[:len(a.Elements)-1]...)
	return &value.Struct{Fields: tupleFields(&value.Array{Elements: rest}, last)}, nil
}

// tupleFields represents pop()'s (array, popped) result as a two-field
// struct since the value domain has no anonymous tuple variant at runtime
// (spec §3 Value list has no Tuple; Tuple only exists at the type level).
func tupleFields(arr value.Value, popped value.Value) *value.Map {
	m := value.NewMap()
	m.Set("rest", arr)
	m.Set("popped", popped)
	return m
}

func arrFirst(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	a, rerr := asArray(args[0], "first")
	if rerr != nil {
		return nil, rerr
	}
	if len(a.Elements) == 0 {
		return value.None(), nil
	}
	return value.Some(a.Elements[0]), nil
}

func arrLast(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	a, rerr := asArray(args[0], "last")
	if rerr != nil {
		return nil, rerr
	}
	if len(a.Elements) == 0 {
		return value.None(), nil
	}
	return value.Some(a.Elements[len(a.Elements)-1]), nil
}

func arrReverse(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	a, rerr := asArray(args[0], "reverse")
	if rerr != nil {
		return nil, rerr
	}
	out := make([]value.Value, len(a.Elements))
	for i, e := range a.Elements {
		out[len(out)-1-i] = e
	}
	return &value.Array{Elements: out}, nil
}

func arrJoin(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	a, rerr := asArray(args[0], "join")
	if rerr != nil {
		return nil, rerr
	}
	sep := ""
	if len(args) > 1 {
		s, ok := args[1].(value.String)
		if !ok {
			return nil, errors.NewTypeError("join separator must be a Str")
		}
		sep = string(s)
	}
	var out string
	for i, e := range a.Elements {
		if i > 0 {
			out += sep
		}
		out += value.String_(e)
	}
	return value.String(out), nil
}
