package builtins

import (
	"vela/internal/errors"
	"vela/internal/value"
	"vela/internal/vm"
)

var setNames = []string{"add", "to_array"}

// RegisterSetFunctions wires Set method-call builtins (`s.add(x)`, ...).
func RegisterSetFunctions(v *vm.VM) {
	v.RegisterBuiltin("add", setAdd)
	v.RegisterBuiltin("to_array", setToArray)
}

func setAdd(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	s, ok := args[0].(*value.Set)
	if !ok {
		return nil, errors.NewTypeError("add requires a Set receiver")
	}
	out := value.NewSet(s.Elements()...)
	out.Add(args[1])
	return out, nil
}

func setToArray(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	s, ok := args[0].(*value.Set)
	if !ok {
		return nil, errors.NewTypeError("to_array requires a Set receiver")
	}
	return &value.Array{Elements: append([]value.Value(nil), s.Elements()...)}, nil
}
