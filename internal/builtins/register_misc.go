package builtins

import (
	"fmt"

	"vela/internal/errors"
	"vela/internal/value"
	"vela/internal/vm"
)

var miscNames = []string{"str", "to_set", "len"}

// RegisterMiscFunctions wires the handful of builtins called as plain
// functions (`str(x)`) rather than as a method on a known receiver type.
func RegisterMiscFunctions(v *vm.VM) {
	v.RegisterBuiltin("str", miscStr)
	v.RegisterBuiltin("to_set", miscToSet)
	v.RegisterBuiltin("len", miscLen)
}

func miscStr(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	if len(args) != 1 {
		return nil, errors.NewTypeError("str expects 1 argument")
	}
	return value.String(value.String_(args[0])), nil
}

func miscToSet(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	a, ok := args[0].(*value.Array)
	if !ok {
		return nil, errors.NewTypeError("to_set requires an Array receiver")
	}
	return value.NewSet(a.Elements...), nil
}

func miscLen(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	if len(args) != 1 {
		return nil, errors.NewTypeError("len expects 1 argument")
	}
	n, err := value.Len(args[0])
	if err != nil {
		return nil, errors.NewTypeError(fmt.Sprint(err))
	}
	return value.Int(int64(n)), nil
}
