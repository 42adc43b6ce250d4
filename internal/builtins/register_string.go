package builtins

import (
	"strings"

	"vela/internal/errors"
	"vela/internal/value"
	"vela/internal/vm"
)

var stringNames = []string{
	"upper", "lower", "trim", "split", "replace", "starts_with", "ends_with",
}

// RegisterStringFunctions wires Str method-call builtins (`s.upper()`, ...).
// args[0] is always the receiver (the lowerer pushes it first for a
// MethodCall and the VM pops it last, so it ends up at args[0]).
func RegisterStringFunctions(v *vm.VM) {
	v.RegisterBuiltin("upper", strUpper)
	v.RegisterBuiltin("lower", strLower)
	v.RegisterBuiltin("trim", strTrim)
	v.RegisterBuiltin("split", strSplit)
	v.RegisterBuiltin("replace", strReplace)
	v.RegisterBuiltin("starts_with", strStartsWith)
	v.RegisterBuiltin("ends_with", strEndsWith)
}

func asString(v value.Value, who string) (string, *errors.RuntimeError) {
	s, ok := v.(value.String)
	if !ok {
		return "", errors.NewTypeError(who + " requires a Str receiver")
	}
	return string(s), nil
}

func strUpper(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	s, rerr := asString(args[0], "upper")
	if rerr != nil {
		return nil, rerr
	}
	return value.String(strings.ToUpper(s)), nil
}

func strLower(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	s, rerr := asString(args[0], "lower")
	if rerr != nil {
		return nil, rerr
	}
	return value.String(strings.ToLower(s)), nil
}

func strTrim(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	s, rerr := asString(args[0], "trim")
	if rerr != nil {
		return nil, rerr
	}
	return value.String(strings.TrimSpace(s)), nil
}

func strSplit(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	s, rerr := asString(args[0], "split")
	if rerr != nil {
		return nil, rerr
	}
	sep := ""
	if len(args) > 1 {
		sepStr, ok := args[1].(value.String)
		if !ok {
			return nil, errors.NewTypeError("split separator must be a Str")
		}
		sep = string(sepStr)
	}
	var parts []string
	if sep == "" {
		parts = strings.Fields(s)
	} else {
		parts = strings.Split(s, sep)
	}
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = value.String(p)
	}
	return &value.Array{Elements: elems}, nil
}

func strReplace(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	if len(args) != 3 {
		return nil, errors.NewTypeError("replace expects (old, new)")
	}
	s, rerr := asString(args[0], "replace")
	if rerr != nil {
		return nil, rerr
	}
	old, ok1 := args[1].(value.String)
	repl, ok2 := args[2].(value.String)
	if !ok1 || !ok2 {
		return nil, errors.NewTypeError("replace arguments must be Str")
	}
	return value.String(strings.ReplaceAll(s, string(old), string(repl))), nil
}

func strStartsWith(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	s, rerr := asString(args[0], "starts_with")
	if rerr != nil {
		return nil, rerr
	}
	prefix, ok := args[1].(value.String)
	if !ok {
		return nil, errors.NewTypeError("starts_with argument must be a Str")
	}
	return value.Bool(strings.HasPrefix(s, string(prefix))), nil
}

func strEndsWith(_ *vm.VM, args []value.Value) (value.Value, *errors.RuntimeError) {
	s, rerr := asString(args[0], "ends_with")
	if rerr != nil {
		return nil, rerr
	}
	suffix, ok := args[1].(value.String)
	if !ok {
		return nil, errors.NewTypeError("ends_with argument must be a Str")
	}
	return value.Bool(strings.HasSuffix(s, string(suffix))), nil
}
