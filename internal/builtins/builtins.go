// Package builtins registers the CallBuiltin/MethodCall surface named in
// spec §4.2 (C2) and §4.6 (C7's "else if a built-in -> CallBuiltin(name, n)")
// against a *vm.VM. A MethodCall lowers the receiver as the first argument
// (internal/lower/lower.go's *parser.MethodCall case), so every function here
// treats args[0] as the receiver and the rest as the call's own arguments.
//
// Grounded on the teacher's internal/stdlib/database_funcs.go shape: one
// RegisterXFunctions(vm) per domain, each wiring a flat list of names to
// small top-level functions.
package builtins

import "vela/internal/vm"

// Names is the single source of truth for which identifiers lower to
// CallBuiltin rather than Call/CallFfi; cmd/vela feeds this to the lowerer
// so the two stay in sync without hand duplicating the list.
func Names() map[string]bool {
	names := make(map[string]bool)
	for _, group := range [][]string{stringNames, arrayNames, mapNames, setNames, miscNames} {
		for _, n := range group {
			names[n] = true
		}
	}
	return names
}

// RegisterAll wires every builtin domain into vm.
func RegisterAll(v *vm.VM) {
	RegisterStringFunctions(v)
	RegisterArrayFunctions(v)
	RegisterMapFunctions(v)
	RegisterSetFunctions(v)
	RegisterMiscFunctions(v)
}
