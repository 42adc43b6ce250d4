// Package integration drives the typecheck -> lower -> vm pipeline end to
// end from YAML fixtures, the same path cmd/vela's run command takes.
package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/builtins"
	"vela/internal/fixtures"
	"vela/internal/ir"
	"vela/internal/lower"
	"vela/internal/typecheck"
	"vela/internal/value"
	"vela/internal/vm"
)

func run(t *testing.T, src string, entry string, args ...value.Value) (value.Value, *typecheck.Checker) {
	t.Helper()
	prog, err := fixtures.LoadProgram([]byte(src))
	require.NoError(t, err)

	c := typecheck.New()
	c.CheckProgram(prog)

	var compiled []*ir.CompiledFunction
	names := builtins.Names()
	for _, fn := range prog.Funcs {
		l := lower.New(c.Tables, names, nil)
		compiled = append(compiled, l.LowerFunction(fn))
	}

	v := vm.New(0, false)
	builtins.RegisterAll(v)
	v.LoadFunctions(compiled)

	out, rerr := v.CallFunction(entry, args)
	require.Nil(t, rerr, "runtime error: %v", rerr)
	return out, c
}

func TestAddFunctionEndToEnd(t *testing.T) {
	src := `
funcs:
  - name: add
    params:
      - name: a
        type: {kind: base, name: Int}
      - name: b
        type: {kind: base, name: Int}
    ret: {kind: base, name: Int}
    body:
      kind: binary
      op: "+"
      left: {kind: ident, name: a}
      right: {kind: ident, name: b}
`
	out, c := run(t, src, "add", value.Int(2), value.Int(3))
	assert.Empty(t, c.Diagnostics)
	assert.Equal(t, value.Int(5), out)
}

func TestIfExpressionEndToEnd(t *testing.T) {
	src := `
funcs:
  - name: pick
    params:
      - name: flag
        type: {kind: base, name: Bool}
    ret: {kind: base, name: Int}
    body:
      kind: if
      cond: {kind: ident, name: flag}
      then: {kind: literal, value: 1}
      else: {kind: literal, value: 2}
`
	out, _ := run(t, src, "pick", value.Bool(true))
	assert.Equal(t, value.Int(1), out)

	out, _ = run(t, src, "pick", value.Bool(false))
	assert.Equal(t, value.Int(2), out)
}

func TestStringBuiltinMethodCallEndToEnd(t *testing.T) {
	src := `
funcs:
  - name: shout
    params:
      - name: s
        type: {kind: base, name: Str}
    ret: {kind: base, name: Str}
    body:
      kind: method_call
      receiver: {kind: ident, name: s}
      method: upper
      args: []
`
	out, c := run(t, src, "shout", value.String("hi"))
	assert.Empty(t, c.Diagnostics)
	assert.Equal(t, value.String("HI"), out)
}
