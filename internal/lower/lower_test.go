package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/fixtures"
	"vela/internal/ir"
	"vela/internal/parser"
	"vela/internal/typecheck"
	"vela/internal/value"
)

func lowerSrc(t *testing.T, src, fnName string) *ir.CompiledFunction {
	t.Helper()
	prog, err := fixtures.LoadProgram([]byte(src))
	require.NoError(t, err)
	c := typecheck.New()
	c.CheckProgram(prog)
	require.Empty(t, c.Diagnostics)

	var target *ir.CompiledFunction
	for _, fn := range prog.Funcs {
		l := New(c.Tables, nil, nil)
		out := l.LowerFunction(fn)
		if fn.Name == fnName {
			target = out
		}
	}
	require.NotNil(t, target, "function %q not found", fnName)
	return target
}

func opsOf(fn *ir.CompiledFunction) []ir.OpCode {
	out := make([]ir.OpCode, len(fn.Instructions))
	for i, instr := range fn.Instructions {
		out[i] = instr.Op
	}
	return out
}

func TestLowerBinaryEmitsOperandsThenOp(t *testing.T) {
	fn := lowerSrc(t, `
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
`, "add")
	assert.Equal(t, []ir.OpCode{ir.OpLoadLocal, ir.OpLoadLocal, ir.OpAdd, ir.OpReturn}, opsOf(fn))
	assert.EqualValues(t, 2, fn.LocalCount)
}

func TestLowerIdentInParamSlotUsesLoadLocalNotLoad(t *testing.T) {
	fn := lowerSrc(t, `
funcs:
  - name: id
    params:
      - name: x
        type: {kind: base, name: Int}
    ret: {kind: base, name: Int}
    body: {kind: ident, name: x}
`, "id")
	require.Len(t, fn.Instructions, 2)
	assert.Equal(t, ir.OpLoadLocal, fn.Instructions[0].Op)
	assert.Equal(t, ir.OpReturn, fn.Instructions[1].Op)
}

// TestLowerSelfCallInTailPositionEmitsTailSelfCall grounds testable
// property P2: a self-call that is the function body's outermost
// expression (a true tail position) must compile to OpTailSelfCall, not
// the depth-tracked OpSelfCall.
func TestLowerSelfCallInTailPositionEmitsTailSelfCall(t *testing.T) {
	fn := lowerSrc(t, `
funcs:
  - name: loop
    params:
      - name: n
        type: {kind: base, name: Int}
    ret: {kind: base, name: Int}
    body:
      kind: self_call
      args:
        - {kind: ident, name: n}
`, "loop")
	// LowerFunction always appends a trailing Return after the lowered
	// body, so the tail call itself is the second-to-last instruction.
	require.GreaterOrEqual(t, len(fn.Instructions), 2)
	selfCallInstr := fn.Instructions[len(fn.Instructions)-2]
	assert.Equal(t, ir.OpTailSelfCall, selfCallInstr.Op)
}

// TestLowerSelfCallInsideBinaryIsNotTail shows the contrast: a self-call
// used as an operand (not itself the returned tail expression) compiles to
// the ordinary depth-tracked OpSelfCall.
func TestLowerSelfCallInsideBinaryIsNotTail(t *testing.T) {
	fn := lowerSrc(t, `
funcs:
  - name: loop
    params:
      - name: n
        type: {kind: base, name: Int}
    ret: {kind: base, name: Int}
    body:
      kind: binary
      op: "+"
      left:
        kind: self_call
        args:
          - {kind: ident, name: n}
      right: {kind: literal, value: 1}
`, "loop")
	found := false
	for _, instr := range fn.Instructions {
		if instr.Op == ir.OpSelfCall {
			found = true
		}
		assert.NotEqual(t, ir.OpTailSelfCall, instr.Op)
	}
	assert.True(t, found)
}

func TestLowerIfEmitsJumpsAroundBranches(t *testing.T) {
	fn := lowerSrc(t, `
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
`, "pick")
	ops := opsOf(fn)
	assert.Contains(t, ops, ir.OpJumpIfNot)
	assert.Contains(t, ops, ir.OpJump)
}

func TestLowerBuiltinCallEmitsCallBuiltinNotCall(t *testing.T) {
	prog, err := fixtures.LoadProgram([]byte(`
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
`))
	require.NoError(t, err)
	c := typecheck.New()
	c.CheckProgram(prog)
	require.Empty(t, c.Diagnostics)

	l := New(c.Tables, map[string]bool{"upper": true}, nil)
	fn := l.LowerFunction(prog.Funcs[0])
	ops := opsOf(fn)
	assert.Contains(t, ops, ir.OpCallBuiltin)
	assert.NotContains(t, ops, ir.OpCall)
}

// TestLowerAssertEvaluatesConditionNotMessage guards against the condition
// and the message getting mixed up on the stack: the JumpIf must test cond,
// and a failing assert must raise Error with msg on top, not cond.
func TestLowerAssertEvaluatesConditionNotMessage(t *testing.T) {
	fn := lowerSrc(t, `
funcs:
  - name: check
    params:
      - name: n
        type: {kind: base, name: Int}
    ret: {kind: base, name: Unit}
    body:
      kind: assert
      cond:
        kind: binary
        op: ">"
        left: {kind: ident, name: n}
        right: {kind: literal, value: 0}
      msg: {kind: literal, value: "n must be positive"}
`, "check")

	ops := opsOf(fn)
	jumpIfIdx := -1
	for i, op := range ops {
		if op == ir.OpJumpIf {
			jumpIfIdx = i
			break
		}
	}
	require.NotEqual(t, -1, jumpIfIdx, "assert must emit a JumpIf over the condition")

	// The instruction immediately before JumpIf must be the comparison
	// (Gt), not the message literal: cond is evaluated, then tested.
	require.Greater(t, jumpIfIdx, 0)
	assert.Equal(t, ir.OpGt, fn.Instructions[jumpIfIdx-1].Op)

	errIdx := -1
	for i, op := range ops {
		if op == ir.OpError {
			errIdx = i
			break
		}
	}
	require.NotEqual(t, -1, errIdx, "assert must emit Error on the fail path")

	// The instruction immediately before Error must push the message
	// constant, so Error raises with the assert message, not cond's value.
	require.Greater(t, errIdx, 0)
	msgInstr := fn.Instructions[errIdx-1]
	assert.Equal(t, ir.OpConst, msgInstr.Op)
	assert.Equal(t, value.String("n must be positive"), msgInstr.Const)

	// The jump target must land past the fail path, on a Const(Void) that
	// yields Unit on the success path, not leave cond sitting on the stack.
	jumpInstr := fn.Instructions[jumpIfIdx]
	target := jumpIfIdx + 1 + int(jumpInstr.Offset)
	require.Less(t, target, len(fn.Instructions))
	assert.Equal(t, ir.OpConst, fn.Instructions[target].Op)
	assert.Equal(t, value.Void{}, fn.Instructions[target].Const)
}

// TestLowerIndexedPatternChecksLengthBeforeIndexing grounds P4 and the
// Tuple/Array match table: lowerIndexedPattern must test the scrutinee's
// length before indexing into it, and must never emit a bare index+AND
// chain that would run an out-of-bounds Index on a too-short scrutinee.
func TestLowerIndexedPatternChecksLengthBeforeIndexing(t *testing.T) {
	l := New(nil, nil, nil)
	l.locals = map[string]uint16{}
	l.nextSlot = 1 // slot 0 reserved for the scrutinee

	elems := []parser.Pattern{
		parser.LiteralPattern{Value: &parser.Literal{Value: int64(1)}},
		parser.LiteralPattern{Value: &parser.Literal{Value: int64(2)}},
	}
	out := l.lowerIndexedPattern(elems, 0)

	require.NotEmpty(t, out)
	assert.Equal(t, ir.OpLoadLocal, out[0].Op)
	assert.Equal(t, ir.OpLen, out[1].Op)
	assert.Equal(t, ir.OpConst, out[2].Op)
	assert.Equal(t, value.Int(2), out[2].Const)
	assert.Equal(t, ir.OpEq, out[3].Op)
	assert.Equal(t, ir.OpJumpIfNot, out[4].Op, "length check must gate the per-element predicates behind a branch, not an eager And")

	// Every Index instruction must be reachable only past the JumpIfNot
	// (i.e. on the length-matches path), never unconditionally evaluated.
	jumpTarget := 5 + int(out[4].Offset)
	indexSeen := false
	for i := 5; i < jumpTarget && i < len(out); i++ {
		if out[i].Op == ir.OpIndex {
			indexSeen = true
		}
	}
	assert.True(t, indexSeen)

	// The false path (landed on by JumpIfNot) must push Bool(false), not
	// fall into indexing.
	require.Less(t, jumpTarget, len(out))
	assert.Equal(t, ir.OpConst, out[jumpTarget].Op)
	assert.Equal(t, value.Bool(false), out[jumpTarget].Const)
}

func TestLowerIndexedPatternEmptyYieldsLengthZeroCheck(t *testing.T) {
	l := New(nil, nil, nil)
	l.locals = map[string]uint16{}
	l.nextSlot = 1

	out := l.lowerIndexedPattern(nil, 0)
	require.Len(t, out, 4)
	assert.Equal(t, ir.OpLoadLocal, out[0].Op)
	assert.Equal(t, ir.OpLen, out[1].Op)
	assert.Equal(t, value.Int(0), out[2].Const)
	assert.Equal(t, ir.OpEq, out[3].Op)
}
