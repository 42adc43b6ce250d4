package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/errors"
	"vela/internal/ir"
	"vela/internal/value"
)

func loadOne(t *testing.T, fn *ir.CompiledFunction) *VM {
	t.Helper()
	v := New(0, false)
	v.LoadFunctions([]*ir.CompiledFunction{fn})
	return v
}

func TestArithmeticAndCall(t *testing.T) {
	fn := &ir.CompiledFunction{
		Name:       "add",
		Params:     []string{"a", "b"},
		LocalCount: 2,
		Instructions: []ir.Instruction{
			{Op: ir.OpLoadLocal, Slot: 0},
			{Op: ir.OpLoadLocal, Slot: 1},
			{Op: ir.OpAdd},
			{Op: ir.OpReturn},
		},
	}
	v := loadOne(t, fn)
	out, rerr := v.CallFunction("add", []value.Value{value.Int(2), value.Int(3)})
	require.Nil(t, rerr)
	assert.Equal(t, value.Int(5), out)
}

func TestCallFunctionUndefinedNameReturnsError(t *testing.T) {
	v := New(0, false)
	_, rerr := v.CallFunction("nope", nil)
	require.NotNil(t, rerr)
}

func TestFallingOffFunctionBodyReturnsVoid(t *testing.T) {
	fn := &ir.CompiledFunction{Name: "noop", Instructions: nil}
	v := loadOne(t, fn)
	out, rerr := v.CallFunction("noop", nil)
	require.Nil(t, rerr)
	assert.Equal(t, value.Void{}, out)
}

// TestTailSelfCallDoesNotGrowGoRecursionDepth exercises P2: a tail-recursive
// countdown compiled with OpTailSelfCall must not trip maxRecursionDepth no
// matter how many iterations it takes, since TCO rewrites the frame in place
// rather than re-entering execFunction.
func TestTailSelfCallDoesNotGrowGoRecursionDepth(t *testing.T) {
	// countdown(n, acc):
	//   if n <= 0 { return acc }
	//   return countdown(n - 1, acc + 1)   // tail position, compiled as TailSelfCall
	fn := &ir.CompiledFunction{
		Name:       "countdown",
		Params:     []string{"n", "acc"},
		LocalCount: 2,
		Instructions: []ir.Instruction{
			{Op: ir.OpLoadLocal, Slot: 0},              // 0: n
			{Op: ir.OpConst, Const: value.Int(0)},      // 1: 0
			{Op: ir.OpLte},                             // 2: n <= 0
			{Op: ir.OpJumpIfNot, Offset: 2},             // 3: if !(n<=0) jump to 6
			{Op: ir.OpLoadLocal, Slot: 1},               // 4: acc
			{Op: ir.OpReturn},                           // 5: return acc
			{Op: ir.OpLoadLocal, Slot: 0},               // 6: n
			{Op: ir.OpConst, Const: value.Int(1)},       // 7: 1
			{Op: ir.OpSub},                              // 8: n - 1
			{Op: ir.OpLoadLocal, Slot: 1},                // 9: acc
			{Op: ir.OpConst, Const: value.Int(1)},       // 10: 1
			{Op: ir.OpAdd},                              // 11: acc + 1
			{Op: ir.OpTailSelfCall, N: 2},                // 12: countdown(n-1, acc+1)
			{Op: ir.OpReturn},                            // 13: unreachable
		},
	}
	v := New(5, false) // a tiny recursion cap: TCO must never hit it
	v.LoadFunctions([]*ir.CompiledFunction{fn})
	out, rerr := v.CallFunction("countdown", []value.Value{value.Int(100000), value.Int(0)})
	require.Nil(t, rerr, "tail call must not hit the recursion cap: %v", rerr)
	assert.Equal(t, value.Int(100000), out)
}

// TestNonTailSelfCallHitsMaxRecursionDepth shows the contrast: a
// non-tail-position self-call (OpSelfCall) goes back through execFunction
// and does trip the depth bound.
func TestNonTailSelfCallHitsMaxRecursionDepth(t *testing.T) {
	fn := &ir.CompiledFunction{
		Name:       "loop",
		Params:     []string{"n"},
		LocalCount: 1,
		Instructions: []ir.Instruction{
			{Op: ir.OpLoadLocal, Slot: 0},
			{Op: ir.OpConst, Const: value.Int(1)},
			{Op: ir.OpAdd},
			{Op: ir.OpSelfCall, N: 1},
			{Op: ir.OpReturn},
		},
	}
	v := New(10, false)
	v.LoadFunctions([]*ir.CompiledFunction{fn})
	_, rerr := v.CallFunction("loop", []value.Value{value.Int(0)})
	require.NotNil(t, rerr)
}

func TestJumpSkipsInstructions(t *testing.T) {
	fn := &ir.CompiledFunction{
		Name: "f",
		Instructions: []ir.Instruction{
			{Op: ir.OpJump, Offset: 1},
			{Op: ir.OpConst, Const: value.Int(999)}, // skipped
			{Op: ir.OpConst, Const: value.Int(1)},
			{Op: ir.OpReturn},
		},
	}
	v := loadOne(t, fn)
	out, rerr := v.CallFunction("f", nil)
	require.Nil(t, rerr)
	assert.Equal(t, value.Int(1), out)
}

func TestClosureCapturesByValue(t *testing.T) {
	// make(x) returns a closure over x (captured at MakeClosure time);
	// mutating the outer local afterward must not affect the closure.
	closureBody := []ir.Instruction{
		{Op: ir.OpLoad, Name: "x"},
		{Op: ir.OpLoadLocal, Slot: 0},
		{Op: ir.OpAdd},
		{Op: ir.OpReturn},
	}
	fn := &ir.CompiledFunction{
		Name:       "make",
		Params:     []string{"x"},
		LocalCount: 2,
		Instructions: []ir.Instruction{
			{
				Op:           ir.OpMakeClosure,
				Name:         "make",
				Fields:       []string{"x"},
				CaptureSlots: []uint16{0},
				Params:       []string{"y"},
				Body:         closureBody,
				N:            1,
			},
			{Op: ir.OpStoreLocal, Slot: 1},
			{Op: ir.OpConst, Const: value.Int(999)},
			{Op: ir.OpStoreLocal, Slot: 0},
			{Op: ir.OpLoadLocal, Slot: 1},
			{Op: ir.OpConst, Const: value.Int(10)},
			{Op: ir.OpCallClosure, N: 1},
			{Op: ir.OpReturn},
		},
	}
	v := loadOne(t, fn)
	out, rerr := v.CallFunction("make", []value.Value{value.Int(5)})
	require.Nil(t, rerr)
	assert.Equal(t, value.Int(15), out, "closure should see x=5 as captured, not the later overwritten local")
}

// TestCatchStackRestoresStackHeightAndLocals exercises P8: SetCatch
// snapshots the stack height and locals, and an Error raised between
// SetCatch and ClearCatch restores exactly that snapshot rather than
// leaving partial stack garbage behind.
func TestCatchStackRestoresStackHeightAndLocals(t *testing.T) {
	fn := &ir.CompiledFunction{
		Name:       "f",
		Params:     []string{"n"},
		LocalCount: 1,
		Instructions: []ir.Instruction{
			{Op: ir.OpConst, Const: value.Int(42)}, // 0: pushed before the catch region; should survive
			{Op: ir.OpSetCatch, Offset: 3},          // 1: handler at 1+3+1 = 5
			{Op: ir.OpConst, Const: value.String("boom")}, // 2
			{Op: ir.OpError},                        // 3: raises, unwinds to handler
			{Op: ir.OpConst, Const: value.Int(-1)},  // 4: unreachable
			{Op: ir.OpPop},                          // 5: handler: drop the pushed *value.Error
			{Op: ir.OpLoadLocal, Slot: 0},            // 6
			{Op: ir.OpReturn},                        // 7
		},
	}
	v := loadOne(t, fn)
	out, rerr := v.CallFunction("f", []value.Value{value.Int(7)})
	require.Nil(t, rerr)
	assert.Equal(t, value.Int(7), out)
}

// TestUnwrapAbortsOnErrValue grounds the fix to doCoalesce: Unwrap (!) on
// a Result::Err must abort like Try does, not silently push the *value.Error
// through as if it were a plain value.
func TestUnwrapAbortsOnErrValue(t *testing.T) {
	fn := &ir.CompiledFunction{
		Name: "f",
		Instructions: []ir.Instruction{
			{Op: ir.OpConst, Const: &value.Error{Message: "boom"}},
			{Op: ir.OpCoalesce},
			{Op: ir.OpReturn},
		},
	}
	v := loadOne(t, fn)
	_, rerr := v.CallFunction("f", nil)
	require.NotNil(t, rerr, "Unwrap on Err must abort, not pass the error value through")
}

// TestUnwrapAbortsOnNoneValue is the contrast already covered indirectly by
// other suites; kept here to pin both aborting cases next to each other.
func TestUnwrapAbortsOnNoneValue(t *testing.T) {
	fn := &ir.CompiledFunction{
		Name: "f",
		Instructions: []ir.Instruction{
			{Op: ir.OpConst, Const: &value.Optional{Present: false}},
			{Op: ir.OpCoalesce},
			{Op: ir.OpReturn},
		},
	}
	v := loadOne(t, fn)
	_, rerr := v.CallFunction("f", nil)
	require.NotNil(t, rerr)
}

// TestUnwrapPassesThroughPresentOptional confirms the success path still
// unwraps a Some(x) to x.
func TestUnwrapPassesThroughPresentOptional(t *testing.T) {
	fn := &ir.CompiledFunction{
		Name: "f",
		Instructions: []ir.Instruction{
			{Op: ir.OpConst, Const: &value.Optional{Present: true, Inner: value.Int(9)}},
			{Op: ir.OpCoalesce},
			{Op: ir.OpReturn},
		},
	}
	v := loadOne(t, fn)
	out, rerr := v.CallFunction("f", nil)
	require.Nil(t, rerr)
	assert.Equal(t, value.Int(9), out)
}

func TestRegisterBuiltinIsCallable(t *testing.T) {
	v := New(0, false)
	v.RegisterBuiltin("double", func(_ *VM, args []value.Value) (value.Value, *errors.RuntimeError) {
		n := args[0].(value.Int)
		return value.Int(n * 2), nil
	})
	fn := &ir.CompiledFunction{
		Name: "f",
		Instructions: []ir.Instruction{
			{Op: ir.OpConst, Const: value.Int(21)},
			{Op: ir.OpCallBuiltin, Name: "double", N: 1},
			{Op: ir.OpReturn},
		},
	}
	v.LoadFunctions([]*ir.CompiledFunction{fn})
	out, rerr := v.CallFunction("f", nil)
	require.Nil(t, rerr)
	assert.Equal(t, value.Int(42), out)
}
