// Package vm implements the stack-machine interpreter (spec component C8):
// a value stack, a slot-indexed locals array per call, tail-call-optimized
// self-recursion, closures, exception handling via a catch-stack, and the
// single-threaded cooperative concurrency model.
//
// The teacher's internal/vm/vm.go drives a single big EnhancedVM.Run loop
// over a flat byte Chunk, with frames kept in a preallocated array. This
// keeps that shape — one dispatch loop, one switch over every opcode — but
// walks a typed []ir.Instruction slice instead of decoding bytes, and models
// a call as a Go call (recursive execute/execFunction) rather than manual
// frame-array bookkeeping, since the IR's CompiledFunction already carries
// everything a frame needs.
package vm

import (
	"fmt"

	"vela/internal/errors"
	"vela/internal/ir"
	"vela/internal/value"
)

// MaxRecursionDepth is the default bound on named (non-tail) self-recursion
// (spec §4.7); configurable per-VM via New.
const MaxRecursionDepth = 1000

// BuiltinFunc backs CallBuiltin/MethodCall and CallFfi resolution; args
// arrive evaluated, in call order.
type BuiltinFunc func(vm *VM, args []value.Value) (value.Value, *errors.RuntimeError)

// frame is a call's locals plus the name-keyed environment a closure
// installs for its captured free variables (spec §4.7 "installs the
// captured environment as locals").
type frame struct {
	locals   []value.Value
	captured map[string]value.Value
}

func (fr *frame) load(name string) (value.Value, *errors.RuntimeError) {
	if fr.captured != nil {
		if v, ok := fr.captured[name]; ok {
			return v, nil
		}
	}
	return nil, errors.NewUndefinedVariable(name)
}

func (fr *frame) store(name string, v value.Value) {
	if fr.captured == nil {
		fr.captured = make(map[string]value.Value)
	}
	fr.captured[name] = v
}

// catchRecord snapshots enough state at SetCatch to restore it exactly on
// a caught error (spec §4.7, testable property P8).
type catchRecord struct {
	handlerIP   int
	stackHeight int
	locals      []value.Value
}

type closureBody struct {
	params []string
	body   []ir.Instruction
}

// VM owns all program-lifetime state: loaded functions, the closure store,
// builtins, and the recursion-depth counter (spec §4.7 "State").
type VM struct {
	functions map[string]*ir.CompiledFunction
	builtins  map[string]BuiltinFunc

	closures      map[uint32]*closureBody
	nextClosureID uint32

	depth             int
	maxRecursionDepth int

	// parallelCollections records the flag passed to New. Nothing reads it:
	// ParallelMap/Filter/Reduce always run sequentially, exactly like
	// Map/Filter/Reduce.
	parallelCollections bool
}

// New constructs a VM. maxRecursionDepth <= 0 uses MaxRecursionDepth.
func New(maxRecursionDepth int, parallelCollections bool) *VM {
	if maxRecursionDepth <= 0 {
		maxRecursionDepth = MaxRecursionDepth
	}
	return &VM{
		functions:           make(map[string]*ir.CompiledFunction),
		builtins:            make(map[string]BuiltinFunc),
		closures:            make(map[uint32]*closureBody),
		maxRecursionDepth:   maxRecursionDepth,
		parallelCollections: parallelCollections,
	}
}

// LoadFunctions registers the lowerer's output for CallFunction/Call/
// SelfCall resolution.
func (vm *VM) LoadFunctions(fns []*ir.CompiledFunction) {
	for _, fn := range fns {
		vm.functions[fn.Name] = fn
	}
}

// RegisterBuiltin wires a CallBuiltin/MethodCall name to a Go implementation
// (string/array/map methods, `str`, FFI shims, ...).
func (vm *VM) RegisterBuiltin(name string, fn BuiltinFunc) {
	vm.builtins[name] = fn
}

// CallFunction is the VM's public runtime API (spec §6c): resolve name,
// run with args bound to its first locals, return its value or the
// propagated RuntimeError.
func (vm *VM) CallFunction(name string, args []value.Value) (value.Value, *errors.RuntimeError) {
	fn, ok := vm.functions[name]
	if !ok {
		return nil, errors.NewUndefinedFunction(name)
	}
	return vm.execFunction(fn, args)
}

// execFunction is the depth-tracked calling convention of spec §4.7: resolve,
// increment depth (bounded by maxRecursionDepth), run, decrement. Only named,
// non-tail invocation goes through here — TailSelfCall loops in place inside
// execute without ever reaching this function again.
func (vm *VM) execFunction(fn *ir.CompiledFunction, args []value.Value) (value.Value, *errors.RuntimeError) {
	vm.depth++
	if vm.depth > vm.maxRecursionDepth {
		vm.depth--
		return nil, errors.NewMaxRecursionDepth()
	}
	locals := make([]value.Value, fn.LocalCount)
	copy(locals, args)
	fr := &frame{locals: locals}
	result, rerr := vm.execute(fn.Instructions, fr, fn.Name, nil, true)
	vm.depth--
	return result, rerr
}

// execute is the shared interpreter loop. instrs is the instruction slice
// for this invocation (a function body, a closure body, or a Map/Filter/
// Reduce element body); fr is its locals/captured environment; selfName
// names the enclosing function for SelfCall/TailSelfCall resolution.
//
// initStack seeds the stack (Map/Filter/Reduce element bodies start with
// the element, or accumulator-then-element, already "pushed"). isFunctionBody
// controls two things: whether TailSelfCall is legal here (only true at the
// top of a function or closure body — never inside an element body, which
// is never a tail position of its enclosing function), and what "falling off
// the end" means: Void for a function body (implicit return, spec I6),
// or "pop and return the one value the body computed" for an element body.
func (vm *VM) execute(instrs []ir.Instruction, fr *frame, selfName string, initStack []value.Value, isFunctionBody bool) (value.Value, *errors.RuntimeError) {
	stack := append([]value.Value{}, initStack...)
	var catchStack []catchRecord
	ip := 0

	// handleError applies the innermost active catch (spec §4.7, P8) and
	// reports whether the error was absorbed (false) or must propagate
	// further up the Go call stack (true, with the error to propagate).
	handleError := func(rerr *errors.RuntimeError) (*errors.RuntimeError, bool) {
		if !rerr.IsCatchable() || len(catchStack) == 0 {
			return rerr, true
		}
		rec := catchStack[len(catchStack)-1]
		catchStack = catchStack[:len(catchStack)-1]
		if rec.stackHeight > len(stack) {
			return errors.NewInternal("catch snapshot height exceeds current stack"), true
		}
		stack = stack[:rec.stackHeight]
		fr.locals = append([]value.Value{}, rec.locals...)
		stack = append(stack, &value.Error{Message: rerr.Error()})
		ip = rec.handlerIP
		return nil, false
	}

	for {
		if ip >= len(instrs) {
			if isFunctionBody {
				return value.Void{}, nil
			}
			v, rerr := pop(&stack)
			if rerr != nil {
				return nil, rerr
			}
			return v, nil
		}
		if ip < 0 {
			return nil, errors.NewInternal("jump target %d out of bounds", ip)
		}
		instr := instrs[ip]
		next := ip + 1

		var rerr *errors.RuntimeError
		switch instr.Op {

		case ir.OpConst:
			push(&stack, instr.Const)

		case ir.OpPop:
			_, rerr = pop(&stack)

		case ir.OpDup:
			if len(stack) == 0 {
				rerr = errors.NewStackUnderflow()
			} else {
				push(&stack, stack[len(stack)-1])
			}

		case ir.OpLoad:
			var v value.Value
			v, rerr = fr.load(instr.Name)
			if rerr == nil {
				push(&stack, v)
			}

		case ir.OpLoadLocal:
			if int(instr.Slot) >= len(fr.locals) {
				rerr = errors.NewInternal("local slot %d out of range", instr.Slot)
			} else {
				push(&stack, fr.locals[instr.Slot])
			}

		case ir.OpStore:
			var v value.Value
			v, rerr = pop(&stack)
			if rerr == nil {
				fr.store(instr.Name, v)
			}

		case ir.OpStoreLocal:
			var v value.Value
			v, rerr = pop(&stack)
			if rerr == nil {
				if int(instr.Slot) >= len(fr.locals) {
					rerr = errors.NewInternal("local slot %d out of range", instr.Slot)
				} else {
					fr.locals[instr.Slot] = v
				}
			}

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
			rerr = binArith(&stack, instr.Op)

		case ir.OpNeg:
			rerr = negate(&stack)

		case ir.OpNot:
			var a value.Value
			a, rerr = pop(&stack)
			if rerr == nil {
				push(&stack, value.Bool(!value.IsTruthy(a)))
			}

		case ir.OpEq, ir.OpNeq:
			var a, b value.Value
			b, rerr = pop(&stack)
			if rerr == nil {
				a, rerr = pop(&stack)
			}
			if rerr == nil {
				eq := value.Equal(a, b)
				if instr.Op == ir.OpNeq {
					eq = !eq
				}
				push(&stack, value.Bool(eq))
			}

		case ir.OpLt, ir.OpGt, ir.OpLte, ir.OpGte:
			rerr = compare(&stack, instr.Op)

		case ir.OpAnd:
			var a, b value.Value
			b, rerr = pop(&stack)
			if rerr == nil {
				a, rerr = pop(&stack)
			}
			if rerr == nil {
				push(&stack, value.Bool(value.IsTruthy(a) && value.IsTruthy(b)))
			}

		case ir.OpOr:
			var a, b value.Value
			b, rerr = pop(&stack)
			if rerr == nil {
				a, rerr = pop(&stack)
			}
			if rerr == nil {
				push(&stack, value.Bool(value.IsTruthy(a) || value.IsTruthy(b)))
			}

		case ir.OpLen:
			var a value.Value
			a, rerr = pop(&stack)
			if rerr == nil {
				n, err := value.Len(a)
				if err != nil {
					rerr = errors.NewTypeError(err.Error())
				} else {
					push(&stack, value.Int(int64(n)))
				}
			}

		case ir.OpIndex:
			rerr = index(&stack)

		case ir.OpGetField:
			var obj value.Value
			obj, rerr = pop(&stack)
			if rerr == nil {
				s, ok := obj.(*value.Struct)
				if !ok {
					rerr = errors.NewTypeError("GetField on non-struct value")
				} else {
					v, ok := s.Fields.Get(instr.Name)
					if !ok {
						rerr = errors.NewInvalidFieldAccess(instr.Name)
					} else {
						push(&stack, v)
					}
				}
			}

		case ir.OpMakeArray:
			var elems []value.Value
			elems, rerr = popN(&stack, instr.N)
			if rerr == nil {
				push(&stack, &value.Array{Elements: elems})
			}

		case ir.OpMakeSet:
			var elems []value.Value
			elems, rerr = popN(&stack, instr.N)
			if rerr == nil {
				push(&stack, value.NewSet(elems...))
			}

		case ir.OpMakeStruct:
			rerr = makeStruct(&stack, instr)

		case ir.OpSlice:
			rerr = doSlice(&stack)

		case ir.OpRange:
			rerr = doRange(&stack)

		case ir.OpContains:
			rerr = doContains(&stack)

		case ir.OpConcat:
			rerr = doConcat(&stack)

		case ir.OpMap:
			rerr = vm.higherOrderMap(&stack, instr, fr, selfName)

		case ir.OpFilter:
			rerr = vm.higherOrderFilter(&stack, instr, fr, selfName)

		case ir.OpReduce:
			rerr = vm.higherOrderReduce(&stack, instr, fr, selfName)

		case ir.OpMapMulConst, ir.OpMapAddConst, ir.OpMapSubConst, ir.OpMapDivConst:
			rerr = peepholeMapConst(&stack, instr)

		case ir.OpFilterGtConst, ir.OpFilterLtConst, ir.OpFilterGteConst,
			ir.OpFilterLteConst, ir.OpFilterEqConst, ir.OpFilterNeqConst,
			ir.OpFilterEven, ir.OpFilterOdd:
			rerr = peepholeFilterConst(&stack, instr)

		case ir.OpCall:
			rerr = vm.call(&stack, instr)

		case ir.OpCallBuiltin:
			rerr = vm.callBuiltin(&stack, instr)

		case ir.OpCallFfi:
			rerr = vm.callFfi(&stack, instr)

		case ir.OpSelfCall, ir.OpTailSelfCall:
			var args []value.Value
			args, rerr = popN(&stack, instr.N)
			if rerr == nil {
				if selfName == "" {
					rerr = errors.NewInternal("SelfCall outside a function")
				} else if instr.Op == ir.OpTailSelfCall {
					if !isFunctionBody {
						rerr = errors.NewInternal("TailSelfCall outside a self-call position")
					} else {
						// TCO: rewrite in place, no Go call, no depth increment.
						stack = stack[:0]
						for i := range fr.locals {
							fr.locals[i] = nil
						}
						copy(fr.locals, args)
						catchStack = catchStack[:0]
						ip = 0
						continue
					}
				} else {
					fn, ok := vm.functions[selfName]
					if !ok {
						rerr = errors.NewUndefinedFunction(selfName)
					} else {
						var result value.Value
						result, rerr = vm.execFunction(fn, args)
						if rerr == nil {
							push(&stack, result)
						}
					}
				}
			}

		case ir.OpMakeClosure:
			makeClosureInstr(vm, &stack, instr, fr)

		case ir.OpCallClosure:
			rerr = vm.callClosure(&stack, instr)

		case ir.OpJump:
			ip = next + int(instr.Offset)
			if ip < 0 || ip > len(instrs) {
				rerr = errors.NewInternal("jump target %d out of bounds", ip)
			} else {
				continue
			}

		case ir.OpJumpIf, ir.OpJumpIfNot:
			var cond value.Value
			cond, rerr = pop(&stack)
			if rerr == nil {
				truthy := value.IsTruthy(cond)
				take := (instr.Op == ir.OpJumpIf && truthy) || (instr.Op == ir.OpJumpIfNot && !truthy)
				if take {
					target := next + int(instr.Offset)
					if target < 0 || target > len(instrs) {
						rerr = errors.NewInternal("jump target %d out of bounds", target)
					} else {
						ip = target
						continue
					}
				}
			}

		case ir.OpReturn:
			v, e := pop(&stack)
			if e != nil {
				return nil, e
			}
			return v, nil

		case ir.OpNop:
			// no-op

		case ir.OpHalt:
			v, _ := pop(&stack)
			return v, nil

		case ir.OpSetCatch:
			target := next + int(instr.Offset)
			if target < 0 || target > len(instrs) {
				rerr = errors.NewInternal("catch handler %d out of bounds", target)
			} else {
				catchStack = append(catchStack, catchRecord{
					handlerIP:   target,
					stackHeight: len(stack),
					locals:      append([]value.Value{}, fr.locals...),
				})
			}

		case ir.OpClearCatch:
			if len(catchStack) == 0 {
				rerr = errors.NewInternal("ClearCatch with no active catch")
			} else {
				catchStack = catchStack[:len(catchStack)-1]
			}

		case ir.OpError:
			var msg value.Value
			msg, rerr = pop(&stack)
			if rerr == nil {
				rerr = errors.NewTypeError(value.String_(msg))
			}

		case ir.OpTry:
			rerr = doTry(&stack)

		case ir.OpCoalesce:
			rerr = doCoalesce(&stack)

		case ir.OpSpawn:
			var v value.Value
			v, rerr = pop(&stack)
			if rerr == nil {
				if fut, ok := v.(*value.Future); ok {
					push(&stack, fut)
				} else {
					push(&stack, &value.Future{Inner: v})
				}
			}

		case ir.OpAwait:
			var v value.Value
			v, rerr = pop(&stack)
			if rerr == nil {
				if fut, ok := v.(*value.Future); ok {
					push(&stack, fut.Inner)
				} else {
					push(&stack, v)
				}
			}

		case ir.OpSend:
			rerr = doSend(&stack)

		case ir.OpRecv:
			rerr = doRecv(&stack)

		case ir.OpParallelMap:
			rerr = vm.higherOrderMap(&stack, instr, fr, selfName)

		case ir.OpParallelFilter:
			rerr = vm.higherOrderFilter(&stack, instr, fr, selfName)

		case ir.OpParallelReduce:
			rerr = vm.higherOrderReduce(&stack, instr, fr, selfName)

		default:
			rerr = errors.NewInternal("unhandled opcode %s", instr.Op)
		}

		if rerr != nil {
			propagate, fatal := handleError(rerr)
			if fatal {
				return nil, propagate
			}
			continue
		}
		ip = next
	}
}

func push(stack *[]value.Value, v value.Value) { *stack = append(*stack, v) }

func pop(stack *[]value.Value) (value.Value, *errors.RuntimeError) {
	s := *stack
	if len(s) == 0 {
		return nil, errors.NewStackUnderflow()
	}
	v := s[len(s)-1]
	*stack = s[:len(s)-1]
	return v, nil
}

// popN pops n values and returns them in their original push order.
func popN(stack *[]value.Value, n int) ([]value.Value, *errors.RuntimeError) {
	s := *stack
	if len(s) < n {
		return nil, errors.NewStackUnderflow()
	}
	start := len(s) - n
	out := append([]value.Value(nil), s[start:]...)
	*stack = s[:start]
	return out, nil
}

func binArith(stack *[]value.Value, op ir.OpCode) *errors.RuntimeError {
	b, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	a, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	var res value.Value
	var err error
	switch op {
	case ir.OpAdd:
		res, err = value.Add(a, b)
	case ir.OpSub:
		res, err = value.Sub(a, b)
	case ir.OpMul:
		res, err = value.Mul(a, b)
	case ir.OpDiv:
		res, err = value.Div(a, b)
	case ir.OpMod:
		res, err = value.Mod(a, b)
	}
	if err != nil {
		if err == value.DivisionByZero {
			return errors.NewDivisionByZero()
		}
		return errors.NewTypeError(err.Error())
	}
	push(stack, res)
	return nil
}

func negate(stack *[]value.Value) *errors.RuntimeError {
	a, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	switch x := a.(type) {
	case value.Int:
		push(stack, -x)
	case value.Float:
		push(stack, -x)
	default:
		return errors.NewTypeError("unary - on non-numeric value")
	}
	return nil
}

func compare(stack *[]value.Value, op ir.OpCode) *errors.RuntimeError {
	b, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	a, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	c := value.Compare(a, b)
	var res bool
	switch op {
	case ir.OpLt:
		res = c < 0
	case ir.OpGt:
		res = c > 0
	case ir.OpLte:
		res = c <= 0
	case ir.OpGte:
		res = c >= 0
	}
	push(stack, value.Bool(res))
	return nil
}

func index(stack *[]value.Value) *errors.RuntimeError {
	idx, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	obj, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	switch x := obj.(type) {
	case *value.Array:
		i, ok := value.AsInt(idx)
		if !ok {
			return errors.NewTypeError("array index must be numeric")
		}
		ii := int(i)
		if ii < 0 || ii >= len(x.Elements) {
			return errors.NewIndexOutOfBounds(ii, len(x.Elements))
		}
		push(stack, x.Elements[ii])
	case *value.Map:
		v, ok := x.Get(value.String_(idx))
		if !ok {
			return errors.NewInvalidFieldAccess(value.String_(idx))
		}
		push(stack, v)
	case *value.Struct:
		v, ok := x.Fields.Get(value.String_(idx))
		if !ok {
			return errors.NewInvalidFieldAccess(value.String_(idx))
		}
		push(stack, v)
	case value.String:
		i, ok := value.AsInt(idx)
		if !ok {
			return errors.NewTypeError("string index must be numeric")
		}
		runes := []rune(string(x))
		ii := int(i)
		if ii < 0 || ii >= len(runes) {
			return errors.NewIndexOutOfBounds(ii, len(runes))
		}
		push(stack, value.String(string(runes[ii])))
	default:
		return errors.NewTypeError("value is not indexable")
	}
	return nil
}

// makeStruct builds either a *value.Struct (the general case, fields
// assigned by name in push order) or — when Fields is the single sentinel
// "__map__" the lowerer emits for a surface MapLit — a *value.Map built
// from N/2 key/value pairs in push order (spec §3's Map is string-keyed;
// non-string keys stringify via value.String_, same rendering used
// everywhere else a Value needs a string form).
func makeStruct(stack *[]value.Value, instr ir.Instruction) *errors.RuntimeError {
	if len(instr.Fields) == 1 && instr.Fields[0] == "__map__" {
		vals, rerr := popN(stack, instr.N)
		if rerr != nil {
			return rerr
		}
		m := value.NewMap()
		for i := 0; i+1 < len(vals); i += 2 {
			m.Set(value.String_(vals[i]), vals[i+1])
		}
		push(stack, m)
		return nil
	}
	vals, rerr := popN(stack, len(instr.Fields))
	if rerr != nil {
		return rerr
	}
	s := value.NewStruct()
	for i, f := range instr.Fields {
		s.Fields.Set(f, vals[i])
	}
	push(stack, s)
	return nil
}

func doSlice(stack *[]value.Value) *errors.RuntimeError {
	end, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	start, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	obj, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	si, ok1 := value.AsInt(start)
	ei, ok2 := value.AsInt(end)
	if !ok1 || !ok2 {
		return errors.NewTypeError("slice bounds must be numeric")
	}
	switch x := obj.(type) {
	case *value.Array:
		lo, hi, err := clampSlice(int(si), int(ei), len(x.Elements))
		if err != nil {
			return err
		}
		out := append([]value.Value(nil), x.Elements[lo:hi]...)
		push(stack, &value.Array{Elements: out})
	case value.String:
		runes := []rune(string(x))
		lo, hi, err := clampSlice(int(si), int(ei), len(runes))
		if err != nil {
			return err
		}
		push(stack, value.String(string(runes[lo:hi])))
	default:
		return errors.NewTypeError("value is not sliceable")
	}
	return nil
}

func clampSlice(lo, hi, length int) (int, int, *errors.RuntimeError) {
	if lo < 0 || hi > length || lo > hi {
		return 0, 0, errors.NewIndexOutOfBounds(lo, length)
	}
	return lo, hi, nil
}

func doRange(stack *[]value.Value) *errors.RuntimeError {
	hi, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	lo, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	li, ok1 := value.AsInt(lo)
	hiv, ok2 := value.AsInt(hi)
	if !ok1 || !ok2 {
		return errors.NewTypeError("range bounds must be numeric")
	}
	var elems []value.Value
	for i := int64(li); i < int64(hiv); i++ {
		elems = append(elems, value.Int(i))
	}
	push(stack, &value.Array{Elements: elems})
	return nil
}

func doContains(stack *[]value.Value) *errors.RuntimeError {
	needle, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	obj, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	switch x := obj.(type) {
	case *value.Array:
		for _, e := range x.Elements {
			if value.Equal(e, needle) {
				push(stack, value.Bool(true))
				return nil
			}
		}
		push(stack, value.Bool(false))
	case *value.Set:
		push(stack, value.Bool(x.Contains(needle)))
	case *value.Map:
		_, ok := x.Get(value.String_(needle))
		push(stack, value.Bool(ok))
	case value.String:
		ns, ok := needle.(value.String)
		if !ok {
			return errors.NewTypeError("Contains on string requires a string needle")
		}
		push(stack, value.Bool(containsSubstring(string(x), string(ns))))
	default:
		return errors.NewTypeError("value does not support Contains")
	}
	return nil
}

func containsSubstring(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func doConcat(stack *[]value.Value) *errors.RuntimeError {
	b, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	a, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	if as, ok := a.(value.String); ok {
		push(stack, value.String(string(as)+value.String_(b)))
		return nil
	}
	if aa, ok := a.(*value.Array); ok {
		ba, ok := b.(*value.Array)
		if !ok {
			return errors.NewTypeError("Concat requires two arrays")
		}
		out := append([]value.Value(nil), aa.Elements...)
		out = append(out, ba.Elements...)
		push(stack, &value.Array{Elements: out})
		return nil
	}
	return errors.NewTypeError("Concat requires strings or arrays")
}

// iterableElements accepts Array or Set for Map/Filter/Reduce/Range
// receivers; anything else is a TypeError.
func iterableElements(v value.Value) ([]value.Value, *errors.RuntimeError) {
	switch x := v.(type) {
	case *value.Array:
		return x.Elements, nil
	case *value.Set:
		return x.Elements(), nil
	default:
		return nil, errors.NewTypeError("value is not iterable")
	}
}

func (vm *VM) higherOrderMap(stack *[]value.Value, instr ir.Instruction, fr *frame, selfName string) *errors.RuntimeError {
	recv, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	elems, rerr := iterableElements(recv)
	if rerr != nil {
		return rerr
	}
	out := make([]value.Value, len(elems))
	for i, el := range elems {
		res, rerr := vm.execute(instr.Body, fr, selfName, []value.Value{el}, false)
		if rerr != nil {
			return rerr
		}
		out[i] = res
	}
	push(stack, &value.Array{Elements: out})
	return nil
}

func (vm *VM) higherOrderFilter(stack *[]value.Value, instr ir.Instruction, fr *frame, selfName string) *errors.RuntimeError {
	recv, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	elems, rerr := iterableElements(recv)
	if rerr != nil {
		return rerr
	}
	var out []value.Value
	for _, el := range elems {
		res, rerr := vm.execute(instr.Body, fr, selfName, []value.Value{el}, false)
		if rerr != nil {
			return rerr
		}
		if value.IsTruthy(res) {
			out = append(out, el)
		}
	}
	push(stack, &value.Array{Elements: out})
	return nil
}

func (vm *VM) higherOrderReduce(stack *[]value.Value, instr ir.Instruction, fr *frame, selfName string) *errors.RuntimeError {
	if instr.ReduceKind == ir.ReduceCustom {
		initVal, rerr := pop(stack)
		if rerr != nil {
			return rerr
		}
		recv, rerr := pop(stack)
		if rerr != nil {
			return rerr
		}
		elems, rerr := iterableElements(recv)
		if rerr != nil {
			return rerr
		}
		acc := initVal
		for _, el := range elems {
			res, rerr := vm.execute(instr.Body, fr, selfName, []value.Value{acc, el}, false)
			if rerr != nil {
				return rerr
			}
			acc = res
		}
		push(stack, acc)
		return nil
	}

	recv, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	elems, rerr := iterableElements(recv)
	if rerr != nil {
		return rerr
	}
	push(stack, builtinReduce(instr.ReduceKind, elems))
	return nil
}

func builtinReduce(kind ir.ReduceKind, elems []value.Value) value.Value {
	switch kind {
	case ir.ReduceSum:
		var acc value.Value = value.Int(0)
		for _, e := range elems {
			acc, _ = value.Add(acc, e)
		}
		return acc
	case ir.ReduceProduct:
		var acc value.Value = value.Int(1)
		for _, e := range elems {
			acc, _ = value.Mul(acc, e)
		}
		return acc
	case ir.ReduceMin:
		if len(elems) == 0 {
			return value.Void{}
		}
		acc := elems[0]
		for _, e := range elems[1:] {
			if value.Compare(e, acc) < 0 {
				acc = e
			}
		}
		return acc
	case ir.ReduceMax:
		if len(elems) == 0 {
			return value.Void{}
		}
		acc := elems[0]
		for _, e := range elems[1:] {
			if value.Compare(e, acc) > 0 {
				acc = e
			}
		}
		return acc
	case ir.ReduceAll:
		for _, e := range elems {
			if !value.IsTruthy(e) {
				return value.Bool(false)
			}
		}
		return value.Bool(true)
	case ir.ReduceAny:
		for _, e := range elems {
			if value.IsTruthy(e) {
				return value.Bool(true)
			}
		}
		return value.Bool(false)
	case ir.ReduceCount:
		return value.Int(int64(len(elems)))
	case ir.ReduceFirst:
		if len(elems) == 0 {
			return value.Void{}
		}
		return elems[0]
	case ir.ReduceLast:
		if len(elems) == 0 {
			return value.Void{}
		}
		return elems[len(elems)-1]
	case ir.ReduceAvg:
		if len(elems) == 0 {
			return value.Void{}
		}
		var sum value.Value = value.Int(0)
		for _, e := range elems {
			sum, _ = value.Add(sum, e)
		}
		sf, _ := value.AsFloat(sum)
		return value.Float(float64(sf) / float64(len(elems)))
	default:
		return value.Void{}
	}
}

func peepholeMapConst(stack *[]value.Value, instr ir.Instruction) *errors.RuntimeError {
	recv, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	elems, rerr := iterableElements(recv)
	if rerr != nil {
		return rerr
	}
	k := value.Int(int64(instr.N))
	out := make([]value.Value, len(elems))
	for i, el := range elems {
		var res value.Value
		var err error
		switch instr.Op {
		case ir.OpMapMulConst:
			res, err = value.Mul(el, k)
		case ir.OpMapAddConst:
			res, err = value.Add(el, k)
		case ir.OpMapSubConst:
			res, err = value.Sub(el, k)
		case ir.OpMapDivConst:
			res, err = value.Div(el, k)
		}
		if err != nil {
			if err == value.DivisionByZero {
				return errors.NewDivisionByZero()
			}
			return errors.NewTypeError(err.Error())
		}
		out[i] = res
	}
	push(stack, &value.Array{Elements: out})
	return nil
}

func peepholeFilterConst(stack *[]value.Value, instr ir.Instruction) *errors.RuntimeError {
	recv, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	elems, rerr := iterableElements(recv)
	if rerr != nil {
		return rerr
	}
	k := value.Int(int64(instr.N))
	var out []value.Value
	for _, el := range elems {
		var keep bool
		switch instr.Op {
		case ir.OpFilterGtConst:
			keep = value.Compare(el, k) > 0
		case ir.OpFilterLtConst:
			keep = value.Compare(el, k) < 0
		case ir.OpFilterGteConst:
			keep = value.Compare(el, k) >= 0
		case ir.OpFilterLteConst:
			keep = value.Compare(el, k) <= 0
		case ir.OpFilterEqConst:
			keep = value.Equal(el, k)
		case ir.OpFilterNeqConst:
			keep = !value.Equal(el, k)
		case ir.OpFilterEven:
			i, ok := value.AsInt(el)
			keep = ok && i%2 == 0
		case ir.OpFilterOdd:
			i, ok := value.AsInt(el)
			keep = ok && i%2 != 0
		}
		if keep {
			out = append(out, el)
		}
	}
	push(stack, &value.Array{Elements: out})
	return nil
}

func (vm *VM) call(stack *[]value.Value, instr ir.Instruction) *errors.RuntimeError {
	args, rerr := popN(stack, instr.N)
	if rerr != nil {
		return rerr
	}
	fn, ok := vm.functions[instr.Name]
	if !ok {
		return errors.NewUndefinedFunction(instr.Name)
	}
	result, rerr := vm.execFunction(fn, args)
	if rerr != nil {
		return rerr
	}
	push(stack, result)
	return nil
}

func (vm *VM) callBuiltin(stack *[]value.Value, instr ir.Instruction) *errors.RuntimeError {
	args, rerr := popN(stack, instr.N)
	if rerr != nil {
		return rerr
	}
	fn, ok := vm.builtins[instr.Name]
	if !ok {
		return errors.NewUndefinedFunction(instr.Name)
	}
	result, rerr := fn(vm, args)
	if rerr != nil {
		return rerr
	}
	push(stack, result)
	return nil
}

func (vm *VM) callFfi(stack *[]value.Value, instr ir.Instruction) *errors.RuntimeError {
	args, rerr := popN(stack, instr.N)
	if rerr != nil {
		return rerr
	}
	fn, ok := vm.builtins[instr.Lib+"::"+instr.Extern]
	if !ok {
		return errors.NewUndefinedFunction(fmt.Sprintf("%s::%s", instr.Lib, instr.Extern))
	}
	result, rerr := fn(vm, args)
	if rerr != nil {
		return rerr
	}
	push(stack, result)
	return nil
}

func makeClosureInstr(vm *VM, stack *[]value.Value, instr ir.Instruction, fr *frame) {
	id := vm.nextClosureID
	vm.nextClosureID++
	vm.closures[id] = &closureBody{params: instr.Params, body: instr.Body}

	captured := make(map[string]value.Value, len(instr.Fields))
	for i, name := range instr.Fields {
		if i < len(instr.CaptureSlots) && int(instr.CaptureSlots[i]) < len(fr.locals) {
			captured[name] = fr.locals[instr.CaptureSlots[i]]
		}
	}
	push(stack, &value.Closure{
		Params:     instr.Params,
		Captured:   captured,
		BodyID:     id,
		SelfName:   instr.Name,
		LocalCount: uint16(instr.N),
	})
}

// callClosure implements spec §4.7: pop n args then the closure, install
// its captured environment, bind parameters into their own slots, run the
// body, push the result. Each call gets a fresh locals array and a copy of
// Captured, so mutation inside one call never leaks into the closure value
// itself (capture-by-value, testable property P9).
func (vm *VM) callClosure(stack *[]value.Value, instr ir.Instruction) *errors.RuntimeError {
	closureVal, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	clo, ok := closureVal.(*value.Closure)
	if !ok {
		return errors.NewTypeError("CallClosure on a non-closure value")
	}
	args, rerr := popN(stack, instr.N)
	if rerr != nil {
		return rerr
	}
	body, ok := vm.closures[clo.BodyID]
	if !ok {
		return errors.NewInternal("closure body id %d not found", clo.BodyID)
	}

	locals := make([]value.Value, clo.LocalCount)
	copy(locals, args)
	captured := make(map[string]value.Value, len(clo.Captured))
	for k, v := range clo.Captured {
		captured[k] = v
	}
	fr := &frame{locals: locals, captured: captured}

	result, rerr := vm.execute(body.body, fr, clo.SelfName, nil, true)
	if rerr != nil {
		return rerr
	}
	push(stack, result)
	return nil
}

func doTry(stack *[]value.Value) *errors.RuntimeError {
	v, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	switch x := v.(type) {
	case *value.Optional:
		if !x.Present {
			return errors.NewTypeError("unwrap of None")
		}
		push(stack, x.Inner)
	case *value.Error:
		return errors.NewTypeError(x.Message)
	default:
		push(stack, v)
	}
	return nil
}

func doCoalesce(stack *[]value.Value) *errors.RuntimeError {
	v, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	switch x := v.(type) {
	case *value.Optional:
		if !x.Present {
			return errors.NewTypeError("unwrap of None")
		}
		push(stack, x.Inner)
	case *value.Error:
		return errors.NewTypeError(x.Message)
	default:
		push(stack, v)
	}
	return nil
}

// doSend/doRecv implement the bounded-FIFO channel semantics of spec §5 in
// the single-threaded fallback: a Send/Recv that cannot complete
// immediately fails rather than blocking, since there is no second thread
// that could ever make it ready.
func doSend(stack *[]value.Value) *errors.RuntimeError {
	v, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	ch, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	c, ok := ch.(*value.Channel)
	if !ok {
		return errors.NewTypeError("Send on a non-channel value")
	}
	if !c.TrySend(v) {
		return errors.NewTypeError("channel full (WouldBlock)")
	}
	push(stack, value.Void{})
	return nil
}

func doRecv(stack *[]value.Value) *errors.RuntimeError {
	ch, rerr := pop(stack)
	if rerr != nil {
		return rerr
	}
	c, ok := ch.(*value.Channel)
	if !ok {
		return errors.NewTypeError("Recv on a non-channel value")
	}
	v, ok := c.TryRecv()
	if !ok {
		return errors.NewTypeError("channel empty (WouldBlock)")
	}
	push(stack, v)
	return nil
}
