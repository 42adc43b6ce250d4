// Package lower implements the AST-to-IR lowerer (spec component C7): local
// slot allocation, peephole optimization of Map/Filter closures, tail-call
// detection for self-recursion, and pattern-predicate compilation.
//
// The teacher's internal/compiler/compiler.go walked the AST emitting a byte
// Chunk; this walks the same way (one lower* method per node kind, appending
// to a growing Instruction slice) but emits the typed ir.Instruction slice
// C2 defines instead of encoded bytes.
package lower

import (
	"vela/internal/ir"
	"vela/internal/parser"
	"vela/internal/types"
	"vela/internal/value"
)

// Lowerer turns one function's typed-AST body into a CompiledFunction. A
// fresh Lowerer is used per function; slot allocation never reuses indices
// within a function (spec invariant I1 only requires k < local_count, not
// minimality).
type Lowerer struct {
	tables   *types.Tables
	builtins map[string]bool
	ffi      map[string][2]string // name -> {lib, extern}

	locals   map[string]uint16
	nextSlot uint16

	// selfName is the enclosing function's name, so that a SelfCall/
	// TailSelfCall reached from inside a Lambda body (captured, not
	// inlined) still resolves to the function "self" meant at the call
	// site — lambdas have no name of their own to recurse on.
	selfName string
}

func New(tables *types.Tables, builtins map[string]bool, ffi map[string][2]string) *Lowerer {
	return &Lowerer{tables: tables, builtins: builtins, ffi: ffi}
}

// LowerFunction implements spec §4.6's per-function algorithm: clear local
// scope, assign parameters to slots 0..|params|, lower the body in tail
// position, append Return, record local_count.
func (l *Lowerer) LowerFunction(f parser.FunctionDecl) *ir.CompiledFunction {
	l.locals = make(map[string]uint16, len(f.Params))
	l.nextSlot = 0
	l.selfName = f.Name

	paramNames := make([]string, len(f.Params))
	for i, p := range f.Params {
		paramNames[i] = p.Name
		l.defineSlot(p.Name)
	}

	body := l.lower(f.Body, true)
	body = append(body, ir.Instruction{Op: ir.OpReturn, Span: spanOf(f.Span)})

	return &ir.CompiledFunction{
		Name:         f.Name,
		Params:       paramNames,
		Instructions: body,
		LocalCount:   l.nextSlot,
	}
}

func spanOf(s parser.Span) ir.Span { return ir.Span{Start: s.Start, End: s.End} }

func (l *Lowerer) defineSlot(name string) uint16 {
	slot := l.nextSlot
	l.locals[name] = slot
	l.nextSlot++
	return slot
}

func (l *Lowerer) slotOf(name string) (uint16, bool) {
	s, ok := l.locals[name]
	return s, ok
}

func toValue(v interface{}) value.Value {
	switch x := v.(type) {
	case int:
		return value.Int(int64(x))
	case int64:
		return value.Int(x)
	case float64:
		return value.Float(x)
	case float32:
		return value.Float(float64(x))
	case bool:
		return value.Bool(x)
	case string:
		return value.String(x)
	case []byte:
		return value.Bytes(x)
	case nil:
		return value.Void{}
	default:
		return value.Void{}
	}
}

// lower dispatches on concrete node type, the way the teacher's stmt/expr
// compiler pair did with a type switch over ast nodes rather than a visitor
// (the checker uses the visitor because ExprVisitor's interface-level
// exhaustiveness check matters more there; here every case returns the
// same []ir.Instruction so a type switch reads just as clearly).
func (l *Lowerer) lower(e parser.Expr, tail bool) []ir.Instruction {
	if e == nil {
		return []ir.Instruction{{Op: ir.OpConst, Const: value.Void{}}}
	}
	sp := spanOf(e.Span())

	switch n := e.(type) {
	case *parser.Literal:
		return []ir.Instruction{{Op: ir.OpConst, Span: sp, Const: toValue(n.Value)}}

	case *parser.StringInterp:
		return l.lowerStringInterp(n, sp)

	case *parser.Ident:
		if slot, ok := l.slotOf(n.Name); ok {
			return []ir.Instruction{{Op: ir.OpLoadLocal, Span: sp, Slot: slot}}
		}
		return []ir.Instruction{{Op: ir.OpLoad, Span: sp, Name: n.Name}}

	case *parser.SelfCall:
		out := l.lowerArgs(n.Args)
		op := ir.OpSelfCall
		if tail {
			op = ir.OpTailSelfCall
		}
		out = append(out, ir.Instruction{Op: op, Span: sp, N: len(n.Args)})
		return out

	case *parser.Binary:
		out := l.lower(n.Left, false)
		out = append(out, l.lower(n.Right, false)...)
		out = append(out, ir.Instruction{Op: binaryOp(n.Op), Span: sp})
		return out

	case *parser.Unary:
		out := l.lower(n.Operand, false)
		if n.Op == "-" {
			out = append(out, ir.Instruction{Op: ir.OpNeg, Span: sp})
		} else {
			out = append(out, ir.Instruction{Op: ir.OpNot, Span: sp})
		}
		return out

	case *parser.If:
		return l.lowerIf(n, tail, sp)

	case *parser.While:
		return l.lowerWhile(n, sp)

	case *parser.Let:
		return l.lowerLet(n, tail, sp)

	case *parser.Assign:
		// Assign is expression-valued: Dup before the store so one copy
		// survives on the stack after Store/StoreLocal consumes the other
		// (spec §4.6 "push the value back for expression-level use").
		out := l.lower(n.Value, false)
		out = append(out, ir.Instruction{Op: ir.OpDup, Span: sp})
		if slot, ok := l.slotOf(n.Name); ok {
			out = append(out, ir.Instruction{Op: ir.OpStoreLocal, Span: sp, Slot: slot})
		} else {
			out = append(out, ir.Instruction{Op: ir.OpStore, Span: sp, Name: n.Name})
		}
		return out

	case *parser.Call:
		return l.lowerCall(n, sp)

	case *parser.FieldAccess:
		out := l.lower(n.Object, false)
		out = append(out, ir.Instruction{Op: ir.OpGetField, Span: sp, Name: n.Field})
		return out

	case *parser.MethodCall:
		out := l.lower(n.Receiver, false)
		out = append(out, l.lowerArgs(n.Args)...)
		out = append(out, ir.Instruction{Op: ir.OpCallBuiltin, Span: sp, Name: n.Method, N: len(n.Args) + 1})
		return out

	case *parser.Index:
		out := l.lower(n.Object, false)
		out = append(out, l.lower(n.Index, false)...)
		out = append(out, ir.Instruction{Op: ir.OpIndex, Span: sp})
		return out

	case *parser.ArrayLit:
		out := l.lowerArgs(n.Elements)
		out = append(out, ir.Instruction{Op: ir.OpMakeArray, Span: sp, N: len(n.Elements)})
		return out

	case *parser.SetLit:
		out := l.lowerArgs(n.Elements)
		out = append(out, ir.Instruction{Op: ir.OpMakeSet, Span: sp, N: len(n.Elements)})
		return out

	case *parser.MapLit:
		var out []ir.Instruction
		for i := range n.Keys {
			out = append(out, l.lower(n.Keys[i], false)...)
			out = append(out, l.lower(n.Values[i], false)...)
		}
		out = append(out, ir.Instruction{Op: ir.OpMakeStruct, Span: sp, N: len(n.Keys) * 2, Fields: []string{"__map__"}})
		return out

	case *parser.StructLit:
		var out []ir.Instruction
		for _, v := range n.Values {
			out = append(out, l.lower(v, false)...)
		}
		fields := append([]string{"__type__"}, n.Fields...)
		out = append([]ir.Instruction{{Op: ir.OpConst, Span: sp, Const: value.String(n.TypeName)}}, out...)
		out = append(out, ir.Instruction{Op: ir.OpMakeStruct, Span: sp, Fields: fields})
		return out

	case *parser.TupleLit:
		out := l.lowerArgs(n.Elements)
		out = append(out, ir.Instruction{Op: ir.OpMakeArray, Span: sp, N: len(n.Elements)})
		return out

	case *parser.ListComp:
		return l.lowerListComp(n, sp)

	case *parser.MapOp:
		out := l.lower(n.Receiver, false)
		if op, k, ok := peepholeMap(n.ElemVar, n.Body); ok {
			out = append(out, ir.Instruction{Op: op, Span: sp, N: int(k)})
			return out
		}
		out = append(out, ir.Instruction{Op: ir.OpMap, Span: sp, Body: l.lowerElemBody(n.ElemVar, n.Body)})
		return out

	case *parser.FilterOp:
		out := l.lower(n.Receiver, false)
		if op, k, ok := peepholeFilter(n.ElemVar, n.Pred); ok {
			out = append(out, filterConstInstr(op, k, sp))
			return out
		}
		out = append(out, ir.Instruction{Op: ir.OpFilter, Span: sp, Body: l.lowerElemBody(n.ElemVar, n.Pred)})
		return out

	case *parser.ReduceOp:
		return l.lowerReduce(n, sp)

	case *parser.Match:
		return l.lowerMatch(n, tail, sp)

	case *parser.Try:
		out := l.lower(n.Inner, false)
		out = append(out, ir.Instruction{Op: ir.OpTry, Span: sp})
		return out

	case *parser.Unwrap:
		out := l.lower(n.Inner, false)
		out = append(out, ir.Instruction{Op: ir.OpCoalesce, Span: sp})
		return out

	case *parser.TryCatch:
		return l.lowerTryCatch(n, sp)

	case *parser.Spawn:
		out := l.lower(n.Inner, false)
		out = append(out, ir.Instruction{Op: ir.OpSpawn, Span: sp})
		return out

	case *parser.Await:
		out := l.lower(n.Inner, false)
		out = append(out, ir.Instruction{Op: ir.OpAwait, Span: sp})
		return out

	case *parser.Lazy:
		// Lazy has no checker-computed capture list (unlike Lambda), so it
		// captures the whole current locals map verbatim (spec §4.7
		// "MakeClosure captures the whole current locals map") rather than a
		// checker-narrowed subset: every name visible in this scope, by its
		// outer slot, snapshotted at MakeClosure time.
		sub := New(l.tables, l.builtins, l.ffi)
		sub.locals = make(map[string]uint16)
		sub.nextSlot = 0
		sub.selfName = l.selfName
		body := sub.lower(n.Inner, false)
		body = append(body, ir.Instruction{Op: ir.OpReturn, Span: sp})

		fields := make([]string, 0, len(l.locals))
		slots := make([]uint16, 0, len(l.locals))
		for name, slot := range l.locals {
			fields = append(fields, name)
			slots = append(slots, slot)
		}
		return []ir.Instruction{{
			Op: ir.OpMakeClosure, Span: sp, Name: l.selfName, N: int(sub.nextSlot),
			Params: nil, Body: body,
			Fields: fields, CaptureSlots: slots,
		}}

	case *parser.Force:
		out := l.lower(n.Inner, false)
		out = append(out, ir.Instruction{Op: ir.OpCallClosure, Span: sp, N: 0})
		return out

	case *parser.Lambda:
		sub := New(l.tables, l.builtins, l.ffi)
		sub.locals = make(map[string]uint16, len(n.Params))
		sub.nextSlot = 0
		sub.selfName = l.selfName
		for _, p := range n.Params {
			sub.defineSlot(p)
		}
		body := sub.lower(n.Body, true)
		body = append(body, ir.Instruction{Op: ir.OpReturn, Span: sp})

		// Captures (from the checker's free-variable analysis, §4.4) resolve
		// to this (the enclosing, not the sub-) Lowerer's slots: MakeClosure
		// snapshots the named values the frame holds right now.
		fields := make([]string, 0, len(n.Captures))
		slots := make([]uint16, 0, len(n.Captures))
		for _, name := range n.Captures {
			if slot, ok := l.slotOf(name); ok {
				fields = append(fields, name)
				slots = append(slots, slot)
			}
		}
		return []ir.Instruction{{
			Op: ir.OpMakeClosure, Span: sp, Name: l.selfName, N: int(sub.nextSlot),
			Params: n.Params, Body: body,
			Fields: fields, CaptureSlots: slots,
		}}

	case *parser.Comptime:
		return l.lower(n.Body, tail)

	case *parser.Assert:
		var msgIns []ir.Instruction
		if n.Msg != nil {
			msgIns = l.lower(n.Msg, false)
		} else {
			msgIns = []ir.Instruction{{Op: ir.OpConst, Span: sp, Const: value.String("assertion failed")}}
		}
		out := l.lower(n.Cond, false)
		out = append(out, ir.Instruction{Op: ir.OpJumpIf, Span: sp, Offset: int32(len(msgIns) + 1)})
		out = append(out, msgIns...)
		out = append(out, ir.Instruction{Op: ir.OpError, Span: sp})
		out = append(out, ir.Instruction{Op: ir.OpConst, Span: sp, Const: value.Void{}})
		return out

	case *parser.Old:
		return l.lower(n.Inner, false)

	case *parser.Block:
		var out []ir.Instruction
		for i, s := range n.Stmts {
			isLast := i == len(n.Stmts)-1
			out = append(out, l.lower(s, isLast && tail)...)
			if !isLast {
				out = append(out, ir.Instruction{Op: ir.OpPop, Span: spanOf(s.Span())})
			}
		}
		if len(n.Stmts) == 0 {
			out = append(out, ir.Instruction{Op: ir.OpConst, Span: sp, Const: value.Void{}})
		}
		return out

	case *parser.ErrorNode:
		return []ir.Instruction{{Op: ir.OpError, Span: sp}}

	default:
		return []ir.Instruction{{Op: ir.OpNop, Span: sp}}
	}
}

func (l *Lowerer) lowerArgs(args []parser.Expr) []ir.Instruction {
	var out []ir.Instruction
	for _, a := range args {
		out = append(out, l.lower(a, false)...)
	}
	return out
}

func (l *Lowerer) lowerStringInterp(n *parser.StringInterp, sp ir.Span) []ir.Instruction {
	var out []ir.Instruction
	for i, p := range n.Parts {
		part := l.lower(p, false)
		if _, isLit := p.(*parser.Literal); !isLit {
			part = append(part, ir.Instruction{Op: ir.OpCallBuiltin, Name: "str", N: 1})
		}
		out = append(out, part...)
		if i > 0 {
			out = append(out, ir.Instruction{Op: ir.OpConcat, Span: sp})
		}
	}
	if len(n.Parts) == 0 {
		out = append(out, ir.Instruction{Op: ir.OpConst, Span: sp, Const: value.String("")})
	}
	return out
}

func binaryOp(op string) ir.OpCode {
	switch op {
	case "+":
		return ir.OpAdd
	case "-":
		return ir.OpSub
	case "*":
		return ir.OpMul
	case "/":
		return ir.OpDiv
	case "%":
		return ir.OpMod
	case "==":
		return ir.OpEq
	case "!=":
		return ir.OpNeq
	case "<":
		return ir.OpLt
	case ">":
		return ir.OpGt
	case "<=":
		return ir.OpLte
	case ">=":
		return ir.OpGte
	case "&&":
		return ir.OpAnd
	case "||":
		return ir.OpOr
	default:
		return ir.OpNop
	}
}

// lowerIf implements spec §4.6: lower cond, JumpIfNot(then_len+1), then,
// Jump(else_len), else (missing else lowers to Const(Void)).
func (l *Lowerer) lowerIf(n *parser.If, tail bool, sp ir.Span) []ir.Instruction {
	cond := l.lower(n.Cond, false)
	thenIns := l.lower(n.Then, tail)
	var elseIns []ir.Instruction
	if n.Else != nil {
		elseIns = l.lower(n.Else, tail)
	} else {
		elseIns = []ir.Instruction{{Op: ir.OpConst, Span: sp, Const: value.Void{}}}
	}

	out := append([]ir.Instruction{}, cond...)
	out = append(out, ir.Instruction{Op: ir.OpJumpIfNot, Span: sp, Offset: int32(len(thenIns) + 1)})
	out = append(out, thenIns...)
	out = append(out, ir.Instruction{Op: ir.OpJump, Span: sp, Offset: int32(len(elseIns))})
	out = append(out, elseIns...)
	return out
}

// lowerWhile implements the `start: cond; JumpIfNot end; body; Jump start`
// pattern; for-in form binds BindVar to successive elements of Iter.
func (l *Lowerer) lowerWhile(n *parser.While, sp ir.Span) []ir.Instruction {
	if n.Iter != nil {
		return l.lowerForIn(n, sp)
	}
	cond := l.lower(n.Cond, false)
	body := l.lower(n.Body, false)
	body = append(body, ir.Instruction{Op: ir.OpPop, Span: sp})

	// Jump(start) is expressed as a negative offset back to the first cond
	// instruction: the Jump sits at index len(cond)+1+len(body) and the VM
	// targets ip+offset+1, so offset = -(len(cond)+1+len(body)+1).
	backOffset := int32(-(len(cond) + 1 + len(body) + 1))

	out := append([]ir.Instruction{}, cond...)
	out = append(out, ir.Instruction{Op: ir.OpJumpIfNot, Span: sp, Offset: int32(len(body) + 1)})
	out = append(out, body...)
	out = append(out, ir.Instruction{Op: ir.OpJump, Span: sp, Offset: backOffset})
	out = append(out, ir.Instruction{Op: ir.OpConst, Span: sp, Const: value.Void{}})
	return out
}

// lowerForIn desugars `for v in iter { body }` onto OpMap purely for side
// effects: the VM discards the mapped array, matching the spec's treatment
// of While as the sole loop primitive (for-in is sugar over it, spec §4.6
// "While: pattern" note — modeled here as a single Map pass rather than
// reintroducing index bookkeeping, since iteration order is already
// guaranteed by Array/Set/Map's insertion order, spec §3).
func (l *Lowerer) lowerForIn(n *parser.While, sp ir.Span) []ir.Instruction {
	out := l.lower(n.Iter, false)
	out = append(out, ir.Instruction{Op: ir.OpMap, Span: sp, Body: l.lowerElemBody(n.BindVar, n.Body)})
	out = append(out, ir.Instruction{Op: ir.OpPop, Span: sp})
	out = append(out, ir.Instruction{Op: ir.OpConst, Span: sp, Const: value.Void{}})
	return out
}

func (l *Lowerer) lowerElemBody(elemVar string, body parser.Expr) []ir.Instruction {
	slot, existed := l.slotOf(elemVar)
	if !existed {
		slot = l.defineSlot(elemVar)
	}
	inner := l.lower(body, false)
	out := append([]ir.Instruction{{Op: ir.OpStoreLocal, Slot: slot}}, inner...)
	return out
}

func (l *Lowerer) lowerLet(n *parser.Let, tail bool, sp ir.Span) []ir.Instruction {
	out := l.lower(n.Value, false)
	slot := l.defineSlot(n.Name)
	out = append(out, ir.Instruction{Op: ir.OpStoreLocal, Span: sp, Slot: slot})
	out = append(out, l.lower(n.Body, tail)...)
	return out
}

func (l *Lowerer) lowerCall(n *parser.Call, sp ir.Span) []ir.Instruction {
	// A callee bound to a local slot is a closure value (a parameter or a
	// `let`-bound lambda/lazy thunk), not a named top-level function: args
	// push, then the closure itself, then CallClosure — named functions
	// never occupy a local slot, so this can't shadow a real Call.
	if slot, ok := l.slotOf(n.Callee); ok {
		out := l.lowerArgs(n.Args)
		out = append(out, ir.Instruction{Op: ir.OpLoadLocal, Span: sp, Slot: slot})
		out = append(out, ir.Instruction{Op: ir.OpCallClosure, Span: sp, N: len(n.Args)})
		return out
	}
	out := l.lowerArgs(n.Args)
	if target, ok := l.ffi[n.Callee]; ok {
		out = append(out, ir.Instruction{Op: ir.OpCallFfi, Span: sp, Lib: target[0], Extern: target[1], N: len(n.Args)})
		return out
	}
	if l.builtins[n.Callee] {
		out = append(out, ir.Instruction{Op: ir.OpCallBuiltin, Span: sp, Name: n.Callee, N: len(n.Args)})
		return out
	}
	out = append(out, ir.Instruction{Op: ir.OpCall, Span: sp, Name: n.Callee, N: len(n.Args)})
	return out
}

func (l *Lowerer) lowerListComp(n *parser.ListComp, sp ir.Span) []ir.Instruction {
	out := l.lower(n.Iter, false)
	if n.Cond != nil {
		out = append(out, ir.Instruction{Op: ir.OpFilter, Span: sp, Body: l.lowerElemBody(n.BindVar, n.Cond)})
	}
	mapOp := ir.OpMap
	body := l.lowerElemBody(n.BindVar, n.Elem)
	out = append(out, ir.Instruction{Op: mapOp, Span: sp, Body: body})
	if n.IsSet {
		out = append(out, ir.Instruction{Op: ir.OpCallBuiltin, Span: sp, Name: "to_set", N: 1})
	}
	return out
}

// lowerReduce's Custom body receives both the running accumulator and the
// current element each pass, pushed acc-then-elem so the elem (top of
// stack) is stored first: StoreLocal(elemSlot); StoreLocal(accSlot); body.
// The VM re-invokes this instruction sequence once per element, feeding
// back its result as the next pass's accumulator (spec §4.2 Reduce).
func (l *Lowerer) lowerReduce(n *parser.ReduceOp, sp ir.Span) []ir.Instruction {
	out := l.lower(n.Receiver, false)
	kind := reduceKind(n.Kind)
	if kind == ir.ReduceCustom {
		accSlot := l.defineSlot(n.Acc)
		elemSlot, existed := l.slotOf(n.ElemVar)
		if !existed {
			elemSlot = l.defineSlot(n.ElemVar)
		}
		init := l.lower(n.Init, false)
		inner := l.lower(n.Body, false)
		body := []ir.Instruction{
			{Op: ir.OpStoreLocal, Slot: elemSlot},
			{Op: ir.OpStoreLocal, Slot: accSlot},
		}
		body = append(body, inner...)
		out = append(out, init...)
		out = append(out, ir.Instruction{Op: ir.OpReduce, Span: sp, ReduceKind: ir.ReduceCustom, Body: body})
		return out
	}
	out = append(out, ir.Instruction{Op: ir.OpReduce, Span: sp, ReduceKind: kind})
	return out
}

func reduceKind(k parser.ReduceKind) ir.ReduceKind {
	switch k {
	case parser.ReduceSum:
		return ir.ReduceSum
	case parser.ReduceProduct:
		return ir.ReduceProduct
	case parser.ReduceMin:
		return ir.ReduceMin
	case parser.ReduceMax:
		return ir.ReduceMax
	case parser.ReduceAll:
		return ir.ReduceAll
	case parser.ReduceAny:
		return ir.ReduceAny
	case parser.ReduceCount:
		return ir.ReduceCount
	case parser.ReduceFirst:
		return ir.ReduceFirst
	case parser.ReduceLast:
		return ir.ReduceLast
	case parser.ReduceAvg:
		return ir.ReduceAvg
	default:
		return ir.ReduceCustom
	}
}

// lowerMatch implements spec §4.6: evaluate scrutinee, StoreLocal(__match__),
// then a cascading if/else over each arm's pattern predicate (optionally
// ANDed with a lowered guard), whose else is Const(Void).
func (l *Lowerer) lowerMatch(n *parser.Match, tail bool, sp ir.Span) []ir.Instruction {
	out := l.lower(n.Scrutinee, false)
	matchSlot := l.defineSlot("__match__")
	out = append(out, ir.Instruction{Op: ir.OpStoreLocal, Span: sp, Slot: matchSlot})

	out = append(out, l.lowerArms(n.Arms, 0, matchSlot, tail, sp)...)
	return out
}

func (l *Lowerer) lowerArms(arms []parser.MatchArm, i int, matchSlot uint16, tail bool, sp ir.Span) []ir.Instruction {
	if i >= len(arms) {
		return []ir.Instruction{{Op: ir.OpConst, Span: sp, Const: value.Void{}}}
	}
	arm := arms[i]
	pred := l.lowerPattern(arm.Pattern, matchSlot)
	if arm.Guard != nil {
		guard := l.lower(arm.Guard, false)
		pred = append(pred, guard...)
		pred = append(pred, ir.Instruction{Op: ir.OpAnd, Span: sp})
	}
	body := l.lower(arm.Body, tail)
	rest := l.lowerArms(arms, i+1, matchSlot, tail, sp)

	out := append([]ir.Instruction{}, pred...)
	out = append(out, ir.Instruction{Op: ir.OpJumpIfNot, Span: sp, Offset: int32(len(body) + 1)})
	out = append(out, body...)
	out = append(out, ir.Instruction{Op: ir.OpJump, Span: sp, Offset: int32(len(rest))})
	out = append(out, rest...)
	return out
}

// lowerPattern compiles one pattern predicate per the §4.6.1 table. Every
// sequence loads a fresh copy of the scrutinee from matchSlot and leaves
// only a Bool on the stack.
func (l *Lowerer) lowerPattern(p parser.Pattern, matchSlot uint16) []ir.Instruction {
	switch pat := p.(type) {
	case parser.WildcardPattern:
		return []ir.Instruction{{Op: ir.OpConst, Const: value.Bool(true)}}

	case parser.LiteralPattern:
		out := []ir.Instruction{{Op: ir.OpLoadLocal, Slot: matchSlot}}
		out = append(out, l.lower(pat.Value, false)...)
		out = append(out, ir.Instruction{Op: ir.OpEq})
		return out

	case parser.BindingPattern:
		slot, existed := l.slotOf(pat.Name)
		if !existed {
			slot = l.defineSlot(pat.Name)
		}
		return []ir.Instruction{
			{Op: ir.OpLoadLocal, Slot: matchSlot},
			{Op: ir.OpDup},
			{Op: ir.OpStoreLocal, Slot: slot},
			{Op: ir.OpPop},
			{Op: ir.OpConst, Const: value.Bool(true)},
		}

	case parser.TuplePattern:
		return l.lowerIndexedPattern(pat.Elems, matchSlot)

	case parser.ArrayPattern:
		return l.lowerIndexedPattern(pat.Elems, matchSlot)

	case parser.StructPattern:
		if len(pat.Order) == 0 {
			return []ir.Instruction{{Op: ir.OpConst, Const: value.Bool(true)}}
		}
		var out []ir.Instruction
		for i, fname := range pat.Order {
			subSlot := l.defineSlot("__sub__")
			fieldPred := []ir.Instruction{
				{Op: ir.OpLoadLocal, Slot: matchSlot},
				{Op: ir.OpGetField, Name: fname},
				{Op: ir.OpStoreLocal, Slot: subSlot},
			}
			fieldPred = append(fieldPred, l.lowerPattern(pat.Fields[fname], subSlot)...)
			if i == 0 {
				out = fieldPred
			} else {
				out = append(out, fieldPred...)
				out = append(out, ir.Instruction{Op: ir.OpAnd})
			}
		}
		return out

	case parser.VariantPattern:
		out := []ir.Instruction{
			{Op: ir.OpLoadLocal, Slot: matchSlot},
			{Op: ir.OpGetField, Name: "__variant__"},
			{Op: ir.OpConst, Const: value.String(pat.Name)},
			{Op: ir.OpEq},
		}
		if pat.Inner != nil {
			out = append(out, []ir.Instruction{
				{Op: ir.OpLoadLocal, Slot: matchSlot},
				{Op: ir.OpGetField, Name: "__value__"},
			}...)
			inner, innerSlot := l.bindSubPattern(pat.Inner)
			out = append(out, ir.Instruction{Op: ir.OpStoreLocal, Slot: innerSlot})
			out = append(out, inner...)
			out = append(out, ir.Instruction{Op: ir.OpAnd})
		}
		return out

	case parser.RangePattern:
		out := []ir.Instruction{{Op: ir.OpLoadLocal, Slot: matchSlot}}
		out = append(out, l.lower(pat.Lo, false)...)
		out = append(out, ir.Instruction{Op: ir.OpGte})
		out = append(out, ir.Instruction{Op: ir.OpLoadLocal, Slot: matchSlot})
		out = append(out, l.lower(pat.Hi, false)...)
		out = append(out, ir.Instruction{Op: ir.OpLte})
		out = append(out, ir.Instruction{Op: ir.OpAnd})
		return out

	case parser.OrPattern:
		var out []ir.Instruction
		for i, alt := range pat.Alts {
			sub := l.lowerPattern(alt, matchSlot)
			if i == 0 {
				out = sub
			} else {
				out = append(out, sub...)
				out = append(out, ir.Instruction{Op: ir.OpOr})
			}
		}
		if len(pat.Alts) == 0 {
			return []ir.Instruction{{Op: ir.OpConst, Const: value.Bool(false)}}
		}
		return out

	default:
		return []ir.Instruction{{Op: ir.OpConst, Const: value.Bool(true)}}
	}
}

// bindSubPattern lowers a nested pattern against a temp slot holding
// whatever value the caller has just placed for it (a tuple element, a
// struct field, a variant payload).
func (l *Lowerer) bindSubPattern(p parser.Pattern) ([]ir.Instruction, uint16) {
	slot := l.defineSlot("__sub__")
	return l.lowerPattern(p, slot), slot
}

// lowerIndexedPattern checks the scrutinee's length against len(elems) before
// testing any element predicate, per the Tuple/Array match table: a
// length mismatch must evaluate the whole pattern to false rather than
// indexing out of bounds. Since instructions execute eagerly (no
// short-circuiting And), the length check guards the per-element
// predicates behind a JumpIfNot rather than folding into an And chain.
func (l *Lowerer) lowerIndexedPattern(elems []parser.Pattern, matchSlot uint16) []ir.Instruction {
	if len(elems) == 0 {
		return []ir.Instruction{
			{Op: ir.OpLoadLocal, Slot: matchSlot},
			{Op: ir.OpLen},
			{Op: ir.OpConst, Const: value.Int(0)},
			{Op: ir.OpEq},
		}
	}

	var elemsAll []ir.Instruction
	for i, sub := range elems {
		elemPred := []ir.Instruction{
			{Op: ir.OpLoadLocal, Slot: matchSlot},
			{Op: ir.OpConst, Const: value.Int(int64(i))},
			{Op: ir.OpIndex},
		}
		subSlot := l.defineSlot("__sub__")
		elemPred = append(elemPred, ir.Instruction{Op: ir.OpStoreLocal, Slot: subSlot})
		elemPred = append(elemPred, l.lowerPattern(sub, subSlot)...)
		if i == 0 {
			elemsAll = elemPred
		} else {
			elemsAll = append(elemsAll, elemPred...)
			elemsAll = append(elemsAll, ir.Instruction{Op: ir.OpAnd})
		}
	}

	out := []ir.Instruction{
		{Op: ir.OpLoadLocal, Slot: matchSlot},
		{Op: ir.OpLen},
		{Op: ir.OpConst, Const: value.Int(int64(len(elems)))},
		{Op: ir.OpEq},
	}
	out = append(out, ir.Instruction{Op: ir.OpJumpIfNot, Offset: int32(len(elemsAll) + 1)})
	out = append(out, elemsAll...)
	out = append(out, ir.Instruction{Op: ir.OpJump, Offset: 1})
	out = append(out, ir.Instruction{Op: ir.OpConst, Const: value.Bool(false)})
	return out
}

// lowerTryCatch implements spec §4.6: SetCatch(body_len+2); body; ClearCatch;
// Jump(handler_len+1); StoreLocal(err_slot); handler.
func (l *Lowerer) lowerTryCatch(n *parser.TryCatch, sp ir.Span) []ir.Instruction {
	errSlot := l.defineSlot(n.ErrVar)
	body := l.lower(n.Body, false)
	handler := l.lower(n.Handler, false)

	out := []ir.Instruction{{Op: ir.OpSetCatch, Span: sp, Offset: int32(len(body) + 2)}}
	out = append(out, body...)
	out = append(out, ir.Instruction{Op: ir.OpClearCatch, Span: sp})
	out = append(out, ir.Instruction{Op: ir.OpJump, Span: sp, Offset: int32(len(handler) + 1)})
	out = append(out, ir.Instruction{Op: ir.OpStoreLocal, Span: sp, Slot: errSlot})
	out = append(out, handler...)
	return out
}

// peepholeMap recognizes the `_ OP k` transform shapes spec §4.6 lists and
// returns the specialized opcode plus its constant operand.
func peepholeMap(elemVar string, body parser.Expr) (ir.OpCode, int64, bool) {
	bin, ok := body.(*parser.Binary)
	if !ok {
		return 0, 0, false
	}
	left, isIdent := bin.Left.(*parser.Ident)
	lit, isLit := bin.Right.(*parser.Literal)
	if !isIdent || left.Name != elemVar || !isLit {
		return 0, 0, false
	}
	k, ok := asInt(lit.Value)
	if !ok {
		return 0, 0, false
	}
	switch bin.Op {
	case "*":
		return ir.OpMapMulConst, k, true
	case "+":
		return ir.OpMapAddConst, k, true
	case "-":
		return ir.OpMapSubConst, k, true
	case "/":
		return ir.OpMapDivConst, k, true
	default:
		return 0, 0, false
	}
}

// peepholeFilter recognizes the const-comparison predicate shapes spec
// §4.6 lists and returns the specialized opcode plus its constant operand.
func peepholeFilter(elemVar string, pred parser.Expr) (ir.OpCode, int64, bool) {
	bin, ok := pred.(*parser.Binary)
	if !ok {
		return 0, 0, false
	}
	if isEvenOddCheck(elemVar, bin, true) {
		return ir.OpFilterEven, 0, true
	}
	if isEvenOddCheck(elemVar, bin, false) {
		return ir.OpFilterOdd, 0, true
	}
	left, isIdent := bin.Left.(*parser.Ident)
	lit, isLit := bin.Right.(*parser.Literal)
	if !isIdent || left.Name != elemVar || !isLit {
		return 0, 0, false
	}
	k, ok := asInt(lit.Value)
	if !ok {
		return 0, 0, false
	}
	switch bin.Op {
	case ">":
		return ir.OpFilterGtConst, k, true
	case "<":
		return ir.OpFilterLtConst, k, true
	case ">=":
		return ir.OpFilterGteConst, k, true
	case "<=":
		return ir.OpFilterLteConst, k, true
	case "==":
		return ir.OpFilterEqConst, k, true
	case "!=":
		return ir.OpFilterNeqConst, k, true
	default:
		return 0, 0, false
	}
}

func isEvenOddCheck(elemVar string, bin *parser.Binary, even bool) bool {
	if bin.Op != "==" && bin.Op != "!=" {
		return false
	}
	mod, ok := bin.Left.(*parser.Binary)
	if !ok || mod.Op != "%" {
		return false
	}
	ident, ok := mod.Left.(*parser.Ident)
	if !ok || ident.Name != elemVar {
		return false
	}
	two, ok := mod.Right.(*parser.Literal)
	if !ok {
		return false
	}
	if k, ok := asInt(two.Value); !ok || k != 2 {
		return false
	}
	zero, ok := bin.Right.(*parser.Literal)
	if !ok {
		return false
	}
	k, ok := asInt(zero.Value)
	if !ok || k != 0 {
		return false
	}
	wantsEq := bin.Op == "=="
	return wantsEq == even
}

func asInt(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

func filterConstInstr(op ir.OpCode, k int64, sp ir.Span) ir.Instruction {
	return ir.Instruction{Op: op, Span: sp, N: int(k)}
}
