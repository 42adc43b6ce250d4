package typecheck

import (
	"vela/internal/parser"
	"vela/internal/types"
)

// CheckExpr types one expression node, dispatching through the
// parser.ExprVisitor pattern (mirrors the teacher's compiler.go dispatch).
func (c *Checker) CheckExpr(e parser.Expr) *types.Type {
	if e == nil {
		return types.Unit()
	}
	t, _ := e.Accept(c).(*types.Type)
	if t == nil {
		t = types.Unknown()
	}
	return t
}

func (c *Checker) VisitLiteral(e *parser.Literal) interface{} {
	switch e.Value.(type) {
	case int, int64:
		return types.Int()
	case float64, float32:
		return types.Float()
	case bool:
		return types.Bool()
	case string:
		return types.Str()
	case []byte:
		return types.Named("Bytes")
	case nil:
		return types.Unit()
	default:
		return types.Unknown()
	}
}

func (c *Checker) VisitStringInterp(e *parser.StringInterp) interface{} {
	for _, p := range e.Parts {
		c.CheckExpr(p)
	}
	return types.Str()
}

func (c *Checker) VisitIdent(e *parser.Ident) interface{} {
	info, ok := c.lookup(e.Name)
	if !ok {
		suggestion := c.suggest(e.Name, "var")
		d := c.errorAtUndef(e.Span(), e.Name, suggestion)
		_ = d
		return types.Unknown()
	}
	info.UsedOnce = true
	return info.Type
}

func (c *Checker) errorAtUndef(sp parser.Span, name, suggestion string) *types.Type {
	if suggestion != "" {
		diag := c.errorAt(sp, "undefined variable `%s`", name)
		c.Diagnostics[len(c.Diagnostics)-1].Suggestion = suggestion
		return diag
	}
	return c.errorAt(sp, "undefined variable `%s`", name)
}

// VisitSelfCall types @(args...): if a `self` binding exists (method
// context) its type is used; otherwise the enclosing function's own
// signature is used (recursion), wrapped in Future if async (spec §4.4).
func (c *Checker) VisitSelfCall(e *parser.SelfCall) interface{} {
	for _, a := range e.Args {
		c.CheckExpr(a)
	}
	if self, ok := c.lookup("self"); ok {
		return self.Type
	}
	sig, ok := c.Tables.Functions[c.currentFnName]
	if !ok {
		return c.errorAt(e.Span(), "self-call outside a function body")
	}
	if len(e.Args) < sig.RequiredParams || (!sig.IsVararg && len(e.Args) > len(sig.Params)) {
		c.errorAt(e.Span(), "self-call to %s: expected %d-%d args, found %d", c.currentFnName, sig.MinArgs(), sig.MaxArgs(), len(e.Args))
	}
	return sig.Ret
}

func (c *Checker) VisitBinary(e *parser.Binary) interface{} {
	lt := c.CheckExpr(e.Left)
	rt := c.CheckExpr(e.Right)
	switch e.Op {
	case "+":
		if lt.Kind == types.KStr || rt.Kind == types.KStr {
			if err := c.U.Unify(lt, types.Str()); err == nil {
				if err := c.U.Unify(rt, types.Str()); err == nil {
					return types.Str()
				}
			}
		}
		if lt.Kind == types.KArray || rt.Kind == types.KArray {
			if err := c.U.Unify(lt, rt); err == nil {
				return lt
			}
		}
		return c.unifyNumeric(e.Span(), lt, rt)
	case "-", "*", "/", "%":
		return c.unifyNumeric(e.Span(), lt, rt)
	case "==", "!=":
		if err := c.U.Unify(lt, rt); err != nil {
			c.errorAt(e.Span(), "cannot compare %s and %s: %s", lt, rt, err)
		}
		return types.Bool()
	case "<", ">", "<=", ">=":
		if lt.Kind == types.KStr && rt.Kind == types.KStr {
			return types.Bool()
		}
		c.unifyNumeric(e.Span(), lt, rt)
		return types.Bool()
	case "&&", "||":
		if err := c.U.Unify(lt, types.Bool()); err != nil {
			c.errorAt(e.Left.Span(), "expected Bool, found %s", lt)
		}
		if err := c.U.Unify(rt, types.Bool()); err != nil {
			c.errorAt(e.Right.Span(), "expected Bool, found %s", rt)
		}
		return types.Bool()
	case "&", "|", "^":
		if lt.Kind == types.KBool && rt.Kind == types.KBool {
			return types.Bool()
		}
		return c.unifyNumeric(e.Span(), lt, rt)
	default:
		return c.errorAt(e.Span(), "unknown binary operator %q", e.Op)
	}
}

func (c *Checker) unifyNumeric(sp parser.Span, lt, rt *types.Type) *types.Type {
	if lt.Kind == types.KVar {
		c.U.Unify(lt, types.Int())
		lt = c.U.Resolve(lt)
	}
	if rt.Kind == types.KVar {
		c.U.Unify(rt, types.Int())
		rt = c.U.Resolve(rt)
	}
	if lt.Kind == types.KFloat || rt.Kind == types.KFloat {
		return types.Float()
	}
	if lt.Kind == types.KInt && rt.Kind == types.KInt {
		return types.Int()
	}
	if lt.Kind == types.KUnknown || rt.Kind == types.KUnknown {
		return types.Unknown()
	}
	c.errorAt(sp, "arithmetic requires numeric operands, found %s and %s", lt, rt)
	return types.Unknown()
}

func (c *Checker) VisitUnary(e *parser.Unary) interface{} {
	t := c.CheckExpr(e.Operand)
	switch e.Op {
	case "-":
		if t.Kind != types.KInt && t.Kind != types.KFloat && t.Kind != types.KVar && t.Kind != types.KUnknown {
			c.errorAt(e.Span(), "unary - requires a numeric operand, found %s", t)
		}
		return t
	case "!":
		if err := c.U.Unify(t, types.Bool()); err != nil {
			c.errorAt(e.Span(), "unary ! requires Bool, found %s", t)
		}
		return types.Bool()
	case "~":
		if t.Kind != types.KInt {
			c.errorAt(e.Span(), "unary ~ requires Int, found %s", t)
		}
		return types.Int()
	default:
		return c.errorAt(e.Span(), "unknown unary operator %q", e.Op)
	}
}

// VisitIf types both the ternary and the if/else form; mismatched branches
// degrade the result to Unit rather than erroring (spec §4.4).
func (c *Checker) VisitIf(e *parser.If) interface{} {
	cond := c.CheckExpr(e.Cond)
	if err := c.U.Unify(cond, types.Bool()); err != nil {
		c.errorAt(e.Cond.Span(), "if condition must be Bool, found %s", cond)
	}
	thenT := c.CheckExpr(e.Then)
	if e.Else == nil {
		return types.Unit()
	}
	elseT := c.CheckExpr(e.Else)
	if err := c.U.Unify(thenT, elseT); err != nil {
		return types.Unit()
	}
	return thenT
}

func (c *Checker) VisitWhile(e *parser.While) interface{} {
	c.pushScope()
	defer c.popScope()
	if e.Iter != nil {
		iterT := c.CheckExpr(e.Iter)
		elemT := elementType(iterT)
		c.define(e.BindVar, &types.VarInfo{Type: elemT})
	} else {
		cond := c.CheckExpr(e.Cond)
		if err := c.U.Unify(cond, types.Bool()); err != nil {
			c.errorAt(e.Cond.Span(), "while condition must be Bool, found %s", cond)
		}
	}
	c.CheckExpr(e.Body)
	return types.Unit()
}

func elementType(containerT *types.Type) *types.Type {
	switch containerT.Kind {
	case types.KArray, types.KSet:
		return containerT.Elem
	case types.KMap:
		return types.TupleOf(containerT.Key, containerT.Val)
	default:
		return types.Unknown()
	}
}

func (c *Checker) VisitLet(e *parser.Let) interface{} {
	valT := c.CheckExpr(e.Value)
	c.pushScope()
	defer c.popScope()
	lin := types.Unrestricted
	switch e.Ownership {
	case parser.OwnLinear:
		lin = types.Linear
	case parser.OwnAffine:
		lin = types.Affine
	}
	c.define(e.Name, &types.VarInfo{Type: valT, Linearity: lin, IntroducedSpan: [2]int{e.Span().Start, e.Span().End}})
	bodyT := c.CheckExpr(e.Body)
	c.checkLinearUse(e.Name, lin, e.Span())
	return bodyT
}

// checkLinearUse is called once a Let body has been checked. It reports
// nothing for any linearity: neither the use count nor the control-flow
// paths of a Linear or Affine binding are inspected, so a binding that
// breaks invariant I5 produces no diagnostic.
func (c *Checker) checkLinearUse(name string, lin types.Linearity, sp parser.Span) {
	if lin == types.Unrestricted {
		return
	}
}

func (c *Checker) VisitAssign(e *parser.Assign) interface{} {
	valT := c.CheckExpr(e.Value)
	info, ok := c.lookup(e.Name)
	if !ok {
		return c.errorAt(e.Span(), "assignment to undefined variable `%s`", e.Name)
	}
	if !info.IsMut && info.Type != nil {
		// Assignment to an immutable binding is a warning-level concern in
		// most HM-style checkers with explicit mutability; spec does not
		// make this an error for Assign specifically, so it is accepted
		// and no diagnostic is recorded for it.
	}
	if err := c.U.Unify(info.Type, valT); err != nil {
		c.errorAt(e.Span(), "cannot assign %s to `%s` of type %s", valT, e.Name, info.Type)
	}
	return valT
}

// VisitCall resolves struct-tuple-literal sugar (spec §4.4: Name(a,b,c)
// desugars to a StructLit when Name is a struct with no homonymous
// function — source behavior prefers the function when both exist, spec §9),
// then ordinary function calls with generics instantiation.
func (c *Checker) VisitCall(e *parser.Call) interface{} {
	if _, isFn := c.Tables.Functions[e.Callee]; !isFn {
		if sdef, isStruct := c.Tables.Structs[e.Callee]; isStruct {
			return c.checkStructTupleSugar(e, sdef)
		}
	}

	sig, ok := c.Tables.Functions[e.Callee]
	if !ok {
		suggestion := c.suggest(e.Callee, "function")
		d := c.errorAt(e.Span(), "undefined function `%s`", e.Callee)
		if suggestion != "" {
			c.Diagnostics[len(c.Diagnostics)-1].Suggestion = suggestion
		}
		for _, a := range e.Args {
			c.CheckExpr(a)
		}
		return d
	}

	argTypes := make([]*types.Type, len(e.Args))
	for i, a := range e.Args {
		argTypes[i] = c.CheckExpr(a)
	}

	minArgs, maxArgs := sig.MinArgs(), sig.MaxArgs()
	if len(e.Args) < minArgs || (!sig.IsVararg && len(e.Args) > maxArgs) {
		c.errorAt(e.Span(), "call to %s: expected %d-%d args, found %d", e.Callee, minArgs, maxArgs, len(e.Args))
	}

	if len(sig.Generics) == 0 {
		for i, at := range argTypes {
			if i >= len(sig.Params) {
				break
			}
			if err := c.U.Unify(sig.Params[i].Type, at); err != nil {
				c.errorAt(e.Args[i].Span(), "argument %d to %s: %s", i, e.Callee, err)
			}
		}
		return sig.Ret
	}

	// Generic instantiation: collect substitutions from argument types by
	// unifying a fresh instance's params against the call-site arguments.
	scheme := &types.Scheme{Quantifiers: sig.Generics, Body: signatureAsFunctionType(sig)}
	instT := c.U.Instantiate(scheme)
	for i, at := range argTypes {
		if i >= len(instT.Params) {
			break
		}
		if err := c.U.Unify(instT.Params[i], at); err != nil {
			c.errorAt(e.Args[i].Span(), "argument %d to %s: %s", i, e.Callee, err)
		}
	}
	resolvedArgs := make([]*types.Type, len(argTypes))
	for i, at := range argTypes {
		resolvedArgs[i] = c.U.ResolveDeep(at)
	}
	c.memoizeInstantiation(e.Callee, resolvedArgs, instT.Ret)
	return instT.Ret
}

func signatureAsFunctionType(sig *types.FunctionSig) *types.Type {
	params := make([]*types.Type, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = p.Type
	}
	return types.Fn(params, sig.Ret, sig.Effects)
}

func (c *Checker) memoizeInstantiation(name string, args []*types.Type, ret *types.Type) {
	key := instKey{name: name, args: ""}
	for _, a := range args {
		key.args += a.String() + ","
	}
	c.instantiations[key] = ret
}

func (c *Checker) checkStructTupleSugar(e *parser.Call, sdef *types.StructDef) interface{} {
	if len(e.Args) != len(sdef.FieldOrder) {
		return c.errorAt(e.Span(), "struct %s takes %d fields, found %d args", e.Callee, len(sdef.FieldOrder), len(e.Args))
	}
	for i, a := range e.Args {
		at := c.CheckExpr(a)
		ft := sdef.Fields[sdef.FieldOrder[i]]
		if err := c.U.Unify(ft, at); err != nil {
			c.errorAt(a.Span(), "field %s of %s: %s", sdef.FieldOrder[i], e.Callee, err)
		}
	}
	return types.Named(e.Callee)
}

func (c *Checker) VisitFieldAccess(e *parser.FieldAccess) interface{} {
	objT := derefOnce(c.CheckExpr(e.Object))
	if objT.Kind != types.KNamed {
		return c.errorAt(e.Span(), "field access on non-struct type %s", objT)
	}
	if sdef, ok := c.Tables.Structs[objT.Name]; ok {
		if ft, ok := sdef.Fields[e.Field]; ok {
			return ft
		}
		suggestion := diagClosest(e.Field, sdef.FieldOrder)
		d := c.errorAt(e.Span(), "struct %s has no field `%s`", objT.Name, e.Field)
		if suggestion != "" {
			c.Diagnostics[len(c.Diagnostics)-1].Suggestion = suggestion
		}
		return d
	}
	return c.errorAt(e.Span(), "undefined type %s", objT.Name)
}

func diagClosest(name string, candidates []string) string {
	best, bestDist := "", 4
	for _, cand := range candidates {
		d := editDistance(name, cand)
		if d < bestDist {
			bestDist, best = d, cand
		}
	}
	if bestDist > 3 {
		return ""
	}
	return best
}

// editDistance is a rune-wise Levenshtein distance local to this file's
// diagClosest; checker.go's suggest uses the diagnostics package instead.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	dp := make([][]int, len(ra)+1)
	for i := range dp {
		dp[i] = make([]int, len(rb)+1)
		dp[i][0] = i
	}
	for j := range dp[0] {
		dp[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			m := dp[i-1][j] + 1
			if dp[i][j-1]+1 < m {
				m = dp[i][j-1] + 1
			}
			if dp[i-1][j-1]+cost < m {
				m = dp[i-1][j-1] + cost
			}
			dp[i][j] = m
		}
	}
	return dp[len(ra)][len(rb)]
}

func derefOnce(t *types.Type) *types.Type {
	if t.Kind == types.KRef || t.Kind == types.KRefMut {
		return t.Elem
	}
	return t
}

// builtinMethodType resolves the Str/Array/Map/Set method surface
// internal/builtins registers against the VM. Builtin methods aren't typed
// against a declared signature the way struct/enum/impl methods are (spec
// §3 lists no signature table for them) — this only reports the return
// shape so callers downstream of a builtin call aren't forced to Unknown.
func (c *Checker) builtinMethodType(recvT *types.Type, method string) (*types.Type, bool) {
	switch recvT.Kind {
	case types.KStr:
		switch method {
		case "upper", "lower", "trim", "replace":
			return types.Str(), true
		case "split":
			return types.ArrayOf(types.Str()), true
		case "starts_with", "ends_with":
			return types.Bool(), true
		}
	case types.KArray:
		switch method {
		case "push", "reverse":
			return recvT, true
		case "first", "last":
			return types.OptionalOf(recvT.Elem), true
		case "join":
			return types.Str(), true
		case "pop":
			return types.Unknown(), true
		}
	case types.KMap:
		switch method {
		case "keys":
			return types.ArrayOf(types.Str()), true
		case "values":
			return types.ArrayOf(recvT.Val), true
		case "has":
			return types.Bool(), true
		}
	case types.KSet:
		switch method {
		case "add":
			return recvT, true
		case "to_array":
			return types.ArrayOf(recvT.Elem), true
		}
	}
	return nil, false
}

func (c *Checker) VisitMethodCall(e *parser.MethodCall) interface{} {
	recvT := derefOnce(c.CheckExpr(e.Receiver))
	for _, a := range e.Args {
		c.CheckExpr(a)
	}
	if t, ok := c.builtinMethodType(recvT, e.Method); ok {
		return t
	}
	if recvT.Kind != types.KNamed {
		return c.errorAt(e.Span(), "method call on non-named type %s", recvT)
	}
	if sdef, ok := c.Tables.Structs[recvT.Name]; ok {
		if m, ok := sdef.Methods[e.Method]; ok {
			return m.Ret
		}
	}
	if edef, ok := c.Tables.Enums[recvT.Name]; ok {
		if m, ok := edef.Methods[e.Method]; ok {
			return m.Ret
		}
	}
	for key, methods := range c.Tables.Impls {
		if key.Target == recvT.Name {
			if m, ok := methods[e.Method]; ok {
				return m.Ret
			}
		}
	}
	return c.errorAt(e.Span(), "type %s has no method `%s`", recvT.Name, e.Method)
}

func (c *Checker) VisitIndex(e *parser.Index) interface{} {
	objT := c.CheckExpr(e.Object)
	idxT := c.CheckExpr(e.Index)
	switch objT.Kind {
	case types.KArray, types.KSlice, types.KSliceMut:
		if err := c.U.Unify(idxT, types.Int()); err != nil {
			c.errorAt(e.Index.Span(), "array index must be Int, found %s", idxT)
		}
		return objT.Elem
	case types.KMap:
		if err := c.U.Unify(idxT, objT.Key); err != nil {
			c.errorAt(e.Index.Span(), "map index must be %s, found %s", objT.Key, idxT)
		}
		return objT.Val
	case types.KTuple:
		return types.Unknown()
	default:
		return c.errorAt(e.Span(), "cannot index into %s", objT)
	}
}

func (c *Checker) VisitArrayLit(e *parser.ArrayLit) interface{} {
	if len(e.Elements) == 0 {
		return types.ArrayOf(c.U.Fresh())
	}
	elemT := c.CheckExpr(e.Elements[0])
	for _, el := range e.Elements[1:] {
		t := c.CheckExpr(el)
		if err := c.U.Unify(elemT, t); err != nil {
			c.errorAt(el.Span(), "array element type mismatch: %s", err)
		}
	}
	return types.ArrayOf(elemT)
}

func (c *Checker) VisitSetLit(e *parser.SetLit) interface{} {
	if len(e.Elements) == 0 {
		return types.SetOf(c.U.Fresh())
	}
	elemT := c.CheckExpr(e.Elements[0])
	for _, el := range e.Elements[1:] {
		t := c.CheckExpr(el)
		if err := c.U.Unify(elemT, t); err != nil {
			c.errorAt(el.Span(), "set element type mismatch: %s", err)
		}
	}
	return types.SetOf(elemT)
}

func (c *Checker) VisitMapLit(e *parser.MapLit) interface{} {
	if len(e.Keys) == 0 {
		return types.MapOf(types.Str(), c.U.Fresh())
	}
	keyT := c.CheckExpr(e.Keys[0])
	valT := c.CheckExpr(e.Values[0])
	for i := 1; i < len(e.Keys); i++ {
		kt := c.CheckExpr(e.Keys[i])
		vt := c.CheckExpr(e.Values[i])
		c.U.Unify(keyT, kt)
		c.U.Unify(valT, vt)
	}
	return types.MapOf(keyT, valT)
}

func (c *Checker) VisitStructLit(e *parser.StructLit) interface{} {
	sdef, ok := c.Tables.Structs[e.TypeName]
	if !ok {
		return c.errorAt(e.Span(), "undefined struct %s", e.TypeName)
	}
	for i, fname := range e.Fields {
		vt := c.CheckExpr(e.Values[i])
		ft, ok := sdef.Fields[fname]
		if !ok {
			c.errorAt(e.Span(), "struct %s has no field `%s`", e.TypeName, fname)
			continue
		}
		if err := c.U.Unify(ft, vt); err != nil {
			c.errorAt(e.Values[i].Span(), "field %s: %s", fname, err)
		}
	}
	return types.Named(e.TypeName)
}

func (c *Checker) VisitTupleLit(e *parser.TupleLit) interface{} {
	elems := make([]*types.Type, len(e.Elements))
	for i, el := range e.Elements {
		elems[i] = c.CheckExpr(el)
	}
	return types.TupleOf(elems...)
}

func (c *Checker) VisitListComp(e *parser.ListComp) interface{} {
	iterT := c.CheckExpr(e.Iter)
	elemT := elementType(iterT)
	c.pushScope()
	defer c.popScope()
	c.define(e.BindVar, &types.VarInfo{Type: elemT})
	if e.Cond != nil {
		condT := c.CheckExpr(e.Cond)
		if err := c.U.Unify(condT, types.Bool()); err != nil {
			c.errorAt(e.Cond.Span(), "comprehension filter must be Bool, found %s", condT)
		}
	}
	resultT := c.CheckExpr(e.Elem)
	if e.IsSet {
		return types.SetOf(resultT)
	}
	return types.ArrayOf(resultT)
}

func (c *Checker) VisitMapOp(e *parser.MapOp) interface{} {
	recvT := c.CheckExpr(e.Receiver)
	elemT := elementType(recvT)
	c.pushScope()
	defer c.popScope()
	c.define(e.ElemVar, &types.VarInfo{Type: elemT})
	resultT := c.CheckExpr(e.Body)
	return types.ArrayOf(resultT)
}

func (c *Checker) VisitFilterOp(e *parser.FilterOp) interface{} {
	recvT := c.CheckExpr(e.Receiver)
	elemT := elementType(recvT)
	c.pushScope()
	defer c.popScope()
	c.define(e.ElemVar, &types.VarInfo{Type: elemT})
	predT := c.CheckExpr(e.Pred)
	if err := c.U.Unify(predT, types.Bool()); err != nil {
		c.errorAt(e.Pred.Span(), "filter predicate must be Bool, found %s", predT)
	}
	return recvT
}

// VisitReduceOp types a reduction. Reducing a non-array value yields Void
// silently, matching the source's permissive behavior (spec §9 "Reduce over
// non-arrays"); a strict flag could promote this to TypeError but default
// behavior must match source.
func (c *Checker) VisitReduceOp(e *parser.ReduceOp) interface{} {
	recvT := c.CheckExpr(e.Receiver)
	if recvT.Kind != types.KArray {
		return types.Unit()
	}
	elemT := recvT.Elem
	switch e.Kind {
	case parser.ReduceSum, parser.ReduceProduct, parser.ReduceMin, parser.ReduceMax, parser.ReduceAvg:
		return elemT
	case parser.ReduceAll, parser.ReduceAny:
		return types.Bool()
	case parser.ReduceCount:
		return types.Int()
	case parser.ReduceFirst, parser.ReduceLast:
		return types.OptionalOf(elemT)
	case parser.ReduceCustom:
		c.pushScope()
		defer c.popScope()
		accT := c.CheckExpr(e.Init)
		c.define(e.Acc, &types.VarInfo{Type: accT})
		c.define(e.ElemVar, &types.VarInfo{Type: elemT})
		bodyT := c.CheckExpr(e.Body)
		c.U.Unify(accT, bodyT)
		return accT
	default:
		return types.Unknown()
	}
}

func (c *Checker) VisitMatch(e *parser.Match) interface{} {
	scrutT := c.CheckExpr(e.Scrutinee)
	var resultT *types.Type
	for _, arm := range e.Arms {
		c.pushScope()
		c.bindPattern(arm.Pattern, scrutT)
		if arm.Guard != nil {
			guardT := c.CheckExpr(arm.Guard)
			if err := c.U.Unify(guardT, types.Bool()); err != nil {
				c.errorAt(arm.Guard.Span(), "match guard must be Bool, found %s", guardT)
			}
		}
		bodyT := c.CheckExpr(arm.Body)
		c.popScope()
		if resultT == nil {
			resultT = bodyT
		} else {
			c.U.Unify(resultT, bodyT)
		}
	}
	c.reportExhaustiveness(e.Span(), scrutT, e.Arms)
	if resultT == nil {
		return types.Unit()
	}
	return resultT
}

func (c *Checker) bindPattern(p parser.Pattern, scrutT *types.Type) {
	switch pat := p.(type) {
	case parser.WildcardPattern:
	case parser.BindingPattern:
		c.define(pat.Name, &types.VarInfo{Type: scrutT})
	case parser.LiteralPattern:
		c.CheckExpr(pat.Value)
	case parser.TuplePattern:
		for i, sub := range pat.Elems {
			elemT := types.Unknown()
			if scrutT.Kind == types.KTuple && i < len(scrutT.Elems) {
				elemT = scrutT.Elems[i]
			}
			c.bindPattern(sub, elemT)
		}
	case parser.ArrayPattern:
		elemT := types.Unknown()
		if scrutT.Kind == types.KArray {
			elemT = scrutT.Elem
		}
		for _, sub := range pat.Elems {
			c.bindPattern(sub, elemT)
		}
	case parser.StructPattern:
		var sdef *types.StructDef
		if scrutT.Kind == types.KNamed {
			sdef = c.Tables.Structs[scrutT.Name]
		}
		for _, fname := range pat.Order {
			ft := types.Unknown()
			if sdef != nil {
				if t, ok := sdef.Fields[fname]; ok {
					ft = t
				}
			}
			c.bindPattern(pat.Fields[fname], ft)
		}
	case parser.VariantPattern:
		var innerT *types.Type
		if scrutT.Kind == types.KNamed {
			if edef, ok := c.Tables.Enums[scrutT.Name]; ok {
				if vd, ok := edef.Variants[pat.Name]; ok && vd.Shape == types.VariantTuple && len(vd.Tuple) > 0 {
					innerT = vd.Tuple[0]
				}
			}
		}
		if scrutT.Kind == types.KOptional && pat.Name == "Some" {
			innerT = scrutT.Elem
		}
		if scrutT.Kind == types.KResult {
			if pat.Name == "Ok" {
				innerT = scrutT.Val
			} else if pat.Name == "Err" {
				innerT = scrutT.Err
			}
		}
		if pat.Inner != nil {
			if innerT == nil {
				innerT = types.Unknown()
			}
			c.bindPattern(pat.Inner, innerT)
		}
	case parser.RangePattern:
		c.CheckExpr(pat.Lo)
		c.CheckExpr(pat.Hi)
	case parser.OrPattern:
		for _, alt := range pat.Alts {
			c.bindPattern(alt, scrutT)
		}
	}
}

// VisitTry types `?`: Result(T,E) -> T, Optional(T) -> T (spec §4.4).
func (c *Checker) VisitTry(e *parser.Try) interface{} {
	t := c.CheckExpr(e.Inner)
	switch t.Kind {
	case types.KResult:
		return t.Val
	case types.KOptional:
		return t.Elem
	default:
		return c.errorAt(e.Span(), "`?` requires Result or Optional, found %s", t)
	}
}

func (c *Checker) VisitUnwrap(e *parser.Unwrap) interface{} {
	t := c.CheckExpr(e.Inner)
	switch t.Kind {
	case types.KResult:
		return t.Val
	case types.KOptional:
		return t.Elem
	default:
		return c.errorAt(e.Span(), "`!` requires Result or Optional, found %s", t)
	}
}

func (c *Checker) VisitTryCatch(e *parser.TryCatch) interface{} {
	bodyT := c.CheckExpr(e.Body)
	c.pushScope()
	c.define(e.ErrVar, &types.VarInfo{Type: types.Str()})
	handlerT := c.CheckExpr(e.Handler)
	c.popScope()
	if err := c.U.Unify(bodyT, handlerT); err != nil {
		return types.Unit()
	}
	return bodyT
}

func (c *Checker) VisitSpawn(e *parser.Spawn) interface{} {
	t := c.CheckExpr(e.Inner)
	if t.Kind == types.KFuture {
		return t
	}
	return types.FutureOf(t)
}

func (c *Checker) VisitAwait(e *parser.Await) interface{} {
	t := c.CheckExpr(e.Inner)
	if t.Kind != types.KFuture {
		return c.errorAt(e.Span(), "await requires a Future, found %s", t)
	}
	return t.Elem
}

func (c *Checker) VisitLazy(e *parser.Lazy) interface{} {
	return types.LazyOf(c.CheckExpr(e.Inner))
}

func (c *Checker) VisitForce(e *parser.Force) interface{} {
	t := c.CheckExpr(e.Inner)
	if t.Kind != types.KLazy {
		return c.errorAt(e.Span(), "force requires a Lazy value, found %s", t)
	}
	return t.Elem
}

// VisitLambda checks each name in the lambda's declared Captures list: it
// must exist in the enclosing scope; ByRef rejects mutable captures and
// ByMutRef rejects immutable ones. Free variables of Body are not computed;
// only the names listed in Captures are checked.
func (c *Checker) VisitLambda(e *parser.Lambda) interface{} {
	c.pushScope()
	paramTypes := make([]*types.Type, len(e.Params))
	for i, p := range e.Params {
		pt := c.U.Fresh()
		paramTypes[i] = pt
		c.define(p, &types.VarInfo{Type: pt})
	}

	for _, name := range e.Captures {
		info, ok := c.lookup(name)
		if !ok {
			c.errorAt(e.Span(), "lambda captures undefined variable `%s`", name)
			continue
		}
		switch e.CaptureMode {
		case parser.CaptureByRef:
			if info.IsMut {
				c.errorAt(e.Span(), "cannot capture mutable variable `%s` by reference", name)
			}
		case parser.CaptureByMutRef:
			if !info.IsMut {
				c.errorAt(e.Span(), "cannot capture immutable variable `%s` by mutable reference", name)
			}
		}
	}

	bodyT := c.CheckExpr(e.Body)
	c.popScope()
	return types.Fn(paramTypes, bodyT, nil)
}

// VisitComptime types the body and returns that type. The body is not
// evaluated or constant-folded here.
func (c *Checker) VisitComptime(e *parser.Comptime) interface{} {
	return c.CheckExpr(e.Body)
}

func (c *Checker) VisitAssert(e *parser.Assert) interface{} {
	condT := c.CheckExpr(e.Cond)
	if err := c.U.Unify(condT, types.Bool()); err != nil {
		c.errorAt(e.Cond.Span(), "assert condition must be Bool, found %s", condT)
	}
	if e.Msg != nil {
		msgT := c.CheckExpr(e.Msg)
		if err := c.U.Unify(msgT, types.Str()); err != nil {
			c.errorAt(e.Msg.Span(), "assert message must be Str, found %s", msgT)
		}
	}
	return types.Unit()
}

// VisitOld types Old(e) as e's own type; placement (contract-only) is
// enforced as a warning here since "semantic placement is enforced
// elsewhere" per spec §4.4.
func (c *Checker) VisitOld(e *parser.Old) interface{} {
	if !c.insideContract {
		c.warnAt(e.Span(), "Old(...) used outside a requires/ensures clause")
	}
	return c.CheckExpr(e.Inner)
}

func (c *Checker) VisitBlock(e *parser.Block) interface{} {
	c.pushScope()
	defer c.popScope()
	var last *types.Type = types.Unit()
	for _, s := range e.Stmts {
		last = c.CheckExpr(s)
	}
	return last
}

func (c *Checker) VisitErrorNode(e *parser.ErrorNode) interface{} {
	return types.Unknown()
}
