// Package typecheck implements the type checker (spec component C5):
// statement/expression typing, generics instantiation, pattern typing, and
// trait/impl resolution, built on top of internal/types (C3), internal/unify
// (C4) and internal/exhaustive (C6).
package typecheck

import (
	"fmt"

	"vela/internal/diagnostics"
	"vela/internal/errors"
	"vela/internal/exhaustive"
	"vela/internal/parser"
	"vela/internal/types"
	"vela/internal/unify"
)

// instKey memoizes generic instantiations by (name, ordered type args),
// spec §9 "Cyclic references" / SPEC_FULL §3.
type instKey struct {
	name string
	args string
}

// Checker owns the environment and tables spec §3 lists, and the unifier
// used to elaborate every expression's Type.
type Checker struct {
	Tables *types.Tables
	U      *unify.Unifier

	scopes []map[string]*types.VarInfo

	typeAliases map[string]*types.Type
	typeParams  []map[string]*types.Type

	currentFnRet  *types.Type
	currentFnName string
	insideContract bool

	instantiations map[instKey]*types.Type

	Diagnostics []*errors.Diagnostic

	// StrictExhaustiveness promotes C6 findings to errors instead of
	// warnings (spec §4.4, §9; SPEC_FULL §1 config flag).
	StrictExhaustiveness bool
}

func New() *Checker {
	c := &Checker{
		Tables:         types.NewTables(),
		U:              unify.New(),
		typeAliases:    make(map[string]*types.Type),
		instantiations: make(map[instKey]*types.Type),
	}
	c.pushScope()
	return c
}

func (c *Checker) pushScope() { c.scopes = append(c.scopes, make(map[string]*types.VarInfo)) }
func (c *Checker) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *Checker) define(name string, info *types.VarInfo) {
	c.scopes[len(c.scopes)-1][name] = info
}

func (c *Checker) lookup(name string) (*types.VarInfo, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (c *Checker) visibleNames() []string {
	var names []string
	for _, s := range c.scopes {
		for n := range s {
			names = append(names, n)
		}
	}
	return names
}

func (c *Checker) errorAt(sp parser.Span, format string, args ...interface{}) *types.Type {
	msg := fmt.Sprintf(format, args...)
	c.Diagnostics = append(c.Diagnostics, errors.NewError(msg, sp.Start, sp.End))
	return types.Unknown()
}

func (c *Checker) warnAt(sp parser.Span, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.Diagnostics = append(c.Diagnostics, errors.NewWarning(msg, sp.Start, sp.End))
}

func (c *Checker) suggest(name string, kind string) string {
	var pool []string
	for _, n := range c.visibleNames() {
		pool = append(pool, n)
	}
	if kind == "function" {
		for n := range c.Tables.Functions {
			pool = append(pool, n)
		}
	}
	if kind == "type" {
		for n := range c.Tables.Structs {
			pool = append(pool, n)
		}
		for n := range c.Tables.Enums {
			pool = append(pool, n)
		}
	}
	return diagnostics.ClosestMatch(name, pool, 3)
}

// Instantiations exposes the generic-instantiation memo table read-only, so
// a monomorphizing backend can reuse it (SPEC_FULL §3).
func (c *Checker) Instantiations() map[string]*types.Type {
	out := make(map[string]*types.Type, len(c.instantiations))
	for k, v := range c.instantiations {
		out[k.name+k.args] = v
	}
	return out
}

// CheckProgram runs the three passes spec §4.4 describes:
//  1. traits, then struct/enum/union headers, then fields/methods/impls
//  2. function signatures (including methods)
//  3. function bodies, then top-level expressions
func (c *Checker) CheckProgram(p *parser.Program) {
	for _, t := range p.Traits {
		c.registerTrait(t)
	}
	for _, s := range p.Structs {
		c.registerStructHeader(s)
	}
	for _, e := range p.Enums {
		c.registerEnumHeader(e)
	}
	for _, u := range p.Unions {
		c.registerUnionHeader(u)
	}
	for _, s := range p.Structs {
		c.registerStructBody(s)
	}
	for _, e := range p.Enums {
		c.registerEnumBody(e)
	}
	for _, u := range p.Unions {
		c.registerUnionBody(u)
	}
	for _, impl := range p.Impls {
		c.registerImpl(impl)
	}

	for _, f := range p.Funcs {
		c.registerFunctionSig(f)
	}

	for _, f := range p.Funcs {
		c.checkFunctionBody(f)
	}
	for _, e := range p.TopLevel {
		c.CheckExpr(e)
	}
}

func (c *Checker) registerTrait(t parser.TraitDecl) {
	def := &types.TraitDef{Name: t.Name, Generics: t.Generics, Methods: make(map[string]*types.FunctionSig)}
	c.pushTypeParams(t.Generics)
	for _, m := range t.Methods {
		def.Methods[m.Name] = c.resolveSig(m)
	}
	c.popTypeParams()
	c.Tables.Traits[t.Name] = def
}

func (c *Checker) registerStructHeader(s parser.StructDecl) {
	c.Tables.Structs[s.Name] = &types.StructDef{
		Name: s.Name, Generics: s.Generics,
		Fields: make(map[string]*types.Type), Methods: make(map[string]*types.FunctionSig),
	}
}

func (c *Checker) registerStructBody(s parser.StructDecl) {
	def := c.Tables.Structs[s.Name]
	c.pushTypeParams(s.Generics)
	for _, f := range s.Fields {
		t := c.resolveTypeRef(f.TypeExpr)
		def.Fields[f.Name] = t
		def.FieldOrder = append(def.FieldOrder, f.Name)
	}
	for _, m := range s.Methods {
		def.Methods[m.Name] = c.resolveSig(m)
	}
	c.popTypeParams()
}

func (c *Checker) registerEnumHeader(e parser.EnumDecl) {
	c.Tables.Enums[e.Name] = &types.EnumDef{
		Name: e.Name, Generics: e.Generics,
		Variants: make(map[string]*types.VariantDef), Methods: make(map[string]*types.FunctionSig),
	}
}

func (c *Checker) registerEnumBody(e parser.EnumDecl) {
	def := c.Tables.Enums[e.Name]
	c.pushTypeParams(e.Generics)
	for _, v := range e.Variants {
		if _, dup := def.Variants[v.Name]; dup {
			c.errorAt(e.Span, "duplicate variant name %q in enum %s", v.Name, e.Name)
			continue
		}
		vd := &types.VariantDef{}
		switch v.Shape {
		case parser.ShapeUnit:
			vd.Shape = types.VariantUnit
		case parser.ShapeTuple:
			vd.Shape = types.VariantTuple
			for _, tr := range v.Tuple {
				vd.Tuple = append(vd.Tuple, c.resolveTypeRef(tr))
			}
		case parser.ShapeStruct:
			vd.Shape = types.VariantStruct
			vd.Fields = make(map[string]*types.Type)
			for _, f := range v.Fields {
				vd.Fields[f.Name] = c.resolveTypeRef(f.TypeExpr)
				vd.Order = append(vd.Order, f.Name)
			}
		}
		def.Variants[v.Name] = vd
		def.Order = append(def.Order, v.Name)
	}
	for _, m := range e.Methods {
		def.Methods[m.Name] = c.resolveSig(m)
	}
	c.popTypeParams()
}

func (c *Checker) registerUnionHeader(u parser.UnionDecl) {
	c.Tables.Unions[u.Name] = &types.UnionDef{Name: u.Name, Generics: u.Generics, Fields: make(map[string]*types.Type)}
}

func (c *Checker) registerUnionBody(u parser.UnionDecl) {
	def := c.Tables.Unions[u.Name]
	c.pushTypeParams(u.Generics)
	for _, f := range u.Fields {
		def.Fields[f.Name] = c.resolveTypeRef(f.TypeExpr)
	}
	c.popTypeParams()
}

func (c *Checker) registerImpl(impl parser.ImplDecl) {
	c.pushTypeParams(impl.Generics)
	methods := make(map[string]*types.FunctionSig)
	for _, m := range impl.Methods {
		methods[m.Name] = c.resolveSig(m)
	}
	c.popTypeParams()
	c.Tables.AddImpl(impl.Trait, impl.Target, methods)
}

func (c *Checker) registerFunctionSig(f parser.FunctionDecl) {
	c.Tables.Functions[f.Name] = c.resolveSig(f)
}

func (c *Checker) resolveSig(f parser.FunctionDecl) *types.FunctionSig {
	c.pushTypeParams(f.Generics)
	defer c.popTypeParams()

	sig := &types.FunctionSig{
		Name: f.Name, Generics: f.Generics, IsAsync: f.IsAsync, IsVararg: f.IsVararg,
	}
	for _, p := range f.Params {
		pt := c.resolveTypeRef(p.TypeExpr)
		sig.Params = append(sig.Params, types.ParamInfo{Name: p.Name, Type: pt, HasDefault: p.HasDefault})
	}
	sig.RequiredParams = sig.MinArgs()
	ret := c.resolveTypeRef(f.RetType)
	if f.IsAsync {
		ret = types.FutureOf(ret)
	}
	sig.Ret = ret
	return sig
}

func (c *Checker) pushTypeParams(generics []string) {
	m := make(map[string]*types.Type, len(generics))
	for _, g := range generics {
		m[g] = types.Generic(g)
	}
	c.typeParams = append(c.typeParams, m)
}

func (c *Checker) popTypeParams() { c.typeParams = c.typeParams[:len(c.typeParams)-1] }

func (c *Checker) isTypeParam(name string) (*types.Type, bool) {
	for i := len(c.typeParams) - 1; i >= 0; i-- {
		if t, ok := c.typeParams[i][name]; ok {
			return t, true
		}
	}
	return nil, false
}

// resolveTypeRef turns a syntactic TypeRef into a concrete *types.Type,
// consulting the active type-parameter scope so a bare name resolves to
// Generic(name) there and Named(name) (or a type alias) otherwise.
func (c *Checker) resolveTypeRef(tr *parser.TypeRef) *types.Type {
	if tr == nil {
		return types.Unit()
	}
	switch tr.Kind {
	case parser.TRBase:
		switch tr.Name {
		case "Int":
			return types.Int()
		case "Float":
			return types.Float()
		case "Bool":
			return types.Bool()
		case "Str":
			return types.Str()
		case "Unit":
			return types.Unit()
		case "Never":
			return types.Never()
		case "Any":
			return types.Any()
		default:
			return types.Unknown()
		}
	case parser.TRGeneric:
		if t, ok := c.isTypeParam(tr.Name); ok {
			return t
		}
		return types.Generic(tr.Name)
	case parser.TRNamed:
		if t, ok := c.isTypeParam(tr.Name); ok {
			return t
		}
		if alias, ok := c.typeAliases[tr.Name]; ok {
			return alias
		}
		generics := make([]*types.Type, len(tr.Generics))
		for i, g := range tr.Generics {
			generics[i] = c.resolveTypeRef(g)
		}
		return types.Named(tr.Name, generics...)
	case parser.TRArray:
		return types.ArrayOf(c.resolveTypeRef(tr.Elem))
	case parser.TRSet:
		return types.SetOf(c.resolveTypeRef(tr.Elem))
	case parser.TRMap:
		return types.MapOf(c.resolveTypeRef(tr.Key), c.resolveTypeRef(tr.Val))
	case parser.TRTuple:
		elems := make([]*types.Type, len(tr.Elems))
		for i, e := range tr.Elems {
			elems[i] = c.resolveTypeRef(e)
		}
		return types.TupleOf(elems...)
	case parser.TROptional:
		return types.OptionalOf(c.resolveTypeRef(tr.Elem))
	case parser.TRResult:
		return types.ResultOf(c.resolveTypeRef(tr.Val), c.resolveTypeRef(tr.Err))
	case parser.TRFuture:
		return types.FutureOf(c.resolveTypeRef(tr.Elem))
	case parser.TRChannel:
		return types.ChannelOf(c.resolveTypeRef(tr.Elem))
	case parser.TRFunction:
		params := make([]*types.Type, len(tr.Params))
		for i, p := range tr.Params {
			params[i] = c.resolveTypeRef(p)
		}
		return types.Fn(params, c.resolveTypeRef(tr.Ret), nil)
	case parser.TRRef:
		return types.RefOf(c.resolveTypeRef(tr.Elem))
	case parser.TRRefMut:
		return types.RefMutOf(c.resolveTypeRef(tr.Elem))
	default:
		return types.Unknown()
	}
}

func (c *Checker) checkFunctionBody(f parser.FunctionDecl) {
	sig := c.Tables.Functions[f.Name]
	c.pushScope()
	c.pushTypeParams(f.Generics)
	for _, p := range sig.Params {
		c.define(p.Name, &types.VarInfo{Type: p.Type})
	}
	prevRet, prevName := c.currentFnRet, c.currentFnName
	c.currentFnRet = sig.Ret
	c.currentFnName = f.Name

	for _, r := range f.Requires {
		c.insideContract = true
		cond := c.CheckExpr(r)
		c.insideContract = false
		if err := c.U.Unify(cond, types.Bool()); err != nil {
			c.errorAt(r.Span(), "requires clause must be Bool: %s", err)
		}
	}

	bodyT := types.Unit()
	if f.Body != nil {
		bodyT = c.CheckExpr(f.Body)
	}
	retUnwrapped := sig.Ret
	if sig.IsAsync && retUnwrapped.Kind == types.KFuture {
		retUnwrapped = retUnwrapped.Elem
	}
	// Reference subtyping on return: &T auto-derefs once (spec §4.3).
	bt := bodyT
	if bt != nil && (bt.Kind == types.KRef || bt.Kind == types.KRefMut) {
		bt = bt.Elem
	}
	if err := c.U.Unify(retUnwrapped, bt); err != nil {
		c.errorAt(f.Span, "function %s: body type does not match declared return type: %s", f.Name, err)
	}

	for _, e := range f.Ensures {
		c.insideContract = true
		cond := c.CheckExpr(e)
		c.insideContract = false
		if err := c.U.Unify(cond, types.Bool()); err != nil {
			c.errorAt(e.Span(), "ensures clause must be Bool: %s", err)
		}
	}

	c.currentFnRet, c.currentFnName = prevRet, prevName
	c.popTypeParams()
	c.popScope()
}

// reportExhaustiveness delegates to C6 and records warnings (or errors, when
// StrictExhaustiveness is set) per spec §4.4/§9.
func (c *Checker) reportExhaustiveness(sp parser.Span, scrutType *types.Type, arms []parser.MatchArm) {
	result := exhaustive.Check(c.Tables, scrutType, arms)
	if !result.IsExhaustive {
		msg := fmt.Sprintf("non-exhaustive match, missing: %v", result.MissingPatterns)
		if c.StrictExhaustiveness {
			c.errorAt(sp, "%s", msg)
		} else {
			c.warnAt(sp, "%s", msg)
		}
	}
	for _, idx := range result.UnreachableArms {
		msg := fmt.Sprintf("unreachable match arm at index %d", idx)
		if c.StrictExhaustiveness {
			c.errorAt(arms[idx].Span, "%s", msg)
		} else {
			c.warnAt(arms[idx].Span, "%s", msg)
		}
	}
}
