// Package types implements the type domain (spec component C3): type
// terms, generalized schemes, and the program-wide definition tables the
// checker consults (functions, structs, enums, unions, traits, impls).
package types

import "fmt"

// Kind discriminates the Type term variants of spec §3.
type Kind int

const (
	KInt Kind = iota
	KFloat
	KBool
	KStr
	KUnit
	KUnknown
	KNever
	KAny
	KArray
	KSet
	KMap
	KTuple
	KOptional
	KResult
	KFuture
	KChannel
	KFunction
	KFnPtr
	KNamed
	KGeneric
	KVar
	KRef
	KRefMut
	KPointer
	KSlice
	KSliceMut
	KLazy
	KLinear
	KAffine
	KDynTrait
	KVector
)

// EffectSet is an opaque set of effect names a Function type may carry.
type EffectSet map[string]struct{}

// Type is an immutable term. Only the fields relevant to Kind are populated;
// this mirrors the teacher's tagged-struct idiom (bytecode.Instruction)
// rather than a Go interface hierarchy, since types are compared and
// substituted structurally far more often than dispatched polymorphically.
type Type struct {
	Kind Kind

	// Compound payloads, by Kind:
	Elem     *Type   // Array, Set, Optional, Ref, RefMut, Pointer, Slice, SliceMut, Lazy, Linear, Affine, Vector
	Key      *Type   // Map
	Val      *Type   // Map, Result (Ok), Channel reuses Elem
	Err      *Type   // Result
	Elems    []*Type // Tuple
	Params   []*Type // Function, FnPtr
	Ret      *Type   // Function, FnPtr
	Effects  EffectSet
	Name     string  // Named, Generic
	Generics []*Type // Named
	Var      uint32  // Var
	Lanes    int     // Vector
	Trait    string  // DynTrait
}

func Int() *Type     { return &Type{Kind: KInt} }
func Float() *Type   { return &Type{Kind: KFloat} }
func Bool() *Type    { return &Type{Kind: KBool} }
func Str() *Type     { return &Type{Kind: KStr} }
func Unit() *Type    { return &Type{Kind: KUnit} }
func Unknown() *Type { return &Type{Kind: KUnknown} }
func Never() *Type   { return &Type{Kind: KNever} }
func Any() *Type     { return &Type{Kind: KAny} }

func ArrayOf(t *Type) *Type    { return &Type{Kind: KArray, Elem: t} }
func SetOf(t *Type) *Type      { return &Type{Kind: KSet, Elem: t} }
func MapOf(k, v *Type) *Type   { return &Type{Kind: KMap, Key: k, Val: v} }
func TupleOf(ts ...*Type) *Type { return &Type{Kind: KTuple, Elems: ts} }
func OptionalOf(t *Type) *Type { return &Type{Kind: KOptional, Elem: t} }
func ResultOf(ok, err *Type) *Type { return &Type{Kind: KResult, Val: ok, Err: err} }
func FutureOf(t *Type) *Type   { return &Type{Kind: KFuture, Elem: t} }
func ChannelOf(t *Type) *Type  { return &Type{Kind: KChannel, Elem: t} }
func RefOf(t *Type) *Type      { return &Type{Kind: KRef, Elem: t} }
func RefMutOf(t *Type) *Type   { return &Type{Kind: KRefMut, Elem: t} }
func LazyOf(t *Type) *Type     { return &Type{Kind: KLazy, Elem: t} }

func Fn(params []*Type, ret *Type, effects EffectSet) *Type {
	return &Type{Kind: KFunction, Params: params, Ret: ret, Effects: effects}
}

func Named(name string, generics ...*Type) *Type {
	return &Type{Kind: KNamed, Name: name, Generics: generics}
}

func Generic(name string) *Type { return &Type{Kind: KGeneric, Name: name} }
func Var(id uint32) *Type       { return &Type{Kind: KVar, Var: id} }

// String renders a Type for diagnostics.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KInt:
		return "Int"
	case KFloat:
		return "Float"
	case KBool:
		return "Bool"
	case KStr:
		return "Str"
	case KUnit:
		return "Unit"
	case KUnknown:
		return "Unknown"
	case KNever:
		return "Never"
	case KAny:
		return "Any"
	case KArray:
		return fmt.Sprintf("Array<%s>", t.Elem)
	case KSet:
		return fmt.Sprintf("Set<%s>", t.Elem)
	case KMap:
		return fmt.Sprintf("Map<%s, %s>", t.Key, t.Val)
	case KTuple:
		return fmt.Sprintf("Tuple%v", t.Elems)
	case KOptional:
		return fmt.Sprintf("Optional<%s>", t.Elem)
	case KResult:
		return fmt.Sprintf("Result<%s, %s>", t.Val, t.Err)
	case KFuture:
		return fmt.Sprintf("Future<%s>", t.Elem)
	case KChannel:
		return fmt.Sprintf("Channel<%s>", t.Elem)
	case KFunction, KFnPtr:
		return fmt.Sprintf("Fn%v -> %s", t.Params, t.Ret)
	case KNamed:
		if len(t.Generics) == 0 {
			return t.Name
		}
		return fmt.Sprintf("%s%v", t.Name, t.Generics)
	case KGeneric:
		return t.Name
	case KVar:
		return fmt.Sprintf("?%d", t.Var)
	case KRef:
		return fmt.Sprintf("&%s", t.Elem)
	case KRefMut:
		return fmt.Sprintf("&mut %s", t.Elem)
	case KPointer:
		return fmt.Sprintf("*%s", t.Elem)
	case KSlice:
		return fmt.Sprintf("[]%s", t.Elem)
	case KSliceMut:
		return fmt.Sprintf("[]mut %s", t.Elem)
	case KLazy:
		return fmt.Sprintf("Lazy<%s>", t.Elem)
	case KLinear:
		return fmt.Sprintf("Linear<%s>", t.Elem)
	case KAffine:
		return fmt.Sprintf("Affine<%s>", t.Elem)
	case KDynTrait:
		return fmt.Sprintf("dyn %s", t.Trait)
	case KVector:
		return fmt.Sprintf("Vector<%s, %d>", t.Elem, t.Lanes)
	default:
		return "?"
	}
}

// Scheme is a generalized ∀αs. T used for let-polymorphism of named
// functions (spec §3, §4.3 "Generalization").
type Scheme struct {
	Quantifiers []string
	Body        *Type
}

// Linearity tags a binding's ownership discipline (spec §4.4).
type Linearity int

const (
	Unrestricted Linearity = iota
	Linear
	Affine
)

// VarInfo is a scope entry (spec §3 "scopes").
type VarInfo struct {
	Type           *Type
	IsMut          bool
	Linearity      Linearity
	UsedOnce       bool
	IntroducedSpan [2]int
}

// ParamInfo describes one declared parameter.
type ParamInfo struct {
	Name       string
	Type       *Type
	HasDefault bool
}

// FunctionSig is a function's full declared signature (spec §3 "functions").
type FunctionSig struct {
	Name          string
	Generics      []string
	GenericBounds map[string][]string // generic name -> required trait names
	Params        []ParamInfo
	Ret           *Type
	IsAsync       bool
	IsVararg      bool
	RequiredParams int
	Contracts     []Contract
	Effects       EffectSet
}

// Contract is a requires/ensures clause (SPEC_FULL §3); the checker types
// it as Bool but never attempts to prove it (spec §1 Non-goals).
type Contract struct {
	Kind string // "requires" | "ensures"
	Expr interface{}
}

func (f *FunctionSig) MinArgs() int { return len(f.Params) - defaultCount(f.Params) }
func (f *FunctionSig) MaxArgs() int { return len(f.Params) }

func defaultCount(ps []ParamInfo) int {
	n := 0
	for _, p := range ps {
		if p.HasDefault {
			n++
		}
	}
	return n
}

// VariantShape distinguishes an enum variant's payload shape.
type VariantShape int

const (
	VariantUnit VariantShape = iota
	VariantTuple
	VariantStruct
)

type VariantDef struct {
	Shape  VariantShape
	Tuple  []*Type
	Fields map[string]*Type
	Order  []string // field declaration order, for VariantStruct
}

type StructDef struct {
	Name       string
	Generics   []string
	FieldOrder []string
	Fields     map[string]*Type
	Methods    map[string]*FunctionSig
}

type EnumDef struct {
	Name     string
	Generics []string
	Variants map[string]*VariantDef
	Order    []string // variant declaration order, for exhaustiveness reporting
	Methods  map[string]*FunctionSig
}

type UnionDef struct {
	Name     string
	Generics []string
	Fields   map[string]*Type
}

type TraitDef struct {
	Name     string
	Generics []string
	Methods  map[string]*FunctionSig
}

// ImplKey identifies one (trait, target-type-name) impl block.
type ImplKey struct {
	Trait  string
	Target string
}

// Tables is the full set of program-wide definition tables spec §3 lists.
type Tables struct {
	Functions map[string]*FunctionSig
	Structs   map[string]*StructDef
	Enums     map[string]*EnumDef
	Unions    map[string]*UnionDef
	Traits    map[string]*TraitDef
	Impls     map[ImplKey]map[string]*FunctionSig
	Aliases   map[string]*Type
}

func NewTables() *Tables {
	return &Tables{
		Functions: make(map[string]*FunctionSig),
		Structs:   make(map[string]*StructDef),
		Enums:     make(map[string]*EnumDef),
		Unions:    make(map[string]*UnionDef),
		Traits:    make(map[string]*TraitDef),
		Impls:     make(map[ImplKey]map[string]*FunctionSig),
		Aliases:   make(map[string]*Type),
	}
}

// LookupImpl finds a trait method for a concrete target type name.
func (t *Tables) LookupImpl(trait, target, method string) (*FunctionSig, bool) {
	methods, ok := t.Impls[ImplKey{Trait: trait, Target: target}]
	if !ok {
		return nil, false
	}
	sig, ok := methods[method]
	return sig, ok
}

func (t *Tables) AddImpl(trait, target string, methods map[string]*FunctionSig) {
	t.Impls[ImplKey{Trait: trait, Target: target}] = methods
}
