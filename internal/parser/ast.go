// Package parser defines the typed-AST contract consumed from the surface
// parser (spec §6a). The parser itself — tokenizing and building this tree
// from source text — is an out-of-scope collaborator (spec §1); this
// package only fixes the node kinds the type checker (C5) and lowerer (C7)
// are built against, the way the teacher's internal/parser/ast.go fixed the
// node kinds its compiler.go dispatched on.
package parser

// Span is a source location every node carries (spec §6a).
type Span struct {
	Start int
	End   int
}

// Expr is any expression node. The visitor dispatch mirrors the teacher's
// ExprVisitor pattern (internal/parser/ast.go, internal/compiler/compiler.go)
// generalized to the full node set spec §4.4 types.
type Expr interface {
	Accept(v ExprVisitor) interface{}
	Span() Span
}

type Base struct{ S Span }

func (b Base) Span() Span { return b.S }

// Literal: int/float/bool/string/bytes/void constants.
type Literal struct {
	Base
	Value interface{}
}

func (e *Literal) Accept(v ExprVisitor) interface{} { return v.VisitLiteral(e) }

// StringInterp: `a ${b} c` — Parts alternate raw strings (as *Literal) and
// embedded expressions.
type StringInterp struct {
	Base
	Parts []Expr
}

func (e *StringInterp) Accept(v ExprVisitor) interface{} { return v.VisitStringInterp(e) }

// Ident: a variable reference.
type Ident struct {
	Base
	Name string
}

func (e *Ident) Accept(v ExprVisitor) interface{} { return v.VisitIdent(e) }

// SelfCall: @(args...) — recursive reference to the enclosing function.
type SelfCall struct {
	Base
	Args []Expr
}

func (e *SelfCall) Accept(v ExprVisitor) interface{} { return v.VisitSelfCall(e) }

// Binary: a OP b.
type Binary struct {
	Base
	Op          string
	Left, Right Expr
}

func (e *Binary) Accept(v ExprVisitor) interface{} { return v.VisitBinary(e) }

// Unary: OP operand ("-", "!", "~").
type Unary struct {
	Base
	Op      string
	Operand Expr
}

func (e *Unary) Accept(v ExprVisitor) interface{} { return v.VisitUnary(e) }

// If / Ternary: cond ? then : else, also used for `if cond { } else { }`.
type If struct {
	Base
	Cond Expr
	Then Expr
	Else Expr // nil if no else branch
}

func (e *If) Accept(v ExprVisitor) interface{} { return v.VisitIf(e) }

// While: condition-guarded loop; BindVar names the loop variable
// when While is used to model a `for v in iter` desugaring, else "".
type While struct {
	Base
	Cond    Expr
	Body    Expr
	BindVar string
	Iter    Expr // non-nil for for-in form; Cond unused in that case
}

func (e *While) Accept(v ExprVisitor) interface{} { return v.VisitWhile(e) }

// Let: binds Value to Name with the given ownership tag, then evaluates Body.
type Let struct {
	Base
	Name      string
	Ownership Ownership
	Value     Expr
	Body      Expr
}

func (e *Let) Accept(v ExprVisitor) interface{} { return v.VisitLet(e) }

type Ownership int

const (
	OwnRegular Ownership = iota
	OwnLinear
	OwnAffine
	OwnMove
)

// Assign: x = value (expression-valued; pushes value back).
type Assign struct {
	Base
	Name  string
	Value Expr
}

func (e *Assign) Accept(v ExprVisitor) interface{} { return v.VisitAssign(e) }

// Call: callee(args...). Callee is a bare name for the common case.
type Call struct {
	Base
	Callee string
	Args   []Expr
}

func (e *Call) Accept(v ExprVisitor) interface{} { return v.VisitCall(e) }

// FieldAccess: object.field.
type FieldAccess struct {
	Base
	Object Expr
	Field  string
}

func (e *FieldAccess) Accept(v ExprVisitor) interface{} { return v.VisitFieldAccess(e) }

// MethodCall: receiver.method(args...) — resolved via the impls table.
type MethodCall struct {
	Base
	Receiver Expr
	Method   string
	Args     []Expr
}

func (e *MethodCall) Accept(v ExprVisitor) interface{} { return v.VisitMethodCall(e) }

// Index: object[index].
type Index struct {
	Base
	Object Expr
	Index  Expr
}

func (e *Index) Accept(v ExprVisitor) interface{} { return v.VisitIndex(e) }

// ArrayLit / SetLit: [a, b, c].
type ArrayLit struct {
	Base
	Elements []Expr
}

func (e *ArrayLit) Accept(v ExprVisitor) interface{} { return v.VisitArrayLit(e) }

type SetLit struct {
	Base
	Elements []Expr
}

func (e *SetLit) Accept(v ExprVisitor) interface{} { return v.VisitSetLit(e) }

// MapLit: {k: v, ...}.
type MapLit struct {
	Base
	Keys, Values []Expr
}

func (e *MapLit) Accept(v ExprVisitor) interface{} { return v.VisitMapLit(e) }

// StructLit: Name{field: value, ...}, or the Name(a,b,c) tuple-sugar form
// (spec §4.4 "Struct-tuple-literal sugar") already desugared by the time it
// reaches this node — Fields is already in field-declaration order.
type StructLit struct {
	Base
	TypeName string
	Fields   []string
	Values   []Expr
}

func (e *StructLit) Accept(v ExprVisitor) interface{} { return v.VisitStructLit(e) }

// TupleLit: (a, b, c).
type TupleLit struct {
	Base
	Elements []Expr
}

func (e *TupleLit) Accept(v ExprVisitor) interface{} { return v.VisitTupleLit(e) }

// ListComp: [expr for bindVar in iter if cond].
type ListComp struct {
	Base
	Elem    Expr
	BindVar string
	Iter    Expr
	Cond    Expr // nil if no filter clause
	IsSet   bool
}

func (e *ListComp) Accept(v ExprVisitor) interface{} { return v.VisitListComp(e) }

// MapOp / FilterOp / ReduceOp: receiver./@(body), receiver./?(pred),
// receiver./+ and friends.
type MapOp struct {
	Base
	Receiver Expr
	ElemVar  string
	Body     Expr
}

func (e *MapOp) Accept(v ExprVisitor) interface{} { return v.VisitMapOp(e) }

type FilterOp struct {
	Base
	Receiver Expr
	ElemVar  string
	Pred     Expr
}

func (e *FilterOp) Accept(v ExprVisitor) interface{} { return v.VisitFilterOp(e) }

type ReduceKind int

const (
	ReduceSum ReduceKind = iota
	ReduceProduct
	ReduceMin
	ReduceMax
	ReduceAll
	ReduceAny
	ReduceCount
	ReduceFirst
	ReduceLast
	ReduceAvg
	ReduceCustom
)

type ReduceOp struct {
	Base
	Receiver Expr
	Kind     ReduceKind
	ElemVar  string
	Acc      string // accumulator var name, custom reduce only
	Body     Expr   // custom reduce only
	Init     Expr
}

func (e *ReduceOp) Accept(v ExprVisitor) interface{} { return v.VisitReduceOp(e) }

// Pattern is a match-arm pattern (spec §4.6.1).
type Pattern interface {
	patternNode()
}

type WildcardPattern struct{}
type LiteralPattern struct{ Value Expr }
type BindingPattern struct{ Name string }
type TuplePattern struct{ Elems []Pattern }
type ArrayPattern struct{ Elems []Pattern }
type StructPattern struct {
	Fields map[string]Pattern
	Order  []string
}
type VariantPattern struct {
	Name  string
	Inner Pattern // nil for unit variants
}
type RangePattern struct{ Lo, Hi Expr }
type OrPattern struct{ Alts []Pattern }

func (WildcardPattern) patternNode() {}
func (LiteralPattern) patternNode()  {}
func (BindingPattern) patternNode()  {}
func (TuplePattern) patternNode()    {}
func (ArrayPattern) patternNode()    {}
func (StructPattern) patternNode()   {}
func (VariantPattern) patternNode()  {}
func (RangePattern) patternNode()    {}
func (OrPattern) patternNode()       {}

// MatchArm: one `pattern [if guard] => body` clause.
type MatchArm struct {
	Pattern Pattern
	Guard   Expr // nil if no guard
	Body    Expr
	Span    Span
}

type Match struct {
	Base
	Scrutinee Expr
	Arms      []MatchArm
}

func (e *Match) Accept(v ExprVisitor) interface{} { return v.VisitMatch(e) }

// Try (`?`) / Unwrap (`!`).
type Try struct {
	Base
	Inner Expr
}

func (e *Try) Accept(v ExprVisitor) interface{} { return v.VisitTry(e) }

type Unwrap struct {
	Base
	Inner Expr
}

func (e *Unwrap) Accept(v ExprVisitor) interface{} { return v.VisitUnwrap(e) }

// TryCatch: try { Body } catch ErrVar { Handler }.
type TryCatch struct {
	Base
	Body    Expr
	ErrVar  string
	Handler Expr
}

func (e *TryCatch) Accept(v ExprVisitor) interface{} { return v.VisitTryCatch(e) }

// Spawn / Await.
type Spawn struct {
	Base
	Inner Expr
}

func (e *Spawn) Accept(v ExprVisitor) interface{} { return v.VisitSpawn(e) }

type Await struct {
	Base
	Inner Expr
}

func (e *Await) Accept(v ExprVisitor) interface{} { return v.VisitAwait(e) }

// Lazy / Force.
type Lazy struct {
	Base
	Inner Expr
}

func (e *Lazy) Accept(v ExprVisitor) interface{} { return v.VisitLazy(e) }

type Force struct {
	Base
	Inner Expr
}

func (e *Force) Accept(v ExprVisitor) interface{} { return v.VisitForce(e) }

// Lambda: closure literal; CaptureMode applies to the Captures identifiers.
type CaptureMode int

const (
	CaptureByValue CaptureMode = iota
	CaptureByRef
	CaptureByMutRef
)

type Lambda struct {
	Base
	Params      []string
	Body        Expr
	Captures    []string
	CaptureMode CaptureMode
}

func (e *Lambda) Accept(v ExprVisitor) interface{} { return v.VisitLambda(e) }

// Comptime: evaluated at check time by a side evaluator (spec §4.4).
type Comptime struct {
	Base
	Body Expr
}

func (e *Comptime) Accept(v ExprVisitor) interface{} { return v.VisitComptime(e) }

// Assert(cond[, msg]).
type Assert struct {
	Base
	Cond Expr
	Msg  Expr // nil if no message
}

func (e *Assert) Accept(v ExprVisitor) interface{} { return v.VisitAssert(e) }

// Old(e): pre-state snapshot reference, valid only inside a contract clause.
type Old struct {
	Base
	Inner Expr
}

func (e *Old) Accept(v ExprVisitor) interface{} { return v.VisitOld(e) }

// Block: a sequence of statements; yields its last expression's value.
type Block struct {
	Base
	Stmts []Expr
}

func (e *Block) Accept(v ExprVisitor) interface{} { return v.VisitBlock(e) }

// ErrorNode: a parser error-recovery placeholder (spec §6a); the checker
// classifies it silently as Unknown.
type ErrorNode struct {
	Base
	Message string
}

func (e *ErrorNode) Accept(v ExprVisitor) interface{} { return v.VisitErrorNode(e) }

// ExprVisitor dispatches over every Expr kind.
type ExprVisitor interface {
	VisitLiteral(*Literal) interface{}
	VisitStringInterp(*StringInterp) interface{}
	VisitIdent(*Ident) interface{}
	VisitSelfCall(*SelfCall) interface{}
	VisitBinary(*Binary) interface{}
	VisitUnary(*Unary) interface{}
	VisitIf(*If) interface{}
	VisitWhile(*While) interface{}
	VisitLet(*Let) interface{}
	VisitAssign(*Assign) interface{}
	VisitCall(*Call) interface{}
	VisitFieldAccess(*FieldAccess) interface{}
	VisitMethodCall(*MethodCall) interface{}
	VisitIndex(*Index) interface{}
	VisitArrayLit(*ArrayLit) interface{}
	VisitSetLit(*SetLit) interface{}
	VisitMapLit(*MapLit) interface{}
	VisitStructLit(*StructLit) interface{}
	VisitTupleLit(*TupleLit) interface{}
	VisitListComp(*ListComp) interface{}
	VisitMapOp(*MapOp) interface{}
	VisitFilterOp(*FilterOp) interface{}
	VisitReduceOp(*ReduceOp) interface{}
	VisitMatch(*Match) interface{}
	VisitTry(*Try) interface{}
	VisitUnwrap(*Unwrap) interface{}
	VisitTryCatch(*TryCatch) interface{}
	VisitSpawn(*Spawn) interface{}
	VisitAwait(*Await) interface{}
	VisitLazy(*Lazy) interface{}
	VisitForce(*Force) interface{}
	VisitLambda(*Lambda) interface{}
	VisitComptime(*Comptime) interface{}
	VisitAssert(*Assert) interface{}
	VisitOld(*Old) interface{}
	VisitBlock(*Block) interface{}
	VisitErrorNode(*ErrorNode) interface{}
}

// --- Type expressions (syntactic; resolved to *types.Type by the checker's
// scope-aware resolver, since a bare name like "T" may denote a generic
// parameter or a named type depending on what's in scope at that point) ---

type TypeRefKind int

const (
	TRBase TypeRefKind = iota // Int/Float/Bool/Str/Unit/Unknown/Never/Any by Name
	TRNamed
	TRGeneric
	TRArray
	TRSet
	TRMap
	TRTuple
	TROptional
	TRResult
	TRFuture
	TRChannel
	TRFunction
	TRRef
	TRRefMut
)

type TypeRef struct {
	Kind     TypeRefKind
	Name     string
	Elem     *TypeRef
	Key      *TypeRef
	Val      *TypeRef
	Err      *TypeRef
	Elems    []*TypeRef
	Params   []*TypeRef
	Ret      *TypeRef
	Generics []*TypeRef
}

// --- Top-level declarations ---

type Param struct {
	Name       string
	TypeExpr   *TypeRef
	HasDefault bool
	Default    Expr
}

type FunctionDecl struct {
	Name     string
	Generics []string
	Params   []Param
	RetType  *TypeRef
	IsAsync  bool
	IsVararg bool
	Requires []Expr
	Ensures  []Expr
	Body     Expr
	Span     Span
}

type FieldDecl struct {
	Name     string
	TypeExpr *TypeRef
}

type StructDecl struct {
	Name     string
	Generics []string
	Fields   []FieldDecl
	Methods  []FunctionDecl
	Span     Span
}

type VariantDecl struct {
	Name   string
	Shape  VariantShapeExpr
	Tuple  []*TypeRef
	Fields []FieldDecl
}

type VariantShapeExpr int

const (
	ShapeUnit VariantShapeExpr = iota
	ShapeTuple
	ShapeStruct
)

type EnumDecl struct {
	Name     string
	Generics []string
	Variants []VariantDecl
	Methods  []FunctionDecl
	Span     Span
}

type UnionDecl struct {
	Name     string
	Generics []string
	Fields   []FieldDecl
	Span     Span
}

type TraitDecl struct {
	Name     string
	Generics []string
	Methods  []FunctionDecl
	Span     Span
}

type ImplDecl struct {
	Trait    string
	Target   string
	Generics []string
	Methods  []FunctionDecl
	Span     Span
}

// Program is the whole typed-AST contract's root.
type Program struct {
	Traits   []TraitDecl
	Structs  []StructDecl
	Enums    []EnumDecl
	Unions   []UnionDecl
	Impls    []ImplDecl
	Funcs    []FunctionDecl
	TopLevel []Expr
}
