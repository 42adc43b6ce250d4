// Package fixtures decodes a YAML-serialized typed AST (spec §6a's "Typed-AST
// contract consumed from the parser") into internal/parser's node types.
//
// The surface parser that would normally produce this tree is an
// out-of-scope collaborator (spec §1), so cmd/vela and the integration
// tests both drive the pipeline from a fixture file instead. YAML was
// picked over JSON because gopkg.in/yaml.v3 is already a direct dependency
// (internal/config) and the format is meant to be hand-editable.
package fixtures

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"vela/internal/parser"
)

// LoadProgram reads and decodes a fixture file's top-level Program.
func LoadProgram(data []byte) (*parser.Program, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("fixtures: parsing yaml: %w", err)
	}
	return DecodeProgram(raw)
}

func DecodeProgram(raw map[string]interface{}) (*parser.Program, error) {
	p := &parser.Program{}
	var err error
	if p.Traits, err = decodeTraits(list(raw["traits"])); err != nil {
		return nil, err
	}
	if p.Structs, err = decodeStructs(list(raw["structs"])); err != nil {
		return nil, err
	}
	if p.Enums, err = decodeEnums(list(raw["enums"])); err != nil {
		return nil, err
	}
	if p.Unions, err = decodeUnions(list(raw["unions"])); err != nil {
		return nil, err
	}
	if p.Impls, err = decodeImpls(list(raw["impls"])); err != nil {
		return nil, err
	}
	if p.Funcs, err = decodeFuncs(list(raw["funcs"])); err != nil {
		return nil, err
	}
	for _, t := range list(raw["top_level"]) {
		e, err := DecodeExpr(t)
		if err != nil {
			return nil, err
		}
		p.TopLevel = append(p.TopLevel, e)
	}
	return p, nil
}

// --- generic accessors over a decoded YAML map ---

func list(v interface{}) []interface{} {
	l, _ := v.([]interface{})
	return l
}

func m(v interface{}) map[string]interface{} {
	mm, _ := v.(map[string]interface{})
	return mm
}

func str(mm map[string]interface{}, key string) string {
	s, _ := mm[key].(string)
	return s
}

func strList(v interface{}) []string {
	var out []string
	for _, e := range list(v) {
		s, _ := e.(string)
		out = append(out, s)
	}
	return out
}

func boolVal(mm map[string]interface{}, key string) bool {
	b, _ := mm[key].(bool)
	return b
}

func spanOf(mm map[string]interface{}) parser.Span {
	sp := m(mm["span"])
	start, _ := toInt(sp["start"])
	end, _ := toInt(sp["end"])
	return parser.Span{Start: start, End: end}
}

func toInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

// --- expressions ---

// DecodeExpr decodes one node by its "kind" tag. nil input decodes to nil
// (used for optional children like If.Else, MatchArm.Guard).
func DecodeExpr(raw interface{}) (parser.Expr, error) {
	if raw == nil {
		return nil, nil
	}
	mm := m(raw)
	kind := str(mm, "kind")
	sp := spanOf(mm)

	switch kind {
	case "literal":
		return &parser.Literal{Base: parser.Base{S: sp}, Value: mm["value"]}, nil
	case "string_interp":
		parts, err := decodeExprList(mm["parts"])
		if err != nil {
			return nil, err
		}
		return &parser.StringInterp{Base: parser.Base{S: sp}, Parts: parts}, nil
	case "ident":
		return &parser.Ident{Base: parser.Base{S: sp}, Name: str(mm, "name")}, nil
	case "self_call":
		args, err := decodeExprList(mm["args"])
		if err != nil {
			return nil, err
		}
		return &parser.SelfCall{Base: parser.Base{S: sp}, Args: args}, nil
	case "binary":
		left, err := DecodeExpr(mm["left"])
		if err != nil {
			return nil, err
		}
		right, err := DecodeExpr(mm["right"])
		if err != nil {
			return nil, err
		}
		return &parser.Binary{Base: parser.Base{S: sp}, Op: str(mm, "op"), Left: left, Right: right}, nil
	case "unary":
		operand, err := DecodeExpr(mm["operand"])
		if err != nil {
			return nil, err
		}
		return &parser.Unary{Base: parser.Base{S: sp}, Op: str(mm, "op"), Operand: operand}, nil
	case "if":
		cond, err := DecodeExpr(mm["cond"])
		if err != nil {
			return nil, err
		}
		then, err := DecodeExpr(mm["then"])
		if err != nil {
			return nil, err
		}
		els, err := DecodeExpr(mm["else"])
		if err != nil {
			return nil, err
		}
		return &parser.If{Base: parser.Base{S: sp}, Cond: cond, Then: then, Else: els}, nil
	case "while":
		cond, err := DecodeExpr(mm["cond"])
		if err != nil {
			return nil, err
		}
		body, err := DecodeExpr(mm["body"])
		if err != nil {
			return nil, err
		}
		iter, err := DecodeExpr(mm["iter"])
		if err != nil {
			return nil, err
		}
		return &parser.While{Base: parser.Base{S: sp}, Cond: cond, Body: body, BindVar: str(mm, "bind_var"), Iter: iter}, nil
	case "let":
		val, err := DecodeExpr(mm["value"])
		if err != nil {
			return nil, err
		}
		body, err := DecodeExpr(mm["body"])
		if err != nil {
			return nil, err
		}
		return &parser.Let{Base: parser.Base{S: sp}, Name: str(mm, "name"), Ownership: decodeOwnership(str(mm, "ownership")), Value: val, Body: body}, nil
	case "assign":
		val, err := DecodeExpr(mm["value"])
		if err != nil {
			return nil, err
		}
		return &parser.Assign{Base: parser.Base{S: sp}, Name: str(mm, "name"), Value: val}, nil
	case "call":
		args, err := decodeExprList(mm["args"])
		if err != nil {
			return nil, err
		}
		return &parser.Call{Base: parser.Base{S: sp}, Callee: str(mm, "callee"), Args: args}, nil
	case "field_access":
		obj, err := DecodeExpr(mm["object"])
		if err != nil {
			return nil, err
		}
		return &parser.FieldAccess{Base: parser.Base{S: sp}, Object: obj, Field: str(mm, "field")}, nil
	case "method_call":
		recv, err := DecodeExpr(mm["receiver"])
		if err != nil {
			return nil, err
		}
		args, err := decodeExprList(mm["args"])
		if err != nil {
			return nil, err
		}
		return &parser.MethodCall{Base: parser.Base{S: sp}, Receiver: recv, Method: str(mm, "method"), Args: args}, nil
	case "index":
		obj, err := DecodeExpr(mm["object"])
		if err != nil {
			return nil, err
		}
		idx, err := DecodeExpr(mm["index"])
		if err != nil {
			return nil, err
		}
		return &parser.Index{Base: parser.Base{S: sp}, Object: obj, Index: idx}, nil
	case "array_lit":
		elems, err := decodeExprList(mm["elements"])
		if err != nil {
			return nil, err
		}
		return &parser.ArrayLit{Base: parser.Base{S: sp}, Elements: elems}, nil
	case "set_lit":
		elems, err := decodeExprList(mm["elements"])
		if err != nil {
			return nil, err
		}
		return &parser.SetLit{Base: parser.Base{S: sp}, Elements: elems}, nil
	case "map_lit":
		keys, err := decodeExprList(mm["keys"])
		if err != nil {
			return nil, err
		}
		vals, err := decodeExprList(mm["values"])
		if err != nil {
			return nil, err
		}
		return &parser.MapLit{Base: parser.Base{S: sp}, Keys: keys, Values: vals}, nil
	case "struct_lit":
		vals, err := decodeExprList(mm["values"])
		if err != nil {
			return nil, err
		}
		return &parser.StructLit{Base: parser.Base{S: sp}, TypeName: str(mm, "type_name"), Fields: strList(mm["fields"]), Values: vals}, nil
	case "tuple_lit":
		elems, err := decodeExprList(mm["elements"])
		if err != nil {
			return nil, err
		}
		return &parser.TupleLit{Base: parser.Base{S: sp}, Elements: elems}, nil
	case "list_comp":
		elem, err := DecodeExpr(mm["elem"])
		if err != nil {
			return nil, err
		}
		iter, err := DecodeExpr(mm["iter"])
		if err != nil {
			return nil, err
		}
		cond, err := DecodeExpr(mm["cond"])
		if err != nil {
			return nil, err
		}
		return &parser.ListComp{Base: parser.Base{S: sp}, Elem: elem, BindVar: str(mm, "bind_var"), Iter: iter, Cond: cond, IsSet: boolVal(mm, "is_set")}, nil
	case "map_op":
		recv, err := DecodeExpr(mm["receiver"])
		if err != nil {
			return nil, err
		}
		body, err := DecodeExpr(mm["body"])
		if err != nil {
			return nil, err
		}
		return &parser.MapOp{Base: parser.Base{S: sp}, Receiver: recv, ElemVar: str(mm, "elem_var"), Body: body}, nil
	case "filter_op":
		recv, err := DecodeExpr(mm["receiver"])
		if err != nil {
			return nil, err
		}
		pred, err := DecodeExpr(mm["pred"])
		if err != nil {
			return nil, err
		}
		return &parser.FilterOp{Base: parser.Base{S: sp}, Receiver: recv, ElemVar: str(mm, "elem_var"), Pred: pred}, nil
	case "reduce_op":
		recv, err := DecodeExpr(mm["receiver"])
		if err != nil {
			return nil, err
		}
		body, err := DecodeExpr(mm["body"])
		if err != nil {
			return nil, err
		}
		init, err := DecodeExpr(mm["init"])
		if err != nil {
			return nil, err
		}
		return &parser.ReduceOp{
			Base: parser.Base{S: sp}, Receiver: recv, Kind: decodeReduceKind(str(mm, "reduce_kind")),
			ElemVar: str(mm, "elem_var"), Acc: str(mm, "acc"), Body: body, Init: init,
		}, nil
	case "match":
		scrut, err := DecodeExpr(mm["scrutinee"])
		if err != nil {
			return nil, err
		}
		arms, err := decodeArms(list(mm["arms"]))
		if err != nil {
			return nil, err
		}
		return &parser.Match{Base: parser.Base{S: sp}, Scrutinee: scrut, Arms: arms}, nil
	case "try":
		inner, err := DecodeExpr(mm["inner"])
		if err != nil {
			return nil, err
		}
		return &parser.Try{Base: parser.Base{S: sp}, Inner: inner}, nil
	case "unwrap":
		inner, err := DecodeExpr(mm["inner"])
		if err != nil {
			return nil, err
		}
		return &parser.Unwrap{Base: parser.Base{S: sp}, Inner: inner}, nil
	case "try_catch":
		body, err := DecodeExpr(mm["body"])
		if err != nil {
			return nil, err
		}
		handler, err := DecodeExpr(mm["handler"])
		if err != nil {
			return nil, err
		}
		return &parser.TryCatch{Base: parser.Base{S: sp}, Body: body, ErrVar: str(mm, "err_var"), Handler: handler}, nil
	case "spawn":
		inner, err := DecodeExpr(mm["inner"])
		if err != nil {
			return nil, err
		}
		return &parser.Spawn{Base: parser.Base{S: sp}, Inner: inner}, nil
	case "await":
		inner, err := DecodeExpr(mm["inner"])
		if err != nil {
			return nil, err
		}
		return &parser.Await{Base: parser.Base{S: sp}, Inner: inner}, nil
	case "lazy":
		inner, err := DecodeExpr(mm["inner"])
		if err != nil {
			return nil, err
		}
		return &parser.Lazy{Base: parser.Base{S: sp}, Inner: inner}, nil
	case "force":
		inner, err := DecodeExpr(mm["inner"])
		if err != nil {
			return nil, err
		}
		return &parser.Force{Base: parser.Base{S: sp}, Inner: inner}, nil
	case "lambda":
		body, err := DecodeExpr(mm["body"])
		if err != nil {
			return nil, err
		}
		return &parser.Lambda{
			Base: parser.Base{S: sp}, Params: strList(mm["params"]), Body: body,
			Captures: strList(mm["captures"]), CaptureMode: decodeCaptureMode(str(mm, "capture_mode")),
		}, nil
	case "comptime":
		body, err := DecodeExpr(mm["body"])
		if err != nil {
			return nil, err
		}
		return &parser.Comptime{Base: parser.Base{S: sp}, Body: body}, nil
	case "assert":
		cond, err := DecodeExpr(mm["cond"])
		if err != nil {
			return nil, err
		}
		msg, err := DecodeExpr(mm["msg"])
		if err != nil {
			return nil, err
		}
		return &parser.Assert{Base: parser.Base{S: sp}, Cond: cond, Msg: msg}, nil
	case "old":
		inner, err := DecodeExpr(mm["inner"])
		if err != nil {
			return nil, err
		}
		return &parser.Old{Base: parser.Base{S: sp}, Inner: inner}, nil
	case "block":
		stmts, err := decodeExprList(mm["stmts"])
		if err != nil {
			return nil, err
		}
		return &parser.Block{Base: parser.Base{S: sp}, Stmts: stmts}, nil
	case "error":
		return &parser.ErrorNode{Base: parser.Base{S: sp}, Message: str(mm, "message")}, nil
	default:
		return nil, fmt.Errorf("fixtures: unknown expr kind %q", kind)
	}
}

func decodeExprList(v interface{}) ([]parser.Expr, error) {
	var out []parser.Expr
	for _, e := range list(v) {
		d, err := DecodeExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeOwnership(s string) parser.Ownership {
	switch s {
	case "linear":
		return parser.OwnLinear
	case "affine":
		return parser.OwnAffine
	case "move":
		return parser.OwnMove
	default:
		return parser.OwnRegular
	}
}

func decodeCaptureMode(s string) parser.CaptureMode {
	switch s {
	case "by_ref":
		return parser.CaptureByRef
	case "by_mut_ref":
		return parser.CaptureByMutRef
	default:
		return parser.CaptureByValue
	}
}

func decodeReduceKind(s string) parser.ReduceKind {
	switch s {
	case "product":
		return parser.ReduceProduct
	case "min":
		return parser.ReduceMin
	case "max":
		return parser.ReduceMax
	case "all":
		return parser.ReduceAll
	case "any":
		return parser.ReduceAny
	case "count":
		return parser.ReduceCount
	case "first":
		return parser.ReduceFirst
	case "last":
		return parser.ReduceLast
	case "avg":
		return parser.ReduceAvg
	case "custom":
		return parser.ReduceCustom
	default:
		return parser.ReduceSum
	}
}

// --- patterns ---

func decodePattern(raw interface{}) (parser.Pattern, error) {
	mm := m(raw)
	kind := str(mm, "kind")
	switch kind {
	case "wildcard":
		return parser.WildcardPattern{}, nil
	case "literal":
		e, err := DecodeExpr(mm["value"])
		if err != nil {
			return nil, err
		}
		return parser.LiteralPattern{Value: e}, nil
	case "binding":
		return parser.BindingPattern{Name: str(mm, "name")}, nil
	case "tuple":
		elems, err := decodePatternList(mm["elems"])
		if err != nil {
			return nil, err
		}
		return parser.TuplePattern{Elems: elems}, nil
	case "array":
		elems, err := decodePatternList(mm["elems"])
		if err != nil {
			return nil, err
		}
		return parser.ArrayPattern{Elems: elems}, nil
	case "struct":
		order := strList(mm["order"])
		fields := make(map[string]parser.Pattern, len(order))
		fieldsRaw := m(mm["fields"])
		for _, name := range order {
			p, err := decodePattern(fieldsRaw[name])
			if err != nil {
				return nil, err
			}
			fields[name] = p
		}
		return parser.StructPattern{Fields: fields, Order: order}, nil
	case "variant":
		var inner parser.Pattern
		if mm["inner"] != nil {
			var err error
			inner, err = decodePattern(mm["inner"])
			if err != nil {
				return nil, err
			}
		}
		return parser.VariantPattern{Name: str(mm, "name"), Inner: inner}, nil
	case "range":
		lo, err := DecodeExpr(mm["lo"])
		if err != nil {
			return nil, err
		}
		hi, err := DecodeExpr(mm["hi"])
		if err != nil {
			return nil, err
		}
		return parser.RangePattern{Lo: lo, Hi: hi}, nil
	case "or":
		alts, err := decodePatternList(mm["alts"])
		if err != nil {
			return nil, err
		}
		return parser.OrPattern{Alts: alts}, nil
	default:
		return nil, fmt.Errorf("fixtures: unknown pattern kind %q", kind)
	}
}

func decodePatternList(v interface{}) ([]parser.Pattern, error) {
	var out []parser.Pattern
	for _, e := range list(v) {
		p, err := decodePattern(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func decodeArms(raw []interface{}) ([]parser.MatchArm, error) {
	var arms []parser.MatchArm
	for _, a := range raw {
		mm := m(a)
		pat, err := decodePattern(mm["pattern"])
		if err != nil {
			return nil, err
		}
		guard, err := DecodeExpr(mm["guard"])
		if err != nil {
			return nil, err
		}
		body, err := DecodeExpr(mm["body"])
		if err != nil {
			return nil, err
		}
		arms = append(arms, parser.MatchArm{Pattern: pat, Guard: guard, Body: body, Span: spanOf(mm)})
	}
	return arms, nil
}

// --- type expressions ---

func decodeTypeRef(raw interface{}) (*parser.TypeRef, error) {
	if raw == nil {
		return nil, nil
	}
	mm := m(raw)
	tr := &parser.TypeRef{Name: str(mm, "name")}
	switch str(mm, "kind") {
	case "base":
		tr.Kind = parser.TRBase
	case "named":
		tr.Kind = parser.TRNamed
	case "generic":
		tr.Kind = parser.TRGeneric
	case "array":
		tr.Kind = parser.TRArray
	case "set":
		tr.Kind = parser.TRSet
	case "map":
		tr.Kind = parser.TRMap
	case "tuple":
		tr.Kind = parser.TRTuple
	case "optional":
		tr.Kind = parser.TROptional
	case "result":
		tr.Kind = parser.TRResult
	case "future":
		tr.Kind = parser.TRFuture
	case "channel":
		tr.Kind = parser.TRChannel
	case "function":
		tr.Kind = parser.TRFunction
	case "ref":
		tr.Kind = parser.TRRef
	case "ref_mut":
		tr.Kind = parser.TRRefMut
	default:
		tr.Kind = parser.TRBase
	}
	var err error
	if tr.Elem, err = decodeTypeRef(mm["elem"]); err != nil {
		return nil, err
	}
	if tr.Key, err = decodeTypeRef(mm["key"]); err != nil {
		return nil, err
	}
	if tr.Val, err = decodeTypeRef(mm["val"]); err != nil {
		return nil, err
	}
	if tr.Err, err = decodeTypeRef(mm["err"]); err != nil {
		return nil, err
	}
	if tr.Ret, err = decodeTypeRef(mm["ret"]); err != nil {
		return nil, err
	}
	if tr.Elems, err = decodeTypeRefList(mm["elems"]); err != nil {
		return nil, err
	}
	if tr.Params, err = decodeTypeRefList(mm["params"]); err != nil {
		return nil, err
	}
	if tr.Generics, err = decodeTypeRefList(mm["generics"]); err != nil {
		return nil, err
	}
	return tr, nil
}

func decodeTypeRefList(v interface{}) ([]*parser.TypeRef, error) {
	var out []*parser.TypeRef
	for _, e := range list(v) {
		tr, err := decodeTypeRef(e)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

// --- top-level declarations ---

func decodeParams(v interface{}) ([]parser.Param, error) {
	var out []parser.Param
	for _, e := range list(v) {
		mm := m(e)
		tr, err := decodeTypeRef(mm["type"])
		if err != nil {
			return nil, err
		}
		def, err := DecodeExpr(mm["default"])
		if err != nil {
			return nil, err
		}
		out = append(out, parser.Param{Name: str(mm, "name"), TypeExpr: tr, HasDefault: boolVal(mm, "has_default"), Default: def})
	}
	return out, nil
}

func decodeFunc(raw interface{}) (parser.FunctionDecl, error) {
	mm := m(raw)
	params, err := decodeParams(mm["params"])
	if err != nil {
		return parser.FunctionDecl{}, err
	}
	ret, err := decodeTypeRef(mm["ret"])
	if err != nil {
		return parser.FunctionDecl{}, err
	}
	requires, err := decodeExprList(mm["requires"])
	if err != nil {
		return parser.FunctionDecl{}, err
	}
	ensures, err := decodeExprList(mm["ensures"])
	if err != nil {
		return parser.FunctionDecl{}, err
	}
	body, err := DecodeExpr(mm["body"])
	if err != nil {
		return parser.FunctionDecl{}, err
	}
	return parser.FunctionDecl{
		Name: str(mm, "name"), Generics: strList(mm["generics"]), Params: params,
		RetType: ret, IsAsync: boolVal(mm, "is_async"), IsVararg: boolVal(mm, "is_vararg"),
		Requires: requires, Ensures: ensures, Body: body, Span: spanOf(mm),
	}, nil
}

func decodeFuncs(raw []interface{}) ([]parser.FunctionDecl, error) {
	var out []parser.FunctionDecl
	for _, e := range raw {
		f, err := decodeFunc(e)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeFields(v interface{}) []parser.FieldDecl {
	var out []parser.FieldDecl
	for _, e := range list(v) {
		mm := m(e)
		tr, _ := decodeTypeRef(mm["type"])
		out = append(out, parser.FieldDecl{Name: str(mm, "name"), TypeExpr: tr})
	}
	return out
}

func decodeStructs(raw []interface{}) ([]parser.StructDecl, error) {
	var out []parser.StructDecl
	for _, e := range raw {
		mm := m(e)
		methods, err := decodeFuncs(list(mm["methods"]))
		if err != nil {
			return nil, err
		}
		out = append(out, parser.StructDecl{
			Name: str(mm, "name"), Generics: strList(mm["generics"]),
			Fields: decodeFields(mm["fields"]), Methods: methods, Span: spanOf(mm),
		})
	}
	return out, nil
}

func decodeVariants(v interface{}) []parser.VariantDecl {
	var out []parser.VariantDecl
	for _, e := range list(v) {
		mm := m(e)
		var shape parser.VariantShapeExpr
		switch str(mm, "shape") {
		case "tuple":
			shape = parser.ShapeTuple
		case "struct":
			shape = parser.ShapeStruct
		default:
			shape = parser.ShapeUnit
		}
		tuple, _ := decodeTypeRefList(mm["tuple"])
		out = append(out, parser.VariantDecl{Name: str(mm, "name"), Shape: shape, Tuple: tuple, Fields: decodeFields(mm["fields"])})
	}
	return out
}

func decodeEnums(raw []interface{}) ([]parser.EnumDecl, error) {
	var out []parser.EnumDecl
	for _, e := range raw {
		mm := m(e)
		methods, err := decodeFuncs(list(mm["methods"]))
		if err != nil {
			return nil, err
		}
		out = append(out, parser.EnumDecl{
			Name: str(mm, "name"), Generics: strList(mm["generics"]),
			Variants: decodeVariants(mm["variants"]), Methods: methods, Span: spanOf(mm),
		})
	}
	return out, nil
}

func decodeUnions(raw []interface{}) ([]parser.UnionDecl, error) {
	var out []parser.UnionDecl
	for _, e := range raw {
		mm := m(e)
		out = append(out, parser.UnionDecl{
			Name: str(mm, "name"), Generics: strList(mm["generics"]),
			Fields: decodeFields(mm["fields"]), Span: spanOf(mm),
		})
	}
	return out, nil
}

func decodeTraits(raw []interface{}) ([]parser.TraitDecl, error) {
	var out []parser.TraitDecl
	for _, e := range raw {
		mm := m(e)
		methods, err := decodeFuncs(list(mm["methods"]))
		if err != nil {
			return nil, err
		}
		out = append(out, parser.TraitDecl{Name: str(mm, "name"), Generics: strList(mm["generics"]), Methods: methods, Span: spanOf(mm)})
	}
	return out, nil
}

func decodeImpls(raw []interface{}) ([]parser.ImplDecl, error) {
	var out []parser.ImplDecl
	for _, e := range raw {
		mm := m(e)
		methods, err := decodeFuncs(list(mm["methods"]))
		if err != nil {
			return nil, err
		}
		out = append(out, parser.ImplDecl{
			Trait: str(mm, "trait"), Target: str(mm, "target"), Generics: strList(mm["generics"]),
			Methods: methods, Span: spanOf(mm),
		})
	}
	return out, nil
}
