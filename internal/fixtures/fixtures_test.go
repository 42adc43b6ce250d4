package fixtures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/parser"
)

func TestLoadProgramDecodesFunctions(t *testing.T) {
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
	prog, err := LoadProgram([]byte(src))
	require.NoError(t, err)
	require.Len(t, prog.Funcs, 1)

	fn := prog.Funcs[0]
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, "b", fn.Params[1].Name)
	require.NotNil(t, fn.RetType)
	assert.Equal(t, "Int", fn.RetType.Name)

	bin, ok := fn.Body.(*parser.Binary)
	require.True(t, ok, "body should decode to *parser.Binary")
	assert.Equal(t, "+", bin.Op)

	left, ok := bin.Left.(*parser.Ident)
	require.True(t, ok)
	assert.Equal(t, "a", left.Name)

	right, ok := bin.Right.(*parser.Ident)
	require.True(t, ok)
	assert.Equal(t, "b", right.Name)
}

func TestLoadProgramDecodesIfAndLiteral(t *testing.T) {
	src := `
funcs:
  - name: pick
    params: []
    body:
      kind: if
      cond: {kind: literal, value: true}
      then: {kind: literal, value: 1}
      else: {kind: literal, value: 2}
`
	prog, err := LoadProgram([]byte(src))
	require.NoError(t, err)
	require.Len(t, prog.Funcs, 1)

	ifExpr, ok := prog.Funcs[0].Body.(*parser.If)
	require.True(t, ok)
	require.NotNil(t, ifExpr.Else)

	cond, ok := ifExpr.Cond.(*parser.Literal)
	require.True(t, ok)
	assert.Equal(t, true, cond.Value)

	then, ok := ifExpr.Then.(*parser.Literal)
	require.True(t, ok)
	assert.Equal(t, 1, then.Value)
}

func TestLoadProgramRejectsUnknownKind(t *testing.T) {
	src := `
funcs:
  - name: bad
    params: []
    body: {kind: not_a_real_kind}
`
	_, err := LoadProgram([]byte(src))
	assert.Error(t, err)
}

func TestDecodePatternKinds(t *testing.T) {
	p, err := decodePattern(map[string]interface{}{"kind": "wildcard"})
	require.NoError(t, err)
	_, ok := p.(parser.WildcardPattern)
	assert.True(t, ok)

	p, err = decodePattern(map[string]interface{}{"kind": "binding", "name": "x"})
	require.NoError(t, err)
	bp, ok := p.(parser.BindingPattern)
	require.True(t, ok)
	assert.Equal(t, "x", bp.Name)
}

func TestDecodeTypeRefNestedKinds(t *testing.T) {
	raw := map[string]interface{}{
		"kind": "array",
		"elem": map[string]interface{}{"kind": "named", "name": "Str"},
	}
	tr, err := decodeTypeRef(raw)
	require.NoError(t, err)
	assert.Equal(t, parser.TRArray, tr.Kind)
	require.NotNil(t, tr.Elem)
	assert.Equal(t, "Str", tr.Elem.Name)
}
