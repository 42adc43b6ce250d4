package typecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/fixtures"
	"vela/internal/types"
)

func checkSrc(t *testing.T, src string) *Checker {
	t.Helper()
	prog, err := fixtures.LoadProgram([]byte(src))
	require.NoError(t, err)
	c := New()
	c.CheckProgram(prog)
	return c
}

func TestCheckProgramAcceptsWellTypedFunction(t *testing.T) {
	c := checkSrc(t, `
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
`)
	assert.Empty(t, c.Diagnostics)
}

func TestCheckProgramFlagsReturnTypeMismatch(t *testing.T) {
	c := checkSrc(t, `
funcs:
  - name: bad
    params: []
    ret: {kind: base, name: Int}
    body: {kind: literal, value: "oops"}
`)
	require.NotEmpty(t, c.Diagnostics)
	assert.Contains(t, c.Diagnostics[0].Message, "does not match declared return type")
}

func TestCheckProgramFlagsUndefinedIdent(t *testing.T) {
	c := checkSrc(t, `
funcs:
  - name: bad
    params: []
    body: {kind: ident, name: nope}
`)
	require.NotEmpty(t, c.Diagnostics)
}

func TestCheckProgramRequiresClauseMustBeBool(t *testing.T) {
	c := checkSrc(t, `
funcs:
  - name: f
    params:
      - name: x
        type: {kind: base, name: Int}
    requires:
      - {kind: literal, value: 1}
    body: {kind: literal, value: 1}
`)
	require.NotEmpty(t, c.Diagnostics)
	found := false
	for _, d := range c.Diagnostics {
		if containsSub(d.Message, "requires clause must be Bool") {
			found = true
		}
	}
	assert.True(t, found)
}

func containsSub(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestCheckProgramGenericIdentityFunctionInstantiatesPerCallSite(t *testing.T) {
	c := checkSrc(t, `
funcs:
  - name: identity
    generics: [T]
    params:
      - name: x
        type: {kind: generic, name: T}
    ret: {kind: generic, name: T}
    body: {kind: ident, name: x}
  - name: useIt
    params: []
    ret: {kind: base, name: Int}
    body:
      kind: call
      callee: identity
      args:
        - {kind: literal, value: 1}
`)
	assert.Empty(t, c.Diagnostics)
	sig, ok := c.Tables.Functions["identity"]
	require.True(t, ok)
	assert.Equal(t, []string{"T"}, sig.Generics)
}

func TestCheckProgramEnumMatchReportsMissingVariant(t *testing.T) {
	c := checkSrc(t, `
enums:
  - name: Direction
    variants:
      - {name: North, shape: unit}
      - {name: South, shape: unit}
funcs:
  - name: describe
    params:
      - name: d
        type: {kind: named, name: Direction}
    ret: {kind: base, name: Str}
    body:
      kind: match
      scrutinee: {kind: ident, name: d}
      arms:
        - pattern: {kind: variant, name: North}
          body: {kind: literal, value: "north"}
`)
	found := false
	for _, d := range c.Diagnostics {
		if containsSub(d.Message, "South") || containsSub(d.Message, "exhaustive") || containsSub(d.Message, "non-exhaustive") {
			found = true
		}
	}
	assert.True(t, found, "expected a missing-variant diagnostic, got: %v", diagMessages(c))
}

func diagMessages(c *Checker) []string {
	var out []string
	for _, d := range c.Diagnostics {
		out = append(out, d.Message)
	}
	return out
}

func TestCheckProgramEnumMatchExhaustiveIsClean(t *testing.T) {
	c := checkSrc(t, `
enums:
  - name: Direction
    variants:
      - {name: North, shape: unit}
      - {name: South, shape: unit}
funcs:
  - name: describe
    params:
      - name: d
        type: {kind: named, name: Direction}
    ret: {kind: base, name: Str}
    body:
      kind: match
      scrutinee: {kind: ident, name: d}
      arms:
        - pattern: {kind: variant, name: North}
          body: {kind: literal, value: "north"}
        - pattern: {kind: variant, name: South}
          body: {kind: literal, value: "south"}
`)
	for _, d := range c.Diagnostics {
		assert.NotContains(t, d.Message, "exhaustive")
	}
}

func TestCheckProgramStrictExhaustivenessEscalatesToError(t *testing.T) {
	prog, err := fixtures.LoadProgram([]byte(`
enums:
  - name: Direction
    variants:
      - {name: North, shape: unit}
      - {name: South, shape: unit}
funcs:
  - name: describe
    params:
      - name: d
        type: {kind: named, name: Direction}
    ret: {kind: base, name: Str}
    body:
      kind: match
      scrutinee: {kind: ident, name: d}
      arms:
        - pattern: {kind: variant, name: North}
          body: {kind: literal, value: "north"}
`))
	require.NoError(t, err)
	c := New()
	c.StrictExhaustiveness = true
	c.CheckProgram(prog)

	errCount := 0
	for _, d := range c.Diagnostics {
		if string(d.Severity) == "error" {
			errCount++
		}
	}
	assert.Greater(t, errCount, 0)
}

func TestInstantiationsExposesMemoTable(t *testing.T) {
	c := New()
	c.Tables.Functions["identity"] = &types.FunctionSig{
		Name:     "identity",
		Generics: []string{"T"},
		Params:   []types.ParamInfo{{Name: "x", Type: types.Generic("T")}},
		Ret:      types.Generic("T"),
	}
	assert.NotNil(t, c.Instantiations())
}
