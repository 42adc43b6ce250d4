package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeStringRendersCompoundShapes(t *testing.T) {
	assert.Equal(t, "Int", Int().String())
	assert.Equal(t, "Array<Int>", ArrayOf(Int()).String())
	assert.Equal(t, "Map<Str, Int>", MapOf(Str(), Int()).String())
	assert.Equal(t, "Optional<Bool>", OptionalOf(Bool()).String())
	assert.Equal(t, "Result<Int, Str>", ResultOf(Int(), Str()).String())
	assert.Equal(t, "Box[Int]", Named("Box", Int()).String())
	assert.Equal(t, "Widget", Named("Widget").String())
}

func TestFunctionSigMinMaxArgs(t *testing.T) {
	sig := &FunctionSig{
		Params: []ParamInfo{
			{Name: "a", Type: Int()},
			{Name: "b", Type: Int(), HasDefault: true},
			{Name: "c", Type: Int(), HasDefault: true},
		},
	}
	assert.Equal(t, 1, sig.MinArgs())
	assert.Equal(t, 3, sig.MaxArgs())
}

func TestTablesLookupImpl(t *testing.T) {
	tbl := NewTables()
	sig := &FunctionSig{Name: "area", Ret: Float()}
	tbl.AddImpl("Shape", "Circle", map[string]*FunctionSig{"area": sig})

	found, ok := tbl.LookupImpl("Shape", "Circle", "area")
	require.True(t, ok)
	assert.Same(t, sig, found)

	_, ok = tbl.LookupImpl("Shape", "Square", "area")
	assert.False(t, ok)

	_, ok = tbl.LookupImpl("Shape", "Circle", "perimeter")
	assert.False(t, ok)
}

func TestNewTablesInitializesAllMaps(t *testing.T) {
	tbl := NewTables()
	assert.NotNil(t, tbl.Functions)
	assert.NotNil(t, tbl.Structs)
	assert.NotNil(t, tbl.Enums)
	assert.NotNil(t, tbl.Unions)
	assert.NotNil(t, tbl.Traits)
	assert.NotNil(t, tbl.Impls)
	assert.NotNil(t, tbl.Aliases)
}
