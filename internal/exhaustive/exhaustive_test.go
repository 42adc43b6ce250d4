package exhaustive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vela/internal/parser"
	"vela/internal/types"
)

func lit(v interface{}) *parser.Literal { return &parser.Literal{Value: v} }

func TestCheckBoolExhaustiveWithBothArms(t *testing.T) {
	arms := []parser.MatchArm{
		{Pattern: parser.LiteralPattern{Value: lit(true)}},
		{Pattern: parser.LiteralPattern{Value: lit(false)}},
	}
	res := Check(types.NewTables(), types.Bool(), arms)
	assert.True(t, res.IsExhaustive)
	assert.Empty(t, res.MissingPatterns)
	assert.Empty(t, res.UnreachableArms)
}

func TestCheckBoolNonExhaustiveMissingFalse(t *testing.T) {
	arms := []parser.MatchArm{
		{Pattern: parser.LiteralPattern{Value: lit(true)}},
	}
	res := Check(types.NewTables(), types.Bool(), arms)
	assert.False(t, res.IsExhaustive)
	assert.Contains(t, res.MissingPatterns, "false")
}

func TestCheckWildcardAlwaysExhaustive(t *testing.T) {
	arms := []parser.MatchArm{
		{Pattern: parser.LiteralPattern{Value: lit(true)}},
		{Pattern: parser.WildcardPattern{}},
	}
	res := Check(types.NewTables(), types.Bool(), arms)
	assert.True(t, res.IsExhaustive)
}

func TestCheckUnreachableArmAfterWildcard(t *testing.T) {
	arms := []parser.MatchArm{
		{Pattern: parser.WildcardPattern{}},
		{Pattern: parser.LiteralPattern{Value: lit(true)}},
	}
	res := Check(types.NewTables(), types.Bool(), arms)
	assert.True(t, res.IsExhaustive)
	assert.Equal(t, []int{1}, res.UnreachableArms)
}

func TestCheckUnreachableArmDuplicateVariant(t *testing.T) {
	tbl := types.NewTables()
	tbl.Enums["Direction"] = &types.EnumDef{
		Name:     "Direction",
		Variants: map[string]*types.VariantDef{"North": {}, "South": {}},
		Order:    []string{"North", "South"},
	}
	arms := []parser.MatchArm{
		{Pattern: parser.VariantPattern{Name: "North"}},
		{Pattern: parser.VariantPattern{Name: "North"}},
		{Pattern: parser.VariantPattern{Name: "South"}},
	}
	res := Check(tbl, types.Named("Direction"), arms)
	assert.True(t, res.IsExhaustive)
	assert.Equal(t, []int{1}, res.UnreachableArms)
}

func TestCheckEnumMissingVariant(t *testing.T) {
	tbl := types.NewTables()
	tbl.Enums["Direction"] = &types.EnumDef{
		Name:     "Direction",
		Variants: map[string]*types.VariantDef{"North": {}, "South": {}, "East": {}},
		Order:    []string{"North", "South", "East"},
	}
	arms := []parser.MatchArm{
		{Pattern: parser.VariantPattern{Name: "North"}},
	}
	res := Check(tbl, types.Named("Direction"), arms)
	assert.False(t, res.IsExhaustive)
	assert.ElementsMatch(t, []string{"South", "East"}, res.MissingPatterns)
}

func TestCheckOptionalRequiresSomeAndNone(t *testing.T) {
	arms := []parser.MatchArm{
		{Pattern: parser.VariantPattern{Name: "Some", Inner: parser.BindingPattern{Name: "x"}}},
	}
	res := Check(types.NewTables(), types.OptionalOf(types.Int()), arms)
	assert.False(t, res.IsExhaustive)
	assert.Contains(t, res.MissingPatterns, "None")
}

func TestCheckResultRequiresOkAndErr(t *testing.T) {
	arms := []parser.MatchArm{
		{Pattern: parser.VariantPattern{Name: "Ok"}},
		{Pattern: parser.VariantPattern{Name: "Err"}},
	}
	res := Check(types.NewTables(), types.ResultOf(types.Int(), types.Str()), arms)
	assert.True(t, res.IsExhaustive)
}

func TestCheckUnboundedDomainNeverExhaustiveWithoutWildcard(t *testing.T) {
	arms := []parser.MatchArm{
		{Pattern: parser.LiteralPattern{Value: lit(1)}},
		{Pattern: parser.LiteralPattern{Value: lit(2)}},
	}
	res := Check(types.NewTables(), types.Int(), arms)
	assert.False(t, res.IsExhaustive)
}

func TestCheckGuardedArmNeverMarkedUnreachable(t *testing.T) {
	arms := []parser.MatchArm{
		{Pattern: parser.WildcardPattern{}},
		{Pattern: parser.LiteralPattern{Value: lit(true)}, Guard: lit(true)},
	}
	res := Check(types.NewTables(), types.Bool(), arms)
	assert.Empty(t, res.UnreachableArms)
}
