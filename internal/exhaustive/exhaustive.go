// Package exhaustive implements the pattern-exhaustiveness analyzer (spec
// component C6): a usefulness matrix over constructors per scrutinee type,
// producing missing-pattern and unreachable-arm diagnostics that the
// checker (C5) reports as warnings (spec §4.4, §9).
package exhaustive

import (
	"fmt"

	"vela/internal/parser"
	"vela/internal/types"
)

type Result struct {
	IsExhaustive     bool
	MissingPatterns  []string
	UnreachableArms  []int
}

// Check builds the usefulness matrix for scrutType against arms' patterns.
func Check(tables *types.Tables, scrutType *types.Type, arms []parser.MatchArm) Result {
	covered := make(map[string]bool)
	var wildcardSeen bool
	var result Result

	for i, arm := range arms {
		useful := patternIsUseful(tables, scrutType, arm.Pattern, covered, wildcardSeen)
		if !useful && arm.Guard == nil {
			result.UnreachableArms = append(result.UnreachableArms, i)
		}
		markCovered(scrutType, arm.Pattern, covered)
		if isWildcardLike(arm.Pattern) && arm.Guard == nil {
			wildcardSeen = true
		}
	}

	constructors := allConstructors(tables, scrutType)
	if wildcardSeen {
		result.IsExhaustive = true
		return result
	}
	if constructors == nil {
		// Unbounded domain (Int/Float/Str/...): only a wildcard (or a Range
		// covering the full domain) can be exhaustive; conservatively flag
		// as non-exhaustive unless a wildcard was present above.
		result.IsExhaustive = false
		result.MissingPatterns = []string{"_"}
		return result
	}
	var missing []string
	for _, ctor := range constructors {
		if !covered[ctor] {
			missing = append(missing, ctor)
		}
	}
	result.IsExhaustive = len(missing) == 0
	result.MissingPatterns = missing
	return result
}

func isWildcardLike(p parser.Pattern) bool {
	switch p.(type) {
	case parser.WildcardPattern:
		return true
	case parser.BindingPattern:
		return true
	default:
		return false
	}
}

// patternIsUseful reports whether this pattern can match something not
// already covered by prior arms (a rough but sound-for-closed-types
// usefulness check: wildcards/bindings are useful only before the first
// wildcard; constructor patterns are useful if their constructor isn't
// already covered).
func patternIsUseful(tables *types.Tables, scrutType *types.Type, p parser.Pattern, covered map[string]bool, wildcardSeen bool) bool {
	if wildcardSeen {
		return false
	}
	switch pat := p.(type) {
	case parser.WildcardPattern, parser.BindingPattern:
		return true
	case parser.OrPattern:
		for _, alt := range pat.Alts {
			if patternIsUseful(tables, scrutType, alt, covered, wildcardSeen) {
				return true
			}
		}
		return false
	case parser.VariantPattern:
		return !covered[pat.Name]
	case parser.LiteralPattern:
		key := literalKey(pat.Value)
		return !covered[key]
	default:
		return true
	}
}

func markCovered(scrutType *types.Type, p parser.Pattern, covered map[string]bool) {
	switch pat := p.(type) {
	case parser.VariantPattern:
		covered[pat.Name] = true
	case parser.LiteralPattern:
		covered[literalKey(pat.Value)] = true
	case parser.OrPattern:
		for _, alt := range pat.Alts {
			markCovered(scrutType, alt, covered)
		}
	case parser.RangePattern:
		covered["__range__"] = true
	}
}

func literalKey(e parser.Expr) string {
	if lit, ok := e.(*parser.Literal); ok {
		return fmt.Sprintf("%v", lit.Value)
	}
	return fmt.Sprintf("%v", e)
}

// allConstructors returns the full constructor set for types with a closed
// domain (Bool, enums); nil means "unbounded, not fully enumerable" (spec
// §4.5: "fully for booleans and enums").
func allConstructors(tables *types.Tables, scrutType *types.Type) []string {
	if scrutType == nil {
		return nil
	}
	switch scrutType.Kind {
	case types.KBool:
		return []string{"true", "false"}
	case types.KNamed:
		if def, ok := tables.Enums[scrutType.Name]; ok {
			out := make([]string, len(def.Order))
			copy(out, def.Order)
			return out
		}
		return nil
	case types.KOptional:
		return []string{"Some", "None"}
	case types.KResult:
		return []string{"Ok", "Err"}
	default:
		return nil
	}
}
