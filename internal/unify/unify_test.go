package unify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/types"
)

func TestUnifyPrimitivesMatch(t *testing.T) {
	u := New()
	assert.NoError(t, u.Unify(types.Int(), types.Int()))
	assert.NoError(t, u.Unify(types.Str(), types.Str()))
	assert.NoError(t, u.Unify(types.Bool(), types.Bool()))
}

func TestUnifyPrimitivesMismatch(t *testing.T) {
	u := New()
	err := u.Unify(types.Int(), types.Str())
	require.Error(t, err)
	uerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, Mismatch, uerr.Kind)
}

func TestUnifyBindsFreshVar(t *testing.T) {
	u := New()
	v := u.Fresh()
	require.NoError(t, u.Unify(v, types.Int()))
	assert.Equal(t, types.KInt, u.Resolve(v).Kind)
}

func TestUnifyVarChainResolves(t *testing.T) {
	u := New()
	a := u.Fresh()
	b := u.Fresh()
	require.NoError(t, u.Unify(a, b))
	require.NoError(t, u.Unify(b, types.Str()))
	assert.Equal(t, types.KStr, u.Resolve(a).Kind)
	assert.Equal(t, types.KStr, u.Resolve(b).Kind)
}

func TestUnifyOccursCheckFails(t *testing.T) {
	u := New()
	v := u.Fresh()
	err := u.Unify(v, types.ArrayOf(v))
	require.Error(t, err)
	uerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, OccursCheck, uerr.Kind)
}

func TestUnifyArrayElemRecurses(t *testing.T) {
	u := New()
	v := u.Fresh()
	require.NoError(t, u.Unify(types.ArrayOf(v), types.ArrayOf(types.Int())))
	assert.Equal(t, types.KInt, u.Resolve(v).Kind)

	err := u.Unify(types.ArrayOf(types.Int()), types.ArrayOf(types.Str()))
	assert.Error(t, err)
}

func TestUnifyMapKeyAndValue(t *testing.T) {
	u := New()
	k := u.Fresh()
	v := u.Fresh()
	require.NoError(t, u.Unify(types.MapOf(k, v), types.MapOf(types.Str(), types.Int())))
	assert.Equal(t, types.KStr, u.Resolve(k).Kind)
	assert.Equal(t, types.KInt, u.Resolve(v).Kind)
}

func TestUnifyTupleArityMismatch(t *testing.T) {
	u := New()
	err := u.Unify(types.TupleOf(types.Int()), types.TupleOf(types.Int(), types.Str()))
	require.Error(t, err)
	uerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ArityMismatch, uerr.Kind)
}

func TestUnifyTupleElementwise(t *testing.T) {
	u := New()
	a := u.Fresh()
	b := u.Fresh()
	require.NoError(t, u.Unify(types.TupleOf(a, b), types.TupleOf(types.Int(), types.Bool())))
	assert.Equal(t, types.KInt, u.Resolve(a).Kind)
	assert.Equal(t, types.KBool, u.Resolve(b).Kind)
}

func TestUnifyFunctionArityAndParams(t *testing.T) {
	u := New()
	p := u.Fresh()
	r := u.Fresh()
	fnA := types.Fn([]*types.Type{p}, r, nil)
	fnB := types.Fn([]*types.Type{types.Int()}, types.Bool(), nil)
	require.NoError(t, u.Unify(fnA, fnB))
	assert.Equal(t, types.KInt, u.Resolve(p).Kind)
	assert.Equal(t, types.KBool, u.Resolve(r).Kind)

	mismatched := types.Fn([]*types.Type{types.Int(), types.Int()}, types.Bool(), nil)
	err := u.Unify(fnB, mismatched)
	require.Error(t, err)
	assert.Equal(t, ArityMismatch, err.(*Error).Kind)
}

func TestUnifyNamedRequiresSameNameAndGenericArity(t *testing.T) {
	u := New()
	require.NoError(t, u.Unify(types.Named("Box", types.Int()), types.Named("Box", types.Int())))

	err := u.Unify(types.Named("Box", types.Int()), types.Named("Crate", types.Int()))
	require.Error(t, err)
	assert.Equal(t, Mismatch, err.(*Error).Kind)

	err = u.Unify(types.Named("Box", types.Int()), types.Named("Box", types.Int(), types.Str()))
	require.Error(t, err)
	assert.Equal(t, ArityMismatch, err.(*Error).Kind)
}

func TestUnifyUnknownAndAnyAreEscapeHatches(t *testing.T) {
	u := New()
	assert.NoError(t, u.Unify(types.Unknown(), types.Int()))
	assert.NoError(t, u.Unify(types.Str(), types.Unknown()))
	assert.NoError(t, u.Unify(types.Any(), types.Bool()))
	assert.NoError(t, u.Unify(types.Never(), types.Int()))
}

func TestResolveDeepSubstitutesNestedVars(t *testing.T) {
	u := New()
	v := u.Fresh()
	require.NoError(t, u.Unify(v, types.Int()))

	nested := types.MapOf(types.Str(), types.ArrayOf(v))
	resolved := u.ResolveDeep(nested)
	assert.Equal(t, types.KInt, resolved.Val.Elem.Kind)
}

func TestInstantiateGivesFreshVarsPerCall(t *testing.T) {
	u := New()
	scheme := &types.Scheme{
		Quantifiers: []string{"T"},
		Body:        types.Fn([]*types.Type{types.Generic("T")}, types.Generic("T"), nil),
	}
	inst1 := u.Instantiate(scheme)
	inst2 := u.Instantiate(scheme)

	require.NoError(t, u.Unify(inst1.Params[0], types.Int()))
	require.NoError(t, u.Unify(inst2.Params[0], types.Str()))

	assert.Equal(t, types.KInt, u.Resolve(inst1.Ret).Kind)
	assert.Equal(t, types.KStr, u.Resolve(inst2.Ret).Kind)
}

func TestInstantiateWithNoQuantifiersReturnsBodyUnchanged(t *testing.T) {
	u := New()
	scheme := &types.Scheme{Body: types.Int()}
	assert.Same(t, scheme.Body, u.Instantiate(scheme))
}
