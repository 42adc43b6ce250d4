package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/internal/value"
	"vela/internal/vm"
)

func TestNamesCoversEveryRegisteredDomain(t *testing.T) {
	names := Names()
	for _, want := range []string{
		"upper", "lower", "trim", "split", "replace", "starts_with", "ends_with",
		"push", "pop", "first", "last", "reverse", "join",
		"keys", "values", "has",
		"add", "to_array",
		"str", "to_set", "len",
	} {
		assert.True(t, names[want], "Names() missing %q", want)
	}
}

func TestRegisterAllDoesNotPanic(t *testing.T) {
	v := vm.New(0, false)
	assert.NotPanics(t, func() { RegisterAll(v) })
}

func TestStringBuiltins(t *testing.T) {
	out, rerr := strUpper(nil, []value.Value{value.String("abc")})
	require.Nil(t, rerr)
	assert.Equal(t, value.String("ABC"), out)

	out, rerr = strTrim(nil, []value.Value{value.String("  hi  ")})
	require.Nil(t, rerr)
	assert.Equal(t, value.String("hi"), out)

	out, rerr = strStartsWith(nil, []value.Value{value.String("hello"), value.String("he")})
	require.Nil(t, rerr)
	assert.Equal(t, value.Bool(true), out)

	_, rerr = strUpper(nil, []value.Value{value.Int(1)})
	assert.NotNil(t, rerr)
}

func TestArrayBuiltins(t *testing.T) {
	arr := &value.Array{Elements: []value.Value{value.Int(1), value.Int(2)}}

	out, rerr := arrPush(nil, []value.Value{arr, value.Int(3)})
	require.Nil(t, rerr)
	pushed, ok := out.(*value.Array)
	require.True(t, ok)
	assert.Len(t, pushed.Elements, 3)
	assert.Len(t, arr.Elements, 2, "push must not mutate the receiver")

	out, rerr = arrReverse(nil, []value.Value{arr})
	require.Nil(t, rerr)
	rev := out.(*value.Array)
	assert.Equal(t, value.Int(2), rev.Elements[0])

	out, rerr = arrFirst(nil, []value.Value{&value.Array{}})
	require.Nil(t, rerr)
	assert.Equal(t, value.None(), out)

	out, rerr = arrPop(nil, []value.Value{arr})
	require.Nil(t, rerr)
	st, ok := out.(*value.Struct)
	require.True(t, ok)
	popped, ok := st.Fields.Get("popped")
	require.True(t, ok)
	assert.Equal(t, value.Int(2), popped)
}

func TestMapAndSetBuiltins(t *testing.T) {
	m := value.NewMap()
	m.Set("a", value.Int(1))

	out, rerr := mapHas(nil, []value.Value{m, value.String("a")})
	require.Nil(t, rerr)
	assert.Equal(t, value.Bool(true), out)

	s := value.NewSet(value.Int(1))
	out, rerr = setAdd(nil, []value.Value{s, value.Int(2)})
	require.Nil(t, rerr)
	added := out.(*value.Set)
	assert.True(t, added.Contains(value.Int(2)))
	assert.False(t, s.Contains(value.Int(2)), "add must not mutate the receiver")
}

func TestMiscBuiltins(t *testing.T) {
	out, rerr := miscLen(nil, []value.Value{value.String("abc")})
	require.Nil(t, rerr)
	assert.Equal(t, value.Int(3), out)

	out, rerr = miscToSet(nil, []value.Value{&value.Array{Elements: []value.Value{value.Int(1), value.Int(1)}}})
	require.Nil(t, rerr)
	s := out.(*value.Set)
	assert.Equal(t, 1, s.Len())
}
