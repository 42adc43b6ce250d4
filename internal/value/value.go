// Package value implements the runtime value domain (spec component C1).
//
// A Value is a tagged union of the variants spec.md §3 names. Go encodes
// the union as an interface populated by a closed set of concrete types so
// that a type switch (the idiom the teacher uses throughout internal/vm)
// is exhaustive and the compiler flags a missing case.
package value

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Value is any of Int, Float, Bool, String, Bytes, Void, *Array, *Set, *Map,
// *Struct, *Optional, *Error, *Closure.
type Value interface {
	isValue()
}

type Int int64

func (Int) isValue() {}

type Float float64

func (Float) isValue() {}

type Bool bool

func (Bool) isValue() {}

type String string

func (String) isValue() {}

type Bytes []byte

func (Bytes) isValue() {}

// Void is the unit value; there is exactly one.
type Void struct{}

func (Void) isValue() {}

// Array is an ordered, growable sequence.
type Array struct {
	Elements []Value
}

func (*Array) isValue() {}

func NewArray(elems ...Value) *Array { return &Array{Elements: elems} }

// Set preserves insertion order; membership is structural equality.
type Set struct {
	order []Value
}

func (*Set) isValue() {}

func NewSet(elems ...Value) *Set {
	s := &Set{}
	for _, e := range elems {
		s.Add(e)
	}
	return s
}

func (s *Set) Add(v Value) bool {
	if s.Contains(v) {
		return false
	}
	s.order = append(s.order, v)
	return true
}

func (s *Set) Contains(v Value) bool {
	for _, e := range s.order {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

func (s *Set) Elements() []Value { return s.order }
func (s *Set) Len() int          { return len(s.order) }

// mapEntry keeps Map insertion-ordered despite Go map iteration order being
// randomized; spec §3 requires Map to be an "ordered map from String to Value".
type mapEntry struct {
	Key string
	Val Value
}

type Map struct {
	entries []mapEntry
	index   map[string]int
}

func (*Map) isValue() {}

func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

func (m *Map) Set(key string, v Value) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Val = v
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, mapEntry{Key: key, Val: v})
}

func (m *Map) Get(key string) (Value, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Val, true
}

func (m *Map) Delete(key string) bool {
	i, ok := m.index[key]
	if !ok {
		return false
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.index, key)
	for k, idx := range m.index {
		if idx > i {
			m.index[k] = idx - 1
		}
	}
	return true
}

func (m *Map) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

func (m *Map) Len() int { return len(m.entries) }

// Struct is an ordered map from field name to value, as produced by
// MakeStruct; the lowerer attaches a synthetic "__type__" first field.
type Struct struct {
	Fields *Map
}

func (*Struct) isValue() {}

func NewStruct() *Struct { return &Struct{Fields: NewMap()} }

func (s *Struct) TypeName() string {
	if v, ok := s.Fields.Get("__type__"); ok {
		if str, ok := v.(String); ok {
			return string(str)
		}
	}
	return ""
}

// Optional wraps Some(v) when Present, None when not.
type Optional struct {
	Present bool
	Inner   Value
}

func (*Optional) isValue() {}

func Some(v Value) *Optional { return &Optional{Present: true, Inner: v} }
func None() *Optional        { return &Optional{Present: false} }

// Error carries a runtime-raised error message as a first-class value,
// distinct from the VM's propagated RuntimeError (spec §6c).
type Error struct {
	Message string
}

func (*Error) isValue() {}

// Closure captures the creating scope's locals by value at MakeClosure time
// (spec §4.7 "captures the whole current locals map").
type Closure struct {
	Params   []string
	Captured map[string]Value
	BodyID   uint32

	// SelfName lets a SelfCall/TailSelfCall reached from inside the
	// closure body resolve to the function active when the closure was
	// created — closures have no name of their own to recurse on.
	SelfName string

	// LocalCount sizes the locals array CallClosure allocates for the
	// body's own params and any locals it declares.
	LocalCount uint16
}

func (*Closure) isValue() {}

// Future is not part of spec §3's Value enumeration, but Spawn/Await (§4.7)
// need a runtime carrier for "a completed future tag (state = -1)"; in the
// single-threaded cooperative model every Future is immediately ready, so
// this has no state field at all, just the settled value.
type Future struct {
	Inner Value
}

func (*Future) isValue() {}

// Channel is likewise absent from §3's Value list but required to give
// Send/Recv (§4.7, §5) something to operate on: a bounded FIFO buffer.
type Channel struct {
	Buffer   []Value
	Capacity int
}

func (*Channel) isValue() {}

func NewChannel(capacity int) *Channel { return &Channel{Capacity: capacity} }

func (c *Channel) TrySend(v Value) bool {
	if len(c.Buffer) >= c.Capacity {
		return false
	}
	c.Buffer = append(c.Buffer, v)
	return true
}

func (c *Channel) TryRecv() (Value, bool) {
	if len(c.Buffer) == 0 {
		return nil, false
	}
	v := c.Buffer[0]
	c.Buffer = c.Buffer[1:]
	return v, true
}

// IsTruthy implements spec §3's truthiness table.
func IsTruthy(v Value) bool {
	switch x := v.(type) {
	case Int:
		return x != 0
	case Float:
		return x != 0
	case Bool:
		return bool(x)
	case String:
		return x != ""
	case Bytes:
		return len(x) != 0
	case Void:
		return false
	case *Array:
		return len(x.Elements) != 0
	case *Set:
		return x.Len() != 0
	case *Map:
		return x.Len() != 0
	case *Struct:
		return x.Fields.Len() != 0
	case *Optional:
		return x.Present
	case *Error:
		return true
	case *Closure:
		return true
	case *Future:
		return true
	case *Channel:
		return len(x.Buffer) != 0
	case nil:
		return false
	default:
		return true
	}
}

// Equal implements structural equality.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return x == y
		case Float:
			return Float(x) == y
		}
		return false
	case Float:
		switch y := b.(type) {
		case Float:
			return x == y
		case Int:
			return x == Float(y)
		}
		return false
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Bytes:
		y, ok := b.(Bytes)
		return ok && string(x) == string(y)
	case Void:
		_, ok := b.(Void)
		return ok
	case *Array:
		y, ok := b.(*Array)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !Equal(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	case *Set:
		y, ok := b.(*Set)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, e := range x.order {
			if !y.Contains(e) {
				return false
			}
		}
		return true
	case *Map:
		y, ok := b.(*Map)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, e := range x.entries {
			yv, ok := y.Get(e.Key)
			if !ok || !Equal(e.Val, yv) {
				return false
			}
		}
		return true
	case *Struct:
		y, ok := b.(*Struct)
		return ok && Equal(x.Fields, y.Fields)
	case *Optional:
		y, ok := b.(*Optional)
		if !ok || x.Present != y.Present {
			return false
		}
		if !x.Present {
			return true
		}
		return Equal(x.Inner, y.Inner)
	case *Error:
		y, ok := b.(*Error)
		return ok && x.Message == y.Message
	case *Closure:
		y, ok := b.(*Closure)
		return ok && x == y
	case *Future:
		y, ok := b.(*Future)
		return ok && Equal(x.Inner, y.Inner)
	case *Channel:
		y, ok := b.(*Channel)
		return ok && x == y
	}
	return false
}

// Len implements spec §4.1's length operation; Unicode scalar count for String.
func Len(v Value) (int, error) {
	switch x := v.(type) {
	case String:
		return len([]rune(string(x))), nil
	case Bytes:
		return len(x), nil
	case *Array:
		return len(x.Elements), nil
	case *Set:
		return x.Len(), nil
	case *Map:
		return x.Len(), nil
	case *Struct:
		return x.Fields.Len(), nil
	default:
		return 0, fmt.Errorf("TypeError: value has no length")
	}
}

// AsInt coerces a numeric value to Int; exact for Int, truncating for Float.
func AsInt(v Value) (Int, bool) {
	switch x := v.(type) {
	case Int:
		return x, true
	case Float:
		return Int(int64(x)), true
	default:
		return 0, false
	}
}

// AsFloat coerces a numeric value to Float; exact widening int64 -> f64.
func AsFloat(v Value) (Float, bool) {
	switch x := v.(type) {
	case Float:
		return x, true
	case Int:
		return Float(float64(x)), true
	default:
		return 0, false
	}
}

// Ordering mirrors Go's sort.Interface `Less` convention: -1, 0, 1.
// Numeric compares by value, strings lexicographically; mixed/unordered
// pairs compare Equal rather than erroring (spec §4.1).
func Compare(a, b Value) int {
	if af, ok := AsFloat(a); ok {
		if bf, ok := AsFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, ok := a.(String); ok {
		if bs, ok := b.(String); ok {
			return strings.Compare(string(as), string(bs))
		}
	}
	return 0
}

// SortValues sorts a copy of vs using Compare, stable on equal elements.
func SortValues(vs []Value) []Value {
	out := make([]Value, len(vs))
	copy(out, vs)
	sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return out
}

// Add implements spec §4.1 arithmetic widening and the Str/Array '+' overloads.
func Add(a, b Value) (Value, error) {
	if as, ok := a.(String); ok {
		if bs, ok := b.(String); ok {
			return String(string(as) + string(bs)), nil
		}
		return nil, typeErr("+")
	}
	if aa, ok := a.(*Array); ok {
		if ba, ok := b.(*Array); ok {
			out := make([]Value, 0, len(aa.Elements)+len(ba.Elements))
			out = append(out, aa.Elements...)
			out = append(out, ba.Elements...)
			return &Array{Elements: out}, nil
		}
		return nil, typeErr("+")
	}
	return numeric(a, b, "+")
}

func Sub(a, b Value) (Value, error) { return numeric(a, b, "-") }
func Mul(a, b Value) (Value, error) { return numeric(a, b, "*") }

func Div(a, b Value) (Value, error) {
	ai, aIsInt := a.(Int)
	bi, bIsInt := b.(Int)
	if aIsInt && bIsInt {
		if bi == 0 {
			return nil, DivisionByZero
		}
		return ai / bi, nil
	}
	af, ok1 := AsFloat(a)
	bf, ok2 := AsFloat(b)
	if !ok1 || !ok2 {
		return nil, typeErr("/")
	}
	return af / bf, nil
}

func Mod(a, b Value) (Value, error) {
	ai, aIsInt := a.(Int)
	bi, bIsInt := b.(Int)
	if aIsInt && bIsInt {
		if bi == 0 {
			return nil, DivisionByZero
		}
		return ai % bi, nil
	}
	af, ok1 := AsFloat(a)
	bf, ok2 := AsFloat(b)
	if !ok1 || !ok2 {
		return nil, typeErr("%")
	}
	return Float(math.Mod(float64(af), float64(bf))), nil
}

// DivisionByZero is returned verbatim by Div/Mod on an Int divisor of 0;
// the VM maps it to RuntimeError.DivisionByZero (spec §4.1, §6c).
var DivisionByZero = fmt.Errorf("DivisionByZero")

func typeErr(op string) error {
	return fmt.Errorf("TypeError: unsupported operand types for %s", op)
}

func numeric(a, b Value, op string) (Value, error) {
	ai, aIsInt := a.(Int)
	bi, bIsInt := b.(Int)
	if aIsInt && bIsInt {
		switch op {
		case "+":
			return ai + bi, nil
		case "-":
			return ai - bi, nil
		case "*":
			return ai * bi, nil
		}
	}
	af, ok1 := AsFloat(a)
	bf, ok2 := AsFloat(b)
	if !ok1 || !ok2 {
		return nil, typeErr(op)
	}
	switch op {
	case "+":
		return af + bf, nil
	case "-":
		return af - bf, nil
	case "*":
		return af * bf, nil
	}
	return nil, typeErr(op)
}

// String renders a Value the way the teacher's PrintValue does for
// functions: a short, debuggable form rather than a language-literal form.
func String_(v Value) string {
	switch x := v.(type) {
	case Int:
		return fmt.Sprintf("%d", int64(x))
	case Float:
		return fmt.Sprintf("%g", float64(x))
	case Bool:
		return fmt.Sprintf("%t", bool(x))
	case String:
		return string(x)
	case Bytes:
		return fmt.Sprintf("%x", []byte(x))
	case Void:
		return "void"
	case *Array:
		parts := make([]string, len(x.Elements))
		for i, e := range x.Elements {
			parts[i] = String_(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Set:
		parts := make([]string, len(x.order))
		for i, e := range x.order {
			parts[i] = String_(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Map:
		parts := make([]string, 0, x.Len())
		for _, e := range x.entries {
			parts = append(parts, fmt.Sprintf("%s: %s", e.Key, String_(e.Val)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Struct:
		return fmt.Sprintf("%s%s", x.TypeName(), String_(x.Fields))
	case *Optional:
		if !x.Present {
			return "None"
		}
		return "Some(" + String_(x.Inner) + ")"
	case *Error:
		return "Error(" + x.Message + ")"
	case *Closure:
		return "<closure>"
	case *Future:
		return "Future(" + String_(x.Inner) + ")"
	case *Channel:
		return fmt.Sprintf("<channel %d/%d>", len(x.Buffer), x.Capacity)
	default:
		return fmt.Sprintf("%v", v)
	}
}
