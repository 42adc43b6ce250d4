// Package unify implements Hindley-Milner unification over the type domain
// (spec component C4): fresh variable allocation, the substitution table,
// occurs-check, and resolve().
package unify

import (
	"fmt"

	"vela/internal/types"
)

// Kind classifies a unification failure (spec §4.3).
type Kind int

const (
	Mismatch Kind = iota
	OccursCheck
	ArityMismatch
	NotCallable
)

type Error struct {
	Kind     Kind
	Expected *types.Type
	Found    *types.Type
	Message  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("type mismatch: expected %s, found %s", e.Expected, e.Found)
}

// Unifier owns the substitution table and the fresh-variable counter; one
// Unifier is created per program check and discarded after IR emission
// (spec §3 "Lifecycle").
type Unifier struct {
	subs map[uint32]*types.Type
	next uint32
}

func New() *Unifier {
	return &Unifier{subs: make(map[uint32]*types.Type)}
}

// Fresh allocates a new unbound metavariable.
func (u *Unifier) Fresh() *types.Type {
	id := u.next
	u.next++
	return types.Var(id)
}

// Resolve follows the substitution chain for Var nodes to a concrete term
// (or the most-resolved Var if still unbound), terminating by invariant I2
// (the substitution table is built acyclically by the occurs-check).
func (u *Unifier) Resolve(t *types.Type) *types.Type {
	for t != nil && t.Kind == types.KVar {
		sub, ok := u.subs[t.Var]
		if !ok {
			return t
		}
		t = sub
	}
	return t
}

// Unify attempts U(a, b) per spec §4.3 and extends the substitution table
// on success.
func (u *Unifier) Unify(a, b *types.Type) error {
	a = u.Resolve(a)
	b = u.Resolve(b)

	if a.Kind == types.KNever || b.Kind == types.KNever {
		return nil
	}
	if a.Kind == types.KUnknown || b.Kind == types.KUnknown {
		return nil
	}
	if a.Kind == types.KAny || b.Kind == types.KAny {
		return nil
	}

	if a.Kind == types.KVar {
		return u.bind(a.Var, b)
	}
	if b.Kind == types.KVar {
		return u.bind(b.Var, a)
	}

	if a.Kind != b.Kind {
		return &Error{Kind: Mismatch, Expected: a, Found: b}
	}

	switch a.Kind {
	case types.KInt, types.KFloat, types.KBool, types.KStr, types.KUnit:
		return nil
	case types.KArray, types.KSet, types.KOptional, types.KFuture, types.KChannel,
		types.KRef, types.KRefMut, types.KPointer, types.KSlice, types.KSliceMut,
		types.KLazy, types.KLinear, types.KAffine:
		return u.Unify(a.Elem, b.Elem)
	case types.KMap:
		if err := u.Unify(a.Key, b.Key); err != nil {
			return err
		}
		return u.Unify(a.Val, b.Val)
	case types.KResult:
		if err := u.Unify(a.Val, b.Val); err != nil {
			return err
		}
		return u.Unify(a.Err, b.Err)
	case types.KTuple:
		if len(a.Elems) != len(b.Elems) {
			return &Error{Kind: ArityMismatch, Expected: a, Found: b,
				Message: fmt.Sprintf("tuple arity mismatch: %d vs %d", len(a.Elems), len(b.Elems))}
		}
		for i := range a.Elems {
			if err := u.Unify(a.Elems[i], b.Elems[i]); err != nil {
				return err
			}
		}
		return nil
	case types.KFunction, types.KFnPtr:
		if len(a.Params) != len(b.Params) {
			return &Error{Kind: ArityMismatch, Expected: a, Found: b,
				Message: fmt.Sprintf("function arity mismatch: %d vs %d", len(a.Params), len(b.Params))}
		}
		for i := range a.Params {
			if err := u.Unify(a.Params[i], b.Params[i]); err != nil {
				return err
			}
		}
		return u.Unify(a.Ret, b.Ret)
	case types.KNamed:
		if a.Name != b.Name {
			return &Error{Kind: Mismatch, Expected: a, Found: b}
		}
		if len(a.Generics) != len(b.Generics) {
			return &Error{Kind: ArityMismatch, Expected: a, Found: b,
				Message: fmt.Sprintf("%s expects %d generic args, found %d", a.Name, len(a.Generics), len(b.Generics))}
		}
		for i := range a.Generics {
			if err := u.Unify(a.Generics[i], b.Generics[i]); err != nil {
				return err
			}
		}
		return nil
	case types.KGeneric:
		if a.Name != b.Name {
			return &Error{Kind: Mismatch, Expected: a, Found: b}
		}
		return nil
	case types.KDynTrait:
		if a.Trait != b.Trait {
			return &Error{Kind: Mismatch, Expected: a, Found: b}
		}
		return nil
	case types.KVector:
		if a.Lanes != b.Lanes {
			return &Error{Kind: ArityMismatch, Expected: a, Found: b}
		}
		return u.Unify(a.Elem, b.Elem)
	default:
		return &Error{Kind: Mismatch, Expected: a, Found: b}
	}
}

func (u *Unifier) bind(v uint32, t *types.Type) error {
	if t.Kind == types.KVar && t.Var == v {
		return nil
	}
	if occurs(u, v, t) {
		return &Error{Kind: OccursCheck, Expected: types.Var(v), Found: t,
			Message: fmt.Sprintf("occurs check failed: ?%d occurs in %s", v, t)}
	}
	u.subs[v] = t
	return nil
}

func occurs(u *Unifier, v uint32, t *types.Type) bool {
	t = u.Resolve(t)
	switch t.Kind {
	case types.KVar:
		return t.Var == v
	case types.KArray, types.KSet, types.KOptional, types.KFuture, types.KChannel,
		types.KRef, types.KRefMut, types.KPointer, types.KSlice, types.KSliceMut,
		types.KLazy, types.KLinear, types.KAffine, types.KVector:
		return occurs(u, v, t.Elem)
	case types.KMap:
		return occurs(u, v, t.Key) || occurs(u, v, t.Val)
	case types.KResult:
		return occurs(u, v, t.Val) || occurs(u, v, t.Err)
	case types.KTuple:
		for _, e := range t.Elems {
			if occurs(u, v, e) {
				return true
			}
		}
		return false
	case types.KFunction, types.KFnPtr:
		for _, p := range t.Params {
			if occurs(u, v, p) {
				return true
			}
		}
		return occurs(u, v, t.Ret)
	case types.KNamed:
		for _, g := range t.Generics {
			if occurs(u, v, g) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ResolveDeep fully substitutes every Var reachable from t, for reporting
// and for emitting final types into the lowered IR.
func (u *Unifier) ResolveDeep(t *types.Type) *types.Type {
	t = u.Resolve(t)
	if t == nil {
		return t
	}
	switch t.Kind {
	case types.KArray, types.KSet, types.KOptional, types.KFuture, types.KChannel,
		types.KRef, types.KRefMut, types.KPointer, types.KSlice, types.KSliceMut,
		types.KLazy, types.KLinear, types.KAffine, types.KVector:
		cp := *t
		cp.Elem = u.ResolveDeep(t.Elem)
		return &cp
	case types.KMap:
		cp := *t
		cp.Key = u.ResolveDeep(t.Key)
		cp.Val = u.ResolveDeep(t.Val)
		return &cp
	case types.KResult:
		cp := *t
		cp.Val = u.ResolveDeep(t.Val)
		cp.Err = u.ResolveDeep(t.Err)
		return &cp
	case types.KTuple:
		cp := *t
		cp.Elems = make([]*types.Type, len(t.Elems))
		for i, e := range t.Elems {
			cp.Elems[i] = u.ResolveDeep(e)
		}
		return &cp
	case types.KFunction, types.KFnPtr:
		cp := *t
		cp.Params = make([]*types.Type, len(t.Params))
		for i, p := range t.Params {
			cp.Params[i] = u.ResolveDeep(p)
		}
		cp.Ret = u.ResolveDeep(t.Ret)
		return &cp
	case types.KNamed:
		cp := *t
		cp.Generics = make([]*types.Type, len(t.Generics))
		for i, g := range t.Generics {
			cp.Generics[i] = u.ResolveDeep(g)
		}
		return &cp
	default:
		return t
	}
}

// Instantiate creates fresh Vars for each quantifier of a scheme, producing
// a monomorphic Type for one call/use site (spec §4.3 "Generalization").
func (u *Unifier) Instantiate(s *types.Scheme) *types.Type {
	if len(s.Quantifiers) == 0 {
		return s.Body
	}
	sub := make(map[string]*types.Type, len(s.Quantifiers))
	for _, q := range s.Quantifiers {
		sub[q] = u.Fresh()
	}
	return substituteGenerics(s.Body, sub)
}

func substituteGenerics(t *types.Type, sub map[string]*types.Type) *types.Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case types.KGeneric:
		if r, ok := sub[t.Name]; ok {
			return r
		}
		return t
	case types.KArray, types.KSet, types.KOptional, types.KFuture, types.KChannel,
		types.KRef, types.KRefMut, types.KPointer, types.KSlice, types.KSliceMut,
		types.KLazy, types.KLinear, types.KAffine, types.KVector:
		cp := *t
		cp.Elem = substituteGenerics(t.Elem, sub)
		return &cp
	case types.KMap:
		cp := *t
		cp.Key = substituteGenerics(t.Key, sub)
		cp.Val = substituteGenerics(t.Val, sub)
		return &cp
	case types.KResult:
		cp := *t
		cp.Val = substituteGenerics(t.Val, sub)
		cp.Err = substituteGenerics(t.Err, sub)
		return &cp
	case types.KTuple:
		cp := *t
		cp.Elems = make([]*types.Type, len(t.Elems))
		for i, e := range t.Elems {
			cp.Elems[i] = substituteGenerics(e, sub)
		}
		return &cp
	case types.KFunction, types.KFnPtr:
		cp := *t
		cp.Params = make([]*types.Type, len(t.Params))
		for i, p := range t.Params {
			cp.Params[i] = substituteGenerics(p, sub)
		}
		cp.Ret = substituteGenerics(t.Ret, sub)
		return &cp
	case types.KNamed:
		cp := *t
		cp.Generics = make([]*types.Type, len(t.Generics))
		for i, g := range t.Generics {
			cp.Generics[i] = substituteGenerics(g, sub)
		}
		return &cp
	default:
		return t
	}
}
