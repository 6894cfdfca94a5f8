package match

import "github.com/distnode/erl/term"

// Subst returns pattern with every bound variable replaced by its
// binding (spec.md §4.3); an unbound variable is returned unchanged.
// Variables inside a binding are substituted too. Termination is
// guaranteed because Match occurs-checks every binding it records,
// keeping the binding graph a DAG.
func Subst(pattern term.Term, b *Bindings) term.Term {
	switch p := pattern.(type) {
	case term.VarTerm:
		if bound, ok := b.Resolve(p.Name); ok {
			return Subst(bound, b)
		}
		return p
	case term.TupleTerm:
		elems := make([]term.Term, len(p.Elements))
		for i, e := range p.Elements {
			elems[i] = Subst(e, b)
		}
		return term.TupleTerm{Elements: elems}
	case term.ListTerm:
		elems := make([]term.Term, len(p.Elements))
		for i, e := range p.Elements {
			elems[i] = Subst(e, b)
		}
		return term.ListTerm{Elements: elems, Tail: Subst(p.Tail, b)}
	case term.MapTerm:
		pairs := make([]term.MapPair, len(p.Pairs))
		for i, pp := range p.Pairs {
			pairs[i] = term.MapPair{Key: Subst(pp.Key, b), Value: Subst(pp.Value, b)}
		}
		return term.MapTerm{Pairs: pairs}
	default:
		return p
	}
}
