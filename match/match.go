package match

import "github.com/distnode/erl/term"

// Match unifies pattern against ground, recording variable bindings
// in b (spec.md §4.3). On success it returns true with b updated; on
// failure it returns false with b restored to its pre-call state —
// the whole call is transactional, not just the top level, so a
// partially-successful nested match inside a failing tuple/list/map
// never leaks a binding.
func Match(pattern, ground term.Term, b *Bindings) bool {
	cp := b.Checkpoint()
	if matchValue(pattern, ground, b) {
		return true
	}
	b.Rollback(cp)
	return false
}

func matchValue(pattern, ground term.Term, b *Bindings) bool {
	if v, ok := pattern.(term.VarTerm); ok {
		return matchVar(v, ground, b)
	}
	switch p := pattern.(type) {
	case term.TupleTerm:
		g, ok := ground.(term.TupleTerm)
		if !ok || len(p.Elements) != len(g.Elements) {
			return false
		}
		for i := range p.Elements {
			if !matchValue(p.Elements[i], g.Elements[i], b) {
				return false
			}
		}
		return true
	case term.ListTerm:
		g, ok := asListTerm(ground)
		if !ok {
			return false
		}
		return matchList(p, g, b)
	case term.NilTerm:
		g, ok := asListTerm(ground)
		if !ok {
			return false
		}
		return len(g.Elements) == 0 && g.Proper()
	case term.MapTerm:
		g, ok := ground.(term.MapTerm)
		if !ok {
			return false
		}
		for _, pp := range p.Pairs {
			gv, found := g.Get(pp.Key)
			if !found || !matchValue(pp.Value, gv, b) {
				return false
			}
		}
		return true
	default:
		// int, float, atom, string, binary, pid, port, ref: no
		// sub-structure to unify, only structural equality (which
		// already special-cases string/list cross-comparison).
		return pattern.Equal(ground)
	}
}

// asListTerm normalises NilTerm/proper-list grounds into the
// ListTerm shape matchList works with.
func asListTerm(t term.Term) (term.ListTerm, bool) {
	switch v := t.(type) {
	case term.ListTerm:
		return v, true
	case term.NilTerm:
		return term.List(), true
	default:
		return term.ListTerm{}, false
	}
}

// matchList implements spec.md §4.3's "lengths of the proper prefix
// equal AND tails match" rule: walk elementwise while the pattern has
// elements, then unify the pattern's tail against whatever of the
// ground list remains — which is how `[H|T]`-style patterns bind T to
// the remaining suffix.
func matchList(p, g term.ListTerm, b *Bindings) bool {
	i := 0
	for i < len(p.Elements) {
		if i >= len(g.Elements) {
			return false
		}
		if !matchValue(p.Elements[i], g.Elements[i], b) {
			return false
		}
		i++
	}
	remaining := term.ImproperList(append([]term.Term(nil), g.Elements[i:]...), g.Tail)
	return matchValue(p.Tail, remaining, b)
}

func matchVar(v term.VarTerm, ground term.Term, b *Bindings) bool {
	if bound, ok := b.Resolve(v.Name); ok {
		return matchValue(bound, ground, b)
	}
	if v.Type != nil && ground.Kind() != *v.Type {
		return false
	}
	if !occursCheck(v.Name, ground, b) {
		return false
	}
	b.Bind(v.Name, ground)
	return true
}

// occursCheck reports whether binding name to value would create a
// cycle in the binding graph (spec.md §9: "var substitution must
// check that a variable is never bound to a term containing itself").
// It must keep the graph a DAG so Subst always terminates.
func occursCheck(name string, value term.Term, b *Bindings) bool {
	switch v := value.(type) {
	case term.VarTerm:
		if v.Name == name {
			return false
		}
		if bound, ok := b.Resolve(v.Name); ok {
			return occursCheck(name, bound, b)
		}
		return true
	case term.TupleTerm:
		for _, e := range v.Elements {
			if !occursCheck(name, e, b) {
				return false
			}
		}
		return true
	case term.ListTerm:
		for _, e := range v.Elements {
			if !occursCheck(name, e, b) {
				return false
			}
		}
		return occursCheck(name, v.Tail, b)
	case term.MapTerm:
		for _, p := range v.Pairs {
			if !occursCheck(name, p.Key, b) || !occursCheck(name, p.Value, b) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
