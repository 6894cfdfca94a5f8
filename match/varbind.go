// Package match implements the pattern-matching / variable-binding
// engine over term.Term (spec.md §4.3): unification between a pattern
// and a ground term, with transactional bindings and substitution.
package match

import "github.com/distnode/erl/term"

// Bindings is a mapping from variable name to either a concrete term
// or another variable name (spec.md §4.3 varbind); lookups resolve
// transitive bindings. It supports checkpoint/rollback so a failed
// match attempt can undo everything it bound (spec.md: "any mismatch
// restores the varbind to its state before the call").
type Bindings struct {
	values map[string]term.Term
	log    []string
}

// New returns an empty Bindings.
func New() *Bindings {
	return &Bindings{values: make(map[string]term.Term)}
}

// Resolve follows a variable's binding chain to its final term. It
// returns ok=false if name is unbound.
func (b *Bindings) Resolve(name string) (term.Term, bool) {
	t, ok := b.values[name]
	if !ok {
		return nil, false
	}
	for {
		v, isVar := t.(term.VarTerm)
		if !isVar {
			return t, true
		}
		next, found := b.values[v.Name]
		if !found {
			return t, true
		}
		t = next
	}
}

// Bound reports whether name currently has a binding.
func (b *Bindings) Bound(name string) bool {
	_, ok := b.values[name]
	return ok
}

// Bind records name → value. Callers must occurs-check before calling
// (see occursCheck in match.go); Bind itself does not re-check, so
// that match.go can checkpoint/rollback around a batch of binds.
func (b *Bindings) Bind(name string, value term.Term) {
	b.values[name] = value
	b.log = append(b.log, name)
}

// Checkpoint returns a marker usable with Rollback to undo every Bind
// performed since this call.
func (b *Bindings) Checkpoint() int {
	return len(b.log)
}

// Rollback undoes every Bind performed since the matching Checkpoint.
func (b *Bindings) Rollback(checkpoint int) {
	for i := len(b.log) - 1; i >= checkpoint; i-- {
		delete(b.values, b.log[i])
	}
	b.log = b.log[:checkpoint]
}

// Len reports the number of currently-bound variables.
func (b *Bindings) Len() int {
	return len(b.values)
}
