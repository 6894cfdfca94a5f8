package match

import (
	"testing"

	"github.com/distnode/erl/term"
)

func TestMatchReflexivity(t *testing.T) {
	vals := []term.Term{
		term.Int64(42),
		term.Atom("ok"),
		term.Tuple(term.Atom("ok"), term.Int64(1)),
		term.List(term.Int64(1), term.Int64(2)),
		term.Map(term.MapPair{Key: term.Atom("a"), Value: term.Int64(1)}),
		term.Nil(),
	}
	for _, v := range vals {
		b := New()
		if !Match(v, v, b) {
			t.Fatalf("expected reflexive match for %v", v)
		}
		if b.Len() != 0 {
			t.Fatalf("reflexive match on ground term must leave bindings empty, got %d", b.Len())
		}
	}
}

func TestMatchSimpleVar(t *testing.T) {
	b := New()
	pattern := term.Tuple(term.Atom("ok"), term.Var("X"))
	ground := term.Tuple(term.Atom("ok"), term.Int64(42))
	if !Match(pattern, ground, b) {
		t.Fatalf("expected match")
	}
	bound, ok := b.Resolve("X")
	if !ok || !bound.Equal(term.Int64(42)) {
		t.Fatalf("expected X bound to 42, got %v", bound)
	}
}

func TestMatchAlreadyBoundVar(t *testing.T) {
	b := New()
	b.Bind("X", term.Int64(1))
	if Match(term.Var("X"), term.Int64(2), b) {
		t.Fatalf("expected mismatch against existing binding")
	}
	if !Match(term.Var("X"), term.Int64(1), b) {
		t.Fatalf("expected match against existing binding")
	}
}

func TestMatchFailureRollsBackBindings(t *testing.T) {
	b := New()
	pattern := term.Tuple(term.Var("X"), term.Atom("a"))
	ground := term.Tuple(term.Int64(1), term.Atom("b"))
	if Match(pattern, ground, b) {
		t.Fatalf("expected mismatch")
	}
	if b.Len() != 0 {
		t.Fatalf("expected bindings rolled back, got %d entries", b.Len())
	}
}

func TestMatchListHeadTail(t *testing.T) {
	b := New()
	pattern := term.ImproperList([]term.Term{term.Var("H")}, term.Var("T"))
	ground := term.List(term.Int64(1), term.Int64(2), term.Int64(3))
	if !Match(pattern, ground, b) {
		t.Fatalf("expected [H|T] match")
	}
	h, _ := b.Resolve("H")
	tail, _ := b.Resolve("T")
	if !h.Equal(term.Int64(1)) {
		t.Fatalf("expected H=1, got %v", h)
	}
	if !tail.Equal(term.List(term.Int64(2), term.Int64(3))) {
		t.Fatalf("expected T=[2,3], got %v", tail)
	}
}

func TestMatchEmptyListPatternAgainstNonEmptyFails(t *testing.T) {
	b := New()
	if Match(term.List(), term.List(term.Int64(1)), b) {
		t.Fatalf("expected [] not to match [1]")
	}
	if Match(term.Nil(), term.List(term.Int64(1)), b) {
		t.Fatalf("expected nil pattern not to match [1]")
	}
}

func TestMatchProperListPatternAgainstImproperGroundFails(t *testing.T) {
	b := New()
	pattern := term.List(term.Int64(1), term.Int64(2))
	ground := term.ImproperList([]term.Term{term.Int64(1), term.Int64(2)}, term.Atom("tail"))
	if Match(pattern, ground, b) {
		t.Fatalf("expected proper-list pattern not to match an improper ground list")
	}
}

func TestMatchTypedVar(t *testing.T) {
	b := New()
	pattern := term.TypedVar("X", term.KindInt)
	if !Match(pattern, term.Int64(1), b) {
		t.Fatalf("expected typed var to accept matching kind")
	}
	b2 := New()
	if Match(term.TypedVar("Y", term.KindAtom), term.Int64(1), b2) {
		t.Fatalf("expected typed var to reject mismatched kind")
	}
}

func TestMatchMapSubsetKeys(t *testing.T) {
	b := New()
	pattern := term.Map(term.MapPair{Key: term.Atom("a"), Value: term.Var("X")})
	ground := term.Map(
		term.MapPair{Key: term.Atom("a"), Value: term.Int64(1)},
		term.MapPair{Key: term.Atom("b"), Value: term.Int64(2)},
	)
	if !Match(pattern, ground, b) {
		t.Fatalf("expected pattern with a subset of keys to match")
	}
	x, _ := b.Resolve("X")
	if !x.Equal(term.Int64(1)) {
		t.Fatalf("expected X=1, got %v", x)
	}
}

func TestBindAndSubstitute(t *testing.T) {
	b := New()
	pattern := term.Tuple(term.Var("X"), term.Var("Y"))
	ground := term.Tuple(term.Int64(1), term.Atom("ok"))
	if !Match(pattern, ground, b) {
		t.Fatalf("expected match")
	}
	got := Subst(pattern, b)
	if !got.Equal(ground) {
		t.Fatalf("expected subst(pattern, bindings) == ground, got %v", got)
	}
}

func TestSubstLeavesUnboundVar(t *testing.T) {
	b := New()
	got := Subst(term.Var("Z"), b)
	if !got.Equal(term.Var("Z")) {
		t.Fatalf("expected unbound var to propagate, got %v", got)
	}
}

func TestOccursCheckRejectsSelfReference(t *testing.T) {
	b := New()
	self := term.Tuple(term.Var("X"))
	if Match(term.Var("X"), self, b) {
		t.Fatalf("expected occurs-check to reject binding X to a term containing X")
	}
	if b.Len() != 0 {
		t.Fatalf("expected no bindings to survive a rejected occurs-check bind")
	}
}

func TestOccursCheckThroughChainedVar(t *testing.T) {
	b := New()
	b.Bind("X", term.Var("Y"))
	if Match(term.Var("Y"), term.Tuple(term.Var("X")), b) {
		t.Fatalf("expected occurs-check to see through the X->Y chain")
	}
}

func TestCheckpointRollback(t *testing.T) {
	b := New()
	b.Bind("A", term.Int64(1))
	cp := b.Checkpoint()
	b.Bind("B", term.Int64(2))
	if b.Len() != 2 {
		t.Fatalf("expected 2 bindings before rollback")
	}
	b.Rollback(cp)
	if b.Len() != 1 || !b.Bound("A") || b.Bound("B") {
		t.Fatalf("expected rollback to remove only B")
	}
}
