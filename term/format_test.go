package term

import "testing"

func TestFormatPidDisplayCreation(t *testing.T) {
	p := Pid(Atom("node@host"), 1, 2, 3)
	if got := p.Format(); got != "<node@host.1.2>" {
		t.Fatalf("got %q", got)
	}
	SetDisplayCreation(true)
	defer SetDisplayCreation(false)
	if got := p.Format(); got != "<node@host.1.2:3>" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatAtomQuoting(t *testing.T) {
	if Atom("hello").Format() != "hello" {
		t.Fatalf("got %q", Atom("hello").Format())
	}
	if Atom("Hello").Format() != "'Hello'" {
		t.Fatalf("got %q", Atom("Hello").Format())
	}
	if Atom("with space").Format() != "'with space'" {
		t.Fatalf("got %q", Atom("with space").Format())
	}
}

func TestFormatTupleAndList(t *testing.T) {
	tup := Tuple(Atom("ok"), Int64(1))
	if tup.Format() != "{ok,1}" {
		t.Fatalf("got %q", tup.Format())
	}
	l := List(Int64(1), Int64(2))
	if l.Format() != "[1,2]" {
		t.Fatalf("got %q", l.Format())
	}
	improper := ImproperList([]Term{Int64(1)}, Int64(2))
	if improper.Format() != "[1|2]" {
		t.Fatalf("got %q", improper.Format())
	}
}

func TestFormatRoundTripSimple(t *testing.T) {
	terms := []Term{
		Int64(42),
		Tuple(Atom("ok"), Int64(7)),
		List(Atom("a"), Atom("b"), Int64(3)),
		Str("hi"),
		Map(MapPair{Key: Atom("k"), Value: Int64(1)}),
	}
	for _, term := range terms {
		parsed, err := Parse(term.Format())
		if err != nil {
			t.Fatalf("parse(%q): %v", term.Format(), err)
		}
		if !term.Equal(parsed) {
			t.Fatalf("format/parse round-trip mismatch: %v vs %v", term, parsed)
		}
	}
}

func TestParsePlaceholderAtom(t *testing.T) {
	got, err := Parse("{ok, ~a}", "hello")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Tuple(Atom("ok"), Atom("hello"))
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	buf, err := Encode(got)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !back.Equal(want) {
		t.Fatalf("re-decoded term mismatch: %v", back)
	}
}

func TestParsePlaceholderKinds(t *testing.T) {
	got, err := Parse("{~a, ~s, ~i, ~f, ~w}", "k", "str", 5, 2.5, Atom("raw"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Tuple(Atom("k"), Str("str"), Int64(5), NewFloat(2.5), Atom("raw"))
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseRejectsUnmatchedArgCount(t *testing.T) {
	if _, err := Parse("{~a, ~a}", "only-one"); err == nil {
		t.Fatalf("expected parse error for missing placeholder argument")
	}
	if _, err := Parse("{~a}", "one", "extra"); err == nil {
		t.Fatalf("expected parse error for unconsumed trailing argument")
	}
}

func TestParseMFA(t *testing.T) {
	mod, fn, args, err := ParseMFA("erlang:spawn(foo, 1)")
	if err != nil {
		t.Fatalf("parse mfa: %v", err)
	}
	if mod.Name() != "erlang" || fn.Name() != "spawn" {
		t.Fatalf("got module=%v function=%v", mod, fn)
	}
	if len(args) != 2 || !args[0].Equal(Atom("foo")) || !args[1].Equal(Int64(1)) {
		t.Fatalf("got args %v", args)
	}
}

func TestParseMFANoArgs(t *testing.T) {
	mod, fn, args, err := ParseMFA("m:f()")
	if err != nil {
		t.Fatalf("parse mfa: %v", err)
	}
	if mod.Name() != "m" || fn.Name() != "f" || len(args) != 0 {
		t.Fatalf("got module=%v function=%v args=%v", mod, fn, args)
	}
}

func TestParseMalformedInput(t *testing.T) {
	if _, err := Parse("{ok,"); err == nil {
		t.Fatalf("expected parse error for unterminated tuple")
	}
	if _, err := Parse("[1,2"); err == nil {
		t.Fatalf("expected parse error for unterminated list")
	}
}
