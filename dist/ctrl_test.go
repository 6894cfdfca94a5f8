package dist

import (
	"testing"

	"github.com/distnode/erl/term"
)

func TestParseCtrlSend(t *testing.T) {
	node := term.Atom("a@host")
	from := term.Pid(node, 1, 0, 1)
	to := term.Pid(node, 2, 0, 1)
	parsed, err := ParseCtrl(SendCtrl(from, to))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Op != OpSend || !parsed.From.Equal(from) || !parsed.To.Equal(to) {
		t.Fatalf("got %+v", parsed)
	}
}

func TestParseCtrlExitWithReason(t *testing.T) {
	node := term.Atom("a@host")
	from := term.Pid(node, 1, 0, 1)
	to := term.Pid(node, 2, 0, 1)
	parsed, err := ParseCtrl(ExitCtrl(from, to, term.Atom("normal")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Op != OpExit || !parsed.Reason.Equal(term.Atom("normal")) {
		t.Fatalf("got %+v", parsed)
	}
}

func TestParseCtrlMonitor(t *testing.T) {
	node := term.Atom("a@host")
	from := term.Pid(node, 1, 0, 1)
	ref := term.Ref(node, 1, 7)
	parsed, err := ParseCtrl(MonitorCtrl(from, term.Atom("rex"), ref))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Op != OpMonitor || !parsed.Ref.Equal(ref) || !parsed.To.Equal(term.Atom("rex")) {
		t.Fatalf("got %+v", parsed)
	}
}

func TestParseCtrlRejectsUnknownOp(t *testing.T) {
	if _, err := ParseCtrl(term.Tuple(term.Int64(999))); err == nil {
		t.Fatalf("expected error for unknown control op")
	}
}

func TestParseCtrlRejectsNonTuple(t *testing.T) {
	if _, err := ParseCtrl(term.Atom("not_a_tuple")); err == nil {
		t.Fatalf("expected error for non-tuple control term")
	}
}
