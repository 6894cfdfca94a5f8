package dist

import (
	"fmt"

	"github.com/distnode/erl/term"
)

// Op identifies a distribution control message (spec.md §4.4 table).
type Op int

const (
	OpLink        Op = 1
	OpSend        Op = 2
	OpExit        Op = 3
	OpUnlink      Op = 4
	OpRegSend     Op = 6
	OpExit2       Op = 8
	OpMonitor     Op = 19
	OpDemonitor   Op = 20
	OpMonitorExit Op = 21
)

// reserved is the placeholder field several control tuples carry in
// the slot the original protocol used for a trace token / cookie atom;
// this library does not use it.
var reserved = term.Atom("")

func opOf(t term.Term) (Op, term.TupleTerm, bool) {
	tup, ok := t.(term.TupleTerm)
	if !ok || len(tup.Elements) == 0 {
		return 0, term.TupleTerm{}, false
	}
	i, ok := tup.Elements[0].(term.Int)
	if !ok || !i.V.IsInt64() {
		return 0, term.TupleTerm{}, false
	}
	return Op(i.V.Int64()), tup, true
}

// LinkCtrl builds {1, from, _, to} (spec.md §4.4 op 1 LINK).
func LinkCtrl(from, to term.PidTerm) term.Term {
	return term.Tuple(term.Int64(int64(OpLink)), from, reserved, to)
}

// SendCtrl builds {2, from, to}; the message term travels as the
// frame's separate payload, not inside the control tuple.
func SendCtrl(from, to term.PidTerm) term.Term {
	return term.Tuple(term.Int64(int64(OpSend)), from, to)
}

// ExitCtrl builds {3, from, _, to, reason} (op 3 EXIT).
func ExitCtrl(from, to term.PidTerm, reason term.Term) term.Term {
	return term.Tuple(term.Int64(int64(OpExit)), from, reserved, to, reason)
}

// UnlinkCtrl builds {4, from, _, to} (op 4 UNLINK).
func UnlinkCtrl(from, to term.PidTerm) term.Term {
	return term.Tuple(term.Int64(int64(OpUnlink)), from, reserved, to)
}

// RegSendCtrl builds {6, from, _, toName}; the message travels as the
// frame's payload (op 6 REG_SEND).
func RegSendCtrl(from term.PidTerm, toName term.AtomTerm) term.Term {
	return term.Tuple(term.Int64(int64(OpRegSend)), from, reserved, toName)
}

// Exit2Ctrl builds {8, from, _, to, reason} (op 8 EXIT2).
func Exit2Ctrl(from, to term.PidTerm, reason term.Term) term.Term {
	return term.Tuple(term.Int64(int64(OpExit2)), from, reserved, to, reason)
}

// MonitorCtrl builds {19, from, toProc, ref} (op 19 MONITOR). toProc
// is a pid or a registered-name atom.
func MonitorCtrl(from term.PidTerm, toProc term.Term, ref term.RefTerm) term.Term {
	return term.Tuple(term.Int64(int64(OpMonitor)), from, toProc, ref)
}

// DemonitorCtrl builds {20, from, toProc, ref} (op 20 DEMONITOR).
func DemonitorCtrl(from term.PidTerm, toProc term.Term, ref term.RefTerm) term.Term {
	return term.Tuple(term.Int64(int64(OpDemonitor)), from, toProc, ref)
}

// MonitorExitCtrl builds {21, from, toProc, ref, reason} (op 21 MONITOR_EXIT).
func MonitorExitCtrl(from term.PidTerm, toProc term.Term, ref term.RefTerm, reason term.Term) term.Term {
	return term.Tuple(term.Int64(int64(OpMonitorExit)), from, toProc, ref, reason)
}

// ParseCtrl classifies a decoded control tuple and returns its typed
// fields; unrecognised ops or malformed arities return an error.
type ParsedCtrl struct {
	Op      Op
	From    term.PidTerm
	To      term.Term // pid, atom name, or (for SEND) pid
	Ref     term.RefTerm
	Reason  term.Term
	HasRef  bool
	HasFrom bool
}

func ParseCtrl(t term.Term) (ParsedCtrl, error) {
	op, tup, ok := opOf(t)
	if !ok {
		return ParsedCtrl{}, fmt.Errorf("dist: control tuple is malformed")
	}
	arity := map[Op]int{
		OpLink: 4, OpSend: 3, OpExit: 5, OpUnlink: 4, OpRegSend: 4,
		OpExit2: 5, OpMonitor: 4, OpDemonitor: 4, OpMonitorExit: 5,
	}
	if want, known := arity[op]; known && len(tup.Elements) != want {
		return ParsedCtrl{}, fmt.Errorf("dist: control op %d has arity %d, want %d", op, len(tup.Elements), want)
	}
	get := func(i int) (term.Term, bool) {
		if i < 0 || i >= len(tup.Elements) {
			return nil, false
		}
		return tup.Elements[i], true
	}
	asPid := func(t term.Term) (term.PidTerm, bool) {
		p, ok := t.(term.PidTerm)
		return p, ok
	}
	asRef := func(t term.Term) (term.RefTerm, bool) {
		r, ok := t.(term.RefTerm)
		return r, ok
	}
	switch op {
	case OpLink, OpUnlink:
		from, _ := get(1)
		to, _ := get(3)
		fp, _ := asPid(from)
		return ParsedCtrl{Op: op, From: fp, To: to, HasFrom: true}, nil
	case OpSend:
		from, _ := get(1)
		to, _ := get(2)
		fp, _ := asPid(from)
		return ParsedCtrl{Op: op, From: fp, To: to, HasFrom: true}, nil
	case OpExit, OpExit2:
		from, _ := get(1)
		to, _ := get(3)
		reason, _ := get(4)
		fp, _ := asPid(from)
		return ParsedCtrl{Op: op, From: fp, To: to, Reason: reason, HasFrom: true}, nil
	case OpRegSend:
		from, _ := get(1)
		to, _ := get(3)
		fp, _ := asPid(from)
		return ParsedCtrl{Op: op, From: fp, To: to, HasFrom: true}, nil
	case OpMonitor, OpDemonitor:
		from, _ := get(1)
		to, _ := get(2)
		refT, _ := get(3)
		fp, _ := asPid(from)
		r, _ := asRef(refT)
		return ParsedCtrl{Op: op, From: fp, To: to, Ref: r, HasRef: true, HasFrom: true}, nil
	case OpMonitorExit:
		from, _ := get(1)
		to, _ := get(2)
		refT, _ := get(3)
		reason, _ := get(4)
		fp, _ := asPid(from)
		r, _ := asRef(refT)
		return ParsedCtrl{Op: op, From: fp, To: to, Ref: r, Reason: reason, HasRef: true, HasFrom: true}, nil
	default:
		return ParsedCtrl{}, fmt.Errorf("dist: unknown control op %d", op)
	}
}
