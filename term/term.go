// Package term implements the Erlang term model (spec.md §3) and its
// External Term Format (ETF) codec (spec.md §4.2). A Term is an
// immutable, possibly-shared value of one of the variants below;
// sharing is handled by Go's garbage collector rather than by manual
// reference counting.
package term

import (
	"math/big"

	"github.com/distnode/erl/atom"
)

// Kind identifies a Term's variant.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindAtom
	KindString
	KindBinary
	KindTuple
	KindList
	KindNil
	KindMap
	KindPid
	KindPort
	KindRef
	KindVar
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindAtom:
		return "atom"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	case KindNil:
		return "nil"
	case KindMap:
		return "map"
	case KindPid:
		return "pid"
	case KindPort:
		return "port"
	case KindRef:
		return "ref"
	case KindVar:
		return "var"
	default:
		return "unknown"
	}
}

// Term is the common interface implemented by every term variant.
type Term interface {
	Kind() Kind
	// Equal reports structural equality (spec.md §3: atoms by interned
	// identity, pid/port/ref over all fields including creation,
	// integers across normalised encodings).
	Equal(other Term) bool
	// Format renders the term in Erlang's printable surface syntax
	// (spec.md §4.2). It never fails: unprintable content falls back to
	// an escaped or list-of-integers form.
	Format() string
}

// ---- Int ----------------------------------------------------------

// Int is an arbitrary-precision signed integer, up to 256 bytes of
// magnitude (spec.md §3). math/big.Int is the standard library's
// native representation of exactly this shape, so it is used directly
// rather than a custom bignum (see DESIGN.md).
type Int struct {
	V *big.Int
}

func Int64(n int64) Int { return Int{V: big.NewInt(n)} }
func BigInt(v *big.Int) Int {
	if v == nil {
		v = new(big.Int)
	}
	return Int{V: new(big.Int).Set(v)}
}

func (Int) Kind() Kind { return KindInt }
func (i Int) Equal(other Term) bool {
	o, ok := other.(Int)
	if !ok {
		return false
	}
	return i.V.Cmp(o.V) == 0
}

// ---- Float ---------------------------------------------------------

type Float struct{ V float64 }

func NewFloat(v float64) Float { return Float{V: v} }

func (Float) Kind() Kind { return KindFloat }
func (f Float) Equal(other Term) bool {
	o, ok := other.(Float)
	return ok && f.V == o.V
}

// ---- Atom -----------------------------------------------------------

// AtomTerm is an interned symbol. It always resolves through
// atom.Default, the process-wide table (spec.md §4.1).
type AtomTerm struct{ ID atom.Atom }

func Atom(name string) AtomTerm {
	id, err := atom.Default.Intern(name)
	if err != nil {
		// capacity_exceeded on the 2^20-entry default table from a
		// hand-written atom literal is not a recoverable condition callers
		// can usefully act on at a constructor call site; callers building
		// atoms from untrusted/unbounded input should call
		// atom.Default.Intern directly and handle the error.
		panic(err)
	}
	return AtomTerm{ID: id}
}

func (AtomTerm) Kind() Kind { return KindAtom }
func (a AtomTerm) Equal(other Term) bool {
	o, ok := other.(AtomTerm)
	return ok && a.ID == o.ID
}
func (a AtomTerm) Name() string { return atom.Default.MustLookup(a.ID) }

// Bool encodes a bool as the atom true/false, per spec.md §3.
func Bool(b bool) AtomTerm {
	if b {
		return AtomTerm{ID: atom.True}
	}
	return AtomTerm{ID: atom.False}
}

// IsBool reports whether a is the atom true or false, and its value.
func (a AtomTerm) IsBool() (v bool, ok bool) {
	switch a.ID {
	case atom.True:
		return true, true
	case atom.False:
		return false, true
	default:
		return false, false
	}
}

// ---- String (ETF tag 107 / list-of-small-ints alt form) -------------

type StringTerm struct{ V []byte }

func Str(s string) StringTerm { return StringTerm{V: []byte(s)} }

func (StringTerm) Kind() Kind { return KindString }
func (s StringTerm) Equal(other Term) bool {
	switch o := other.(type) {
	case StringTerm:
		return string(s.V) == string(o.V)
	case ListTerm:
		// a decoded string and a same-content proper list of small
		// integers are the alternate-encoding normalisation spec.md §4.2
		// describes; equal under the round-trip property in spec.md §8.
		return stringEqualsIntList(s.V, o)
	default:
		return false
	}
}

func stringEqualsIntList(s []byte, l ListTerm) bool {
	if !l.Proper() || len(l.Elements) != len(s) {
		return false
	}
	for i, b := range s {
		iv, ok := l.Elements[i].(Int)
		if !ok || !iv.V.IsInt64() || iv.V.Int64() != int64(b) {
			return false
		}
	}
	return true
}

// ---- Binary ----------------------------------------------------------

type BinaryTerm struct{ V []byte }

func Binary(b []byte) BinaryTerm {
	cp := make([]byte, len(b))
	copy(cp, b)
	return BinaryTerm{V: cp}
}

func (BinaryTerm) Kind() Kind { return KindBinary }
func (b BinaryTerm) Equal(other Term) bool {
	o, ok := other.(BinaryTerm)
	if !ok || len(b.V) != len(o.V) {
		return false
	}
	for i := range b.V {
		if b.V[i] != o.V[i] {
			return false
		}
	}
	return true
}

// ---- Tuple ------------------------------------------------------------

type TupleTerm struct{ Elements []Term }

func Tuple(elems ...Term) TupleTerm { return TupleTerm{Elements: elems} }

func (TupleTerm) Kind() Kind { return KindTuple }
func (t TupleTerm) Equal(other Term) bool {
	o, ok := other.(TupleTerm)
	if !ok || len(t.Elements) != len(o.Elements) {
		return false
	}
	for i := range t.Elements {
		if !t.Elements[i].Equal(o.Elements[i]) {
			return false
		}
	}
	return true
}

// ---- Nil / proper & improper lists -------------------------------------

// NilTerm is the empty list.
type NilTerm struct{}

func Nil() NilTerm { return NilTerm{} }

func (NilTerm) Kind() Kind { return KindNil }
func (NilTerm) Equal(other Term) bool {
	if _, ok := other.(NilTerm); ok {
		return true
	}
	if l, ok := other.(ListTerm); ok {
		return len(l.Elements) == 0 && l.Proper()
	}
	return false
}
func (NilTerm) Format() string { return "[]" }

// ListTerm is an ordered sequence plus a tail; a proper list's Tail is
// NilTerm{}. An improper list (e.g. [H|T] where T is not a list) has a
// non-nil, non-list Tail.
type ListTerm struct {
	Elements []Term
	Tail     Term
}

// List builds a proper list.
func List(elems ...Term) ListTerm {
	return ListTerm{Elements: elems, Tail: NilTerm{}}
}

// ImproperList builds a list whose final cdr is tail rather than nil.
func ImproperList(elems []Term, tail Term) ListTerm {
	return ListTerm{Elements: elems, Tail: tail}
}

func (ListTerm) Kind() Kind { return KindList }

func (l ListTerm) Proper() bool {
	_, ok := l.Tail.(NilTerm)
	return ok
}

func (l ListTerm) Equal(other Term) bool {
	var o ListTerm
	switch ov := other.(type) {
	case ListTerm:
		o = ov
	case NilTerm:
		return len(l.Elements) == 0 && l.Proper()
	case StringTerm:
		return stringEqualsIntList(ov.V, l)
	default:
		return false
	}
	if len(l.Elements) != len(o.Elements) {
		return false
	}
	for i := range l.Elements {
		if !l.Elements[i].Equal(o.Elements[i]) {
			return false
		}
	}
	return l.Tail.Equal(o.Tail)
}

// ---- Map --------------------------------------------------------------

type MapPair struct {
	Key   Term
	Value Term
}

// MapTerm is an unordered term→term mapping; structural key equality,
// not Go map identity, governs lookup (spec.md §3), so it is backed by
// a pair slice rather than a native map.
type MapTerm struct{ Pairs []MapPair }

func Map(pairs ...MapPair) MapTerm { return MapTerm{Pairs: pairs} }

func (MapTerm) Kind() Kind { return KindMap }

func (m MapTerm) Get(key Term) (Term, bool) {
	for _, p := range m.Pairs {
		if p.Key.Equal(key) {
			return p.Value, true
		}
	}
	return nil, false
}

func (m MapTerm) Equal(other Term) bool {
	o, ok := other.(MapTerm)
	if !ok || len(m.Pairs) != len(o.Pairs) {
		return false
	}
	for _, p := range m.Pairs {
		v, found := o.Get(p.Key)
		if !found || !v.Equal(p.Value) {
			return false
		}
	}
	return true
}

// ---- Pid / Port / Ref ---------------------------------------------------

// PidTerm identifies an Erlang process (spec.md §3): node, id, serial
// and creation together form its structural identity.
type PidTerm struct {
	Node     AtomTerm
	ID       uint32
	Serial   uint32
	Creation uint32
}

func Pid(node AtomTerm, id, serial, creation uint32) PidTerm {
	return PidTerm{Node: node, ID: id, Serial: serial, Creation: creation}
}

func (PidTerm) Kind() Kind { return KindPid }
func (p PidTerm) Equal(other Term) bool {
	o, ok := other.(PidTerm)
	return ok && p.Node.Equal(o.Node) && p.ID == o.ID && p.Serial == o.Serial && p.Creation == o.Creation
}

type PortTerm struct {
	Node     AtomTerm
	ID       uint32
	Creation uint32
}

func Port(node AtomTerm, id, creation uint32) PortTerm {
	return PortTerm{Node: node, ID: id, Creation: creation}
}

func (PortTerm) Kind() Kind { return KindPort }
func (p PortTerm) Equal(other Term) bool {
	o, ok := other.(PortTerm)
	return ok && p.Node.Equal(o.Node) && p.ID == o.ID && p.Creation == o.Creation
}

// RefTerm is a unique reference: up to 3 u32 id words plus node and
// creation (spec.md §3). In-memory width is always the full 32 bits
// per word regardless of which legacy/new wire form produced it (see
// SPEC_FULL.md §7).
type RefTerm struct {
	Node     AtomTerm
	Creation uint32
	ID       [3]uint32
	Len      int // 1..3, how many words of ID are significant
}

func Ref(node AtomTerm, creation uint32, id ...uint32) RefTerm {
	var r RefTerm
	r.Node = node
	r.Creation = creation
	r.Len = len(id)
	if r.Len > 3 {
		r.Len = 3
	}
	copy(r.ID[:], id)
	return r
}

func (RefTerm) Kind() Kind { return KindRef }
func (r RefTerm) Equal(other Term) bool {
	o, ok := other.(RefTerm)
	if !ok || !r.Node.Equal(o.Node) || r.Creation != o.Creation || r.Len != o.Len {
		return false
	}
	for i := 0; i < r.Len; i++ {
		if r.ID[i] != o.ID[i] {
			return false
		}
	}
	return true
}

// ---- Var (pattern-only; never transmitted) ----------------------------

// VarTerm is a pattern variable; it must never appear in a ground term
// that is encoded to the wire (spec.md §3).
type VarTerm struct {
	Name string
	// Type, if non-nil, restricts binding to ground terms of that Kind
	// (spec.md §4.3 "var with type tag").
	Type *Kind
}

func Var(name string) VarTerm { return VarTerm{Name: name} }
func TypedVar(name string, k Kind) VarTerm {
	kk := k
	return VarTerm{Name: name, Type: &kk}
}

func (VarTerm) Kind() Kind { return KindVar }
func (v VarTerm) Equal(other Term) bool {
	o, ok := other.(VarTerm)
	return ok && v.Name == o.Name
}
