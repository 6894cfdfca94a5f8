// Package atom implements a process-wide, insert-only atom interner
// (spec.md §4.1). Atoms compare by interned identity: two atoms with
// the same bytes always intern to the same Atom value.
package atom

import (
	"sync"

	"github.com/pkg/errors"
)

// Atom is a small dense index into a Table. Ids are assigned from 0
// upwards in insertion order; use Intern to obtain one.
type Atom uint32

// DefaultCapacity is the table's default capacity limit (spec.md §4.1).
const DefaultCapacity = 1 << 20

// ErrCapacityExceeded is returned by Intern when the table is full.
var ErrCapacityExceeded = errors.New("atom: capacity_exceeded")

// Table is a thread-safe, insert-only string interner. The zero value
// is not usable; construct with NewTable.
type Table struct {
	mu       sync.RWMutex
	byString map[string]Atom
	byID     []string
	capacity int
}

// NewTable constructs an empty table with the given capacity limit. A
// capacity of 0 selects DefaultCapacity.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		byString: make(map[string]Atom, 256),
		byID:     make([]string, 0, 256),
		capacity: capacity,
	}
}

// Intern returns the Atom for s, inserting it if not already present.
// Matching is case-sensitive and byte-exact. O(1) amortised.
func (t *Table) Intern(s string) (Atom, error) {
	t.mu.RLock()
	if id, ok := t.byString[s]; ok {
		t.mu.RUnlock()
		return id, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	// re-check: another writer may have interned s while we waited for
	// the write lock.
	if id, ok := t.byString[s]; ok {
		return id, nil
	}
	if len(t.byID) >= t.capacity {
		return 0, ErrCapacityExceeded
	}
	id := Atom(len(t.byID))
	// copy s so the table does not keep the caller's backing array alive
	// beyond what it needs.
	owned := string([]byte(s))
	t.byID = append(t.byID, owned)
	t.byString[owned] = id
	return id, nil
}

// Lookup returns the string for id. ok is false if id was never
// interned in this table.
func (t *Table) Lookup(id Atom) (s string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.byID) {
		return "", false
	}
	return t.byID[id], true
}

// MustLookup is Lookup but panics on an unknown id; used where the
// caller holds an Atom it is certain came from this table.
func (t *Table) MustLookup(id Atom) string {
	s, ok := t.Lookup(id)
	if !ok {
		panic(errors.Errorf("atom: unknown id %d", id))
	}
	return s
}

// Len returns the number of interned atoms.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// predefined atom names installed at init (spec.md §4.1). Index order
// fixes their ids, matching well-known low ids the way Erlang's own
// atom table reserves ids for frequently used atoms.
var predefined = []string{
	"true", "false", "ok", "error", "undefined", "badrpc",
	"call", "cast", "erlang", "noconnection", "noproc", "normal",
	"$gen_cast", "rex", "rpc", "io_lib", "format", "latin1",
	"request", "unsupported", "user",
}

// Default is the process-wide atom table, pre-populated with the
// predefined atoms before any user call, per spec.md §4.1. Most
// callers use this table; Table is exported separately so tests (and
// embedders running multiple isolated nodes in one process, per
// spec.md §5) can construct their own.
var Default = newDefaultTable()

func newDefaultTable() *Table {
	t := NewTable(DefaultCapacity)
	for _, name := range predefined {
		if _, err := t.Intern(name); err != nil {
			// capacity is 2^20 and we're inserting ~20 atoms: unreachable.
			panic(err)
		}
	}
	return t
}

// well-known ids for the predefined atoms, resolved once against the
// default table so call sites that want e.g. the interned "ok" atom
// don't pay a map lookup.
var (
	True        = mustID("true")
	False       = mustID("false")
	Ok          = mustID("ok")
	ErrorAtom   = mustID("error")
	Undefined   = mustID("undefined")
	Badrpc      = mustID("badrpc")
	Call        = mustID("call")
	Cast        = mustID("cast")
	Erlang      = mustID("erlang")
	Noconnection = mustID("noconnection")
	Noproc      = mustID("noproc")
	Normal      = mustID("normal")
	GenCast     = mustID("$gen_cast")
	Rex         = mustID("rex")
	Rpc         = mustID("rpc")
	IoLib       = mustID("io_lib")
	FormatAtom  = mustID("format")
	Latin1      = mustID("latin1")
	RequestAtom = mustID("request")
	Unsupported = mustID("unsupported")
	User        = mustID("user")
)

func mustID(s string) Atom {
	id, err := Default.Intern(s)
	if err != nil {
		panic(err)
	}
	return id
}
