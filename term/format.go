package term

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// displayCreation is spec.md §4.2's global "display creation" flag:
// when set, PidTerm.Format appends the pid's creation number. Off by
// default, matching Erlang's default printed pid form.
var displayCreation atomic.Bool

// SetDisplayCreation toggles the global display-creation flag.
func SetDisplayCreation(on bool) { displayCreation.Store(on) }

// Format renders t in Erlang's printable surface syntax (spec.md §4.2),
// grounded on the eixx source's visit_to_string visitor: one small
// function per variant rather than a single branching formatter.

func (i Int) Format() string { return i.V.String() }

func (f Float) Format() string {
	s := strconv.FormatFloat(f.V, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func (a AtomTerm) Format() string {
	return formatAtomName(a.Name())
}

func formatAtomName(name string) string {
	if name == "" {
		return "''"
	}
	if isUnquotedAtom(name) {
		return name
	}
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range name {
		switch r {
		case '\'', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func isUnquotedAtom(name string) bool {
	r := rune(name[0])
	if r < 'a' || r > 'z' {
		return false
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '@') {
			return false
		}
	}
	return true
}

func (s StringTerm) Format() string {
	for _, c := range s.V {
		if c < 0x20 || c > 0x7e {
			parts := make([]string, len(s.V))
			for i, c := range s.V {
				parts[i] = strconv.Itoa(int(c))
			}
			return "[" + strings.Join(parts, ",") + "]"
		}
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range s.V {
		switch c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func (b BinaryTerm) Format() string {
	parts := make([]string, len(b.V))
	for i, c := range b.V {
		parts[i] = strconv.Itoa(int(c))
	}
	return "<<" + strings.Join(parts, ",") + ">>"
}

func (t TupleTerm) Format() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.Format()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (l ListTerm) Format() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.Format()
	}
	if l.Proper() {
		return "[" + strings.Join(parts, ",") + "]"
	}
	return "[" + strings.Join(parts, ",") + "|" + l.Tail.Format() + "]"
}

func (m MapTerm) Format() string {
	parts := make([]string, len(m.Pairs))
	for i, p := range m.Pairs {
		parts[i] = p.Key.Format() + "=>" + p.Value.Format()
	}
	return "#{" + strings.Join(parts, ",") + "}"
}

func (p PidTerm) Format() string {
	if displayCreation.Load() {
		return fmt.Sprintf("<%s.%d.%d:%d>", p.Node.Name(), p.ID, p.Serial, p.Creation)
	}
	return fmt.Sprintf("<%s.%d.%d>", p.Node.Name(), p.ID, p.Serial)
}

func (p PortTerm) Format() string {
	return fmt.Sprintf("#Port<%s.%d>", p.Node.Name(), p.ID)
}

func (r RefTerm) Format() string {
	parts := make([]string, r.Len)
	for i := 0; i < r.Len; i++ {
		parts[i] = strconv.FormatUint(uint64(r.ID[i]), 10)
	}
	return fmt.Sprintf("#Ref<%s.%s>", r.Node.Name(), strings.Join(parts, "."))
}

func (v VarTerm) Format() string {
	if v.Type != nil {
		return v.Name + "::" + v.Type.String()
	}
	return v.Name
}

// ---- legacy float text field (ETF tag 99) ------------------------------

// parseLegacyFloatASCII parses the "%.20e"-ish fixed-width ASCII field
// used by the pre-R9 float encoding (spec.md §4.2 FLOAT_EXT). Go's
// strconv handles any valid float literal produced by that format.
func parseLegacyFloatASCII(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// formatLegacyFloatASCII renders v into the 31-byte NUL-padded field
// FLOAT_EXT expects, using the same "%.20e" style as the original
// encoder so the text round-trips through parseLegacyFloatASCII.
func formatLegacyFloatASCII(v float64) [31]byte {
	var out [31]byte
	s := strconv.FormatFloat(v, 'e', 20, 64)
	copy(out[:], s)
	return out
}
