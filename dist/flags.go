package dist

// Flags is the distribution capability bitfield exchanged in the
// name/status handshake messages (spec.md §4.4). Values follow the
// Erlang distribution protocol's DFLAG_* bit assignments.
type Flags uint64

const (
	FlagPublished          Flags = 0x1
	FlagAtomCache          Flags = 0x2
	FlagExtendedReferences Flags = 0x4
	FlagDistMonitor        Flags = 0x8
	FlagFunTags            Flags = 0x10
	FlagNewFunTags         Flags = 0x80
	FlagExtendedPidsPorts  Flags = 0x100
	FlagExportPtrTag       Flags = 0x200
	FlagBitBinaries        Flags = 0x400
	FlagNewFloats          Flags = 0x800
	FlagUnicodeIO          Flags = 0x1000
	FlagDistHdrAtomCache   Flags = 0x2000
	FlagSmallAtomTags      Flags = 0x4000
	FlagUTF8Atoms          Flags = 0x10000
	FlagMapTag             Flags = 0x20000
	FlagBigCreation        Flags = 0x40000
	FlagHandshake23        Flags = 0x1000000
)

// Required is the flag set this library always advertises and demands
// of peers (spec.md §4.4 step 1): EXTENDED_REFERENCES,
// EXTENDED_PIDS_PORTS, NEW_FLOATS, DIST_MONITOR, BIT_BINARIES,
// UTF8_ATOMS, MAP_TAG, BIG_CREATION, HANDSHAKE_23.
const Required = FlagExtendedReferences | FlagExtendedPidsPorts | FlagNewFloats |
	FlagDistMonitor | FlagBitBinaries | FlagUTF8Atoms | FlagMapTag |
	FlagBigCreation | FlagHandshake23

// Has reports whether f carries every bit set in want.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// SatisfiesRequired reports whether f carries the Required set, the
// condition spec.md §8 property 7 calls "cookie and flags satisfy
// §4.4".
func (f Flags) SatisfiesRequired() bool {
	return f.Has(Required)
}
