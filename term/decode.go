package term

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/distnode/erl/atom"
)

// decodeAtom interns s without the panic Atom() uses for hand-written
// literals: peer-supplied atom data can legitimately exhaust the table
// (spec.md §4.1 capacity_exceeded), and that must surface to the
// caller as an ordinary *DecodeError, not a crash.
func decodeAtom(off int, s []byte) (AtomTerm, error) {
	id, err := atom.Default.Intern(string(s))
	if err != nil {
		return AtomTerm{}, newDecodeError(off, err.Error())
	}
	return AtomTerm{ID: id}, nil
}

// Decode parses a complete ETF version-131 encoded term (spec.md
// §4.2): buf must begin with the magic byte. Use DecodeValue to parse
// a term that starts at a cursor position with no magic byte of its
// own, such as a term that follows a magic byte already consumed.
func Decode(buf []byte) (Term, error) {
	if len(buf) < 1 {
		return nil, newDecodeError(0, "empty buffer")
	}
	if buf[0] != tagVersion {
		return nil, newDecodeError(0, "missing version magic byte")
	}
	cursor := 1
	t, err := DecodeValue(buf, &cursor)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DecodeValue decodes one tagged term from buf starting at *cursor,
// advancing it past the term. Unknown tags, truncated input, length
// overflow, or a cursor that would run past len(buf) are reported as
// *DecodeError (spec.md §4.2 decoder contract).
func DecodeValue(buf []byte, cursor *int) (Term, error) {
	off := *cursor
	tag, err := readByte(buf, off)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagSmallInt:
		b, err := readByte(buf, off+1)
		if err != nil {
			return nil, err
		}
		*cursor = off + 2
		return Int64(int64(b)), nil
	case tagInt:
		v, err := readUint32(buf, off+1)
		if err != nil {
			return nil, err
		}
		*cursor = off + 5
		return Int64(int64(int32(v))), nil
	case tagSmallBig, tagLargeBig:
		return decodeBig(buf, cursor, tag)
	case tagFloat:
		v, err := readUint64(buf, off+1)
		if err != nil {
			return nil, err
		}
		*cursor = off + 9
		return NewFloat(math.Float64frombits(v)), nil
	case tagFloatLegacy:
		return decodeLegacyFloat(buf, cursor)
	case tagAtomLatin1Ext, tagAtomUTF8:
		n, err := readUint16(buf, off+1)
		if err != nil {
			return nil, err
		}
		start := off + 3
		s, err := readBytes(buf, start, int(n))
		if err != nil {
			return nil, err
		}
		*cursor = start + int(n)
		return decodeAtom(off, s)
	case tagSmallAtomUTF8:
		n, err := readByte(buf, off+1)
		if err != nil {
			return nil, err
		}
		start := off + 2
		s, err := readBytes(buf, start, int(n))
		if err != nil {
			return nil, err
		}
		*cursor = start + int(n)
		return decodeAtom(off, s)
	case tagNil:
		*cursor = off + 1
		return NilTerm{}, nil
	case tagString:
		n, err := readUint16(buf, off+1)
		if err != nil {
			return nil, err
		}
		start := off + 3
		s, err := readBytes(buf, start, int(n))
		if err != nil {
			return nil, err
		}
		*cursor = start + int(n)
		return StringTerm{V: append([]byte(nil), s...)}, nil
	case tagBinary:
		n, err := readUint32(buf, off+1)
		if err != nil {
			return nil, err
		}
		start := off + 5
		s, err := readBytes(buf, start, int(n))
		if err != nil {
			return nil, err
		}
		*cursor = start + int(n)
		return BinaryTerm{V: append([]byte(nil), s...)}, nil
	case tagSmallTuple, tagLargeTuple:
		return decodeTuple(buf, cursor, tag)
	case tagList:
		return decodeList(buf, cursor)
	case tagMap:
		return decodeMap(buf, cursor)
	case tagNewPid, tagPidLegacy:
		return decodePid(buf, cursor, tag)
	case tagNewPort, tagPortLegacy:
		return decodePort(buf, cursor, tag)
	case tagNewRef, tagNewerRef, tagRefLegacy:
		return decodeRef(buf, cursor, tag)
	default:
		return nil, newDecodeError(off, "unknown tag byte")
	}
}

// ---- bounds-checked primitive readers ---------------------------------

func readByte(buf []byte, off int) (byte, error) {
	if off < 0 || off >= len(buf) {
		return 0, newDecodeError(off, "truncated input")
	}
	return buf[off], nil
}

func readBytes(buf []byte, off, n int) ([]byte, error) {
	if n < 0 || off < 0 || off+n > len(buf) {
		return nil, newDecodeError(off, "truncated input")
	}
	return buf[off : off+n], nil
}

func readUint16(buf []byte, off int) (uint16, error) {
	b, err := readBytes(buf, off, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func readUint32(buf []byte, off int) (uint32, error) {
	b, err := readBytes(buf, off, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func readUint64(buf []byte, off int) (uint64, error) {
	b, err := readBytes(buf, off, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ---- composite decoders -------------------------------------------------

func decodeBig(buf []byte, cursor *int, tag byte) (Term, error) {
	off := *cursor
	var n int
	var start int
	if tag == tagSmallBig {
		b, err := readByte(buf, off+1)
		if err != nil {
			return nil, err
		}
		n = int(b)
		start = off + 2
	} else {
		u, err := readUint32(buf, off+1)
		if err != nil {
			return nil, err
		}
		n = int(u)
		start = off + 5
	}
	sign, err := readByte(buf, start)
	if err != nil {
		return nil, err
	}
	mag, err := readBytes(buf, start+1, n)
	if err != nil {
		return nil, err
	}
	be := make([]byte, n)
	for i, b := range mag {
		be[n-1-i] = b
	}
	v := new(big.Int).SetBytes(be)
	if sign != 0 {
		v.Neg(v)
	}
	*cursor = start + 1 + n
	return BigInt(v), nil
}

func decodeLegacyFloat(buf []byte, cursor *int) (Term, error) {
	off := *cursor
	s, err := readBytes(buf, off+1, 31)
	if err != nil {
		return nil, err
	}
	// 31-byte fixed ASCII field, NUL-padded.
	end := 0
	for end < len(s) && s[end] != 0 {
		end++
	}
	f, parseErr := parseLegacyFloatASCII(string(s[:end]))
	if parseErr != nil {
		return nil, newDecodeError(off, "invalid legacy float text")
	}
	*cursor = off + 32
	return NewFloat(f), nil
}

func decodeTuple(buf []byte, cursor *int, tag byte) (Term, error) {
	off := *cursor
	var arity int
	var start int
	if tag == tagSmallTuple {
		b, err := readByte(buf, off+1)
		if err != nil {
			return nil, err
		}
		arity = int(b)
		start = off + 2
	} else {
		u, err := readUint32(buf, off+1)
		if err != nil {
			return nil, err
		}
		arity = int(u)
		start = off + 5
	}
	elems := make([]Term, arity)
	cur := start
	for i := 0; i < arity; i++ {
		e, err := DecodeValue(buf, &cur)
		if err != nil {
			return nil, err
		}
		elems[i] = e
	}
	*cursor = cur
	return TupleTerm{Elements: elems}, nil
}

func decodeList(buf []byte, cursor *int) (Term, error) {
	off := *cursor
	n, err := readUint32(buf, off+1)
	if err != nil {
		return nil, err
	}
	cur := off + 5
	elems := make([]Term, n)
	for i := 0; i < int(n); i++ {
		e, derr := DecodeValue(buf, &cur)
		if derr != nil {
			return nil, derr
		}
		elems[i] = e
	}
	tail, err := DecodeValue(buf, &cur)
	if err != nil {
		return nil, err
	}
	*cursor = cur
	return ListTerm{Elements: elems, Tail: tail}, nil
}

func decodeMap(buf []byte, cursor *int) (Term, error) {
	off := *cursor
	n, err := readUint32(buf, off+1)
	if err != nil {
		return nil, err
	}
	cur := off + 5
	pairs := make([]MapPair, n)
	for i := 0; i < int(n); i++ {
		k, err := DecodeValue(buf, &cur)
		if err != nil {
			return nil, err
		}
		v, err := DecodeValue(buf, &cur)
		if err != nil {
			return nil, err
		}
		pairs[i] = MapPair{Key: k, Value: v}
	}
	*cursor = cur
	return MapTerm{Pairs: pairs}, nil
}

func decodeAtomAt(buf []byte, cursor *int) (AtomTerm, error) {
	t, err := DecodeValue(buf, cursor)
	if err != nil {
		return AtomTerm{}, err
	}
	a, ok := t.(AtomTerm)
	if !ok {
		return AtomTerm{}, newDecodeError(*cursor, "expected atom")
	}
	return a, nil
}

func decodePid(buf []byte, cursor *int, tag byte) (Term, error) {
	off := *cursor
	cur := off + 1
	node, err := decodeAtomAt(buf, &cur)
	if err != nil {
		return nil, err
	}
	id, err := readUint32(buf, cur)
	if err != nil {
		return nil, err
	}
	serial, err := readUint32(buf, cur+4)
	if err != nil {
		return nil, err
	}
	cur += 8
	var creation uint32
	if tag == tagNewPid {
		creation, err = readUint32(buf, cur)
		if err != nil {
			return nil, err
		}
		cur += 4
	} else {
		b, err := readByte(buf, cur)
		if err != nil {
			return nil, err
		}
		creation = uint32(b)
		cur += 1
	}
	*cursor = cur
	return PidTerm{Node: node, ID: id, Serial: serial, Creation: creation}, nil
}

func decodePort(buf []byte, cursor *int, tag byte) (Term, error) {
	off := *cursor
	cur := off + 1
	node, err := decodeAtomAt(buf, &cur)
	if err != nil {
		return nil, err
	}
	id, err := readUint32(buf, cur)
	if err != nil {
		return nil, err
	}
	cur += 4
	var creation uint32
	if tag == tagNewPort {
		creation, err = readUint32(buf, cur)
		if err != nil {
			return nil, err
		}
		cur += 4
	} else {
		b, err := readByte(buf, cur)
		if err != nil {
			return nil, err
		}
		creation = uint32(b)
		cur += 1
	}
	*cursor = cur
	return PortTerm{Node: node, ID: id, Creation: creation}, nil
}

func decodeRef(buf []byte, cursor *int, tag byte) (Term, error) {
	off := *cursor
	cur := off + 1
	var words int
	if tag == tagRefLegacy {
		words = 1
	} else {
		n, err := readUint16(buf, cur)
		if err != nil {
			return nil, err
		}
		words = int(n)
		cur += 2
	}
	node, err := decodeAtomAt(buf, &cur)
	if err != nil {
		return nil, err
	}
	if words > 3 {
		return nil, newDecodeError(off, "reference carries more than 3 id words")
	}

	var creation uint32
	var ids [3]uint32

	if tag == tagRefLegacy {
		// REFERENCE_EXT lays its single id word before the 1-byte
		// creation, unlike the newer reference tags.
		v, err := readUint32(buf, cur)
		if err != nil {
			return nil, err
		}
		ids[0] = v
		cur += 4
		b, err := readByte(buf, cur)
		if err != nil {
			return nil, err
		}
		creation = uint32(b)
		cur += 1
	} else {
		if tag == tagNewerRef {
			creation, err = readUint32(buf, cur)
			if err != nil {
				return nil, err
			}
			cur += 4
		} else {
			b, err := readByte(buf, cur)
			if err != nil {
				return nil, err
			}
			creation = uint32(b)
			cur += 1
		}
		for i := 0; i < words; i++ {
			v, err := readUint32(buf, cur)
			if err != nil {
				return nil, err
			}
			ids[i] = v
			cur += 4
		}
	}

	*cursor = cur
	return RefTerm{Node: node, Creation: creation, ID: ids, Len: words}, nil
}
