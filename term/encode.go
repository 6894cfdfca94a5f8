package term

import (
	"encoding/binary"
	"math"
)

// Encode serialises t to ETF version 131 (spec.md §4.2): the leading
// magic byte followed by the tagged encoding of t. The returned slice
// is exactly EncodeSize(t) bytes (spec.md §8 property 2).
func Encode(t Term) ([]byte, error) {
	n, err := EncodeSize(t)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	buf[0] = tagVersion
	end, err := encodeInto(buf, 1, t)
	if err != nil {
		return nil, err
	}
	return buf[:end], nil
}

// encodeInto writes t's tagged encoding into buf starting at off and
// returns the offset just past it. buf must be large enough (callers
// size it via Size/EncodeSize first, so this never grows the slice).
func encodeInto(buf []byte, off int, t Term) (int, error) {
	switch v := t.(type) {
	case Int:
		return encodeInt(buf, off, v)
	case Float:
		return encodeFloat(buf, off, v)
	case AtomTerm:
		return encodeAtom(buf, off, v)
	case StringTerm:
		return encodeString(buf, off, v)
	case BinaryTerm:
		return encodeBinary(buf, off, v)
	case TupleTerm:
		return encodeTuple(buf, off, v)
	case ListTerm:
		return encodeList(buf, off, v)
	case NilTerm:
		buf[off] = tagNil
		return off + 1, nil
	case MapTerm:
		return encodeMap(buf, off, v)
	case PidTerm:
		return encodePid(buf, off, v)
	case PortTerm:
		return encodePort(buf, off, v)
	case RefTerm:
		return encodeRef(buf, off, v)
	case VarTerm:
		return off, newEncodeError("var terms cannot be encoded to the wire")
	default:
		return off, newEncodeError("unknown term kind")
	}
}

func encodeInt(buf []byte, off int, v Int) (int, error) {
	if v.V.IsInt64() {
		n := v.V.Int64()
		if n >= 0 && n <= 255 {
			buf[off] = tagSmallInt
			buf[off+1] = byte(n)
			return off + 2, nil
		}
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			buf[off] = tagInt
			binary.BigEndian.PutUint32(buf[off+1:], uint32(int32(n)))
			return off + 5, nil
		}
	}
	mag := magnitudeBytes(v.V)
	sign := byte(0)
	if v.V.Sign() < 0 {
		sign = 1
	}
	reversed := make([]byte, len(mag))
	for i, b := range mag {
		reversed[len(mag)-1-i] = b
	}
	if len(mag) <= 255 {
		buf[off] = tagSmallBig
		buf[off+1] = byte(len(mag))
		buf[off+2] = sign
		copy(buf[off+3:], reversed)
		return off + 3 + len(mag), nil
	}
	buf[off] = tagLargeBig
	binary.BigEndian.PutUint32(buf[off+1:], uint32(len(mag)))
	buf[off+5] = sign
	copy(buf[off+6:], reversed)
	return off + 6 + len(mag), nil
}

func encodeFloat(buf []byte, off int, v Float) (int, error) {
	buf[off] = tagFloat
	binary.BigEndian.PutUint64(buf[off+1:], math.Float64bits(v.V))
	return off + 9, nil
}

func encodeAtom(buf []byte, off int, a AtomTerm) (int, error) {
	name := a.Name()
	n := len(name)
	if n > 65535 {
		return off, newEncodeError("atom exceeds 65535 bytes")
	}
	if n <= 255 {
		buf[off] = tagSmallAtomUTF8
		buf[off+1] = byte(n)
		copy(buf[off+2:], name)
		return off + 2 + n, nil
	}
	buf[off] = tagAtomUTF8
	binary.BigEndian.PutUint16(buf[off+1:], uint16(n))
	copy(buf[off+3:], name)
	return off + 3 + n, nil
}

func encodeString(buf []byte, off int, s StringTerm) (int, error) {
	if len(s.V) <= 65535 {
		buf[off] = tagString
		binary.BigEndian.PutUint16(buf[off+1:], uint16(len(s.V)))
		copy(buf[off+3:], s.V)
		return off + 3 + len(s.V), nil
	}
	if len(s.V) == 0 {
		buf[off] = tagNil
		return off + 1, nil
	}
	buf[off] = tagList
	binary.BigEndian.PutUint32(buf[off+1:], uint32(len(s.V)))
	cur := off + 5
	for _, b := range s.V {
		buf[cur] = tagSmallInt
		buf[cur+1] = b
		cur += 2
	}
	buf[cur] = tagNil
	return cur + 1, nil
}

func encodeBinary(buf []byte, off int, b BinaryTerm) (int, error) {
	if len(b.V) > math.MaxUint32 {
		return off, newEncodeError("binary exceeds 2^32-1 bytes")
	}
	buf[off] = tagBinary
	binary.BigEndian.PutUint32(buf[off+1:], uint32(len(b.V)))
	copy(buf[off+5:], b.V)
	return off + 5 + len(b.V), nil
}

func encodeTuple(buf []byte, off int, t TupleTerm) (int, error) {
	cur := off
	if len(t.Elements) <= 255 {
		buf[cur] = tagSmallTuple
		buf[cur+1] = byte(len(t.Elements))
		cur += 2
	} else {
		if len(t.Elements) > math.MaxUint32 {
			return off, newEncodeError("tuple arity exceeds 2^32-1")
		}
		buf[cur] = tagLargeTuple
		binary.BigEndian.PutUint32(buf[cur+1:], uint32(len(t.Elements)))
		cur += 5
	}
	for _, e := range t.Elements {
		var err error
		cur, err = encodeInto(buf, cur, e)
		if err != nil {
			return off, err
		}
	}
	return cur, nil
}

func encodeList(buf []byte, off int, l ListTerm) (int, error) {
	if len(l.Elements) == 0 && l.Proper() {
		buf[off] = tagNil
		return off + 1, nil
	}
	buf[off] = tagList
	binary.BigEndian.PutUint32(buf[off+1:], uint32(len(l.Elements)))
	cur := off + 5
	for _, e := range l.Elements {
		var err error
		cur, err = encodeInto(buf, cur, e)
		if err != nil {
			return off, err
		}
	}
	return encodeInto(buf, cur, l.Tail)
}

func encodeMap(buf []byte, off int, m MapTerm) (int, error) {
	buf[off] = tagMap
	binary.BigEndian.PutUint32(buf[off+1:], uint32(len(m.Pairs)))
	cur := off + 5
	for _, p := range m.Pairs {
		var err error
		cur, err = encodeInto(buf, cur, p.Key)
		if err != nil {
			return off, err
		}
		cur, err = encodeInto(buf, cur, p.Value)
		if err != nil {
			return off, err
		}
	}
	return cur, nil
}

func encodePid(buf []byte, off int, p PidTerm) (int, error) {
	buf[off] = tagNewPid
	cur, err := encodeAtom(buf, off+1, p.Node)
	if err != nil {
		return off, err
	}
	binary.BigEndian.PutUint32(buf[cur:], p.ID)
	binary.BigEndian.PutUint32(buf[cur+4:], p.Serial)
	binary.BigEndian.PutUint32(buf[cur+8:], p.Creation)
	return cur + 12, nil
}

func encodePort(buf []byte, off int, p PortTerm) (int, error) {
	buf[off] = tagNewPort
	cur, err := encodeAtom(buf, off+1, p.Node)
	if err != nil {
		return off, err
	}
	binary.BigEndian.PutUint32(buf[cur:], p.ID)
	binary.BigEndian.PutUint32(buf[cur+4:], p.Creation)
	return cur + 8, nil
}

func encodeRef(buf []byte, off int, r RefTerm) (int, error) {
	buf[off] = tagNewerRef
	binary.BigEndian.PutUint16(buf[off+1:], uint16(r.Len))
	cur, err := encodeAtom(buf, off+3, r.Node)
	if err != nil {
		return off, err
	}
	binary.BigEndian.PutUint32(buf[cur:], r.Creation)
	cur += 4
	for i := 0; i < r.Len; i++ {
		binary.BigEndian.PutUint32(buf[cur:], r.ID[i])
		cur += 4
	}
	return cur, nil
}
