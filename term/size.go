package term

import (
	"math"
	"math/big"
)

// Size returns exactly the number of bytes Encode will write for t,
// not including the leading magic byte (spec.md §4.2 size-computation
// operation, tested by spec.md §8 property 2).
func Size(t Term) (int, error) {
	switch v := t.(type) {
	case Int:
		return sizeInt(v), nil
	case Float:
		return 9, nil // tag + 8 bytes
	case AtomTerm:
		return sizeAtom(v)
	case StringTerm:
		return sizeString(v)
	case BinaryTerm:
		return 5 + len(v.V), nil
	case TupleTerm:
		return sizeTuple(v)
	case ListTerm:
		return sizeList(v)
	case NilTerm:
		return 1, nil
	case MapTerm:
		return sizeMap(v)
	case PidTerm:
		n, err := sizeAtom(v.Node)
		if err != nil {
			return 0, err
		}
		return 1 + n + 4 + 4 + 4, nil // new-form pid: tag + node + id + serial + creation(4)
	case PortTerm:
		n, err := sizeAtom(v.Node)
		if err != nil {
			return 0, err
		}
		return 1 + n + 4 + 4, nil // new-form port: tag + node + id + creation(4)
	case RefTerm:
		n, err := sizeAtom(v.Node)
		if err != nil {
			return 0, err
		}
		return 1 + 2 + n + 4 + 4*v.Len, nil // newer ref: tag + len16 + node + creation(4) + N*id
	case VarTerm:
		return 0, newEncodeError("var terms cannot be encoded to the wire")
	default:
		return 0, newEncodeError("unknown term kind")
	}
}

// EncodeSize is Size plus the leading magic byte, i.e. exactly the
// length of the buffer Encode returns.
func EncodeSize(t Term) (int, error) {
	n, err := Size(t)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

func sizeInt(v Int) int {
	if v.V.IsInt64() {
		n := v.V.Int64()
		if n >= 0 && n <= 255 {
			return 2 // tag + 1 byte
		}
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return 5 // tag + 4 bytes
		}
	}
	mag := magnitudeBytes(v.V)
	if len(mag) <= 255 {
		return 1 + 1 + 1 + len(mag) // tag + len(1) + sign + magnitude
	}
	return 1 + 4 + 1 + len(mag) // tag + len(4) + sign + magnitude
}

func magnitudeBytes(v *big.Int) []byte {
	abs := new(big.Int).Abs(v)
	return abs.Bytes() // big-endian magnitude, no leading zero byte for zero-length case handled by caller
}

func sizeAtom(a AtomTerm) (int, error) {
	name := a.Name()
	n := len(name)
	if n > 65535 {
		return 0, newEncodeError("atom exceeds 65535 bytes")
	}
	if n <= 255 {
		return 1 + 1 + n, nil // tag119 + 1-byte len + bytes
	}
	return 1 + 2 + n, nil // tag118 + 2-byte len + bytes
}

func sizeString(s StringTerm) (int, error) {
	if len(s.V) <= 65535 {
		return 1 + 2 + len(s.V), nil
	}
	// falls back to a proper list of small integers (spec.md §4.2)
	if len(s.V) == 0 {
		return 1, nil
	}
	total := 1 + 4 // list tag + length
	for range s.V {
		total += 2 // each byte becomes a small-int (tag97 + 1 byte)
	}
	total += 1 // nil tail
	return total, nil
}

func sizeTuple(t TupleTerm) (int, error) {
	total := 1
	if len(t.Elements) <= 255 {
		total += 1
	} else {
		total += 4
	}
	for _, e := range t.Elements {
		n, err := Size(e)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func sizeList(l ListTerm) (int, error) {
	if len(l.Elements) == 0 && l.Proper() {
		return 1, nil
	}
	total := 1 + 4 // tag + 4-byte length
	for _, e := range l.Elements {
		n, err := Size(e)
		if err != nil {
			return 0, err
		}
		total += n
	}
	tailN, err := Size(l.Tail)
	if err != nil {
		return 0, err
	}
	return total + tailN, nil
}

func sizeMap(m MapTerm) (int, error) {
	total := 1 + 4
	for _, p := range m.Pairs {
		kn, err := Size(p.Key)
		if err != nil {
			return 0, err
		}
		vn, err := Size(p.Value)
		if err != nil {
			return 0, err
		}
		total += kn + vn
	}
	return total, nil
}
