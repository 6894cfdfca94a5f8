package dist

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/distnode/erl/term"
)

// passThroughType is the frame type byte that precedes every
// post-handshake control/payload frame (spec.md §4.4: "type byte 112
// (pass-through)").
const passThroughType = 112

const frameHeaderBytes = 4

// etfVersionMagic is the leading byte of every top-level ETF term
// (spec.md §4.2); in a frame, the control tuple and the payload term
// that follows it each carry their own.
const etfVersionMagic = 131

// ErrProtocol is spec.md §7's protocol_error: a post-handshake framing
// violation.
var ErrProtocol = errors.New("dist: protocol_error")

// Frame is one post-handshake unit: a decoded control tuple plus an
// optional payload term (spec.md §4.4). A zero-length frame on the
// wire (no control tuple at all) is a tick keepalive and is reported
// to callers as a Frame with Tick set, Control/Payload left nil.
type Frame struct {
	Control term.Term
	Payload term.Term // nil if the control op carries no payload
	Tick    bool
}

// writeFrame serialises f as length-prefixed wire bytes: u32 length +
// 0x70 + ETF control tuple + optional ETF payload term. Each of the two
// terms carries its own leading 131 magic byte.
func writeFrame(w io.Writer, f Frame) error {
	if f.Tick {
		var hdr [frameHeaderBytes]byte
		_, err := w.Write(hdr[:])
		return err
	}
	ctrlBytes, err := term.Encode(f.Control)
	if err != nil {
		return err
	}
	var payloadBytes []byte
	if f.Payload != nil {
		payloadBytes, err = term.Encode(f.Payload)
		if err != nil {
			return err
		}
	}
	total := 1 + len(ctrlBytes) + len(payloadBytes)
	var hdr [frameHeaderBytes]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(total))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{passThroughType}); err != nil {
		return err
	}
	if _, err := w.Write(ctrlBytes); err != nil {
		return err
	}
	if len(payloadBytes) > 0 {
		if _, err := w.Write(payloadBytes); err != nil {
			return err
		}
	}
	return nil
}

// encodeValueInto writes t's ETF encoding without the leading magic
// byte into dst and returns the number of bytes written. It encodes
// through Encode and drops the first byte, so dst must hold at least
// term.Size(t) bytes.
func encodeValueInto(dst []byte, t term.Term) (int, error) {
	full, err := term.Encode(t)
	if err != nil {
		return 0, err
	}
	n := copy(dst, full[1:])
	return n, nil
}

func readFrame(r io.Reader) (Frame, error) {
	var hdr [frameHeaderBytes]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return Frame{Tick: true}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, err
	}
	if buf[0] != passThroughType {
		return Frame{}, errors.Wrap(ErrProtocol, "unexpected frame type byte")
	}
	ctrlBuf := buf[1:]
	if len(ctrlBuf) < 1 || ctrlBuf[0] != etfVersionMagic {
		return Frame{}, errors.Wrap(ErrProtocol, "control tuple missing version magic byte")
	}
	cursor := 1
	ctrl, err := term.DecodeValue(ctrlBuf, &cursor)
	if err != nil {
		return Frame{}, errors.Wrap(ErrProtocol, err.Error())
	}
	rest := ctrlBuf[cursor:]
	if len(rest) == 0 {
		return Frame{Control: ctrl}, nil
	}
	if rest[0] != etfVersionMagic {
		return Frame{}, errors.Wrap(ErrProtocol, "payload term missing version magic byte")
	}
	payloadCursor := 1
	payload, err := term.DecodeValue(rest, &payloadCursor)
	if err != nil {
		return Frame{}, errors.Wrap(ErrProtocol, err.Error())
	}
	return Frame{Control: ctrl, Payload: payload}, nil
}
