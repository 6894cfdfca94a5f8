package dist

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/distnode/erl/term"
)

func TestFrameRoundTripControlOnly(t *testing.T) {
	var buf bytes.Buffer
	ctrl := term.Tuple(term.Int64(1), term.Atom("a"))
	if err := writeFrame(&buf, Frame{Control: ctrl}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !f.Control.Equal(ctrl) {
		t.Fatalf("got control %v, want %v", f.Control, ctrl)
	}
	if f.Payload != nil {
		t.Fatalf("expected no payload, got %v", f.Payload)
	}
}

func TestFrameRoundTripControlAndPayload(t *testing.T) {
	var buf bytes.Buffer
	node := term.Atom("a@host")
	from := term.Pid(node, 1, 0, 1)
	to := term.Pid(node, 2, 0, 1)
	ctrl := SendCtrl(from, to)
	payload := term.Tuple(term.Atom("hello"), term.Int64(42))
	if err := writeFrame(&buf, Frame{Control: ctrl, Payload: payload}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !f.Control.Equal(ctrl) {
		t.Fatalf("got control %v, want %v", f.Control, ctrl)
	}
	if f.Payload == nil || !f.Payload.Equal(payload) {
		t.Fatalf("got payload %v, want %v", f.Payload, payload)
	}
}

func TestFrameTick(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, Frame{Tick: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != frameHeaderBytes {
		t.Fatalf("expected a bare 4-byte zero-length tick frame, got %d bytes", buf.Len())
	}
	f, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !f.Tick {
		t.Fatalf("expected tick frame")
	}
}

// TestFrameDecodesNonCanonicalControlEncoding builds a frame by hand
// whose control tuple encodes its integer element with the 4-byte
// INTEGER_EXT tag (98) rather than the 1-byte SMALL_INTEGER_EXT (97)
// this package's own encoder would choose. Locating the control/
// payload boundary by re-encoding the decoded control term and
// measuring its canonical size would place the boundary in the wrong
// spot here, since the canonical re-encoding is shorter than what's
// actually on the wire.
func TestFrameDecodesNonCanonicalControlEncoding(t *testing.T) {
	ctrlBytes := []byte{
		131,      // version magic
		104, 2,   // SMALL_TUPLE_EXT, arity 2
		119, 2, 'o', 'k', // SMALL_ATOM_UTF8_EXT "ok"
		98, 0, 0, 0, 5, // INTEGER_EXT, value 5 (non-canonical for a small value)
	}
	payloadBytes := []byte{
		131,    // version magic
		97, 7, // SMALL_INTEGER_EXT, value 7
	}

	body := append([]byte{passThroughType}, ctrlBytes...)
	body = append(body, payloadBytes...)
	var buf bytes.Buffer
	var hdr [frameHeaderBytes]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	buf.Write(hdr[:])
	buf.Write(body)

	f, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wantCtrl := term.Tuple(term.Atom("ok"), term.Int64(5))
	if !f.Control.Equal(wantCtrl) {
		t.Fatalf("got control %v, want %v", f.Control, wantCtrl)
	}
	wantPayload := term.Int64(7)
	if f.Payload == nil || !f.Payload.Equal(wantPayload) {
		t.Fatalf("got payload %v, want %v", f.Payload, wantPayload)
	}
}

func TestFrameRejectsBadTypeByte(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 1, 99})
	if _, err := readFrame(&buf); err == nil {
		t.Fatalf("expected protocol_error for bad frame type byte")
	}
}
