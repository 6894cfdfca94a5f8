package dist

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/distnode/erl/atom"
	"github.com/distnode/erl/internal/elog"
)

// ErrAuthFailed is spec.md §7's auth_failed: the peer's challenge
// digest did not match what our cookie predicts (spec.md §4.4 step 5,
// §8 property 7).
var ErrAuthFailed = errors.New("dist: auth_failed")

// Handshake message tags. Unlike the post-handshake frame stream
// (frame.go), each handshake message is prefixed by a 2-byte length,
// matching the real protocol's distinct pre- and post-connection
// framing widths.
const (
	tagSendName          = 'n'
	tagStatus            = 's'
	tagChallenge         = 'N'
	tagChallengeReply    = 'r'
	tagChallengeAck      = 'a'
	handshakeHeaderBytes = 2
)

// Status is the peer's reply to our name message (spec.md §4.4 step 2).
type Status string

const (
	StatusOK           Status = "ok"
	StatusOKSimult     Status = "ok_simultaneous"
	StatusNotOK        Status = "nok"
	StatusNotAllowed   Status = "not_allowed"
	StatusAlive        Status = "alive"
	statusAliveTrue    = "true"
	statusAliveFalse   = "false"
	maxHandshakeMsgLen = 65535
)

// NameMessage is spec.md §4.4 step 1's "name" message.
type NameMessage struct {
	Flags Flags
	Node  string
}

// ChallengeMessage carries the peer's 32-bit nonce (spec.md §4.4 step
// 3) alongside the same flags/node fields as NameMessage, mirroring
// how the real protocol overloads its name-message tag to also
// deliver the challenge.
type ChallengeMessage struct {
	Flags     Flags
	Node      string
	Challenge uint32
}

func writeHandshakeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxHandshakeMsgLen {
		return errors.New("dist: handshake message too large")
	}
	var hdr [handshakeHeaderBytes]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readHandshakeFrame(r io.Reader) ([]byte, error) {
	var hdr [handshakeHeaderBytes]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeNameMessage(w io.Writer, m NameMessage) error {
	buf := make([]byte, 1+8+2+len(m.Node))
	buf[0] = tagSendName
	binary.BigEndian.PutUint64(buf[1:9], uint64(m.Flags))
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(m.Node)))
	copy(buf[11:], m.Node)
	return writeHandshakeFrame(w, buf)
}

func readNameMessage(r io.Reader) (NameMessage, error) {
	buf, err := readHandshakeFrame(r)
	if err != nil {
		return NameMessage{}, err
	}
	if len(buf) < 11 || buf[0] != tagSendName {
		return NameMessage{}, errors.New("dist: malformed name message")
	}
	flags := Flags(binary.BigEndian.Uint64(buf[1:9]))
	n := binary.BigEndian.Uint16(buf[9:11])
	if int(n) > len(buf)-11 {
		return NameMessage{}, errors.New("dist: malformed name message length")
	}
	return NameMessage{Flags: flags, Node: string(buf[11 : 11+int(n)])}, nil
}

func writeStatus(w io.Writer, s Status) error {
	buf := append([]byte{tagStatus}, []byte(s)...)
	return writeHandshakeFrame(w, buf)
}

func readStatus(r io.Reader) (Status, error) {
	buf, err := readHandshakeFrame(r)
	if err != nil {
		return "", err
	}
	if len(buf) < 1 || buf[0] != tagStatus {
		return "", errors.New("dist: malformed status message")
	}
	return Status(buf[1:]), nil
}

func writeChallenge(w io.Writer, m ChallengeMessage) error {
	buf := make([]byte, 1+8+4+2+len(m.Node))
	buf[0] = tagChallenge
	binary.BigEndian.PutUint64(buf[1:9], uint64(m.Flags))
	binary.BigEndian.PutUint32(buf[9:13], m.Challenge)
	binary.BigEndian.PutUint16(buf[13:15], uint16(len(m.Node)))
	copy(buf[15:], m.Node)
	return writeHandshakeFrame(w, buf)
}

func readChallenge(r io.Reader) (ChallengeMessage, error) {
	buf, err := readHandshakeFrame(r)
	if err != nil {
		return ChallengeMessage{}, err
	}
	if len(buf) < 15 || buf[0] != tagChallenge {
		return ChallengeMessage{}, errors.New("dist: malformed challenge message")
	}
	flags := Flags(binary.BigEndian.Uint64(buf[1:9]))
	challenge := binary.BigEndian.Uint32(buf[9:13])
	n := binary.BigEndian.Uint16(buf[13:15])
	if int(n) > len(buf)-15 {
		return ChallengeMessage{}, errors.New("dist: malformed challenge message length")
	}
	return ChallengeMessage{Flags: flags, Challenge: challenge, Node: string(buf[15 : 15+int(n)])}, nil
}

func writeChallengeReply(w io.Writer, challenge uint32, digest [16]byte) error {
	buf := make([]byte, 1+4+16)
	buf[0] = tagChallengeReply
	binary.BigEndian.PutUint32(buf[1:5], challenge)
	copy(buf[5:], digest[:])
	return writeHandshakeFrame(w, buf)
}

func readChallengeReply(r io.Reader) (challenge uint32, digest [16]byte, err error) {
	buf, err := readHandshakeFrame(r)
	if err != nil {
		return 0, digest, err
	}
	if len(buf) != 1+4+16 || buf[0] != tagChallengeReply {
		return 0, digest, errors.New("dist: malformed challenge_reply message")
	}
	challenge = binary.BigEndian.Uint32(buf[1:5])
	copy(digest[:], buf[5:])
	return challenge, digest, nil
}

func writeChallengeAck(w io.Writer, digest [16]byte) error {
	buf := make([]byte, 1+16)
	buf[0] = tagChallengeAck
	copy(buf[1:], digest[:])
	return writeHandshakeFrame(w, buf)
}

func readChallengeAck(r io.Reader) (digest [16]byte, err error) {
	buf, err := readHandshakeFrame(r)
	if err != nil {
		return digest, err
	}
	if len(buf) != 1+16 || buf[0] != tagChallengeAck {
		return digest, errors.New("dist: malformed challenge_ack message")
	}
	copy(digest[:], buf[1:])
	return digest, nil
}

// digest computes md5(cookie ++ decimal(nonce)) (spec.md §4.4 steps 4-5).
func digest(cookie string, nonce uint32) [16]byte {
	return md5.Sum([]byte(cookie + strconv.FormatUint(uint64(nonce), 10)))
}

func randomNonce() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// clientHandshake drives the initiating side through spec.md §4.4's
// five steps over rw, returning the peer's node name and flags once
// the last step succeeds.
func clientHandshake(rw io.ReadWriter, localNode, cookie string) (peerNode string, peerFlags Flags, err error) {
	if err := writeNameMessage(rw, NameMessage{Flags: Required, Node: localNode}); err != nil {
		return "", 0, err
	}
	status, err := readStatus(rw)
	if err != nil {
		return "", 0, err
	}
	switch status {
	case StatusOK, StatusOKSimult:
	case StatusAlive:
		// a stale connection from a previous incarnation of this
		// node may still be registered; tell the peer to tear it down
		// and proceed.
		if err := writeStatus(rw, statusAliveTrue); err != nil {
			return "", 0, err
		}
	default:
		return "", 0, errors.Wrapf(ErrAuthFailed, "peer status %q", status)
	}
	chal, err := readChallenge(rw)
	if err != nil {
		return "", 0, err
	}
	if !chal.Flags.SatisfiesRequired() {
		return "", 0, errors.New("dist: peer flags do not satisfy required capability set")
	}
	ourNonce, err := randomNonce()
	if err != nil {
		return "", 0, err
	}
	reply := digest(cookie, chal.Challenge)
	if err := writeChallengeReply(rw, ourNonce, reply); err != nil {
		return "", 0, err
	}
	peerDigest, err := readChallengeAck(rw)
	if err != nil {
		return "", 0, err
	}
	want := digest(cookie, ourNonce)
	if peerDigest != want {
		elog.Log.Warningf("dist: challenge_ack mismatch from %s", chal.Node)
		return "", 0, ErrAuthFailed
	}
	return chal.Node, chal.Flags, nil
}

// serverHandshake drives the accepting side, grounded on the same
// five steps from the peer's perspective.
func serverHandshake(rw io.ReadWriter, localNode, cookie string) (peerNode string, peerFlags Flags, err error) {
	name, err := readNameMessage(rw)
	if err != nil {
		return "", 0, err
	}
	if !name.Flags.SatisfiesRequired() {
		if werr := writeStatus(rw, StatusNotAllowed); werr != nil {
			return "", 0, werr
		}
		return "", 0, errors.New("dist: peer flags do not satisfy required capability set")
	}
	if err := writeStatus(rw, StatusOK); err != nil {
		return "", 0, err
	}
	ourNonce, err := randomNonce()
	if err != nil {
		return "", 0, err
	}
	if err := writeChallenge(rw, ChallengeMessage{Flags: Required, Node: localNode, Challenge: ourNonce}); err != nil {
		return "", 0, err
	}
	peerNonce, peerDigest, err := readChallengeReply(rw)
	if err != nil {
		return "", 0, err
	}
	want := digest(cookie, ourNonce)
	if peerDigest != want {
		elog.Log.Warningf("dist: challenge_reply mismatch from %s", name.Node)
		return "", 0, ErrAuthFailed
	}
	ack := digest(cookie, peerNonce)
	if err := writeChallengeAck(rw, ack); err != nil {
		return "", 0, err
	}
	return name.Node, name.Flags, nil
}

// validateNodeAtom interns node to surface capacity_exceeded early
// rather than deep inside the dispatcher.
func validateNodeAtom(node string) error {
	if node == "" {
		return fmt.Errorf("dist: empty node name")
	}
	_, err := atom.Default.Intern(node)
	return err
}
