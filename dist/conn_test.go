package dist

import (
	"testing"
	"time"

	"github.com/distnode/erl/term"
)

func TestConnSendRecv(t *testing.T) {
	client, server, err := DialPair("a@host", "b@host", "secret")
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	defer client.Close()
	defer server.Close()

	go client.RunWriter()

	node := term.Atom("a@host")
	from := term.Pid(node, 1, 0, 1)
	to := term.Pid(node, 2, 0, 1)
	ctrl := SendCtrl(from, to)
	payload := term.Tuple(term.Atom("hi"))

	if err := client.Send(Frame{Control: ctrl, Payload: payload}); err != nil {
		t.Fatalf("send: %v", err)
	}

	f, err := server.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !f.Control.Equal(ctrl) || !f.Payload.Equal(payload) {
		t.Fatalf("got %+v", f)
	}
}

func TestConnSendWouldBlockWhenQueueFull(t *testing.T) {
	client, server, err := DialPair("a@host", "b@host", "secret")
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	defer client.Close()
	defer server.Close()

	tick := Frame{Tick: true}
	for i := 0; i < DefaultOutboundQueueSize; i++ {
		if err := client.Send(tick); err != nil {
			t.Fatalf("send %d: unexpected error %v", i, err)
		}
	}
	if err := client.Send(tick); err != ErrWouldBlock {
		t.Fatalf("expected ErrWouldBlock once the outbound queue is saturated, got %v", err)
	}
}

func TestConnTickTimeout(t *testing.T) {
	client, server, err := DialPair("a@host", "b@host", "secret")
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	defer client.Close()
	defer server.Close()

	if client.TickTimedOut(0) == false {
		t.Fatalf("expected immediate timeout with a zero threshold")
	}
	if client.TickTimedOut(time.Hour) {
		t.Fatalf("expected no timeout with a generous threshold right after connecting")
	}
}

func TestConnStateStrings(t *testing.T) {
	cases := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		Closing:      "closing",
		Failed:       "failed",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Fatalf("state %d: got %q want %q", s, s.String(), want)
		}
	}
}
