package node

import (
	"testing"
	"time"

	"github.com/distnode/erl/term"
)

func newTestMailbox() *Mailbox {
	pid := term.Pid(term.Atom("a@host"), 1, 0, 1)
	return newMailbox(pid, nil)
}

func TestMailboxReceiveInOrder(t *testing.T) {
	mb := newTestMailbox()
	mb.enqueue(TransportMsg{Kind: MsgSend, Payload: term.Int64(1)})
	mb.enqueue(TransportMsg{Kind: MsgSend, Payload: term.Int64(2)})

	m1, err := mb.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive 1: %v", err)
	}
	if !m1.Payload.Equal(term.Int64(1)) {
		t.Fatalf("got %v", m1.Payload)
	}
	m2, err := mb.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive 2: %v", err)
	}
	if !m2.Payload.Equal(term.Int64(2)) {
		t.Fatalf("got %v", m2.Payload)
	}
}

func TestMailboxReceiveBlocksThenWakes(t *testing.T) {
	mb := newTestMailbox()
	go func() {
		time.Sleep(20 * time.Millisecond)
		mb.enqueue(TransportMsg{Kind: MsgSend, Payload: term.Atom("hi")})
	}()
	msg, err := mb.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !msg.Payload.Equal(term.Atom("hi")) {
		t.Fatalf("got %v", msg.Payload)
	}
}

func TestMailboxReceiveTimesOut(t *testing.T) {
	mb := newTestMailbox()
	_, err := mb.Receive(10 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestMailboxReceiveMatchSkipsNonMatching(t *testing.T) {
	mb := newTestMailbox()
	mb.enqueue(TransportMsg{Kind: MsgSend, Payload: term.Tuple(term.Atom("other"), term.Int64(1))})
	mb.enqueue(TransportMsg{Kind: MsgSend, Payload: term.Tuple(term.Atom("ok"), term.Int64(42))})

	pattern := term.Tuple(term.Atom("ok"), term.Var("X"))
	msg, err := mb.ReceiveMatch(pattern, time.Second)
	if err != nil {
		t.Fatalf("receive match: %v", err)
	}
	tup := msg.Payload.(term.TupleTerm)
	if !tup.Elements[1].Equal(term.Int64(42)) {
		t.Fatalf("got %v", msg.Payload)
	}
	if len(mb.queue) != 1 {
		t.Fatalf("expected the non-matching message to remain queued, got %d", len(mb.queue))
	}
}

func TestMailboxCloseWakesWaiters(t *testing.T) {
	mb := newTestMailbox()
	done := make(chan error, 1)
	go func() {
		_, err := mb.Receive(time.Second)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	mb.Close(term.Atom("normal"))
	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("receive did not wake on close")
	}
}
