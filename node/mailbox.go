package node

import (
	"sync"
	"time"

	"github.com/distnode/erl/match"
	"github.com/distnode/erl/term"
)

// MsgKind classifies a delivered TransportMsg (spec.md §4.5: "a
// transport_msg carries (kind, sender, payload_term)").
type MsgKind int

const (
	MsgSend MsgKind = iota
	MsgRegSend
	MsgLink
	MsgUnlink
	MsgExit
	MsgExit2
	MsgMonitor
	MsgDemonitor
	MsgMonitorExit
)

func (k MsgKind) String() string {
	switch k {
	case MsgSend:
		return "send"
	case MsgRegSend:
		return "reg_send"
	case MsgLink:
		return "link"
	case MsgUnlink:
		return "unlink"
	case MsgExit:
		return "exit"
	case MsgExit2:
		return "exit2"
	case MsgMonitor:
		return "monitor"
	case MsgDemonitor:
		return "demonitor"
	case MsgMonitorExit:
		return "monitor_exit"
	default:
		return "unknown"
	}
}

// TransportMsg is one entry in a mailbox's queue.
type TransportMsg struct {
	Kind    MsgKind
	Sender  term.Term
	Payload term.Term
}

// Mailbox is one local process's inbox. All mutation goes through the
// owning Node's executor (spec.md §5); Receive/ReceiveMatch are the
// only methods an arbitrary caller goroutine invokes directly, and
// they suspend on a notify channel rather than touching Node state.
type Mailbox struct {
	pid  term.PidTerm
	node *Node

	mu     sync.Mutex
	queue  []TransportMsg
	notify chan struct{}
	closed bool
	reason term.Term
	closeCh chan struct{}
}

func newMailbox(pid term.PidTerm, n *Node) *Mailbox {
	return &Mailbox{
		pid:     pid,
		node:    n,
		notify:  make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

// Pid is this mailbox's local process identifier.
func (m *Mailbox) Pid() term.PidTerm { return m.pid }

// Node is the owning node runtime.
func (m *Mailbox) Node() *Node { return m.node }

// enqueue appends msg and wakes any waiting receivers; called only
// from the node's executor.
func (m *Mailbox) enqueue(msg TransportMsg) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, msg)
	old := m.notify
	m.notify = make(chan struct{})
	m.mu.Unlock()
	close(old)
}

// Receive returns the next queued message, waiting up to timeout (<=0
// waits indefinitely) for one to arrive (spec.md §4.5).
func (m *Mailbox) Receive(timeout time.Duration) (TransportMsg, error) {
	return m.ReceiveMatch(nil, timeout)
}

// ReceiveMatch scans the queue in arrival order for the first message
// whose payload matches pattern (nil pattern matches anything),
// leaving the rest in place, and blocks up to timeout waiting for a
// qualifying arrival (spec.md §4.5 receive_match).
func (m *Mailbox) ReceiveMatch(pattern term.Term, timeout time.Duration) (TransportMsg, error) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	for {
		m.mu.Lock()
		if msg, idx, ok := m.findMatch(pattern); ok {
			m.queue = append(m.queue[:idx], m.queue[idx+1:]...)
			m.mu.Unlock()
			return msg, nil
		}
		if m.closed {
			m.mu.Unlock()
			return TransportMsg{}, ErrClosed
		}
		wake := m.notify
		m.mu.Unlock()

		select {
		case <-wake:
			continue
		case <-m.closeCh:
			continue
		case <-timeoutCh:
			return TransportMsg{}, ErrTimeout
		}
	}
}

func (m *Mailbox) findMatch(pattern term.Term) (TransportMsg, int, bool) {
	for i, msg := range m.queue {
		if pattern == nil {
			return msg, i, true
		}
		b := match.New()
		if match.Match(pattern, msg.Payload, b) {
			return msg, i, true
		}
	}
	return TransportMsg{}, 0, false
}

// Close marks the mailbox closed, waking every waiter with a "closed"
// failure (spec.md §5 "Explicit close of a mailbox wakes all waiters
// with closed").
func (m *Mailbox) Close(reason term.Term) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.reason = reason
	m.mu.Unlock()
	close(m.closeCh)
}
