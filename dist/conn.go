package dist

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/satori/go.uuid"

	"github.com/distnode/erl/internal/elog"
)

// State is a connection's position in the lifecycle spec.md §4.4
// names: "Disconnected → Connecting → HandshakeSendName →
// HandshakeRecvStatus → HandshakeRecvChallenge →
// HandshakeSendChallengeReply → HandshakeRecvChallengeAck → Connected
// → (Closing | Failed)". The handshake sub-states are folded into the
// blocking handshake call; callers observe Disconnected, Connecting,
// Connected, Closing, Failed.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultOutboundQueueSize bounds the outbound frame queue before Send
// starts applying backpressure (spec.md §4.4: "outbound queue is
// bounded; when full, send applies backpressure").
const DefaultOutboundQueueSize = 256

// DefaultNetTick is net_tick/4 seconds between tick keepalives
// (spec.md §4.4).
const DefaultNetTick = 15 * time.Second

// ErrWouldBlock is returned by Send's non-blocking form when the
// outbound queue is saturated (spec.md §4.4).
var ErrWouldBlock = errors.New("dist: would_block")

// Conn is one distribution connection to a single remote node
// (spec.md §3 "connection"): socket, handshake result, and a bounded
// outbound frame queue. Conn owns no mailbox/link/monitor state —
// that lives in the node runtime, which drives Conn's Recv/Send and
// reacts to the Frame/error it returns.
type Conn struct {
	id         uuid.UUID
	mu         sync.Mutex
	nc         net.Conn
	state      State
	peerNode   string
	peerFlags  Flags
	outbound   chan Frame
	closedCh   chan struct{}
	closeOnce  sync.Once
	lastTickIn time.Time
}

// Dial opens a TCP connection to addr and performs the client side of
// the handshake (spec.md §4.4 steps 1-5).
func Dial(addr, localNode, cookie string) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newConn(nc, localNode, cookie, clientHandshake)
}

// Accept performs the server side of the handshake over an already
// accepted net.Conn (spec.md §4.5 "acceptor for inbound peers").
func Accept(nc net.Conn, localNode, cookie string) (*Conn, error) {
	return newConn(nc, localNode, cookie, serverHandshake)
}

type handshakeFunc func(rw io.ReadWriter, localNode, cookie string) (string, Flags, error)

func newConn(nc net.Conn, localNode, cookie string, hs handshakeFunc) (c *Conn, err error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "dist: could not generate connection id")
	}
	c = &Conn{
		id:       id,
		nc:       nc,
		state:    Connecting,
		outbound: make(chan Frame, DefaultOutboundQueueSize),
		closedCh: make(chan struct{}),
	}
	peerNode, peerFlags, err := hs(nc, localNode, cookie)
	if err != nil {
		c.fail(err)
		nc.Close()
		return nil, err
	}
	c.mu.Lock()
	c.state = Connected
	c.peerNode = peerNode
	c.peerFlags = peerFlags
	c.lastTickIn = time.Now()
	c.mu.Unlock()
	elog.Log.Infof("dist: connected to %s (conn %s)", peerNode, c.id)
	return c, nil
}

// ID is a diagnostic identifier for this connection, stable for its
// lifetime and unique across a process's connections. It has no
// meaning on the wire; it exists so logs and the admin introspection
// surface can refer to one particular connection unambiguously, the
// way the teacher's pairing secrets are addressed by uuid.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// State reports the connection's current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PeerNode is the remote node atom agreed during the handshake.
func (c *Conn) PeerNode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerNode
}

// PeerFlags is the capability set the peer advertised.
func (c *Conn) PeerFlags() Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerFlags
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	c.state = Failed
	c.mu.Unlock()
	elog.Log.Warningf("dist: connection failed: %v", err)
}

// Send enqueues f for transmission, returning ErrWouldBlock
// immediately if the outbound queue is saturated rather than
// blocking (spec.md §4.4 backpressure, non-blocking form).
func (c *Conn) Send(f Frame) error {
	select {
	case c.outbound <- f:
		return nil
	default:
		return ErrWouldBlock
	}
}

// SendBlocking enqueues f, suspending the caller until space is
// available or the connection closes (spec.md §4.4 backpressure,
// suspending form for synchronous callers).
func (c *Conn) SendBlocking(f Frame) error {
	select {
	case c.outbound <- f:
		return nil
	case <-c.closedCh:
		return errors.New("dist: closed")
	}
}

// RunWriter drains the outbound queue onto the wire until Close is
// called or a write fails; callers run it on a dedicated goroutine —
// the single-threaded-per-node executor model (spec.md §5) serialises
// access to nc from the node side by having exactly one writer.
func (c *Conn) RunWriter() error {
	for {
		select {
		case f := <-c.outbound:
			if err := writeFrame(c.nc, f); err != nil {
				c.fail(err)
				return err
			}
		case <-c.closedCh:
			return nil
		}
	}
}

// RunTicker sends a tick frame every interval until Close is called
// (spec.md §4.4: ticks exchanged every net_tick/4 seconds).
func (c *Conn) RunTicker(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultNetTick
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.Send(Frame{Tick: true}); err != nil {
				elog.Log.Debugf("dist: tick dropped, outbound queue full")
			}
		case <-c.closedCh:
			return
		}
	}
}

// Recv reads the next frame, updating the tick deadline on every frame
// received, keepalive or not. It never returns a Tick frame to callers that want to
// ignore them; use RecvRaw to observe ticks directly.
func (c *Conn) Recv() (Frame, error) {
	for {
		f, err := c.RecvRaw()
		if err != nil {
			return Frame{}, err
		}
		if f.Tick {
			continue
		}
		return f, nil
	}
}

// RecvRaw reads the next frame including ticks.
func (c *Conn) RecvRaw() (Frame, error) {
	f, err := readFrame(c.nc)
	if err != nil {
		c.fail(err)
		return Frame{}, err
	}
	c.mu.Lock()
	c.lastTickIn = time.Now()
	c.mu.Unlock()
	return f, nil
}

// TickTimedOut reports whether more than netTick has elapsed since
// the last tick or data frame was received (spec.md §4.4: "receipt of
// four consecutive missed ticks forces closure" — callers pass
// 4*net_tick/4 == net_tick as the threshold).
func (c *Conn) TickTimedOut(netTick time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastTickIn) > netTick
}

// Close shuts the connection down; safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = Closing
		c.mu.Unlock()
		close(c.closedCh)
		c.nc.Close()
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
	})
	return nil
}
