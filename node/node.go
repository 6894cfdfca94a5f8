// Package node implements the node runtime from spec.md §4.5: the
// mailbox registry, link/monitor tables, and the set of distribution
// connections keyed by remote node name, all confined to a single
// cooperative executor goroutine per node (spec.md §5).
package node

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/distnode/erl/dist"
	"github.com/distnode/erl/epmd"
	"github.com/distnode/erl/term"
)

// pidKey is a comparable identity for a pid, local or remote, used as
// a map key in the link and monitor tables.
type pidKey struct {
	Node             string
	ID, Serial, Crea uint32
}

func keyOfPid(p term.PidTerm) pidKey {
	return pidKey{Node: p.Node.Name(), ID: p.ID, Serial: p.Serial, Crea: p.Creation}
}

type refKey struct {
	Node string
	Crea uint32
	ID   [3]uint32
	Len  int
}

func keyOfRef(r term.RefTerm) refKey {
	return refKey{Node: r.Node.Name(), Crea: r.Creation, ID: r.ID, Len: r.Len}
}

type monitorEntry struct {
	ref     term.RefTerm
	watcher term.PidTerm
	// target is either a local pid key (localTarget set) or a
	// registered name on some node (name/targetNode set).
	localTarget pidKey
	isLocal     bool
	name        string
	targetNode  string
}

// Options configures a new Node.
type Options struct {
	// Name is "shortname@host"; Host defaults to the part after '@'.
	Name   string
	Cookie string
	// StateDir, if non-empty, is where the creation counter persists
	// across restarts (spec.md §5.4). Empty means "start at creation 1
	// every time", suitable for tests and offline use.
	StateDir string
	// Offline skips EPMD registration entirely (spec.md §6 "may be
	// started without announcing to EPMD").
	Offline bool
	// DistPort is the distribution port advertised to EPMD on
	// registration (unused when Offline). The node does not listen on
	// it; the caller runs the acceptor and hands connections to Accept.
	DistPort uint16
}

// Node owns mailbox, registry, link, monitor and connection state, all
// mutated only from its executor goroutine (spec.md §5).
type Node struct {
	Name   string
	Host   string
	cookie string

	creation uint32
	nextID   uint32
	nextRef  uint64

	mailboxes map[uint32]*Mailbox
	names     map[string]*Mailbox
	links     map[pidKey]map[pidKey]bool
	monitors  map[refKey]*monitorEntry
	conns     map[string]*dist.Conn

	epmdClient *epmd.Client
	reg        *epmd.Registration

	tasks     chan func()
	closeOnce sync.Once
	closed    chan struct{}
}

// New constructs a node runtime and, unless opts.Offline, registers it
// with the EPMD on the node name's host (spec.md §4.5, §6).
func New(opts Options) (*Node, error) {
	shortName, host, err := splitNodeName(opts.Name)
	if err != nil {
		return nil, err
	}
	fullName := shortName + "@" + host

	var creation uint32 = 1
	if opts.StateDir != "" {
		store, err := NewCreationStore(opts.StateDir)
		if err != nil {
			return nil, err
		}
		creation, err = store.Next()
		if err != nil {
			return nil, err
		}
	}

	epmdClient, err := epmd.NewClient(0)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Name:       fullName,
		Host:       host,
		cookie:     opts.Cookie,
		creation:   creation,
		nextID:     1,
		mailboxes:  make(map[uint32]*Mailbox),
		names:      make(map[string]*Mailbox),
		links:      make(map[pidKey]map[pidKey]bool),
		monitors:   make(map[refKey]*monitorEntry),
		conns:      make(map[string]*dist.Conn),
		epmdClient: epmdClient,
		tasks:      make(chan func()),
		closed:     make(chan struct{}),
	}

	if !opts.Offline {
		reg, err := epmdClient.Register(host, shortName, opts.DistPort, 5, 5)
		if err != nil {
			return nil, errors.Wrap(err, "node: epmd_error")
		}
		n.reg = reg
	}

	go n.run()
	return n, nil
}

func (n *Node) run() {
	for {
		select {
		case t := <-n.tasks:
			t()
		case <-n.closed:
			return
		}
	}
}

// do runs f on the node's executor and waits for it to finish,
// observing total ordering with respect to network traffic on this
// node (spec.md §5).
func (n *Node) do(f func()) error {
	done := make(chan struct{})
	select {
	case n.tasks <- func() { f(); close(done) }:
	case <-n.closed:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-n.closed:
		return nil
	}
}

func (n *Node) selfAtom() term.AtomTerm { return term.Atom(n.Name) }

// CreateMailbox allocates the next local pid and, if name is
// non-empty, registers it under that name in the same step (spec.md
// §4.5 create_mailbox).
func (n *Node) CreateMailbox(name string) (*Mailbox, error) {
	var mb *Mailbox
	var regErr error
	err := n.do(func() {
		if name != "" {
			if _, taken := n.names[name]; taken {
				regErr = errors.Wrapf(ErrBadArgument, "name %q already registered", name)
				return
			}
		}
		id := n.nextID
		n.nextID++
		serial := uint32(0)
		pid := term.Pid(n.selfAtom(), id, serial, n.creation)
		mb = newMailbox(pid, n)
		n.mailboxes[id] = mb
		if name != "" {
			n.names[name] = mb
		}
	})
	if err != nil {
		return nil, err
	}
	if regErr != nil {
		return nil, regErr
	}
	return mb, nil
}

// Register binds name to pid's mailbox in the local name table; a
// name already in use fails with bad_argument (spec.md §4.5).
func (n *Node) Register(name string, pid term.PidTerm) error {
	var failure error
	err := n.do(func() {
		mb, ok := n.mailboxes[pid.ID]
		if !ok {
			failure = ErrNoProc
			return
		}
		if _, taken := n.names[name]; taken {
			failure = errors.Wrapf(ErrBadArgument, "name %q already registered", name)
			return
		}
		n.names[name] = mb
	})
	if err != nil {
		return err
	}
	return failure
}

// Unregister removes name from the local name table; unregistering an
// unknown name is a no-op (spec.md §4.5).
func (n *Node) Unregister(name string) error {
	return n.do(func() {
		delete(n.names, name)
	})
}

// Whereis resolves a registered local name to its mailbox.
func (n *Node) Whereis(name string) (*Mailbox, error) {
	var mb *Mailbox
	err := n.do(func() {
		mb = n.names[name]
	})
	if err != nil {
		return nil, err
	}
	if mb == nil {
		return nil, ErrNoProc
	}
	return mb, nil
}

// Link establishes a bidirectional link between a and b; a duplicate
// link is a no-op (spec.md §4.5). Either end may be remote, in which
// case a LINK control message is sent over that peer's connection.
func (n *Node) Link(a, b term.PidTerm) error {
	return n.do(func() {
		n.addLink(a, b)
		if b.Node.Name() != n.Name {
			n.sendCtrlTo(b.Node.Name(), dist.LinkCtrl(a, b), nil)
		}
	})
}

// Unlink removes the link between a and b; unlinking a non-existent
// link is a no-op (spec.md §4.5).
func (n *Node) Unlink(a, b term.PidTerm) error {
	return n.do(func() {
		n.removeLink(a, b)
		if b.Node.Name() != n.Name {
			n.sendCtrlTo(b.Node.Name(), dist.UnlinkCtrl(a, b), nil)
		}
	})
}

func (n *Node) addLink(a, b term.PidTerm) {
	ka, kb := keyOfPid(a), keyOfPid(b)
	if n.links[ka] == nil {
		n.links[ka] = make(map[pidKey]bool)
	}
	if n.links[kb] == nil {
		n.links[kb] = make(map[pidKey]bool)
	}
	n.links[ka][kb] = true
	n.links[kb][ka] = true
}

func (n *Node) removeLink(a, b term.PidTerm) {
	ka, kb := keyOfPid(a), keyOfPid(b)
	if peers, ok := n.links[ka]; ok {
		delete(peers, kb)
	}
	if peers, ok := n.links[kb]; ok {
		delete(peers, ka)
	}
}

// Monitor starts a unidirectional monitor of target (a pid, or the
// tuple {name, node}) by watcher, returning a globally unique ref
// embedded in the eventual MONITOR_EXIT (spec.md §4.5).
func (n *Node) Monitor(watcher term.PidTerm, target term.Term) (term.RefTerm, error) {
	var ref term.RefTerm
	err := n.do(func() {
		n.nextRef++
		ref = term.Ref(n.selfAtom(), n.creation, uint32(n.nextRef), uint32(n.nextRef>>32))
		entry := &monitorEntry{ref: ref, watcher: watcher}
		switch t := target.(type) {
		case term.PidTerm:
			entry.isLocal = t.Node.Name() == n.Name
			entry.localTarget = keyOfPid(t)
			entry.targetNode = t.Node.Name()
			if !entry.isLocal {
				n.sendCtrlTo(t.Node.Name(), dist.MonitorCtrl(watcher, t, ref), nil)
			}
		case term.AtomTerm:
			entry.isLocal = true
			entry.name = t.Name()
			entry.targetNode = n.Name
		case term.TupleTerm:
			if len(t.Elements) == 2 {
				nameAtom, _ := t.Elements[0].(term.AtomTerm)
				nodeAtom, _ := t.Elements[1].(term.AtomTerm)
				entry.name = nameAtom.Name()
				entry.targetNode = nodeAtom.Name()
				entry.isLocal = entry.targetNode == n.Name
				if !entry.isLocal {
					n.sendCtrlTo(entry.targetNode, dist.MonitorCtrl(watcher, nameAtom, ref), nil)
				}
			}
		}
		n.monitors[keyOfRef(ref)] = entry
	})
	return ref, err
}

// Demonitor cancels a monitor previously returned by Monitor; an
// unknown ref is a no-op (spec.md §4.5).
func (n *Node) Demonitor(ref term.RefTerm) error {
	return n.do(func() {
		k := keyOfRef(ref)
		entry, ok := n.monitors[k]
		if !ok {
			return
		}
		delete(n.monitors, k)
		if !entry.isLocal {
			n.sendCtrlTo(entry.targetNode, dist.DemonitorCtrl(entry.watcher, term.Atom(entry.name), ref), nil)
		}
	})
}

// Send delivers msg to target, which is a pid or a {name, node} tuple
// (spec.md §4.5). Local delivery enqueues directly; remote delivery
// serialises over the appropriate connection, dialing it on demand.
func (n *Node) Send(from term.PidTerm, target term.Term, msg term.Term) error {
	var failure error
	err := n.do(func() {
		switch t := target.(type) {
		case term.PidTerm:
			if t.Node.Name() == n.Name {
				mb, ok := n.mailboxes[t.ID]
				if !ok {
					failure = ErrNoProc
					return
				}
				mb.enqueue(TransportMsg{Kind: MsgSend, Sender: from, Payload: msg})
				return
			}
			failure = n.sendCtrlTo(t.Node.Name(), dist.SendCtrl(from, t), msg)
		case term.TupleTerm:
			if len(t.Elements) != 2 {
				failure = ErrBadArgument
				return
			}
			nameAtom, ok1 := t.Elements[0].(term.AtomTerm)
			nodeAtom, ok2 := t.Elements[1].(term.AtomTerm)
			if !ok1 || !ok2 {
				failure = ErrBadArgument
				return
			}
			if nodeAtom.Name() == n.Name {
				mb, ok := n.names[nameAtom.Name()]
				if !ok {
					failure = ErrNoProc
					return
				}
				mb.enqueue(TransportMsg{Kind: MsgRegSend, Sender: from, Payload: msg})
				return
			}
			failure = n.sendCtrlTo(nodeAtom.Name(), dist.RegSendCtrl(from, nameAtom), msg)
		default:
			failure = ErrBadArgument
		}
	})
	if err != nil {
		return err
	}
	return failure
}

func (n *Node) sendCtrlTo(remoteNode string, ctrl term.Term, payload term.Term) error {
	conn, err := n.getOrConnect(remoteNode)
	if err != nil {
		return err
	}
	return conn.Send(dist.Frame{Control: ctrl, Payload: payload})
}

// Close shuts the node runtime down. Every connection is dropped, and
// each local mailbox linked to, or monitoring, a process on that peer
// is sent an exit or monitor_exit carrying reason (normal when nil).
// Every mailbox is then closed: receives return what is still queued,
// then ErrClosed. Links and monitors between local processes do not
// fire, and no noconnection message is delivered.
func (n *Node) Close(reason term.Term) error {
	if reason == nil {
		reason = term.Atom("normal")
	}
	n.closeOnce.Do(func() {
		n.do(func() {
			for node, conn := range n.conns {
				n.failConnection(node, conn, reason)
			}
			for _, mb := range n.mailboxes {
				mb.Close(reason)
			}
			if n.reg != nil {
				n.reg.Close()
			}
		})
		close(n.closed)
	})
	return nil
}
