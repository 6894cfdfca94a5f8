package node

import (
	"fmt"
	"net"

	"github.com/distnode/erl/dist"
	"github.com/distnode/erl/internal/elog"
	"github.com/distnode/erl/term"
)

// getOrConnect returns the existing connection to remoteNode or
// establishes one by resolving its distribution port through EPMD and
// performing the handshake (spec.md §4.5 "establishing it on demand by
// consulting EPMD"). Must run on the executor.
func (n *Node) getOrConnect(remoteNode string) (*dist.Conn, error) {
	if conn, ok := n.conns[remoteNode]; ok {
		return conn, nil
	}
	_, host, err := splitNodeName(remoteNode)
	if err != nil {
		return nil, err
	}
	shortName, _, _ := splitNodeName(remoteNode)
	resolved, err := n.epmdClient.Resolve(host, shortName)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", resolved.Port))
	conn, err := dist.Dial(addr, n.Name, n.cookie)
	if err != nil {
		n.epmdClient.InvalidateCache(host, shortName)
		return nil, err
	}
	n.conns[remoteNode] = conn
	go conn.RunWriter()
	go conn.RunTicker(0)
	go n.readLoop(remoteNode, conn)
	return conn, nil
}

// Accept adopts an already-handshaken inbound connection (spec.md
// §4.5 "acceptor for inbound peers"), registering it under the peer
// node name the handshake negotiated.
func (n *Node) Accept(conn *dist.Conn) error {
	remoteNode := conn.PeerNode()
	return n.do(func() {
		n.conns[remoteNode] = conn
		go conn.RunWriter()
		go conn.RunTicker(0)
		go n.readLoop(remoteNode, conn)
	})
}

func (n *Node) readLoop(remoteNode string, conn *dist.Conn) {
	for {
		f, err := conn.Recv()
		if err != nil {
			n.do(func() { n.onConnLost(remoteNode, conn, err) })
			return
		}
		frame := f
		n.do(func() { n.dispatchIncoming(remoteNode, frame) })
	}
}

func (n *Node) dispatchIncoming(remoteNode string, f dist.Frame) {
	parsed, err := dist.ParseCtrl(f.Control)
	if err != nil {
		elog.Log.Warningf("node: malformed control frame from %s: %v", remoteNode, err)
		if conn, ok := n.conns[remoteNode]; ok {
			n.failConnection(remoteNode, conn, term.Atom("protocol_error"))
		}
		return
	}
	switch parsed.Op {
	case dist.OpSend:
		n.deliverToPid(parsed.To, TransportMsg{Kind: MsgSend, Sender: parsed.From, Payload: f.Payload})
	case dist.OpRegSend:
		if name, ok := parsed.To.(term.AtomTerm); ok {
			if mb, ok := n.names[name.Name()]; ok {
				mb.enqueue(TransportMsg{Kind: MsgRegSend, Sender: parsed.From, Payload: f.Payload})
			}
		}
	case dist.OpLink:
		if to, ok := parsed.To.(term.PidTerm); ok {
			n.addLink(parsed.From, to)
			n.deliverToPid(to, TransportMsg{Kind: MsgLink, Sender: parsed.From})
		}
	case dist.OpUnlink:
		if to, ok := parsed.To.(term.PidTerm); ok {
			n.removeLink(parsed.From, to)
			n.deliverToPid(to, TransportMsg{Kind: MsgUnlink, Sender: parsed.From})
		}
	case dist.OpExit, dist.OpExit2:
		kind := MsgExit
		if parsed.Op == dist.OpExit2 {
			kind = MsgExit2
		}
		n.deliverToPid(parsed.To, TransportMsg{Kind: kind, Sender: parsed.From, Payload: parsed.Reason})
	case dist.OpMonitor:
		if to, ok := parsed.To.(term.PidTerm); ok {
			if mb, ok := n.mailboxes[to.ID]; ok {
				k := keyOfRef(parsed.Ref)
				n.monitors[k] = &monitorEntry{ref: parsed.Ref, watcher: parsed.From, isLocal: false, localTarget: keyOfPid(to), targetNode: parsed.From.Node.Name()}
				mb.enqueue(TransportMsg{Kind: MsgMonitor, Sender: parsed.From})
			}
		}
	case dist.OpDemonitor:
		delete(n.monitors, keyOfRef(parsed.Ref))
	case dist.OpMonitorExit:
		n.deliverToPid(parsed.To, TransportMsg{Kind: MsgMonitorExit, Sender: parsed.From, Payload: parsed.Reason})
	}
}

func (n *Node) deliverToPid(target term.Term, msg TransportMsg) {
	pid, ok := target.(term.PidTerm)
	if !ok {
		return
	}
	if mb, ok := n.mailboxes[pid.ID]; ok {
		mb.enqueue(msg)
	}
}

// onConnLost reacts to a connection's read loop ending, synthesising
// noconnection failures (spec.md §4.5 Failure semantics).
func (n *Node) onConnLost(remoteNode string, conn *dist.Conn, err error) {
	elog.Log.Infof("node: connection to %s lost: %v", remoteNode, err)
	n.failConnection(remoteNode, conn, term.Atom("noconnection"))
}

func (n *Node) failConnection(remoteNode string, conn *dist.Conn, reason term.Term) {
	conn.Close()
	delete(n.conns, remoteNode)

	for localKey, peers := range n.links {
		for peerKey := range peers {
			if peerKey.Node != remoteNode {
				continue
			}
			delete(peers, peerKey)
			if mb, ok := n.mailboxes[localKey.ID]; ok {
				mb.enqueue(TransportMsg{Kind: MsgExit, Sender: remotePidPlaceholder(remoteNode), Payload: reason})
			}
		}
	}

	for k, entry := range n.monitors {
		if entry.targetNode != remoteNode || entry.isLocal {
			continue
		}
		if mb, ok := n.mailboxes[keyOfPid(entry.watcher).ID]; ok {
			mb.enqueue(TransportMsg{Kind: MsgMonitorExit, Sender: remotePidPlaceholder(remoteNode), Payload: reason})
		}
		delete(n.monitors, k)
	}
}

// remotePidPlaceholder stands in for "some process on a now-dead peer"
// when synthesising a failure message whose exact originating pid is
// no longer knowable (spec.md §4.5 Failure semantics).
func remotePidPlaceholder(remoteNode string) term.Term {
	return term.Pid(term.Atom(remoteNode), 0, 0, 0)
}
