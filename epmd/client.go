// Package epmd implements a client for the Erlang Port Mapper Daemon
// (spec.md §4.5, §6): register a local node with ALIVE2_REQ and
// resolve a remote node's distribution port with PORT_PLEASE2_REQ.
// This package never implements the daemon itself (spec.md §1
// Non-goals).
package epmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/distnode/erl/internal/elog"
)

// DefaultPort is EPMD's well-known TCP port (spec.md §6).
const DefaultPort = 4369

const (
	reqAlive2    = 120
	respAlive2   = 121
	reqPort2     = 122
	respPort2    = 119
	nodeTypeC    = 72  // C-node / hidden node type
	protoTCPIPv4 = 0
)

// ErrUnreachable is spec.md §7's epmd_error for a refused or
// unreachable EPMD.
var ErrUnreachable = errors.New("epmd: epmd_error")

// Registration is the handle ALIVE2_REQ returns: the creation number
// EPMD assigned this node for its current lifetime (spec.md §3 "a
// creation counter that changes across node restarts").
type Registration struct {
	Creation uint16
	conn     net.Conn
}

// Close drops the keep-alive connection EPMD uses to detect node
// death; once closed, EPMD will stop advertising this node.
func (r *Registration) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Client is an EPMD client with an LRU cache of resolved ports, so
// repeated sends to the same peer node don't re-query EPMD for every
// message (spec.md §4.5 "establishing it on demand by consulting
// EPMD").
type Client struct {
	dialTimeout time.Duration
	cache       *lru.Cache
}

// NewClient builds a Client whose resolution cache holds up to
// cacheSize entries (0 selects a reasonable default).
func NewClient(cacheSize int) (*Client, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{dialTimeout: 5 * time.Second, cache: cache}, nil
}

// Register publishes shortName on host's EPMD via ALIVE2_REQ (spec.md
// §6 opcode 120) and returns the assigned creation along with the
// connection that must stay open for the registration to remain
// valid.
func (c *Client) Register(host, shortName string, distPort uint16, highVsn, lowVsn uint16) (*Registration, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", DefaultPort))
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return nil, errors.Wrap(ErrUnreachable, err.Error())
	}
	req := buildAlive2Req(shortName, distPort, highVsn, lowVsn)
	if err := writeReq(conn, req); err != nil {
		conn.Close()
		return nil, errors.Wrap(ErrUnreachable, err.Error())
	}
	resp := make([]byte, 4)
	if _, err := io.ReadFull(conn, resp); err != nil {
		conn.Close()
		return nil, errors.Wrap(ErrUnreachable, err.Error())
	}
	if resp[0] != respAlive2 {
		conn.Close()
		return nil, errors.Wrap(ErrUnreachable, "unexpected ALIVE2 response tag")
	}
	if resp[1] != 0 {
		conn.Close()
		return nil, errors.Wrapf(ErrUnreachable, "registration refused, result %d", resp[1])
	}
	creation := binary.BigEndian.Uint16(resp[2:4])
	elog.Log.Infof("epmd: registered %s with creation %d", shortName, creation)
	return &Registration{Creation: creation, conn: conn}, nil
}

func buildAlive2Req(name string, port, highVsn, lowVsn uint16) []byte {
	nameBytes := []byte(name)
	// body: tag, port(2), nodetype, proto, highvsn(2), lowvsn(2), nlen(2), name, extralen(2)
	body := make([]byte, 1+2+1+1+2+2+2+len(nameBytes)+2)
	i := 0
	body[i] = reqAlive2
	i++
	binary.BigEndian.PutUint16(body[i:], port)
	i += 2
	body[i] = nodeTypeC
	i++
	body[i] = protoTCPIPv4
	i++
	binary.BigEndian.PutUint16(body[i:], highVsn)
	i += 2
	binary.BigEndian.PutUint16(body[i:], lowVsn)
	i += 2
	binary.BigEndian.PutUint16(body[i:], uint16(len(nameBytes)))
	i += 2
	copy(body[i:], nameBytes)
	i += len(nameBytes)
	binary.BigEndian.PutUint16(body[i:], 0) // no extra data
	return body
}

func writeReq(w io.Writer, body []byte) error {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// Resolved is what PORT_PLEASE2_REQ reports about a remote node.
type Resolved struct {
	Port     uint16
	HighVsn  uint16
	LowVsn   uint16
	NodeType byte
}

// Resolve queries host's EPMD for shortName's distribution port via
// PORT_PLEASE2_REQ (spec.md §6 opcode 122), consulting and then
// populating the resolution cache.
func (c *Client) Resolve(host, shortName string) (Resolved, error) {
	key := host + "/" + shortName
	if v, ok := c.cache.Get(key); ok {
		return v.(Resolved), nil
	}
	r, err := c.resolveUncached(host, shortName)
	if err != nil {
		return Resolved{}, err
	}
	c.cache.Add(key, r)
	return r, nil
}

// InvalidateCache drops any cached resolution for shortName@host,
// forcing the next Resolve to re-query EPMD — used after a connection
// to that peer fails, since a stale port is as good as no port.
func (c *Client) InvalidateCache(host, shortName string) {
	c.cache.Remove(host + "/" + shortName)
}

func (c *Client) resolveUncached(host, shortName string) (Resolved, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", DefaultPort))
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return Resolved{}, errors.Wrap(ErrUnreachable, err.Error())
	}
	defer conn.Close()
	body := append([]byte{reqPort2}, []byte(shortName)...)
	if err := writeReq(conn, body); err != nil {
		return Resolved{}, errors.Wrap(ErrUnreachable, err.Error())
	}
	tagBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, tagBuf); err != nil {
		return Resolved{}, errors.Wrap(ErrUnreachable, err.Error())
	}
	if tagBuf[0] != respPort2 {
		return Resolved{}, errors.Wrap(ErrUnreachable, "unexpected PORT2 response tag")
	}
	if tagBuf[1] != 0 {
		return Resolved{}, errors.Wrapf(ErrUnreachable, "node %q not registered, result %d", shortName, tagBuf[1])
	}
	rest := make([]byte, 9)
	if _, err := io.ReadFull(conn, rest); err != nil {
		return Resolved{}, errors.Wrap(ErrUnreachable, err.Error())
	}
	port := binary.BigEndian.Uint16(rest[0:2])
	nodeType := rest[2]
	high := binary.BigEndian.Uint16(rest[4:6])
	low := binary.BigEndian.Uint16(rest[6:8])
	return Resolved{Port: port, HighVsn: high, LowVsn: low, NodeType: nodeType}, nil
}
