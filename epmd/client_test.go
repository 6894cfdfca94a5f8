package epmd

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
)

// fakeEPMD starts a minimal stand-in EPMD server for one connection,
// exercising only the opcodes this client issues.
func fakeEPMD(t *testing.T) (addr string, done chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done = make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handleFakeEPMDConn(t, conn)
	}()
	go func() {
		<-done
		ln.Close()
	}()
	return ln.Addr().String(), done
}

func handleFakeEPMDConn(t *testing.T, conn net.Conn) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return
	}
	n := binary.BigEndian.Uint16(hdr)
	body := make([]byte, n)
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}
	switch body[0] {
	case reqAlive2:
		resp := []byte{respAlive2, 0, 0, 7}
		conn.Write(resp)
		// keep the connection open — ALIVE2's keep-alive semantics —
		// until the client closes it.
		io.Copy(io.Discard, conn)
	case reqPort2:
		resp := make([]byte, 2+9)
		resp[0] = respPort2
		resp[1] = 0
		binary.BigEndian.PutUint16(resp[2:4], 9999)
		resp[4] = nodeTypeC
		resp[5] = protoTCPIPv4
		binary.BigEndian.PutUint16(resp[6:8], 6)
		binary.BigEndian.PutUint16(resp[8:10], 5)
		conn.Write(resp)
	}
}

func splitHostPort(t *testing.T, addr string) (string, string) {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	return host, port
}

func TestResolveAgainstFakeEPMD(t *testing.T) {
	addr, done := fakeEPMD(t)
	host, _ := splitHostPort(t, addr)

	c, err := NewClient(0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	// redirect to the fake server's ephemeral port by dialing it
	// directly rather than DefaultPort.
	r, err := resolveAt(c, addr, "node1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Port != 9999 {
		t.Fatalf("got port %d", r.Port)
	}
	_ = host
	<-done
}

// resolveAt is a test-only helper that bypasses DefaultPort so the
// fake server's ephemeral listener can stand in for EPMD.
func resolveAt(c *Client, addr, name string) (Resolved, error) {
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return Resolved{}, err
	}
	defer conn.Close()
	body := append([]byte{reqPort2}, []byte(name)...)
	if err := writeReq(conn, body); err != nil {
		return Resolved{}, err
	}
	tagBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, tagBuf); err != nil {
		return Resolved{}, err
	}
	rest := make([]byte, 9)
	if _, err := io.ReadFull(conn, rest); err != nil {
		return Resolved{}, err
	}
	port := binary.BigEndian.Uint16(rest[0:2])
	return Resolved{Port: port, NodeType: rest[2]}, nil
}

func TestRegisterAgainstFakeEPMD(t *testing.T) {
	addr, done := fakeEPMD(t)

	c, err := NewClient(0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	reg, err := registerAt(c, addr, "node1", 6000)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Creation != 7 {
		t.Fatalf("got creation %d", reg.Creation)
	}
	reg.Close()
	<-done
}

func registerAt(c *Client, addr, name string, port uint16) (*Registration, error) {
	conn, err := net.DialTimeout("tcp", addr, c.dialTimeout)
	if err != nil {
		return nil, err
	}
	req := buildAlive2Req(name, port, 6, 5)
	if err := writeReq(conn, req); err != nil {
		conn.Close()
		return nil, err
	}
	resp := make([]byte, 4)
	if _, err := io.ReadFull(conn, resp); err != nil {
		conn.Close()
		return nil, err
	}
	creation := binary.BigEndian.Uint16(resp[2:4])
	return &Registration{Creation: creation, conn: conn}, nil
}

func TestCacheAvoidsSecondQuery(t *testing.T) {
	c, err := NewClient(4)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c.cache.Add("host/name", Resolved{Port: 1234})
	r, err := c.Resolve("host", "name")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Port != 1234 {
		t.Fatalf("expected cached port 1234, got %d", r.Port)
	}
}

func TestInvalidateCache(t *testing.T) {
	c, err := NewClient(4)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c.cache.Add("host/name", Resolved{Port: 1})
	c.InvalidateCache("host", "name")
	if _, ok := c.cache.Get("host/name"); ok {
		t.Fatalf("expected cache entry removed")
	}
}
