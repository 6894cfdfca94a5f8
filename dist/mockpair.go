package dist

import "net"

// MockPair returns two connected in-memory net.Conn endpoints wired
// together with net.Pipe, for exercising the handshake and frame
// codec without a real TCP socket — the in-memory counterpart to the
// teacher's ImmediatePairTransport/MultiPairTransport test doubles.
func MockPair() (client, server net.Conn) {
	return net.Pipe()
}

// DialPair runs the client and server handshakes concurrently over an
// in-memory MockPair and returns both established Conns, or the first
// error either side produced.
func DialPair(clientNode, serverNode, cookie string) (client, server *Conn, err error) {
	cnc, snc := MockPair()
	type result struct {
		c   *Conn
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)
	go func() {
		c, err := newConn(cnc, clientNode, cookie, clientHandshake)
		clientCh <- result{c, err}
	}()
	go func() {
		c, err := newConn(snc, serverNode, cookie, serverHandshake)
		serverCh <- result{c, err}
	}()
	cr := <-clientCh
	sr := <-serverCh
	if cr.err != nil {
		return nil, nil, cr.err
	}
	if sr.err != nil {
		return nil, nil, sr.err
	}
	return cr.c, sr.c, nil
}
