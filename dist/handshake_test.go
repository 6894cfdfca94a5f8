package dist

import (
	"testing"
)

func TestHandshakeSuccess(t *testing.T) {
	client, server, err := DialPair("a@host", "b@host", "secret")
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	defer client.Close()
	defer server.Close()

	if client.State() != Connected || server.State() != Connected {
		t.Fatalf("expected both sides Connected, got %v / %v", client.State(), server.State())
	}
	if client.PeerNode() != "b@host" {
		t.Fatalf("client expected peer b@host, got %s", client.PeerNode())
	}
	if server.PeerNode() != "a@host" {
		t.Fatalf("server expected peer a@host, got %s", server.PeerNode())
	}
	if !client.PeerFlags().SatisfiesRequired() || !server.PeerFlags().SatisfiesRequired() {
		t.Fatalf("expected both sides to observe the required flag set")
	}
}

func TestHandshakeCookieMismatch(t *testing.T) {
	cnc, snc := MockPair()
	type result struct {
		err error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)
	go func() {
		_, _, err := clientHandshake(cnc, "a@host", "right-cookie")
		cnc.Close()
		clientCh <- result{err}
	}()
	go func() {
		_, _, err := serverHandshake(snc, "b@host", "wrong-cookie")
		snc.Close()
		serverCh <- result{err}
	}()
	cr := <-clientCh
	sr := <-serverCh
	if cr.err == nil {
		t.Fatalf("expected client to observe auth_failed on cookie mismatch")
	}
	if sr.err == nil {
		t.Fatalf("expected server to observe auth_failed on cookie mismatch")
	}
}

func TestFlagsSatisfiesRequired(t *testing.T) {
	if Required.SatisfiesRequired() != true {
		t.Fatalf("Required must satisfy itself")
	}
	partial := FlagExtendedReferences | FlagDistMonitor
	if partial.SatisfiesRequired() {
		t.Fatalf("partial flag set must not satisfy Required")
	}
}
