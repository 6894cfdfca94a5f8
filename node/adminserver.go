package node

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/distnode/erl/internal/elog"
	"github.com/distnode/erl/internal/version"
)

// AdminServer exposes read-only introspection over the node's state
// (spec.md §5.4 "diagnostic verbosity plumbing is out of scope" — this
// is a debugging window, not wire protocol). Grounded on the teacher's
// daemon/control.ControlServer: one ServeMux, one listener, JSON
// bodies.
type AdminServer struct {
	node *Node
}

// NewAdminServer builds an admin server over node.
func NewAdminServer(n *Node) *AdminServer {
	return &AdminServer{node: n}
}

// Serve blocks handling requests on listener until it's closed. Run it
// over a Unix domain socket (named pipe on Windows, via go-winio) so
// the surface never touches the network.
func (a *AdminServer) Serve(listener net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", a.handleVersion)
	mux.HandleFunc("/mailboxes", a.handleMailboxes)
	mux.HandleFunc("/connections", a.handleConnections)
	mux.HandleFunc("/links", a.handleLinks)
	mux.HandleFunc("/monitors", a.handleMonitors)
	return http.Serve(listener, mux)
}

type versionSummary struct {
	Node    string `json:"node"`
	Version string `json:"version"`
}

func (a *AdminServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, versionSummary{Node: a.node.Name, Version: version.Current.String()})
}

type mailboxSummary struct {
	Pid  string `json:"pid"`
	Name string `json:"name,omitempty"`
}

func (a *AdminServer) handleMailboxes(w http.ResponseWriter, r *http.Request) {
	var out []mailboxSummary
	byID := make(map[uint32]string)
	a.node.do(func() {
		for name, mb := range a.node.names {
			byID[mb.pid.ID] = name
		}
		for id, mb := range a.node.mailboxes {
			out = append(out, mailboxSummary{Pid: mb.pid.Format(), Name: byID[id]})
		}
	})
	a.writeJSON(w, out)
}

type connectionSummary struct {
	Peer string `json:"peer"`
	ID   string `json:"id"`
}

func (a *AdminServer) handleConnections(w http.ResponseWriter, r *http.Request) {
	var out []connectionSummary
	a.node.do(func() {
		for peer, conn := range a.node.conns {
			out = append(out, connectionSummary{Peer: peer, ID: conn.ID().String()})
		}
	})
	a.writeJSON(w, out)
}

type linkSummary struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (a *AdminServer) handleLinks(w http.ResponseWriter, r *http.Request) {
	var out []linkSummary
	a.node.do(func() {
		seen := make(map[[2]pidKey]bool)
		for ak, peers := range a.node.links {
			for bk := range peers {
				pair := [2]pidKey{ak, bk}
				rev := [2]pidKey{bk, ak}
				if seen[pair] || seen[rev] {
					continue
				}
				seen[pair] = true
				out = append(out, linkSummary{A: ak.Node, B: bk.Node})
			}
		}
	})
	a.writeJSON(w, out)
}

type monitorSummary struct {
	Watcher string `json:"watcher"`
	Target  string `json:"target"`
}

func (a *AdminServer) handleMonitors(w http.ResponseWriter, r *http.Request) {
	var out []monitorSummary
	a.node.do(func() {
		for _, entry := range a.node.monitors {
			target := entry.name
			if target == "" {
				target = entry.localTarget.Node
			}
			out = append(out, monitorSummary{Watcher: entry.watcher.Format(), Target: target})
		}
	})
	a.writeJSON(w, out)
}

func (a *AdminServer) writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		elog.Log.Error(err)
	}
}
