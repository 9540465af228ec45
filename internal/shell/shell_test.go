package shell

import (
	"context"
	"strings"
	"testing"

	"sphagnumdb/internal/engine"
	"sphagnumdb/internal/node"
	"sphagnumdb/internal/transport"
)

// stubAdapter is a minimal transport.Adapter exercising only what Shell
// needs: PeerID and a recorded SendRequest call.
type stubAdapter struct {
	peerID string
	events chan transport.Event
	sent   []string
}

func newStubAdapter() *stubAdapter {
	return &stubAdapter{peerID: "self", events: make(chan transport.Event, 1)}
}

func (s *stubAdapter) Listen(addr string) error { return nil }
func (s *stubAdapter) Dial(addr string) error   { return nil }
func (s *stubAdapter) PeerID() string           { return s.peerID }
func (s *stubAdapter) Events() <-chan transport.Event { return s.events }
func (s *stubAdapter) Close() error             { return nil }

func (s *stubAdapter) SendRequest(ctx context.Context, peerID string, commandJSON []byte, isReplication bool) (string, error) {
	s.sent = append(s.sent, peerID)
	return "req-1", nil
}

func newTestShell() (*Shell, *node.Node) {
	adapter := newStubAdapter()
	n := node.New(engine.NewStringEngine(), adapter)
	return New(n), n
}

func TestNotConnectedToAnyNode(t *testing.T) {
	sh, _ := newTestShell()

	if out := sh.Execute(context.Background(), "get k"); out != notConnectedMessage {
		t.Errorf("Execute(get) = %q, want %q", out, notConnectedMessage)
	}
}

func TestUsageHintsOnMalformedInput(t *testing.T) {
	sh, _ := newTestShell()

	cases := map[string]string{
		"get":          "usage: get <key>",
		"get a b":      "usage: get <key>",
		"set a":        "usage: set <key> <value>",
		"append a":     "usage: append <key> <value>",
		"exists":       "usage: exists <key> [<key>...]",
		"del":          "usage: del <key> [<key>...]",
		"frobnicate x": "unknown command: frobnicate",
	}
	for input, want := range cases {
		if out := sh.Execute(context.Background(), input); out != want {
			t.Errorf("Execute(%q) = %q, want %q", input, out, want)
		}
	}
}

func TestDispatchPicksFirstConnectedPeerDeterministically(t *testing.T) {
	adapter := newStubAdapter()
	n := node.New(engine.NewStringEngine(), adapter)
	sh := New(n)

	// Simulate connection-established events for three peers; the shell
	// must always pick the lexicographically first one.
	for _, peer := range []string{"peer-c", "peer-a", "peer-b"} {
		adapter.events <- transport.Event{Kind: transport.EventConnectionEstablished, Peer: peer}
		if err := n.HandleEvent(context.Background()); err != nil {
			t.Fatalf("HandleEvent() error = %v", err)
		}
	}

	out := sh.Execute(context.Background(), "set k v")
	if !strings.Contains(out, "sent to peer-a") {
		t.Errorf("Execute(set) = %q, want it to mention peer-a", out)
	}
}

func TestEnableDisablePingVerbose(t *testing.T) {
	sh, _ := newTestShell()

	if out := sh.Execute(context.Background(), "enable_pinging_output"); out != "ping logging enabled" {
		t.Errorf("Execute(enable_pinging_output) = %q", out)
	}
	if out := sh.Execute(context.Background(), "disable_pinging_output"); out != "ping logging disabled" {
		t.Errorf("Execute(disable_pinging_output) = %q", out)
	}
}
