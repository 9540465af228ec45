package node

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sphagnumdb/internal/command"
	"sphagnumdb/internal/engine"
	"sphagnumdb/internal/logging"
	"sphagnumdb/internal/transport"
)

func TestHandleCommandLocal(t *testing.T) {
	n := New(engine.NewStringEngine(), newFakeAdapter("self"))

	result := n.HandleCommand(command.NewSet("k", "v"))
	if result.Kind != command.ResultStr || result.Str != "OK" {
		t.Fatalf("HandleCommand(Set) = %+v, want Str(OK)", result)
	}

	result = n.HandleCommand(command.NewGet("k"))
	if result.Str != "v" {
		t.Fatalf("HandleCommand(Get) = %+v, want Str(v)", result)
	}
}

func TestConnectionEventsTrackPeers(t *testing.T) {
	adapter := newFakeAdapter("self")
	n := New(engine.NewStringEngine(), adapter)

	adapter.push(transport.Event{Kind: transport.EventConnectionEstablished, Peer: "peer-1"})
	if err := n.HandleEvent(context.Background()); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if peers := n.ConnectedPeers(); len(peers) != 1 || peers[0] != "peer-1" {
		t.Fatalf("ConnectedPeers() = %v, want [peer-1]", peers)
	}

	adapter.push(transport.Event{Kind: transport.EventConnectionClosed, Peer: "peer-1"})
	if err := n.HandleEvent(context.Background()); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if peers := n.ConnectedPeers(); len(peers) != 0 {
		t.Fatalf("ConnectedPeers() = %v, want []", peers)
	}
}

func TestHandleEventReturnsErrOnClosedTransport(t *testing.T) {
	adapter := newFakeAdapter("self")
	n := New(engine.NewStringEngine(), adapter)
	adapter.Close()

	if err := n.HandleEvent(context.Background()); err != ErrTransportClosed {
		t.Errorf("HandleEvent() error = %v, want ErrTransportClosed", err)
	}
}

func inboundRequestEvent(t *testing.T, cmd command.Command, isReplication bool, fromPeer string) transport.Event {
	t.Helper()
	payload, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	return transport.Event{
		Kind:      transport.EventInboundRequest,
		RequestID: "req-1",
		Request: transport.RequestEnvelope{
			CommandJSON:   payload,
			IsReplication: isReplication,
			FromPeer:      fromPeer,
		},
	}
}

func TestInboundMutatingClientCommandFansOutToReplicaSet(t *testing.T) {
	adapter := newFakeAdapter("self")
	n := New(engine.NewStringEngine(), adapter)
	n.AddToReplicaSet("peer-1")
	n.AddToReplicaSet("peer-2")

	adapter.push(transport.Event{Kind: transport.EventConnectionEstablished, Peer: "peer-1"})
	n.HandleEvent(context.Background())

	var replied transport.Response
	ev := inboundRequestEvent(t, command.NewSet("k", "v"), false, "client")
	ev.Reply = func(r transport.Response) error { replied = r; return nil }
	adapter.push(ev)
	if err := n.HandleEvent(context.Background()); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	if replied.Payload != "OK" {
		t.Errorf("reply payload = %q, want OK", replied.Payload)
	}

	sent := adapter.sentRequests()
	if len(sent) != 1 {
		t.Fatalf("fan-out sent %d requests, want 1 (peer-2 not connected, excluded)", len(sent))
	}
	if sent[0].peerID != "peer-1" || !sent[0].isReplication {
		t.Errorf("fan-out request = %+v, want peer-1 with is_replication=true", sent[0])
	}
}

func TestInboundReplicatedCommandDoesNotFanOutAgain(t *testing.T) {
	adapter := newFakeAdapter("self")
	n := New(engine.NewStringEngine(), adapter)
	n.AddToReplicaSet("peer-1")
	adapter.push(transport.Event{Kind: transport.EventConnectionEstablished, Peer: "peer-1"})
	n.HandleEvent(context.Background())

	ev := inboundRequestEvent(t, command.NewSet("k", "v"), true, "peer-0")
	ev.Reply = func(transport.Response) error { return nil }
	adapter.push(ev)
	if err := n.HandleEvent(context.Background()); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	if sent := adapter.sentRequests(); len(sent) != 0 {
		t.Fatalf("replicated command triggered fan-out: %v, want none", sent)
	}
}

func TestInboundReadCommandDoesNotFanOut(t *testing.T) {
	adapter := newFakeAdapter("self")
	n := New(engine.NewStringEngine(), adapter)
	n.AddToReplicaSet("peer-1")
	adapter.push(transport.Event{Kind: transport.EventConnectionEstablished, Peer: "peer-1"})
	n.HandleEvent(context.Background())

	ev := inboundRequestEvent(t, command.NewGet("k"), false, "client")
	ev.Reply = func(transport.Response) error { return nil }
	adapter.push(ev)
	if err := n.HandleEvent(context.Background()); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	if sent := adapter.sentRequests(); len(sent) != 0 {
		t.Fatalf("read-only command triggered fan-out: %v, want none", sent)
	}
}

func TestPingEventOnlyLoggedWhenVerbose(t *testing.T) {
	adapter := newFakeAdapter("self")
	n := New(engine.NewStringEngine(), adapter)

	// Capture log output through the global logger; Close flushes the
	// logger's buffered entries before buf is read.
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: logging.DEBUG, BufferSize: 16})
	logger.AddWriter(&buf)
	logging.SetGlobalLogger(logger)
	defer logging.SetGlobalLogger(nil)

	// ping_verbose is disabled by default: this ping must not be logged.
	adapter.push(transport.Event{Kind: transport.EventPing, Peer: "peer-1", RTT: time.Millisecond})
	if err := n.HandleEvent(context.Background()); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	n.EnablePingVerbose()
	adapter.push(transport.Event{Kind: transport.EventPing, Peer: "peer-2", RTT: time.Millisecond})
	if err := n.HandleEvent(context.Background()); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	n.DisablePingVerbose()
	logger.Close()

	out := buf.String()
	if strings.Contains(out, `"peer":"peer-1"`) {
		t.Errorf("ping logged while ping_verbose was disabled: %s", out)
	}
	if !strings.Contains(out, `"peer":"peer-2"`) {
		t.Errorf("ping not logged while ping_verbose was enabled: %s", out)
	}
}
