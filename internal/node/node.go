// Package node implements the clustered runtime that owns a keyspace
// engine, a passport, a peer transport adapter, and the replica set a
// node forwards its client-originated mutations to. It drives the
// event loop that turns transport events into engine calls and
// replication fan-out.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"sphagnumdb/internal/command"
	"sphagnumdb/internal/engine"
	"sphagnumdb/internal/logging"
	"sphagnumdb/internal/passport"
	"sphagnumdb/internal/transport"
)

// ErrTransportClosed is returned by HandleEvent once the adapter's event
// channel has been closed.
var ErrTransportClosed = errors.New("node: transport closed")

// Node is a single cluster member: one keyspace, one passport, one
// transport adapter, one replica set. All mutable state is guarded by
// mu, held only for the duration of one event or one call — per
// spec.md §5, Node locks are never nested.
type Node struct {
	mu sync.Mutex

	engine    engine.Engine
	passport  *passport.Passport
	transport transport.Adapter

	connectedPeers map[string]struct{}
	replicaSet     map[string]struct{}
	pingVerbose    bool
}

// New builds a Node around an engine and a transport adapter. The
// adapter is not yet listening; call ListenOn to bind it.
func New(eng engine.Engine, t transport.Adapter) *Node {
	return &Node{
		engine:         eng,
		passport:       passport.New(),
		transport:      t,
		connectedPeers: make(map[string]struct{}),
		replicaSet:     make(map[string]struct{}),
	}
}

// ListenOn binds the node's transport to addr.
func (n *Node) ListenOn(addr string) error {
	return n.transport.Listen(addr)
}

// Dial initiates an outbound connection to addr. Connection failures
// surface asynchronously as logged transport events, not as a returned
// error; address parse failures, and a Dial made before ListenOn, return
// synchronously.
func (n *Node) Dial(addr string) error {
	return n.transport.Dial(addr)
}

// PeerID returns this node's stable identity.
func (n *Node) PeerID() string {
	return n.transport.PeerID()
}

// GetPassport returns the node's passport.
func (n *Node) GetPassport() *passport.Passport {
	return n.passport
}

// AddToReplicaSet inserts peerID into the replica set. Idempotent; does
// not check reachability.
func (n *Node) AddToReplicaSet(peerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replicaSet[peerID] = struct{}{}
}

// ConnectedPeers returns a snapshot of currently connected peer ids.
func (n *Node) ConnectedPeers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	peers := make([]string, 0, len(n.connectedPeers))
	for p := range n.connectedPeers {
		peers = append(peers, p)
	}
	return peers
}

// EnablePingVerbose turns on liveness ping logging.
func (n *Node) EnablePingVerbose() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pingVerbose = true
}

// DisablePingVerbose turns off liveness ping logging.
func (n *Node) DisablePingVerbose() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pingVerbose = false
}

// HandleCommand applies command locally, bypassing replication. Used by
// tests and for local reads.
func (n *Node) HandleCommand(cmd command.Command) command.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Apply(cmd)
}

// SendRequestToPeer enqueues a client-originated request (is_replication
// = false) to peerID via the transport.
func (n *Node) SendRequestToPeer(ctx context.Context, peerID string, cmd command.Command) (string, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("node: encode command: %w", err)
	}
	return n.transport.SendRequest(ctx, peerID, payload, false)
}

// HandleEvent blocks until the next transport event arrives, processes
// it, and returns. The caller drives this in a loop.
func (n *Node) HandleEvent(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev, ok := <-n.transport.Events():
		if !ok {
			return ErrTransportClosed
		}
		n.dispatch(ctx, ev)
		return nil
	}
}

func (n *Node) dispatch(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnectionEstablished:
		n.mu.Lock()
		n.connectedPeers[ev.Peer] = struct{}{}
		n.mu.Unlock()
		logging.Info(ctx, logging.ComponentNode, logging.ActionConnect, "peer connected",
			map[string]interface{}{"peer": ev.Peer})

	case transport.EventConnectionClosed:
		n.mu.Lock()
		delete(n.connectedPeers, ev.Peer)
		n.mu.Unlock()
		logging.Info(ctx, logging.ComponentNode, logging.ActionDisconnect, "peer disconnected",
			map[string]interface{}{"peer": ev.Peer})

	case transport.EventListening:
		logging.Info(ctx, logging.ComponentNode, logging.ActionListen, "listen address",
			map[string]interface{}{"address": ev.Address})

	case transport.EventPing:
		n.mu.Lock()
		verbose := n.pingVerbose
		n.mu.Unlock()
		if verbose {
			logging.Info(ctx, logging.ComponentNode, logging.ActionPing, "ping",
				map[string]interface{}{"peer": ev.Peer, "rtt_ms": ev.RTT.Milliseconds()})
		}

	case transport.EventInboundRequest:
		n.handleInboundRequest(ctx, ev)

	case transport.EventInboundResponse:
		logging.Info(ctx, logging.ComponentNode, logging.ActionResponse, "inbound response",
			map[string]interface{}{"peer": ev.Peer, "request_id": ev.RequestID, "payload": ev.Response.Payload})

	case transport.EventResponseSent:
		logging.Debug(ctx, logging.ComponentNode, logging.ActionResponse, "response sent",
			map[string]interface{}{"peer": ev.Peer, "request_id": ev.RequestID})

	case transport.EventOutboundFailure:
		logging.Warn(ctx, logging.ComponentNode, logging.ActionTimeout, "outbound failure",
			map[string]interface{}{"peer": ev.Peer, "address": ev.Address, "error": errString(ev.Err)})

	case transport.EventInboundFailure:
		logging.Warn(ctx, logging.ComponentNode, logging.ActionValidation, "inbound failure",
			map[string]interface{}{"peer": ev.Peer, "error": errString(ev.Err)})
	}
}

// handleInboundRequest implements event-loop case 5: apply locally,
// render the response, fan out to the replica set when eligible, then
// reply to the requester.
func (n *Node) handleInboundRequest(ctx context.Context, ev transport.Event) {
	var cmd command.Command
	if err := json.Unmarshal(ev.Request.CommandJSON, &cmd); err != nil {
		logging.Warn(ctx, logging.ComponentNode, logging.ActionValidation, "malformed inbound command",
			map[string]interface{}{"peer": ev.Request.FromPeer, "error": err.Error()})
		return
	}

	n.mu.Lock()
	result := n.engine.Apply(cmd)
	var fanoutTargets []string
	if cmd.Kind.Mutating() && !ev.Request.IsReplication && isExpectedKind(cmd.Kind, result.Kind) {
		fanoutTargets = n.fanoutTargetsLocked()
	}
	n.mu.Unlock()

	payload := result.Render()
	if !isExpectedKind(cmd.Kind, result.Kind) {
		payload = "Unexpected response"
	}

	for _, peer := range fanoutTargets {
		if _, err := n.transport.SendRequest(ctx, peer, ev.Request.CommandJSON, true); err != nil {
			logging.Warn(ctx, logging.ComponentNode, logging.ActionReplication, "fan-out failed",
				map[string]interface{}{"peer": peer, "error": err.Error()})
		}
	}

	if ev.Reply != nil {
		if err := ev.Reply(transport.Response{Payload: payload}); err != nil {
			logging.Error(ctx, logging.ComponentNode, logging.ActionResponse, "reply failed", err,
				map[string]interface{}{"peer": ev.Request.FromPeer, "request_id": ev.RequestID})
		}
	}
}

// fanoutTargetsLocked returns replica_set ∩ connected_peers, excluding
// self. Must be called with n.mu held.
func (n *Node) fanoutTargetsLocked() []string {
	self := n.transport.PeerID()
	var targets []string
	for peer := range n.replicaSet {
		if peer == self {
			continue
		}
		if _, connected := n.connectedPeers[peer]; connected {
			targets = append(targets, peer)
		}
	}
	return targets
}

// expectedResultKinds lists the ResultKinds an engine may legitimately
// return for a successful application of kind k. A command's result may
// also always legitimately be ResultErr (an engine failure); that case
// is handled separately by isExpectedKind.
func expectedResultKinds(k command.Kind) []command.ResultKind {
	switch k {
	case command.Set:
		return []command.ResultKind{command.ResultStr}
	case command.Get:
		return []command.ResultKind{command.ResultStr, command.ResultNil}
	case command.Append, command.Exists, command.Delete:
		return []command.ResultKind{command.ResultInt}
	default:
		return nil
	}
}

// isExpectedKind reports whether rk is an acceptable CommandResult kind
// for a command of kind k, per the table in spec.md §4.2. An engine
// error (ResultErr) is always acceptable; anything else not listed for
// k is the defensive "unexpected Ok-kind" case from spec.md §9.
func isExpectedKind(k command.Kind, rk command.ResultKind) bool {
	if rk == command.ResultErr {
		return true
	}
	for _, want := range expectedResultKinds(k) {
		if want == rk {
			return true
		}
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
