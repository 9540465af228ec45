package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/serf/serf"

	"sphagnumdb/internal/logging"
)

const (
	queryName        = "sphagnumdb-request"
	requestTimeout   = 5 * time.Second
	pingInterval     = 10 * time.Second
	serfEventBuffer  = 256
	adapterEventSize = 256
)

// SerfAdapter is the Adapter implementation backed by a *serf.Serf
// instance. One SerfAdapter owns exactly one serf agent; Listen binds it
// and Dial joins it to peers already bound elsewhere.
type SerfAdapter struct {
	mu     sync.Mutex
	nodeID string
	serf   *serf.Serf

	serfEvents chan serf.Event
	events     chan Event

	stop chan struct{}
	once sync.Once
}

// NewSerfAdapter returns an adapter with a fresh, unused peer id. The
// underlying serf agent is not created until Listen is called.
func NewSerfAdapter() *SerfAdapter {
	return &SerfAdapter{
		nodeID:     uuid.NewString(),
		serfEvents: make(chan serf.Event, serfEventBuffer),
		events:     make(chan Event, adapterEventSize),
		stop:       make(chan struct{}),
	}
}

// PeerID implements Adapter.
func (a *SerfAdapter) PeerID() string { return a.nodeID }

// Events implements Adapter.
func (a *SerfAdapter) Events() <-chan Event { return a.events }

// Listen implements Adapter.
func (a *SerfAdapter) Listen(addr string) error {
	host, port, err := parseMultiaddr(addr)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.serf != nil {
		a.mu.Unlock()
		return ErrAlreadyListening
	}

	conf := serf.DefaultConfig()
	conf.Init()
	conf.NodeName = a.nodeID
	conf.MemberlistConfig.BindAddr = host
	conf.MemberlistConfig.BindPort = port
	conf.EventCh = a.serfEvents

	instance, err := serf.Create(conf)
	if err != nil {
		a.mu.Unlock()
		return fmt.Errorf("transport: listen: %w", err)
	}
	a.serf = instance
	a.mu.Unlock()

	go a.drainSerfEvents()
	go a.pingLoop()

	boundPort := port
	if node := instance.Memberlist().LocalNode(); node != nil {
		boundPort = int(node.Port)
	}
	a.emit(Event{Kind: EventListening, Address: formatMultiaddr(host, boundPort)})

	logging.Info(context.Background(), logging.ComponentTransport, logging.ActionListen,
		"listening", map[string]interface{}{"address": formatMultiaddr(host, boundPort), "peer_id": a.nodeID})
	return nil
}

// Dial implements Adapter.
func (a *SerfAdapter) Dial(addr string) error {
	host, port, err := parseMultiaddr(addr)
	if err != nil {
		return err
	}

	a.mu.Lock()
	instance := a.serf
	a.mu.Unlock()
	if instance == nil {
		return ErrNotListening
	}

	target := fmt.Sprintf("%s:%d", host, port)
	go func() {
		if _, err := instance.Join([]string{target}, true); err != nil {
			a.emit(Event{Kind: EventOutboundFailure, Address: addr, Err: fmt.Errorf("dial %s: %w", addr, err)})
			logging.Error(context.Background(), logging.ComponentTransport, logging.ActionDial,
				"dial failed", err, map[string]interface{}{"address": addr})
		}
	}()
	return nil
}

// SendRequest implements Adapter.
func (a *SerfAdapter) SendRequest(ctx context.Context, peerID string, commandJSON []byte, isReplication bool) (string, error) {
	a.mu.Lock()
	instance := a.serf
	a.mu.Unlock()
	if instance == nil {
		return "", ErrNotListening
	}

	req := wireRequest{Command: commandJSON, IsReplication: isReplication, Payload: a.nodeID}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("transport: encode request: %w", err)
	}

	requestID := uuid.NewString()
	params := instance.DefaultQueryParams()
	params.FilterNodes = []string{peerID}
	params.Timeout = requestTimeout

	resp, err := instance.Query(queryName, payload, params)
	if err != nil {
		return "", fmt.Errorf("transport: send request: %w", err)
	}

	go a.awaitResponse(requestID, peerID, resp)
	return requestID, nil
}

func (a *SerfAdapter) awaitResponse(requestID, peerID string, resp *serf.QueryResponse) {
	select {
	case r, ok := <-resp.ResponseCh():
		if !ok {
			a.emit(Event{Kind: EventOutboundFailure, Peer: peerID, RequestID: requestID, Err: ErrRequestTimeout})
			return
		}
		var decoded Response
		if err := json.Unmarshal(r.Payload, &decoded); err != nil {
			a.emit(Event{Kind: EventInboundFailure, Peer: r.From, RequestID: requestID, Err: fmt.Errorf("decode response: %w", err)})
			return
		}
		a.emit(Event{Kind: EventInboundResponse, Peer: r.From, RequestID: requestID, Response: decoded})
	case <-time.After(requestTimeout + time.Second):
		a.emit(Event{Kind: EventOutboundFailure, Peer: peerID, RequestID: requestID, Err: ErrRequestTimeout})
	}
}

// Close implements Adapter. It stops the event-draining and ping loops
// and leaves the cluster; the Events channel is not closed.
func (a *SerfAdapter) Close() error {
	a.once.Do(func() { close(a.stop) })

	a.mu.Lock()
	instance := a.serf
	a.mu.Unlock()
	if instance == nil {
		return nil
	}
	if err := instance.Leave(); err != nil {
		logging.Error(context.Background(), logging.ComponentTransport, logging.ActionStop, "leave failed", err)
	}
	return instance.Shutdown()
}

func (a *SerfAdapter) drainSerfEvents() {
	for {
		select {
		case <-a.stop:
			return
		case ev, ok := <-a.serfEvents:
			if !ok {
				return
			}
			a.handleSerfEvent(ev)
		}
	}
}

func (a *SerfAdapter) handleSerfEvent(ev serf.Event) {
	switch e := ev.(type) {
	case serf.MemberEvent:
		switch e.Type {
		case serf.EventMemberJoin:
			for _, m := range e.Members {
				if m.Name == a.nodeID {
					continue
				}
				a.emit(Event{Kind: EventConnectionEstablished, Peer: m.Name})
			}
		case serf.EventMemberLeave, serf.EventMemberFailed, serf.EventMemberReap:
			for _, m := range e.Members {
				if m.Name == a.nodeID {
					continue
				}
				a.emit(Event{Kind: EventConnectionClosed, Peer: m.Name})
			}
		}
	case *serf.Query:
		if e.Name == queryName {
			a.handleInboundQuery(e)
		}
	}
}

func (a *SerfAdapter) handleInboundQuery(q *serf.Query) {
	var req wireRequest
	if err := json.Unmarshal(q.Payload, &req); err != nil {
		a.emit(Event{Kind: EventInboundFailure, Err: fmt.Errorf("decode request: %w", err)})
		return
	}

	requestID := traceID(req.Payload, q.LTime)
	reply := func(resp Response) error {
		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("transport: encode response: %w", err)
		}
		if err := q.Respond(data); err != nil {
			return fmt.Errorf("transport: respond: %w", err)
		}
		a.emit(Event{Kind: EventResponseSent, Peer: req.Payload, RequestID: requestID})
		return nil
	}

	a.emit(Event{
		Kind:      EventInboundRequest,
		Peer:      req.Payload,
		RequestID: requestID,
		Request: RequestEnvelope{
			CommandJSON:   req.Command,
			IsReplication: req.IsReplication,
			FromPeer:      req.Payload,
		},
		Reply: reply,
	})
}

func (a *SerfAdapter) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			instance := a.serf
			a.mu.Unlock()
			if instance == nil {
				continue
			}
			for _, m := range instance.Members() {
				if m.Name == a.nodeID || m.Status != serf.StatusAlive {
					continue
				}
				rtt, err := instance.RTT(a.nodeID, m.Name)
				if err != nil {
					continue
				}
				a.emit(Event{Kind: EventPing, Peer: m.Name, RTT: rtt})
			}
		}
	}
}

func (a *SerfAdapter) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		logging.Warn(context.Background(), logging.ComponentTransport, logging.ActionRequest,
			"event channel full, dropping event", map[string]interface{}{"kind": fmt.Sprint(ev.Kind)})
	}
}

// traceID derives a short, deterministic id for correlating one inbound
// request's log lines, the way the original implementation tags
// connection and request ids in its verbose event logging.
func traceID(peerID string, ltime serf.LamportTime) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s:%d", peerID, ltime)
	return fmt.Sprintf("%x", h.Sum64())
}
