package node

import (
	"context"
	"sync"

	"sphagnumdb/internal/transport"
)

// fakeAdapter is a minimal in-memory transport.Adapter used to drive
// Node's event loop deterministically, without a real serf cluster.
type fakeAdapter struct {
	mu       sync.Mutex
	peerID   string
	events   chan transport.Event
	sent     []sentRequest
	sendErr  error
}

type sentRequest struct {
	peerID        string
	commandJSON   []byte
	isReplication bool
}

func newFakeAdapter(peerID string) *fakeAdapter {
	return &fakeAdapter{peerID: peerID, events: make(chan transport.Event, 16)}
}

func (f *fakeAdapter) Listen(addr string) error { return nil }
func (f *fakeAdapter) Dial(addr string) error   { return nil }
func (f *fakeAdapter) PeerID() string           { return f.peerID }

func (f *fakeAdapter) SendRequest(ctx context.Context, peerID string, commandJSON []byte, isReplication bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentRequest{peerID: peerID, commandJSON: append([]byte(nil), commandJSON...), isReplication: isReplication})
	return "req-1", nil
}

func (f *fakeAdapter) Events() <-chan transport.Event { return f.events }
func (f *fakeAdapter) Close() error                   { close(f.events); return nil }

func (f *fakeAdapter) sentRequests() []sentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentRequest, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeAdapter) push(ev transport.Event) {
	f.events <- ev
}
