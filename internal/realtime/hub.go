package realtime

import (
	"sync"
)

// Peer is one live client connection.
type Peer interface {
	ID() string
	// Send queues a frame for delivery. It must not block.
	Send(Frame) error
}

// Hub tracks live peers and the verified email behind each of them.
// Frames carry their retro id, so fan-out goes to every peer and clients
// pick what they show.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	emails map[string]string
}

func NewHub() *Hub {
	return &Hub{
		peers:  make(map[string]Peer),
		emails: make(map[string]string),
	}
}

// Register adds the peer, authenticated as email.
func (h *Hub) Register(p Peer, email string) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	h.emails[p.ID()] = email
	h.mu.Unlock()
}

func (h *Hub) Unregister(peerID string) {
	h.mu.Lock()
	delete(h.peers, peerID)
	delete(h.emails, peerID)
	h.mu.Unlock()
}

// Email returns the verified email of a live peer.
func (h *Hub) Email(peerID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	email, ok := h.emails[peerID]
	return email, ok && email != ""
}

func (h *Hub) Alive(peerID string) bool {
	h.mu.RLock()
	_, ok := h.peers[peerID]
	h.mu.RUnlock()
	return ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Send delivers to a single peer. Sending to a vanished peer is a no-op.
func (h *Hub) Send(peerID string, f Frame) {
	h.mu.RLock()
	p, ok := h.peers[peerID]
	h.mu.RUnlock()
	if ok {
		_ = p.Send(f)
	}
}

// Broadcast delivers to every peer except the excluded one.
func (h *Hub) Broadcast(f Frame, except string) {
	h.mu.RLock()
	targets := make([]Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id != except {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range targets {
		_ = p.Send(f)
	}
}
