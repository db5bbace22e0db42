package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"retroboard/internal/retro"
)

type fakePeer struct {
	id     string
	mu     sync.Mutex
	frames []Frame
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(f Frame) error {
	p.mu.Lock()
	p.frames = append(p.frames, f)
	p.mu.Unlock()
	return nil
}

// take returns the frames received so far and forgets them.
func (p *fakePeer) take() []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.frames
	p.frames = nil
	return out
}

func ofType(frames []Frame, typ string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// flakyGateway wraps the in-memory store to count calls and inject failures.
type flakyGateway struct {
	*retro.MemStore
	mu          sync.Mutex
	failUpdates bool
	deletes     int
	groupWrites int
}

var errDBDown = errors.New("db down")

func (g *flakyGateway) UpdateIdea(ctx context.Context, id string, i *retro.Idea) error {
	g.mu.Lock()
	fail := g.failUpdates
	g.mu.Unlock()
	if fail {
		return errDBDown
	}
	return g.MemStore.UpdateIdea(ctx, id, i)
}

func (g *flakyGateway) UpdateRetro(ctx context.Context, id string, r *retro.Retro) error {
	g.mu.Lock()
	fail := g.failUpdates
	g.mu.Unlock()
	if fail {
		return errDBDown
	}
	return g.MemStore.UpdateRetro(ctx, id, r)
}

func (g *flakyGateway) DeleteIdea(ctx context.Context, id string) error {
	g.mu.Lock()
	g.deletes++
	g.mu.Unlock()
	return g.MemStore.DeleteIdea(ctx, id)
}

func (g *flakyGateway) UpdateGroup(ctx context.Context, id string, grp *retro.Group) error {
	g.mu.Lock()
	g.groupWrites++
	g.mu.Unlock()
	return g.MemStore.UpdateGroup(ctx, id, grp)
}

func newTestServer(t *testing.T) (*Server, *flakyGateway) {
	t.Helper()
	mem := retro.NewMemStore()
	gw := &flakyGateway{MemStore: mem}
	s := NewServer(gw, WithLogger(log.New(io.Discard)), WithCatalog(mem))
	return s, gw
}

// seedRetro stores an emotions retro in the lobby that a@x.com has joined.
func seedRetro(t *testing.T, gw *flakyGateway, id string) {
	t.Helper()
	gw.Put(&retro.Retro{
		ID:         id,
		UserID:     "owner",
		RetroType:  retro.RetroEmotions,
		Stage:      retro.StageLobby,
		CreatedBy:  "owner@x.com",
		EverJoined: []string{"a@x.com"},
	})
}

// connect registers a peer authenticated as a@x.com.
func connect(s *Server, id string) *fakePeer {
	return connectAs(s, id, "a@x.com")
}

func connectAs(s *Server, id, email string) *fakePeer {
	p := &fakePeer{id: id}
	s.Connect(p, email)
	return p
}

func frame(t *testing.T, typ, requestID string, payload any) Frame {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return Frame{Type: typ, RequestID: requestID, Payload: b}
}

func decodeRetro(t *testing.T, f Frame) RetroUpdated {
	t.Helper()
	var got RetroUpdated
	if err := json.Unmarshal(f.Payload, &got); err != nil {
		t.Fatalf("decode retroUpdated: %v", err)
	}
	return got
}

func decodeAck(t *testing.T, f Frame) Ack {
	t.Helper()
	var got Ack
	if err := json.Unmarshal(f.Payload, &got); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return got
}

func decodeUsers(t *testing.T, f Frame) UsersSnapshot {
	t.Helper()
	var got UsersSnapshot
	if err := json.Unmarshal(f.Payload, &got); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	return got
}

func fetch(t *testing.T, gw *flakyGateway, id string) *retro.Retro {
	t.Helper()
	r, err := gw.FetchAggregate(context.Background(), id)
	if err != nil {
		t.Fatalf("fetch %s: %v", id, err)
	}
	return r
}
