package realtime

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
)

func TestPresenceJoinEvictsSameConnection(t *testing.T) {
	p := NewPresence()
	p.Join("r1", "c1", alice)

	users, evicted := p.Join("r2", "c1", alice)
	if len(users) != 1 || users["c1"] != alice {
		t.Fatalf("unexpected users %+v", users)
	}
	if len(evicted) != 1 || evicted[0].RetroID != "r1" || evicted[0].ConnID != "c1" {
		t.Fatalf("unexpected evictions %+v", evicted)
	}
	if len(evicted[0].Users) != 0 {
		t.Fatalf("r1 should be empty, got %+v", evicted[0].Users)
	}
	if p.Len() != 1 {
		t.Fatalf("len = %d", p.Len())
	}
}

func TestPresenceJoinEvictsSameEmailElsewhere(t *testing.T) {
	p := NewPresence()
	p.Join("r1", "c1", alice)
	p.Join("r1", "c2", bob)

	_, evicted := p.Join("r2", "c3", alice)
	if len(evicted) != 1 || evicted[0].ConnID != "c1" {
		t.Fatalf("unexpected evictions %+v", evicted)
	}
	if got := evicted[0].Users; len(got) != 1 || got["c2"] != bob {
		t.Fatalf("unexpected r1 after eviction %+v", got)
	}
}

func TestPresenceRejoinSameRetroEvictsNothing(t *testing.T) {
	p := NewPresence()
	p.Join("r1", "c1", alice)

	renamed := alice
	renamed.Name = "Alice L."
	users, evicted := p.Join("r1", "c1", renamed)
	if len(evicted) != 0 {
		t.Fatalf("unexpected evictions %+v", evicted)
	}
	if len(users) != 1 || users["c1"] != renamed {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestPresenceSnapshotIsACopy(t *testing.T) {
	p := NewPresence()
	if got := p.Snapshot("none"); got == nil || len(got) != 0 {
		t.Fatalf("expected an empty map, got %#v", got)
	}
	p.Join("r1", "c1", alice)
	snap := p.Snapshot("r1")
	snap["c9"] = bob
	if len(p.Snapshot("r1")) != 1 {
		t.Fatal("snapshot aliases internal state")
	}
}

func TestPresenceLeave(t *testing.T) {
	p := NewPresence()
	p.Join("r1", "c1", alice)
	p.Join("r1", "c2", bob)

	ev, ok := p.Leave("c1")
	if !ok || ev.RetroID != "r1" || len(ev.Users) != 1 {
		t.Fatalf("unexpected leave %+v %v", ev, ok)
	}
	if _, ok := p.Leave("c1"); ok {
		t.Fatal("second leave reported a removal")
	}
}

func TestPresencePrune(t *testing.T) {
	p := NewPresence()
	p.Join("r1", "c1", alice)
	p.Join("r2", "c2", bob)

	evicted := p.Prune(func(id string) bool { return id == "c1" })
	if len(evicted) != 1 || evicted[0].ConnID != "c2" {
		t.Fatalf("unexpected evictions %+v", evicted)
	}
	if p.Len() != 1 {
		t.Fatalf("len = %d", p.Len())
	}
}

// Random joins from many goroutines must leave every connection in at most
// one retro and every email on at most one connection.
func TestPresenceUniqueness(t *testing.T) {
	p := NewPresence()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				conn := fmt.Sprintf("c%d", rng.Intn(10))
				email := fmt.Sprintf("u%d@x.com", rng.Intn(6))
				retroID := fmt.Sprintf("r%d", rng.Intn(4))
				p.Join(retroID, conn, UserData{Email: email, Name: "n", Image: "i"})
				if rng.Intn(10) == 0 {
					p.Leave(conn)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	conns := map[string]string{}
	emails := map[string]string{}
	for r := 0; r < 4; r++ {
		retroID := fmt.Sprintf("r%d", r)
		for conn, u := range p.Snapshot(retroID) {
			if prev, ok := conns[conn]; ok {
				t.Fatalf("%s present in %s and %s", conn, prev, retroID)
			}
			conns[conn] = retroID
			if prev, ok := emails[u.Email]; ok {
				t.Fatalf("%s present on %s and %s", u.Email, prev, conn)
			}
			emails[u.Email] = conn
		}
	}
}
