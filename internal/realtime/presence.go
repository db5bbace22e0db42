package realtime

import (
	"sort"
	"sync"
)

// Eviction records a presence entry removed to keep the tracker consistent.
// Users is the evicted retro's map once the operation that caused it is done.
type Eviction struct {
	ConnID  string
	RetroID string
	Users   map[string]UserData
}

// Presence maps (retro, connection) to the human on that connection.
// A connection is present in at most one retro and an email on at most one
// connection. Joins scan every retro, so a join costs O(total connections).
type Presence struct {
	mu     sync.Mutex
	retros map[string]map[string]UserData
}

func NewPresence() *Presence {
	return &Presence{retros: make(map[string]map[string]UserData)}
}

// Join places connID in retroID as u. Any entry for the same connection in
// another retro, and any entry for the same email on another connection, is
// evicted first. Re-joining the same retro just overwrites the entry.
// It returns the retro's map after the insert plus the evictions in the
// order they happened.
func (p *Presence) Join(retroID, connID string, u UserData) (map[string]UserData, []Eviction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var evicted []Eviction
	for _, rid := range p.retroIDsLocked() {
		if _, ok := p.retros[rid][connID]; ok && rid != retroID {
			evicted = append(evicted, p.removeLocked(rid, connID))
		}
	}
	for _, rid := range p.retroIDsLocked() {
		for _, cid := range sortedConnIDs(p.retros[rid]) {
			if cid != connID && p.retros[rid][cid].Email == u.Email {
				evicted = append(evicted, p.removeLocked(rid, cid))
			}
		}
	}

	users, ok := p.retros[retroID]
	if !ok {
		users = make(map[string]UserData)
		p.retros[retroID] = users
	}
	users[connID] = u
	for i := range evicted {
		if evicted[i].RetroID == retroID {
			evicted[i].Users = copyUsers(users)
		}
	}
	return copyUsers(users), evicted
}

// Leave removes connID from whichever retro holds it.
func (p *Presence) Leave(connID string) (Eviction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for rid, users := range p.retros {
		if _, ok := users[connID]; ok {
			return p.removeLocked(rid, connID), true
		}
	}
	return Eviction{}, false
}

// Prune removes every entry whose connection alive rejects.
func (p *Presence) Prune(alive func(connID string) bool) []Eviction {
	p.mu.Lock()
	defer p.mu.Unlock()
	var evicted []Eviction
	for _, rid := range p.retroIDsLocked() {
		for _, cid := range sortedConnIDs(p.retros[rid]) {
			if !alive(cid) {
				evicted = append(evicted, p.removeLocked(rid, cid))
			}
		}
	}
	return evicted
}

// Snapshot returns a copy of the retro's map; never nil.
func (p *Presence) Snapshot(retroID string) map[string]UserData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyUsers(p.retros[retroID])
}

// Len counts presence entries across all retros.
func (p *Presence) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, users := range p.retros {
		n += len(users)
	}
	return n
}

func (p *Presence) removeLocked(retroID, connID string) Eviction {
	users := p.retros[retroID]
	delete(users, connID)
	out := Eviction{ConnID: connID, RetroID: retroID, Users: copyUsers(users)}
	if len(users) == 0 {
		delete(p.retros, retroID)
	}
	return out
}

func (p *Presence) retroIDsLocked() []string {
	ids := make([]string, 0, len(p.retros))
	for id := range p.retros {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedConnIDs(users map[string]UserData) []string {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copyUsers(users map[string]UserData) map[string]UserData {
	out := make(map[string]UserData, len(users))
	for k, v := range users {
		out[k] = v
	}
	return out
}
