package retro

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MemStore is an in-memory Store used in development mode and tests.
// Every read returns a deep copy, so callers never alias stored state.
type MemStore struct {
	mu     sync.RWMutex
	retros map[string]*Retro
	users  map[string]User
	now    func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		retros: make(map[string]*Retro),
		users:  make(map[string]User),
		now:    time.Now,
	}
}

// Put stores r as-is, replacing any retro with the same id.
func (s *MemStore) Put(r *Retro) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := r.Clone()
	c.Normalize()
	s.retros[c.ID] = c
}

func (s *MemStore) FetchAggregate(_ context.Context, retroID string) (*Retro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.retros[retroID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemStore) FetchSummary(_ context.Context, retroID string) (*Retro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.retros[retroID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	out.EverJoined = append(pq.StringArray{}, r.EverJoined...)
	out.Ideas, out.Groups, out.ActionItems = nil, nil, nil
	out.Normalize()
	return &out, nil
}

func (s *MemStore) FetchUser(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemStore) InsertIdea(_ context.Context, retroID string, category IdeaType, text string) (*Idea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retros[retroID]
	if !ok {
		return nil, ErrNotFound
	}
	idea := Idea{
		ID:        uuid.NewString(),
		RetroID:   retroID,
		Text:      text,
		Category:  category,
		CreatedAt: s.now(),
	}
	r.Ideas = append(r.Ideas, idea)
	return &idea, nil
}

func (s *MemStore) InsertGroups(_ context.Context, retroID string, drafts []GroupDraft) ([]Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retros[retroID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Group, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, Group{
			ID:        uuid.NewString(),
			RetroID:   retroID,
			Name:      d.Name,
			IdeaIDs:   append(pq.StringArray{}, d.IdeaIDs...),
			Votes:     pq.StringArray{},
			CreatedAt: s.now(),
		})
	}
	r.Groups = append(r.Groups, out...)
	return (&Retro{Groups: out}).Clone().Groups, nil
}

func (s *MemStore) InsertActionItem(_ context.Context, retroID, text, author, assignee string) (*ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retros[retroID]
	if !ok {
		return nil, ErrNotFound
	}
	a := ActionItem{
		ID:            uuid.NewString(),
		RetroID:       retroID,
		Text:          text,
		AuthorEmail:   author,
		AssigneeEmail: assignee,
		CreatedAt:     s.now(),
	}
	r.ActionItems = append(r.ActionItems, a)
	return &a, nil
}

func (s *MemStore) InsertUser(_ context.Context, u User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.Email]; ok {
		return &existing, nil
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.Email] = u
	return &u, nil
}

func (s *MemStore) InsertEverJoined(_ context.Context, retroID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retros[retroID]
	if !ok {
		return ErrNotFound
	}
	if !r.HasJoined(email) {
		r.EverJoined = append(r.EverJoined, email)
	}
	return nil
}

func (s *MemStore) UpdateRetro(_ context.Context, retroID string, in *Retro) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.retros[retroID]
	if !ok {
		return ErrNotFound
	}
	r.UserID = in.UserID
	r.RetroType = in.RetroType
	r.Stage = in.Stage
	r.CreatedAt = in.CreatedAt
	r.CreatedBy = in.CreatedBy
	r.EverJoined = append(pq.StringArray{}, in.EverJoined...)
	return nil
}

func (s *MemStore) UpdateIdea(_ context.Context, ideaID string, in *Idea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.retros {
		if idea := r.Idea(ideaID); idea != nil {
			idea.Text = in.Text
			idea.Category = in.Category
			idea.X = in.X
			idea.Y = in.Y
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) UpdateGroup(_ context.Context, groupID string, in *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.retros {
		if g := r.Group(groupID); g != nil {
			g.Name = in.Name
			g.IdeaIDs = append(pq.StringArray{}, in.IdeaIDs...)
			g.Votes = append(pq.StringArray{}, in.Votes...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) UpdateActionItem(_ context.Context, actionItemID string, in *ActionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.retros {
		if a := r.ActionItem(actionItemID); a != nil {
			a.Text = in.Text
			a.AuthorEmail = in.AuthorEmail
			a.AssigneeEmail = in.AssigneeEmail
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) DeleteIdea(_ context.Context, ideaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.retros {
		if r.RemoveIdea(ideaID) {
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) DeleteActionItem(_ context.Context, actionItemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.retros {
		if r.RemoveActionItem(actionItemID) {
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) CreateRetro(_ context.Context, creator User, t RetroType) (*Retro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.users[creator.Email]
	if !ok {
		owner = creator
		owner.ID = uuid.NewString()
		owner.CreatedAt = s.now()
		s.users[owner.Email] = owner
	}
	r := &Retro{
		ID:        uuid.NewString(),
		UserID:    owner.ID,
		RetroType: t,
		Stage:     StageLobby,
		CreatedAt: s.now(),
		CreatedBy: owner.Email,
	}
	r.Normalize()
	s.retros[r.ID] = r
	return r.Clone(), nil
}

func (s *MemStore) ListRetros(_ context.Context, email string) ([]Retro, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Retro, 0)
	for _, r := range s.retros {
		if r.CreatedBy == email || r.HasJoined(email) {
			out = append(out, *r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
