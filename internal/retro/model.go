package retro

import (
	"time"

	"github.com/lib/pq"
)

// Retro is the aggregate root. Children are loaded by FetchAggregate only.
type Retro struct {
	ID         string         `gorm:"primaryKey;type:text" json:"id"`
	UserID     string         `gorm:"type:text;index;not null" json:"userId"`
	RetroType  RetroType      `gorm:"type:text;not null" json:"retroType"`
	Stage      Stage          `gorm:"type:text;not null;default:'lobby'" json:"stage"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"createdAt"`
	CreatedBy  string         `gorm:"type:text;index;not null" json:"createdBy"`
	EverJoined pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"everJoined"`

	Ideas       []Idea       `gorm:"foreignKey:RetroID;constraint:OnDelete:CASCADE" json:"ideas"`
	Groups      []Group      `gorm:"foreignKey:RetroID;constraint:OnDelete:CASCADE" json:"groups"`
	ActionItems []ActionItem `gorm:"foreignKey:RetroID;constraint:OnDelete:CASCADE" json:"actionItems"`
}

type Idea struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	RetroID   string    `gorm:"type:text;index;not null" json:"retroId"`
	Text      string    `gorm:"type:text;not null;default:''" json:"text"`
	Category  IdeaType  `gorm:"type:text;not null" json:"category"`
	X         float64   `gorm:"not null;default:0" json:"x"`
	Y         float64   `gorm:"not null;default:0" json:"y"`
	CreatedAt time.Time `gorm:"index;not null;default:now()" json:"createdAt"`
}

// Group votes hold one entry per vote, so an email repeats when it votes twice.
type Group struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	RetroID   string         `gorm:"type:text;index;not null" json:"retroId"`
	Name      string         `gorm:"type:text;not null;default:''" json:"name"`
	IdeaIDs   pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"ideaIds"`
	Votes     pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"votes"`
	CreatedAt time.Time      `gorm:"index;not null;default:now()" json:"createdAt"`
}

type ActionItem struct {
	ID            string    `gorm:"primaryKey;type:text" json:"id"`
	RetroID       string    `gorm:"type:text;index;not null" json:"retroId"`
	Text          string    `gorm:"type:text;not null;default:''" json:"text"`
	AuthorEmail   string    `gorm:"type:text;not null" json:"authorEmail"`
	AssigneeEmail string    `gorm:"type:text;not null" json:"assigneeEmail"`
	CreatedAt     time.Time `gorm:"index;not null;default:now()" json:"createdAt"`
}

type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Email     string    `gorm:"type:text;uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"type:text;not null;default:''" json:"name"`
	Image     string    `gorm:"type:text;not null;default:''" json:"image"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"createdAt"`
}

// GroupDraft is a group about to be inserted by InsertGroups.
type GroupDraft struct {
	Name    string
	IdeaIDs []string
}

// HasJoined reports whether email is in the everJoined set.
func (r *Retro) HasJoined(email string) bool {
	for _, e := range r.EverJoined {
		if e == email {
			return true
		}
	}
	return false
}

func (r *Retro) Idea(id string) *Idea {
	for i := range r.Ideas {
		if r.Ideas[i].ID == id {
			return &r.Ideas[i]
		}
	}
	return nil
}

func (r *Retro) Group(id string) *Group {
	for i := range r.Groups {
		if r.Groups[i].ID == id {
			return &r.Groups[i]
		}
	}
	return nil
}

func (r *Retro) ActionItem(id string) *ActionItem {
	for i := range r.ActionItems {
		if r.ActionItems[i].ID == id {
			return &r.ActionItems[i]
		}
	}
	return nil
}

// RemoveIdea drops the idea from the in-memory aggregate.
func (r *Retro) RemoveIdea(id string) bool {
	for i := range r.Ideas {
		if r.Ideas[i].ID == id {
			r.Ideas = append(r.Ideas[:i], r.Ideas[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Retro) RemoveActionItem(id string) bool {
	for i := range r.ActionItems {
		if r.ActionItems[i].ID == id {
			r.ActionItems = append(r.ActionItems[:i], r.ActionItems[i+1:]...)
			return true
		}
	}
	return false
}

// VotesOf counts the votes cast by email across every group of the retro.
func (r *Retro) VotesOf(email string) int {
	n := 0
	for _, g := range r.Groups {
		for _, v := range g.Votes {
			if v == email {
				n++
			}
		}
	}
	return n
}

// RemoveVote removes the first vote cast by email. It reports false when
// the group holds no such vote.
func (g *Group) RemoveVote(email string) bool {
	for i, v := range g.Votes {
		if v == email {
			g.Votes = append(g.Votes[:i:i], g.Votes[i+1:]...)
			return true
		}
	}
	return false
}

// Normalize replaces nil collections with empty ones so the aggregate
// always encodes arrays, never null.
func (r *Retro) Normalize() {
	if r.EverJoined == nil {
		r.EverJoined = pq.StringArray{}
	}
	if r.Ideas == nil {
		r.Ideas = []Idea{}
	}
	if r.Groups == nil {
		r.Groups = []Group{}
	}
	if r.ActionItems == nil {
		r.ActionItems = []ActionItem{}
	}
	for i := range r.Groups {
		if r.Groups[i].IdeaIDs == nil {
			r.Groups[i].IdeaIDs = pq.StringArray{}
		}
		if r.Groups[i].Votes == nil {
			r.Groups[i].Votes = pq.StringArray{}
		}
	}
}

// Clone returns a deep copy of the aggregate.
func (r *Retro) Clone() *Retro {
	out := *r
	out.EverJoined = append(pq.StringArray{}, r.EverJoined...)
	out.Ideas = append([]Idea{}, r.Ideas...)
	out.ActionItems = append([]ActionItem{}, r.ActionItems...)
	out.Groups = make([]Group, len(r.Groups))
	for i, g := range r.Groups {
		g.IdeaIDs = append(pq.StringArray{}, g.IdeaIDs...)
		g.Votes = append(pq.StringArray{}, g.Votes...)
		out.Groups[i] = g
	}
	return &out
}
