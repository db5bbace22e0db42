package retro

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Gateway is the persistence surface the realtime core depends on.
// Lookups of absent records return ErrNotFound.
type Gateway interface {
	FetchAggregate(ctx context.Context, retroID string) (*Retro, error)
	// FetchSummary loads the retro-level fields only; child slices stay empty.
	FetchSummary(ctx context.Context, retroID string) (*Retro, error)
	FetchUser(ctx context.Context, email string) (*User, error)

	InsertIdea(ctx context.Context, retroID string, category IdeaType, text string) (*Idea, error)
	InsertGroups(ctx context.Context, retroID string, drafts []GroupDraft) ([]Group, error)
	InsertActionItem(ctx context.Context, retroID, text, author, assignee string) (*ActionItem, error)
	InsertUser(ctx context.Context, u User) (*User, error)
	InsertEverJoined(ctx context.Context, retroID, email string) error

	UpdateRetro(ctx context.Context, retroID string, r *Retro) error
	UpdateIdea(ctx context.Context, ideaID string, i *Idea) error
	UpdateGroup(ctx context.Context, groupID string, g *Group) error
	UpdateActionItem(ctx context.Context, actionItemID string, a *ActionItem) error

	DeleteIdea(ctx context.Context, ideaID string) error
	DeleteActionItem(ctx context.Context, actionItemID string) error
}

// Catalog backs the REST endpoints that create and list retros.
type Catalog interface {
	CreateRetro(ctx context.Context, creator User, t RetroType) (*Retro, error)
	// ListRetros returns every retro email created or ever joined, newest first.
	ListRetros(ctx context.Context, email string) ([]Retro, error)
}

type Store interface {
	Gateway
	Catalog
}
