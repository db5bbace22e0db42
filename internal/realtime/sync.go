package realtime

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"retroboard/internal/retro"
)

func (s *Server) AddIdea(ctx context.Context, origin string, in IdeaInput) error {
	_, err := s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		category, err := ideaCategory(agg, in.Category)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.Text) == "" {
			return rejected("Idea text is required")
		}
		idea, err := s.store.InsertIdea(ctx, agg.ID, category, in.Text)
		if err != nil {
			return storeErr(err, "Retro not found")
		}
		agg.Ideas = append(agg.Ideas, *idea)
		return nil
	})
	return err
}

func (s *Server) RemoveIdea(ctx context.Context, origin string, in IdeaRef) error {
	_, err := s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		if agg.Idea(in.IdeaID) == nil {
			return errIdeaNotFound
		}
		if err := s.store.DeleteIdea(ctx, in.IdeaID); err != nil {
			return storeErr(err, "Idea not found")
		}
		agg.RemoveIdea(in.IdeaID)
		return nil
	})
	return err
}

func (s *Server) UpdateIdea(ctx context.Context, origin string, in IdeaInput) error {
	_, err := s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		idea := agg.Idea(in.IdeaID)
		if idea == nil {
			return errIdeaNotFound
		}
		category, err := ideaCategory(agg, in.Category)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.Text) == "" {
			return rejected("Idea text is required")
		}
		idea.Category = category
		idea.Text = in.Text
		if err := s.store.UpdateIdea(ctx, idea.ID, idea); err != nil {
			return storeErr(err, "Idea not found")
		}
		return nil
	})
	return err
}

func (s *Server) UpdatePosition(ctx context.Context, origin string, in PositionInput) error {
	_, err := s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		idea := agg.Idea(in.IdeaID)
		if idea == nil {
			return errIdeaNotFound
		}
		idea.X, idea.Y = in.Position.X, in.Position.Y
		if err := s.store.UpdateIdea(ctx, idea.ID, idea); err != nil {
			return storeErr(err, "Idea not found")
		}
		return nil
	})
	return err
}

// InitPositions stores the initial board layout in one go. Only x and y are
// taken from the payload, and only for ideas of this retro. Nothing is
// broadcast: the caller moves on once it gets the ack.
func (s *Server) InitPositions(ctx context.Context, _ string, in InitPositionsInput) error {
	return s.withRetro(ctx, in.RetroID, func(agg *retro.Retro) error {
		for _, p := range in.Ideas {
			idea := agg.Idea(p.ID)
			if idea == nil {
				continue
			}
			idea.X, idea.Y = p.X, p.Y
			if err := s.store.UpdateIdea(ctx, idea.ID, idea); err != nil {
				return storeErr(err, "Idea not found")
			}
		}
		return nil
	})
}

// InitGroups creates one group per label, named after it. Labels are taken
// in sorted order and idea ids that are not on this retro are dropped.
func (s *Server) InitGroups(ctx context.Context, _ string, in InitGroupsInput) error {
	return s.withRetro(ctx, in.RetroID, func(agg *retro.Retro) error {
		labels := make([]string, 0, len(in.Groups))
		for label := range in.Groups {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		drafts := make([]retro.GroupDraft, 0, len(labels))
		for _, label := range labels {
			ids := make([]string, 0, len(in.Groups[label]))
			for _, id := range in.Groups[label] {
				if agg.Idea(id) != nil {
					ids = append(ids, id)
				}
			}
			drafts = append(drafts, retro.GroupDraft{Name: label, IdeaIDs: ids})
		}
		if len(drafts) == 0 {
			return nil
		}
		if _, err := s.store.InsertGroups(ctx, agg.ID, drafts); err != nil {
			return storeErr(err, retroMissing(agg.ID))
		}
		return nil
	})
}

func (s *Server) UpdateGroupName(ctx context.Context, origin string, in GroupNameInput) error {
	_, err := s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		g := agg.Group(in.GroupID)
		if g == nil {
			return errGroupNotFound
		}
		g.Name = in.Name
		if err := s.store.UpdateGroup(ctx, g.ID, g); err != nil {
			return storeErr(err, "Group not found")
		}
		return nil
	})
	return err
}

func (s *Server) SendActionItem(ctx context.Context, origin string, in ActionItemInput) error {
	_, err := s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		if strings.TrimSpace(in.Text) == "" {
			return rejected("Action item text is required")
		}
		item, err := s.store.InsertActionItem(ctx, agg.ID, in.Text, in.Author, in.Assignee)
		if err != nil {
			return storeErr(err, "Retro not found")
		}
		agg.ActionItems = append(agg.ActionItems, *item)
		return nil
	})
	return err
}

func (s *Server) RemoveActionItem(ctx context.Context, origin string, in ActionItemRef) error {
	_, err := s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		if agg.ActionItem(in.ActionItemID) == nil {
			return errActionItemNotFound
		}
		if err := s.store.DeleteActionItem(ctx, in.ActionItemID); err != nil {
			return storeErr(err, "Action item not found")
		}
		agg.RemoveActionItem(in.ActionItemID)
		return nil
	})
	return err
}

func (s *Server) UpdateActionItem(ctx context.Context, origin string, in ActionItemInput) error {
	_, err := s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		item := agg.ActionItem(in.ActionItemID)
		if item == nil {
			return errActionItemNotFound
		}
		if strings.TrimSpace(in.Text) == "" {
			return rejected("Action item text is required")
		}
		item.AssigneeEmail = in.Assignee
		item.Text = in.Text
		if err := s.store.UpdateActionItem(ctx, item.ID, item); err != nil {
			return storeErr(err, "Action item not found")
		}
		return nil
	})
	return err
}

// ListRetros answers with every retro the connection's email created or joined.
func (s *Server) ListRetros(ctx context.Context, origin string, in ListRetrosInput) error {
	email, err := s.caller(origin, in.Email)
	if err != nil {
		return err
	}
	if s.catalog == nil {
		return &eventError{kind: ErrPersistence, msg: "Retro listing unavailable"}
	}
	rows, err := s.catalog.ListRetros(ctx, email)
	if err != nil {
		return storeErr(err, "No retros found")
	}
	f, err := newFrame(EventStorage, "", Storage{Retros: rows})
	if err != nil {
		return &eventError{kind: ErrPersistence, msg: "Retro listing unavailable", err: err}
	}
	s.hub.Send(origin, f)
	return nil
}

// withRetro is mutate without the broadcast, for acknowledged bulk events.
func (s *Server) withRetro(ctx context.Context, retroID string, fn func(*retro.Retro) error) error {
	retroID = strings.TrimSpace(retroID)
	if retroID == "" {
		return notFound(retroMissing(retroID))
	}
	unlock := s.locks.Lock(retroID)
	defer unlock()

	agg, err := s.store.FetchAggregate(ctx, retroID)
	if err != nil {
		return storeErr(err, retroMissing(retroID))
	}
	return fn(agg)
}

func retroMissing(retroID string) string {
	return fmt.Sprintf("Retro with %s not found", retroID)
}

// ideaCategory takes the category exactly as sent; it must be one of the
// retro type's categories.
func ideaCategory(agg *retro.Retro, v string) (retro.IdeaType, error) {
	c := retro.IdeaType(v)
	if !agg.RetroType.Allows(c) {
		names := make([]string, 0, 3)
		for _, allowed := range agg.RetroType.Categories() {
			names = append(names, string(allowed))
		}
		return "", rejected(fmt.Sprintf("Unknown idea category %q for %s retro, want one of %s",
			v, agg.RetroType, strings.Join(names, ", ")))
	}
	return c, nil
}
