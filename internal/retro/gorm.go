package retro

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the postgres-backed Store.
type GormStore struct {
	DB *gorm.DB
}

var _ Store = (*GormStore)(nil)

func orderByCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at asc, id asc")
}

func (s *GormStore) FetchAggregate(ctx context.Context, retroID string) (*Retro, error) {
	var r Retro
	err := s.DB.WithContext(ctx).
		Preload("Ideas", orderByCreation).
		Preload("Groups", orderByCreation).
		Preload("ActionItems", orderByCreation).
		Where("id = ?", retroID).
		First(&r).Error
	if err != nil {
		return nil, notFound(err)
	}
	r.Normalize()
	return &r, nil
}

func (s *GormStore) FetchSummary(ctx context.Context, retroID string) (*Retro, error) {
	var r Retro
	if err := s.DB.WithContext(ctx).Where("id = ?", retroID).First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	r.Normalize()
	return &r, nil
}

func (s *GormStore) FetchUser(ctx context.Context, email string) (*User, error) {
	var u User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) InsertIdea(ctx context.Context, retroID string, category IdeaType, text string) (*Idea, error) {
	idea := Idea{
		ID:        uuid.NewString(),
		RetroID:   retroID,
		Text:      text,
		Category:  category,
		CreatedAt: time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&idea).Error; err != nil {
		return nil, err
	}
	return &idea, nil
}

func (s *GormStore) InsertGroups(ctx context.Context, retroID string, drafts []GroupDraft) ([]Group, error) {
	out := make([]Group, 0, len(drafts))
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range drafts {
			g := Group{
				ID:        uuid.NewString(),
				RetroID:   retroID,
				Name:      d.Name,
				IdeaIDs:   pq.StringArray(append([]string{}, d.IdeaIDs...)),
				Votes:     pq.StringArray{},
				CreatedAt: time.Now(),
			}
			if err := tx.Create(&g).Error; err != nil {
				return err
			}
			out = append(out, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) InsertActionItem(ctx context.Context, retroID, text, author, assignee string) (*ActionItem, error) {
	a := ActionItem{
		ID:            uuid.NewString(),
		RetroID:       retroID,
		Text:          text,
		AuthorEmail:   author,
		AssigneeEmail: assignee,
		CreatedAt:     time.Now(),
	}
	if err := s.DB.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) InsertUser(ctx context.Context, u User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// InsertEverJoined appends email to the retro's everJoined set. Appending an
// email already present is a no-op.
func (s *GormStore) InsertEverJoined(ctx context.Context, retroID, email string) error {
	res := s.DB.WithContext(ctx).Exec(`
update retros
set ever_joined = array_append(ever_joined, ?)
where id = ? and not (? = any(ever_joined))
`, email, retroID, email)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.DB.WithContext(ctx).Model(&Retro{}).Where("id = ?", retroID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// UpdateRetro rewrites every retro-level field; children are untouched.
func (s *GormStore) UpdateRetro(ctx context.Context, retroID string, r *Retro) error {
	return affected(s.DB.WithContext(ctx).Model(&Retro{}).
		Where("id = ?", retroID).
		Updates(map[string]any{
			"user_id":     r.UserID,
			"retro_type":  r.RetroType,
			"stage":       r.Stage,
			"created_at":  r.CreatedAt,
			"created_by":  r.CreatedBy,
			"ever_joined": pq.StringArray(r.EverJoined),
		}))
}

func (s *GormStore) UpdateIdea(ctx context.Context, ideaID string, i *Idea) error {
	return affected(s.DB.WithContext(ctx).Model(&Idea{}).
		Where("id = ?", ideaID).
		Updates(map[string]any{
			"text":     i.Text,
			"category": i.Category,
			"x":        i.X,
			"y":        i.Y,
		}))
}

func (s *GormStore) UpdateGroup(ctx context.Context, groupID string, g *Group) error {
	return affected(s.DB.WithContext(ctx).Model(&Group{}).
		Where("id = ?", groupID).
		Updates(map[string]any{
			"name":     g.Name,
			"idea_ids": pq.StringArray(g.IdeaIDs),
			"votes":    pq.StringArray(g.Votes),
		}))
}

func (s *GormStore) UpdateActionItem(ctx context.Context, actionItemID string, a *ActionItem) error {
	return affected(s.DB.WithContext(ctx).Model(&ActionItem{}).
		Where("id = ?", actionItemID).
		Updates(map[string]any{
			"text":           a.Text,
			"author_email":   a.AuthorEmail,
			"assignee_email": a.AssigneeEmail,
		}))
}

func (s *GormStore) DeleteIdea(ctx context.Context, ideaID string) error {
	return affected(s.DB.WithContext(ctx).Where("id = ?", ideaID).Delete(&Idea{}))
}

func (s *GormStore) DeleteActionItem(ctx context.Context, actionItemID string) error {
	return affected(s.DB.WithContext(ctx).Where("id = ?", actionItemID).Delete(&ActionItem{}))
}

func (s *GormStore) CreateRetro(ctx context.Context, creator User, t RetroType) (*Retro, error) {
	var r Retro
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner User
		err := tx.Where("email = ?", creator.Email).First(&owner).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			owner = creator
			owner.ID = uuid.NewString()
			err = tx.Create(&owner).Error
		}
		if err != nil {
			return err
		}

		r = Retro{
			ID:         uuid.NewString(),
			UserID:     owner.ID,
			RetroType:  t,
			Stage:      StageLobby,
			CreatedAt:  time.Now(),
			CreatedBy:  owner.Email,
			EverJoined: pq.StringArray{},
		}
		return tx.Omit(clause.Associations).Create(&r).Error
	})
	if err != nil {
		return nil, err
	}
	r.Normalize()
	return &r, nil
}

func (s *GormStore) ListRetros(ctx context.Context, email string) ([]Retro, error) {
	var rows []Retro
	err := s.DB.WithContext(ctx).
		Preload("Ideas", orderByCreation).
		Preload("Groups", orderByCreation).
		Preload("ActionItems", orderByCreation).
		Where("created_by = ? or ? = any(ever_joined)", email, email).
		Order("created_at desc, id desc").
		Limit(100).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Normalize()
	}
	return rows, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
