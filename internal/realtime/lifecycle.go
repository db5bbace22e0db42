package realtime

import (
	"context"
	"errors"
	"strings"

	"retroboard/internal/retro"
)

// Join announces who sits behind origin in the retro. The announced email
// must be the connection's own. It records the email
// in everJoined (broadcasting the aggregate when that changes it), evicts
// stale presence entries for this connection and this email, and sends the
// retro's presence map back to origin. Evicted connections receive the map
// of the retro they were removed from.
func (s *Server) Join(ctx context.Context, origin string, in JoinInput) error {
	if in.User == nil {
		return rejected("User is required")
	}
	u := UserData{
		Email: strings.TrimSpace(in.User.Email),
		Name:  strings.TrimSpace(in.User.Name),
		Image: strings.TrimSpace(in.User.Image),
	}
	if u.Email == "" || u.Name == "" || u.Image == "" {
		return rejected("User email, name and image are required")
	}
	email, err := s.caller(origin, u.Email)
	if err != nil {
		return err
	}
	u.Email = email
	retroID := strings.TrimSpace(in.RetroID)
	if retroID == "" {
		return errRetroNotFound
	}

	if err := s.recordJoin(ctx, origin, retroID, u); err != nil {
		return err
	}

	users, evicted := s.presence.Join(retroID, origin, u)
	presenceGauge.Set(float64(s.presence.Len()))
	for _, ev := range evicted {
		s.sendUsers(ev.ConnID, ev.RetroID, ev.Users)
	}
	s.sendUsers(origin, retroID, users)
	return nil
}

func (s *Server) recordJoin(ctx context.Context, origin, retroID string, u UserData) error {
	unlock := s.locks.Lock(retroID)
	defer unlock()

	summary, err := s.store.FetchSummary(ctx, retroID)
	if err != nil {
		return storeErr(err, "Retro not found")
	}

	_, err = s.store.FetchUser(ctx, u.Email)
	if errors.Is(err, retro.ErrNotFound) {
		_, err = s.store.InsertUser(ctx, retro.User{Email: u.Email, Name: u.Name, Image: u.Image})
	}
	if err != nil {
		return storeErr(err, "User not found")
	}

	if summary.HasJoined(u.Email) {
		return nil
	}
	if err := s.store.InsertEverJoined(ctx, retroID, u.Email); err != nil {
		return storeErr(err, "Retro not found")
	}
	agg, err := s.store.FetchAggregate(ctx, retroID)
	if err != nil {
		return storeErr(err, "Retro not found")
	}
	s.publish(origin, retroID, agg)
	return nil
}
