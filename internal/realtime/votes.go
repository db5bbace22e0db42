package realtime

import (
	"context"

	"retroboard/internal/retro"
)

// MaxVotesPerVoter caps the votes one email may hold across a retro's groups.
const MaxVotesPerVoter = 3

// AddVote appends one vote by the connection's email to the group. The
// payload email, when set, must be that email. The voter must have
// joined the retro and hold fewer than MaxVotesPerVoter votes. The check and
// the write happen under the retro's lock, so concurrent adds cannot both
// pass it.
func (s *Server) AddVote(ctx context.Context, origin string, in VoteInput) error {
	voter, err := s.caller(origin, in.Email)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		g := agg.Group(in.GroupID)
		if g == nil {
			return errGroupNotFound
		}
		if !agg.HasJoined(voter) {
			return rejected("Voter has not joined this retro")
		}
		if agg.VotesOf(voter) >= MaxVotesPerVoter {
			return rejected("Vote limit reached")
		}
		g.Votes = append(g.Votes, voter)
		if err := s.store.UpdateGroup(ctx, g.ID, g); err != nil {
			return storeErr(err, "Group not found")
		}
		return nil
	})
	return err
}

// RemoveVote takes back the first vote the connection's email cast on the group.
func (s *Server) RemoveVote(ctx context.Context, origin string, in VoteInput) error {
	voter, err := s.caller(origin, in.Email)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		g := agg.Group(in.GroupID)
		if g == nil {
			return errGroupNotFound
		}
		if !g.RemoveVote(voter) {
			return errVoteNotFound
		}
		if err := s.store.UpdateGroup(ctx, g.ID, g); err != nil {
			return storeErr(err, "Group not found")
		}
		return nil
	})
	return err
}
