package realtime

import (
	"context"

	"retroboard/internal/retro"
)

// ChangeStage moves the retro to any known stage. Progression is not
// enforced: the host may jump backwards or skip ahead, and repeating a
// request rewrites the same value.
func (s *Server) ChangeStage(ctx context.Context, origin string, in StageInput) (*retro.Retro, error) {
	stage, ok := retro.ParseStage(in.Stage)
	if !ok {
		return nil, rejected("Unknown stage")
	}
	return s.mutate(ctx, origin, in.RetroID, func(agg *retro.Retro) error {
		agg.Stage = stage
		if err := s.store.UpdateRetro(ctx, agg.ID, agg); err != nil {
			return storeErr(err, "Retro not found")
		}
		return nil
	})
}
