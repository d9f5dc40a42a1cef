package game

import (
	"context"
)

// groupPlayHandler is quick-duel progression with room-wide fan-out: the
// whole lobby sees every score change and a single start broadcast instead
// of per-user match notifications.
type groupPlayHandler struct {
	quickDuelHandler
}

func (h *groupPlayHandler) onStart(ctx context.Context, s *session) {
	h.e.bus.EmitToRoom(ctx, s.id, EventGroupGameStarted, map[string]interface{}{
		"sessionId":      s.id,
		"difficulty":     s.state.Difficulty.String(),
		"endTime":        s.state.EndTime,
		"totalQuestions": len(s.state.Questions),
	})
	for i := range s.participants {
		h.sendNextQuestion(ctx, s, &s.participants[i])
	}
	h.e.checkpoint(ctx, s)
}
