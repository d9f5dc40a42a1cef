package game

import (
	"context"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/logging"
	"github.com/neo/quizrush_backend/internal/rating"
	"github.com/neo/quizrush_backend/internal/timer"
	"github.com/neo/quizrush_backend/internal/types"
)

// finishGame runs the common end-of-game procedure on the session actor:
// cancel pending timers, apply ratings for symmetric 1v1 games, drop the
// live state, persist final scores, emit the mode's terminal event, and
// retire the actor. Reentry is a no-op, so late game-end deliveries are
// harmless.
func (e *Engine) finishGame(ctx context.Context, s *session) {
	if s.finished {
		return
	}
	s.finished = true

	if err := e.timers.Cancel(ctx, timer.QueueGameTimers, gameEndJobID(s.id)); err != nil {
		logging.Error("Failed to cancel game-end job", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}
	if s.mode == types.ModeFastestFingerFirst {
		if jobID, err := e.live.GetTimerJob(ctx, s.id); err == nil && jobID != "" {
			e.timers.Cancel(ctx, timer.QueueGameTimers, jobID)
		}
	}

	finalScores := make(map[string]int, len(s.state.Scores))
	for pid, score := range s.state.Scores {
		finalScores[pid] = score
	}

	if s.mode == types.ModeQuickDuel || s.mode == types.ModeFastestFingerFirst {
		if humans := s.humans(); len(humans) == 2 {
			e.applyRatings(ctx, humans[0], humans[1], finalScores)
		}
	}

	if err := e.live.Delete(ctx, s.id); err != nil {
		logging.Error("Failed to delete live state", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}
	if err := e.db.EndSession(s.id, finalScores); err != nil {
		logging.Error("Failed to persist final scores", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}

	s.handler.onGameEnd(ctx, s, finalScores)

	logging.LogGameEvent("session_finished", s.id, map[string]interface{}{
		"mode":   s.mode.String(),
		"scores": finalScores,
	})

	e.mu.Lock()
	delete(e.sessions, s.id)
	e.mu.Unlock()
	s.close()
}

// applyRatings runs the symmetric Elo update for a two-human competitive
// game. Both new ratings are written in one transaction so the zero-sum
// invariant holds, then the cached leaderboard projections are dropped.
func (e *Engine) applyRatings(ctx context.Context, a, b database.Participant, finalScores map[string]int) {
	oldA, err := e.db.GetUserRating(a.UserID)
	if err != nil {
		logging.Error("Failed to load rating", map[string]interface{}{"user_id": a.UserID, "error": err.Error()})
		return
	}
	oldB, err := e.db.GetUserRating(b.UserID)
	if err != nil {
		logging.Error("Failed to load rating", map[string]interface{}{"user_id": b.UserID, "error": err.Error()})
		return
	}

	outcome := rating.Normalize(finalScores[a.ID], finalScores[b.ID])
	newA, newB := rating.UpdateK(oldA, oldB, outcome, float64(e.cfg.KFactor))

	if err := e.db.UpdateRatings(a.UserID, newA, b.UserID, newB); err != nil {
		logging.Error("Failed to update ratings", map[string]interface{}{
			"user_a": a.UserID,
			"user_b": b.UserID,
			"error":  err.Error(),
		})
		return
	}
	if err := e.live.InvalidateLeaderboards(ctx, a.UserID, b.UserID); err != nil {
		logging.Error("Failed to invalidate leaderboards", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logging.LogGameEvent("ratings_updated", a.SessionID, map[string]interface{}{
		"user_a": a.UserID, "old_a": oldA, "new_a": newA,
		"user_b": b.UserID, "old_b": oldB, "new_b": newB,
	})
}
