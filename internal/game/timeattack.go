package game

import (
	"context"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/live"
	"github.com/neo/quizrush_backend/internal/types"
)

// timeAttackHandler runs a solo sprint against the session countdown. The
// client requests the first question; after that every answer auto-serves
// the next one until the deadline fires or the pool runs dry.
type timeAttackHandler struct {
	baseHandler
	e *Engine
}

func (h *timeAttackHandler) onStart(ctx context.Context, s *session) {
	p := &s.participants[0]
	h.e.bus.EmitToUsers(ctx, []string{p.UserID}, EventTimeAttackStarted, map[string]interface{}{
		"sessionId":     s.id,
		"participantId": p.ID,
		"endTime":       s.state.EndTime,
	})
}

func (h *timeAttackHandler) onNextQuestion(ctx context.Context, s *session, participantID string) {
	if s.finished {
		return
	}
	p := s.participant(participantID)
	if p == nil {
		return
	}
	if s.state.QuestionSentAt[participantID] != 0 {
		return
	}
	h.serveCurrent(ctx, s, p)
	h.e.checkpoint(ctx, s)
}

func (h *timeAttackHandler) onAnswer(ctx context.Context, s *session, participantID, questionID, optionID string) {
	if s.finished {
		return
	}
	p := s.participant(participantID)
	if p == nil {
		return
	}
	q := s.state.CurrentQuestionFor(participantID)
	if q == nil || q.ID != questionID {
		return
	}

	now := nowMillis()
	var timeTaken int64
	if sentAt := s.state.QuestionSentAt[participantID]; sentAt > 0 {
		timeTaken = now - sentAt
	}
	delete(s.state.QuestionSentAt, participantID)

	correct := optionID == q.CorrectOptionID
	if correct {
		s.state.Scores[participantID] += questionAward
	}
	s.state.Results[participantID] = append(s.state.Results[participantID], live.AnswerRecord{
		QuestionID: q.ID,
		TimeTaken:  timeTaken,
		Action:     types.ActionAnswered,
		Correct:    correct,
	})
	s.state.UserProgress[participantID]++

	h.e.bus.EmitToParticipants(ctx, []string{participantID}, EventTimeAttackScore, map[string]interface{}{
		"score": s.state.Scores[participantID],
	})

	h.serveCurrent(ctx, s, p)
	h.e.checkpoint(ctx, s)
}

// serveCurrent emits the participant's current question, or ends the game on
// pool exhaustion
func (h *timeAttackHandler) serveCurrent(ctx context.Context, s *session, p *database.Participant) {
	if s.finished {
		return
	}
	q := s.state.CurrentQuestionFor(p.ID)
	if q == nil {
		h.e.finishGame(ctx, s)
		return
	}
	s.state.QuestionSentAt[p.ID] = nowMillis()
	h.e.bus.EmitToParticipants(ctx, []string{p.ID}, EventQuestionNew, map[string]interface{}{
		"question":       q.Public(),
		"questionNumber": s.state.UserProgress[p.ID] + 1,
	})
}

func (h *timeAttackHandler) onGameEnd(ctx context.Context, s *session, finalScores map[string]int) {
	p := &s.participants[0]
	h.e.bus.EmitToParticipants(ctx, []string{p.ID}, EventTimeAttackFinished, map[string]interface{}{
		"sessionId": s.id,
		"scores":    finalScores,
		"results":   s.state.Results,
	})
}
