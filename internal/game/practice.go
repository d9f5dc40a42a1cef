package game

import (
	"context"

	"github.com/neo/quizrush_backend/internal/live"
	"github.com/neo/quizrush_backend/internal/types"
)

// practiceHandler serves a single human at the client's pace and replies to
// every answer with full feedback. The server still detects completion: the
// game ends when the last question has been answered, not when the client
// stops asking.
type practiceHandler struct {
	baseHandler
	e *Engine
}

func (h *practiceHandler) onStart(ctx context.Context, s *session) {
	p := &s.participants[0]
	h.e.bus.EmitToUsers(ctx, []string{p.UserID}, EventPracticeStarted, map[string]interface{}{
		"sessionId":      s.id,
		"participantId":  p.ID,
		"totalQuestions": len(s.state.Questions),
	})
}

// onNextQuestion serves the current question exactly once per progression
// step: a resend while the question is still outstanding is dropped, so the
// client can retry without advancing.
func (h *practiceHandler) onNextQuestion(ctx context.Context, s *session, participantID string) {
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

	q := s.state.CurrentQuestionFor(participantID)
	if q == nil {
		h.e.finishGame(ctx, s)
		return
	}

	s.state.QuestionSentAt[participantID] = nowMillis()
	h.e.checkpoint(ctx, s)

	h.e.bus.EmitToParticipants(ctx, []string{participantID}, EventQuestionNew, map[string]interface{}{
		"question":       q.Public(),
		"questionNumber": s.state.UserProgress[participantID] + 1,
	})
}

func (h *practiceHandler) onAnswer(ctx context.Context, s *session, participantID, questionID, optionID string) {
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
	h.e.checkpoint(ctx, s)

	h.e.bus.EmitToParticipants(ctx, []string{participantID}, EventAnswerFeedback, map[string]interface{}{
		"correct":         correct,
		"correctOptionId": q.CorrectOptionID,
		"explanation":     q.Explanation,
		"learningTip":     q.LearningTip,
	})

	if s.state.UserProgress[participantID] >= len(s.state.Questions) {
		h.e.finishGame(ctx, s)
	}
}

// onGameEnd sends the participant their results sequence rather than the
// score map
func (h *practiceHandler) onGameEnd(ctx context.Context, s *session, finalScores map[string]int) {
	p := &s.participants[0]
	h.e.bus.EmitToParticipants(ctx, []string{p.ID}, EventPracticeFinished, map[string]interface{}{
		"sessionId": s.id,
		"score":     finalScores[p.ID],
		"results":   s.state.Results[p.ID],
	})
}
