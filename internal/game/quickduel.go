package game

import (
	"context"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/live"
	"github.com/neo/quizrush_backend/internal/types"
)

const questionAward = 10

// quickDuelHandler runs per-participant progression: every participant works
// through the shared question list at their own pace, and only the
// whole-game timer ends play. Group play reuses it with room-wide event
// names.
type quickDuelHandler struct {
	baseHandler
	e          *Engine
	scoreEvent string
	endEvent   string
}

func (h *quickDuelHandler) onStart(ctx context.Context, s *session) {
	for _, p := range s.humans() {
		h.e.bus.EmitToUsers(ctx, []string{p.UserID}, EventMatchFound, map[string]interface{}{
			"sessionId":     s.id,
			"participantId": p.ID,
			"mode":          s.mode.String(),
			"difficulty":    s.state.Difficulty.String(),
			"endTime":       s.state.EndTime,
			"opponents":     opponentNames(s, p.ID),
		})
	}
	for i := range s.participants {
		h.sendNextQuestion(ctx, s, &s.participants[i])
	}
	h.e.checkpoint(ctx, s)
}

// onRehydrate re-arms the simulated opponents after a process restart. Bot
// answers are in-process delayed calls, so a rehydrated session would
// otherwise stall every bot on its current question forever.
func (h *quickDuelHandler) onRehydrate(ctx context.Context, s *session) {
	for i := range s.participants {
		p := &s.participants[i]
		if !p.IsBot {
			continue
		}
		if q := s.state.CurrentQuestionFor(p.ID); q != nil {
			h.e.scheduleBotAnswer(s, p, q, 0)
		}
	}
}

// sendNextQuestion serves the participant's current question: humans get a
// stripped question:new, bots get a simulated answer scheduled after their
// decision delay. An exhausted list notifies the participant and leaves the
// game running until the whole-game timer.
func (h *quickDuelHandler) sendNextQuestion(ctx context.Context, s *session, p *database.Participant) {
	q := s.state.CurrentQuestionFor(p.ID)
	if q == nil {
		if !p.IsBot {
			h.e.bus.EmitToParticipants(ctx, []string{p.ID}, EventParticipantFinished, map[string]interface{}{
				"sessionId":     s.id,
				"participantId": p.ID,
			})
		}
		return
	}

	s.state.QuestionSentAt[p.ID] = nowMillis()
	if p.IsBot {
		h.e.scheduleBotAnswer(s, p, q, 0)
		return
	}

	h.e.bus.EmitToParticipants(ctx, []string{p.ID}, EventQuestionNew, map[string]interface{}{
		"question":       q.Public(),
		"questionNumber": s.state.UserProgress[p.ID] + 1,
	})
}

func (h *quickDuelHandler) onAnswer(ctx context.Context, s *session, participantID, questionID, optionID string) {
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
	s.state.Results[participantID] = append(s.state.Results[participantID], live.AnswerRecord{
		QuestionID: q.ID,
		TimeTaken:  timeTaken,
		Action:     types.ActionAnswered,
		Correct:    correct,
	})

	if correct {
		s.state.Scores[participantID] += questionAward
		h.e.bus.EmitToRoom(ctx, s.id, h.scoreEvent, map[string]interface{}{
			"scores": s.state.Scores,
		})
	}

	s.state.UserProgress[participantID]++
	h.sendNextQuestion(ctx, s, p)
	h.e.checkpoint(ctx, s)
}

func (h *quickDuelHandler) onSkip(ctx context.Context, s *session, participantID string) {
	if s.finished {
		return
	}
	p := s.participant(participantID)
	if p == nil {
		return
	}
	q := s.state.CurrentQuestionFor(participantID)
	if q == nil {
		return
	}

	now := nowMillis()
	var timeTaken int64
	if sentAt := s.state.QuestionSentAt[participantID]; sentAt > 0 {
		timeTaken = now - sentAt
	}
	delete(s.state.QuestionSentAt, participantID)

	s.state.Results[participantID] = append(s.state.Results[participantID], live.AnswerRecord{
		QuestionID: q.ID,
		TimeTaken:  timeTaken,
		Action:     types.ActionSkipped,
		Correct:    false,
	})

	s.state.UserProgress[participantID]++
	h.sendNextQuestion(ctx, s, p)
	h.e.checkpoint(ctx, s)
}

// onNextQuestion re-serves the participant's current question after a
// reconnect. It never advances progress; the delivery stamp is only set when
// the question had not been served yet.
func (h *quickDuelHandler) onNextQuestion(ctx context.Context, s *session, participantID string) {
	if s.finished {
		return
	}
	p := s.participant(participantID)
	if p == nil || p.IsBot {
		return
	}
	q := s.state.CurrentQuestionFor(participantID)
	if q == nil {
		h.e.bus.EmitToParticipants(ctx, []string{participantID}, EventParticipantFinished, map[string]interface{}{
			"sessionId":     s.id,
			"participantId": participantID,
		})
		return
	}

	if s.state.QuestionSentAt[participantID] == 0 {
		s.state.QuestionSentAt[participantID] = nowMillis()
		h.e.checkpoint(ctx, s)
	}
	h.e.bus.EmitToParticipants(ctx, []string{participantID}, EventQuestionNew, map[string]interface{}{
		"question":       q.Public(),
		"questionNumber": s.state.UserProgress[participantID] + 1,
	})
}

func (h *quickDuelHandler) onGameEnd(ctx context.Context, s *session, finalScores map[string]int) {
	h.e.bus.EmitToRoom(ctx, s.id, h.endEvent, map[string]interface{}{
		"sessionId": s.id,
		"scores":    finalScores,
		"results":   s.state.Results,
	})
}

func opponentNames(s *session, selfID string) []string {
	var names []string
	for _, p := range s.participants {
		if p.ID != selfID {
			names = append(names, p.DisplayName)
		}
	}
	return names
}
