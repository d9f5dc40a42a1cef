package game

import (
	"context"
	"time"

	"github.com/neo/quizrush_backend/internal/live"
	"github.com/neo/quizrush_backend/internal/logging"
	"github.com/neo/quizrush_backend/internal/timer"
	"github.com/neo/quizrush_backend/internal/types"
)

// Grace before the first question so clients can render the match screen
const ffStartGrace = 3 * time.Second

// Inter-question gaps. Both are durable jobs, not in-process sleeps, so a
// process restart mid-gap still advances the game.
const (
	ffAdvanceAfterPoint   = 2 * time.Second
	ffAdvanceAfterTimeout = 1 * time.Second
)

// fastestFingerHandler runs the shared-clock race: one question at a time
// for the whole room, one point to the first correct answer, a cancellable
// timeout job per question.
type fastestFingerHandler struct {
	baseHandler
	e *Engine
}

func (h *fastestFingerHandler) onStart(ctx context.Context, s *session) {
	s.later(ffStartGrace, func() {
		bg := context.Background()
		for _, p := range s.humans() {
			h.e.bus.EmitToUsers(bg, []string{p.UserID}, EventFFMatchFound, map[string]interface{}{
				"sessionId":     s.id,
				"participantId": p.ID,
				"opponents":     opponentNames(s, p.ID),
				"timeLimit":     s.state.TimePerQuestion,
			})
		}
		h.startQuestion(bg, s)
	})
}

// onRehydrate restores the in-process side of a live race after a restart.
// The durable timeout and advance jobs survive on their own; only the bot
// answers are in-process delayed calls and need re-arming for whatever is
// left of the open question window.
func (h *fastestFingerHandler) onRehydrate(ctx context.Context, s *session) {
	st := s.state
	if st.CurrentQuestionIndex >= len(st.Questions) {
		return
	}
	if st.QuestionStartTime == 0 {
		// Restarted inside the pre-game grace: the first question was
		// never opened
		h.startQuestion(ctx, s)
		return
	}

	remaining := st.QuestionStartTime + st.TimePerQuestion - nowMillis()
	if remaining <= 0 {
		// Window already closed; the durable timeout or advance job
		// moves the game forward
		return
	}

	q := &st.Questions[st.CurrentQuestionIndex]
	limit := time.Duration(remaining) * time.Millisecond
	for i := range s.participants {
		p := &s.participants[i]
		if p.IsBot && !st.HasAnswered(p.ID) {
			h.e.scheduleBotAnswer(s, p, q, limit)
		}
	}
}

// startQuestion opens the current question window: stamps the shared clock,
// clears the arrival log, broadcasts the stripped question, arms the
// cancellable timeout job, and schedules bot answers under the question
// deadline. Past the batch or the whole-game deadline, it ends the game
// instead.
func (h *fastestFingerHandler) startQuestion(ctx context.Context, s *session) {
	if s.finished {
		return
	}
	st := s.state
	if st.CurrentQuestionIndex >= len(st.Questions) || time.Now().After(st.EndTime) {
		h.e.finishGame(ctx, s)
		return
	}

	q := &st.Questions[st.CurrentQuestionIndex]
	st.QuestionStartTime = nowMillis()
	st.QuestionAnswers = nil
	h.e.checkpoint(ctx, s)

	h.e.bus.EmitToRoom(ctx, s.id, EventFFNewQuestion, map[string]interface{}{
		"question":       q.Public(),
		"questionNumber": st.CurrentQuestionIndex + 1,
		"totalQuestions": len(st.Questions),
		"timeLimit":      st.TimePerQuestion,
	})

	limit := time.Duration(st.TimePerQuestion) * time.Millisecond
	jobID := ffTimeoutJobID(s.id, q.ID)
	if err := h.e.timers.Schedule(ctx, timer.QueueGameTimers, timer.GameTimerPayload{
		SessionID:  s.id,
		QuestionID: q.ID,
	}, limit, jobID); err != nil {
		logging.Error("Failed to schedule question timeout", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}
	if err := h.e.live.SetTimerJob(ctx, s.id, jobID, time.Until(st.EndTime)+liveStateSlack); err != nil {
		logging.Error("Failed to store timer job id", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}

	for i := range s.participants {
		if s.participants[i].IsBot {
			h.e.scheduleBotAnswer(s, &s.participants[i], q, limit)
		}
	}
}

func (h *fastestFingerHandler) onAnswer(ctx context.Context, s *session, participantID, questionID, optionID string) {
	if s.finished {
		return
	}
	st := s.state
	if st.CurrentQuestionIndex >= len(st.Questions) {
		return
	}
	q := &st.Questions[st.CurrentQuestionIndex]
	if q.ID != questionID {
		return
	}
	if s.participant(participantID) == nil || st.HasAnswered(participantID) {
		return
	}
	now := nowMillis()
	if now > st.QuestionStartTime+st.TimePerQuestion {
		return
	}

	correct := optionID == q.CorrectOptionID
	first := correct && !hasCorrectAnswer(st.QuestionAnswers)

	st.QuestionAnswers = append(st.QuestionAnswers, live.QuestionAnswer{
		ParticipantID: participantID,
		OptionID:      optionID,
		Timestamp:     now,
		Correct:       correct,
	})
	st.Results[participantID] = append(st.Results[participantID], live.AnswerRecord{
		QuestionID: q.ID,
		TimeTaken:  now - st.QuestionStartTime,
		Action:     types.ActionAnswered,
		Correct:    correct,
	})

	h.e.bus.EmitToRoom(ctx, s.id, EventFFPlayerAnswered, map[string]interface{}{
		"participantId": participantID,
		"correct":       correct,
	})

	if first {
		st.Scores[participantID]++
		h.e.bus.EmitToRoom(ctx, s.id, EventFFPointAwarded, map[string]interface{}{
			"participantId":   participantID,
			"allScores":       st.Scores,
			"correctOptionId": q.CorrectOptionID,
		})
		h.cancelQuestionTimer(ctx, s)
		h.scheduleAdvance(ctx, s, st.CurrentQuestionIndex+1, ffAdvanceAfterPoint)
	}

	h.e.checkpoint(ctx, s)
}

// onQuestionTimeout closes a question nobody answered correctly. A stale
// delivery for a question that is no longer current is a no-op.
func (h *fastestFingerHandler) onQuestionTimeout(ctx context.Context, s *session, questionID string) {
	if s.finished {
		return
	}
	st := s.state
	if st.CurrentQuestionIndex >= len(st.Questions) {
		return
	}
	q := &st.Questions[st.CurrentQuestionIndex]
	if q.ID != questionID {
		return
	}

	for _, p := range s.participants {
		if !st.HasAnswered(p.ID) {
			st.Results[p.ID] = append(st.Results[p.ID], live.AnswerRecord{
				QuestionID: q.ID,
				TimeTaken:  st.TimePerQuestion,
				Action:     types.ActionTimeout,
				Correct:    false,
			})
		}
	}

	h.e.bus.EmitToRoom(ctx, s.id, EventFFQuestionTimeout, map[string]interface{}{
		"questionNumber":  st.CurrentQuestionIndex + 1,
		"correctOptionId": q.CorrectOptionID,
	})

	if err := h.e.live.ClearTimerJob(ctx, s.id); err != nil {
		logging.Error("Failed to clear timer job id", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}
	h.scheduleAdvance(ctx, s, st.CurrentQuestionIndex+1, ffAdvanceAfterTimeout)
	h.e.checkpoint(ctx, s)
}

// onAdvance moves the shared clock to the target question. Redeliveries of
// an already-applied advance are dropped, which keeps the at-least-once
// timer service safe.
func (h *fastestFingerHandler) onAdvance(ctx context.Context, s *session, nextIndex int) {
	if s.finished || s.state.CurrentQuestionIndex >= nextIndex {
		return
	}
	s.state.CurrentQuestionIndex = nextIndex
	h.startQuestion(ctx, s)
}

func (h *fastestFingerHandler) onGameEnd(ctx context.Context, s *session, finalScores map[string]int) {
	h.e.bus.EmitToRoom(ctx, s.id, EventFFGameEnd, map[string]interface{}{
		"sessionId": s.id,
		"scores":    finalScores,
		"results":   s.state.Results,
	})
}

func (h *fastestFingerHandler) scheduleAdvance(ctx context.Context, s *session, nextIndex int, delay time.Duration) {
	if err := h.e.timers.Schedule(ctx, timer.QueueGameTimers, timer.GameTimerPayload{
		SessionID:  s.id,
		QuestionID: timer.JobNextQuestion,
	}, delay, ffAdvanceJobID(s.id, nextIndex)); err != nil {
		logging.Error("Failed to schedule question advance", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}
}

// cancelQuestionTimer removes the pending per-question timeout job recorded
// in the live store's timer slot
func (h *fastestFingerHandler) cancelQuestionTimer(ctx context.Context, s *session) {
	jobID, err := h.e.live.GetTimerJob(ctx, s.id)
	if err != nil || jobID == "" {
		return
	}
	if err := h.e.timers.Cancel(ctx, timer.QueueGameTimers, jobID); err != nil {
		logging.Error("Failed to cancel question timeout", map[string]interface{}{
			"session_id": s.id,
			"job_id":     jobID,
			"error":      err.Error(),
		})
	}
	h.e.live.ClearTimerJob(ctx, s.id)
}

func hasCorrectAnswer(answers []live.QuestionAnswer) bool {
	for _, a := range answers {
		if a.Correct {
			return true
		}
	}
	return false
}
