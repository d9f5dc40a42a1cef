package game

import (
	"context"

	"github.com/neo/quizrush_backend/internal/types"
)

// modeHandler is the per-mode capability set. Every method runs on the
// session actor goroutine; implementations mutate s.state freely and
// checkpoint afterwards. The dispatcher in the engine is the only
// polymorphic surface.
type modeHandler interface {
	onStart(ctx context.Context, s *session)
	onRehydrate(ctx context.Context, s *session)
	onAnswer(ctx context.Context, s *session, participantID, questionID, optionID string)
	onSkip(ctx context.Context, s *session, participantID string)
	onNextQuestion(ctx context.Context, s *session, participantID string)
	onQuestionTimeout(ctx context.Context, s *session, questionID string)
	onAdvance(ctx context.Context, s *session, nextIndex int)
	onGameEnd(ctx context.Context, s *session, finalScores map[string]int)
}

// baseHandler supplies no-op defaults for events a mode does not use.
// Unexpected deliveries are dropped without mutation.
type baseHandler struct{}

func (baseHandler) onRehydrate(ctx context.Context, s *session)                          {}
func (baseHandler) onSkip(ctx context.Context, s *session, participantID string)         {}
func (baseHandler) onNextQuestion(ctx context.Context, s *session, participantID string) {}
func (baseHandler) onQuestionTimeout(ctx context.Context, s *session, questionID string) {}
func (baseHandler) onAdvance(ctx context.Context, s *session, nextIndex int)             {}

func (e *Engine) handlerFor(mode types.GameMode) modeHandler {
	switch mode {
	case types.ModeQuickDuel:
		return &quickDuelHandler{e: e, scoreEvent: EventScoreUpdate, endEvent: EventGameEnd}
	case types.ModeFastestFingerFirst:
		return &fastestFingerHandler{e: e}
	case types.ModePractice:
		return &practiceHandler{e: e}
	case types.ModeTimeAttack:
		return &timeAttackHandler{e: e}
	case types.ModeGroupPlay:
		return &groupPlayHandler{quickDuelHandler{e: e, scoreEvent: EventGroupGameScore, endEvent: EventGroupGameFinished}}
	default:
		return nil
	}
}
