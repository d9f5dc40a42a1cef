package game

import (
	"context"
	"encoding/json"

	"github.com/neo/quizrush_backend/internal/bus"
	"github.com/neo/quizrush_backend/internal/logging"
)

// gameEventPayload covers every client game event the gateway forwards; the
// fields each event actually uses are a subset
type gameEventPayload struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
	QuestionID    string `json:"questionId"`
	OptionID      string `json:"optionId"`
}

// HandleInbound routes one gateway-forwarded client event into the engine.
// Unknown events and malformed payloads are logged and dropped; the engine
// never errors back into the gateway.
func (e *Engine) HandleInbound(ctx context.Context, msg bus.InboundMessage) {
	var p gameEventPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		logging.Error("Dropping malformed client event", map[string]interface{}{
			"event": msg.Event,
			"error": err.Error(),
		})
		return
	}

	switch msg.Event {
	case InboundAnswerSubmit:
		e.HandleAnswer(ctx, p.SessionID, p.ParticipantID, p.QuestionID, p.OptionID)
	case InboundQuestionSkip:
		e.HandleSkip(ctx, p.SessionID, p.ParticipantID)
	case InboundPracticeNext, InboundTimeAttackNext, InboundQuickDuelFirst:
		e.HandleNextQuestion(ctx, p.SessionID, p.ParticipantID)
	default:
		logging.Debug("Ignoring unhandled client event", map[string]interface{}{
			"event": msg.Event,
		})
	}
}

// Subscribe attaches the engine to the gateway's inbound channel until ctx
// is cancelled
func (e *Engine) Subscribe(ctx context.Context, b *bus.Bus) {
	b.SubscribeInbound(ctx, func(msg bus.InboundMessage) {
		e.HandleInbound(ctx, msg)
	})
}
