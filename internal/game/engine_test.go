package game

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo/quizrush_backend/internal/bot"
	"github.com/neo/quizrush_backend/internal/bus"
	"github.com/neo/quizrush_backend/internal/types"
)

func TestRehydrationAfterRestart(t *testing.T) {
	te := newTestEngine()
	alice := te.db.addUser("alice", 1200)
	bob := te.db.addUser("bob", 1200)
	te.db.addQuestions(3)
	ctx := context.Background()

	sess, parts, err := te.engine.StartQuickDuel(ctx, []string{alice.ID, bob.ID}, 0, 5, types.DifficultyEasy)
	require.NoError(t, err)
	s := te.actorFor(sess.ID)
	drain(s)

	pa := participantFor(parts, alice.ID)
	te.engine.HandleAnswer(ctx, sess.ID, pa.ID, "q0", "q0-right")
	drain(s)

	// Process dies; the session row and the live-state checkpoint survive
	te.engine.Shutdown()
	assert.Nil(t, te.actorFor(sess.ID))
	assert.True(t, te.live.has(sess.ID))

	fresh := NewEngine(DefaultConfig(), te.db, te.live, te.timers, te.bus, bot.New())
	fresh.HandleAnswer(ctx, sess.ID, pa.ID, "q1", "q1-right")

	fresh.mu.RLock()
	rehydrated := fresh.sessions[sess.ID]
	fresh.mu.RUnlock()
	require.NotNil(t, rehydrated)
	drain(rehydrated)

	// Score carried across the restart and kept moving
	assert.Equal(t, 20, rehydrated.state.Scores[pa.ID])
	assert.Equal(t, 2, rehydrated.state.UserProgress[pa.ID])
}

func TestRehydrationRearmsBotAnswers(t *testing.T) {
	te := newTestEngine()
	alice := te.db.addUser("alice", 1200)
	te.db.addQuestions(3)
	ctx := context.Background()

	sess, parts, err := te.engine.StartQuickDuel(ctx, []string{alice.ID}, 1, 5, types.DifficultyEasy)
	require.NoError(t, err)
	drain(te.actorFor(sess.ID))

	te.engine.Shutdown()
	require.Nil(t, te.actorFor(sess.ID))

	// The restarted process picks the session up on the next human event.
	// The bot's pending answer only ever lived in the dead process.
	fresh := NewEngine(DefaultConfig(), te.db, te.live, te.timers, te.bus, bot.New())
	pa := participantFor(parts, alice.ID)
	fresh.HandleAnswer(ctx, sess.ID, pa.ID, "q0", "q0-right")

	fresh.mu.RLock()
	s := fresh.sessions[sess.ID]
	fresh.mu.RUnlock()
	require.NotNil(t, s)
	drain(s)

	// The bot has its answer delay armed again on the rehydrated actor
	s.mu.Lock()
	pending := len(s.timers)
	s.mu.Unlock()
	assert.Equal(t, 1, pending)
}

func TestRehydrationRefusesNonActiveSession(t *testing.T) {
	te := newTestEngine()
	alice := te.db.addUser("alice", 1200)
	bob := te.db.addUser("bob", 1200)
	te.db.addQuestions(3)
	ctx := context.Background()

	sess, _, err := te.engine.StartQuickDuel(ctx, []string{alice.ID, bob.ID}, 0, 5, types.DifficultyEasy)
	require.NoError(t, err)
	drain(te.actorFor(sess.ID))

	fireGameEnd(t, te, sess.ID)
	require.Nil(t, te.actorFor(sess.ID))

	// A straggler event for the finished session cannot resurrect it
	te.engine.HandleAnswer(ctx, sess.ID, "p", "q0", "q0-right")
	assert.Nil(t, te.actorFor(sess.ID))
}

func TestStartValidation(t *testing.T) {
	te := newTestEngine()
	te.db.addQuestions(3)
	ctx := context.Background()

	_, _, err := te.engine.StartQuickDuel(ctx, nil, 0, 5, types.DifficultyEasy)
	assert.True(t, types.IsValidation(err))

	alice := te.db.addUser("alice", 1200)
	_, _, err = te.engine.StartQuickDuel(ctx, []string{alice.ID}, 1, 0, types.DifficultyEasy)
	assert.True(t, types.IsValidation(err))

	_, _, err = te.engine.StartQuickDuel(ctx, []string{alice.ID}, 1, 5, "IMPOSSIBLE")
	assert.True(t, types.IsValidation(err))

	_, _, err = te.engine.StartQuickDuel(ctx, []string{"ghost"}, 1, 5, "")
	assert.True(t, types.IsNotFound(err))
}

func TestDifficultyDefaultsFromRating(t *testing.T) {
	te := newTestEngine()
	strong := te.db.addUser("strong", 1700)
	sparring := te.db.addUser("sparring", 1650)
	te.db.addQuestions(3)
	ctx := context.Background()

	sess, _, err := te.engine.StartQuickDuel(ctx, []string{strong.ID, sparring.ID}, 0, 5, "")
	require.NoError(t, err)
	defer te.engine.Shutdown()

	assert.Equal(t, types.DifficultyHard, sess.Difficulty)
}

func TestHandleInboundRouting(t *testing.T) {
	te := newTestEngine()
	alice := te.db.addUser("alice", 1200)
	bob := te.db.addUser("bob", 1200)
	te.db.addQuestions(3)
	ctx := context.Background()

	sess, parts, err := te.engine.StartQuickDuel(ctx, []string{alice.ID, bob.ID}, 0, 5, types.DifficultyEasy)
	require.NoError(t, err)
	s := te.actorFor(sess.ID)
	drain(s)

	pa := participantFor(parts, alice.ID)
	raw, err := json.Marshal(map[string]string{
		"sessionId":     sess.ID,
		"participantId": pa.ID,
		"questionId":    "q0",
		"optionId":      "q0-right",
	})
	require.NoError(t, err)

	te.engine.HandleInbound(ctx, bus.InboundMessage{Event: InboundAnswerSubmit, Payload: raw})
	drain(s)
	assert.Equal(t, 10, s.state.Scores[pa.ID])

	te.engine.HandleInbound(ctx, bus.InboundMessage{Event: InboundQuestionSkip, Payload: raw})
	drain(s)
	assert.Equal(t, 2, s.state.UserProgress[pa.ID])

	// Unknown events and malformed payloads are dropped without mutation
	te.engine.HandleInbound(ctx, bus.InboundMessage{Event: "mystery:event", Payload: raw})
	te.engine.HandleInbound(ctx, bus.InboundMessage{Event: InboundAnswerSubmit, Payload: []byte("{broken")})
	drain(s)
	assert.Equal(t, 2, s.state.UserProgress[pa.ID])
}

func TestScoresKeyedByFullParticipantSet(t *testing.T) {
	te := newTestEngine()
	alice := te.db.addUser("alice", 1200)
	te.db.addQuestions(3)
	ctx := context.Background()

	sess, parts, err := te.engine.StartQuickDuel(ctx, []string{alice.ID}, 2, 5, types.DifficultyEasy)
	require.NoError(t, err)
	defer te.engine.Shutdown()

	s := te.actorFor(sess.ID)
	require.NotNil(t, s)
	drain(s)

	require.Len(t, parts, 3)
	assert.Len(t, s.state.Scores, 3)
	for _, p := range parts {
		_, ok := s.state.Scores[p.ID]
		assert.True(t, ok, "missing score slot for %s", p.DisplayName)
	}
}
