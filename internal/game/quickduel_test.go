package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/timer"
	"github.com/neo/quizrush_backend/internal/types"
)

func participantFor(parts []database.Participant, userID string) *database.Participant {
	for i := range parts {
		if parts[i].UserID == userID {
			return &parts[i]
		}
	}
	return nil
}

func fireGameEnd(t *testing.T, te *testEngine, sessionID string) {
	t.Helper()
	raw, err := json.Marshal(timer.GameTimerPayload{SessionID: sessionID, QuestionID: timer.JobGameEnd})
	require.NoError(t, err)
	s := te.actorFor(sessionID)
	require.NotNil(t, s)
	require.NoError(t, te.engine.HandleGameTimer(context.Background(), gameEndJobID(sessionID), raw))
	drain(s)
}

func TestQuickDuelAnswerSkipWrongThenGameEnd(t *testing.T) {
	te := newTestEngine()
	alice := te.db.addUser("alice", 1200)
	bob := te.db.addUser("bob", 1200)
	te.db.addQuestions(3)
	ctx := context.Background()

	sess, parts, err := te.engine.StartQuickDuel(ctx, []string{alice.ID, bob.ID}, 0, 5, "")
	require.NoError(t, err)
	require.Len(t, parts, 2)

	s := te.actorFor(sess.ID)
	require.NotNil(t, s)
	drain(s)

	// Both humans got their match notification and first question
	assert.Equal(t, 2, te.bus.count(EventMatchFound))
	assert.Equal(t, 2, te.bus.count(EventQuestionNew))

	pa := participantFor(parts, alice.ID)

	// Correct, skip, wrong
	te.engine.HandleAnswer(ctx, sess.ID, pa.ID, "q0", "q0-right")
	te.engine.HandleSkip(ctx, sess.ID, pa.ID)
	te.engine.HandleAnswer(ctx, sess.ID, pa.ID, "q2", "q2-wrong")
	drain(s)

	assert.Equal(t, 10, s.state.Scores[pa.ID])
	assert.Equal(t, 3, s.state.UserProgress[pa.ID])

	records := s.state.Results[pa.ID]
	require.Len(t, records, 3)
	assert.Equal(t, types.ActionAnswered, records[0].Action)
	assert.True(t, records[0].Correct)
	assert.Equal(t, types.ActionSkipped, records[1].Action)
	assert.Equal(t, types.ActionAnswered, records[2].Action)
	assert.False(t, records[2].Correct)

	// Exhausting the batch told alice, but the game keeps running
	assert.Equal(t, 1, te.bus.count(EventParticipantFinished))
	assert.Equal(t, 0, te.bus.count(EventGameEnd))

	fireGameEnd(t, te, sess.ID)

	ends := te.bus.events(EventGameEnd)
	require.Len(t, ends, 1)
	scores := ends[0].payload["scores"].(map[string]interface{})
	assert.EqualValues(t, 10, scores[pa.ID])

	stored, err := te.db.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinished, stored.Status)
	assert.False(t, te.live.has(sess.ID))

	// Alice won 10-0, so the symmetric update moves both ratings by K/2
	aliceAfter, _ := te.db.GetUserRating(alice.ID)
	bobAfter, _ := te.db.GetUserRating(bob.ID)
	assert.Equal(t, 1216, aliceAfter)
	assert.Equal(t, 1184, bobAfter)
}

func TestQuickDuelStaleAnswerDropped(t *testing.T) {
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
	// Redelivery of the same answer: progress moved on, q0 is no longer current
	te.engine.HandleAnswer(ctx, sess.ID, pa.ID, "q0", "q0-right")
	// An answer for a question that was never current
	te.engine.HandleAnswer(ctx, sess.ID, pa.ID, "q9", "q9-right")
	// An unknown participant
	te.engine.HandleAnswer(ctx, sess.ID, "nobody", "q1", "q1-right")
	drain(s)

	assert.Equal(t, 10, s.state.Scores[pa.ID])
	assert.Equal(t, 1, s.state.UserProgress[pa.ID])
	assert.Len(t, s.state.Results[pa.ID], 1)
}

func TestQuickDuelNextQuestionResendsWithoutAdvancing(t *testing.T) {
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
	before := te.bus.count(EventQuestionNew)

	te.engine.HandleNextQuestion(ctx, sess.ID, pa.ID)
	te.engine.HandleNextQuestion(ctx, sess.ID, pa.ID)
	drain(s)

	// Resends re-serve the same question; progress never moves
	assert.Equal(t, before+2, te.bus.count(EventQuestionNew))
	assert.Equal(t, 0, s.state.UserProgress[pa.ID])
}

func TestQuickDuelUnknownSessionIgnored(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	te.engine.HandleAnswer(ctx, "no-such-session", "p1", "q0", "q0-right")
	te.engine.HandleSkip(ctx, "no-such-session", "p1")
	te.engine.HandleNextQuestion(ctx, "no-such-session", "p1")

	assert.Empty(t, te.bus.events(EventScoreUpdate))
}

func TestQuickDuelEmptyPoolCancelsSession(t *testing.T) {
	te := newTestEngine()
	alice := te.db.addUser("alice", 1200)
	bob := te.db.addUser("bob", 1200)
	ctx := context.Background()

	_, _, err := te.engine.StartQuickDuel(ctx, []string{alice.ID, bob.ID}, 0, 5, types.DifficultyEasy)
	require.Error(t, err)
	assert.True(t, types.IsStateConflict(err))

	// Both users were told the match fell through
	assert.Equal(t, 2, te.bus.count(EventGameError))

	sessions, _, err := te.db.ListSessions(database.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, types.StatusCancelled, sessions[0].Status)
}

func TestGroupGameRequiresReadyCountdown(t *testing.T) {
	te := newTestEngine()
	host := te.db.addUser("host", 1200)
	guest := te.db.addUser("guest", 1300)
	te.db.addQuestions(3)
	ctx := context.Background()

	sess, _, err := te.db.CreateSession(database.CreateSessionParams{
		Mode:            types.ModeGroupPlay,
		Difficulty:      types.DifficultyEasy,
		DurationMinutes: 5,
		UserIDs:         []string{host.ID, guest.ID},
		RoomCode:        "ROOM123456",
		HostUserID:      host.ID,
		MinPlayers:      2,
		MaxPlayers:      8,
	})
	require.NoError(t, err)

	// Still in the lobby: activation is a conflict
	err = te.engine.StartGroupGame(ctx, sess.ID)
	assert.True(t, types.IsStateConflict(err))

	require.NoError(t, te.db.SetCountdownStarted(sess.ID, time.Now().UTC()))
	require.NoError(t, te.engine.StartGroupGame(ctx, sess.ID))

	s := te.actorFor(sess.ID)
	require.NotNil(t, s)
	drain(s)

	started := te.bus.events(EventGroupGameStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "room", started[0].target)
	assert.EqualValues(t, 3, started[0].payload["totalQuestions"])

	stored, err := te.db.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, stored.Status)

	// Whole-game timer armed
	assert.True(t, te.timers.pending(gameEndJobID(sess.ID)))
}

func TestGroupGameFinishUsesGroupEvents(t *testing.T) {
	te := newTestEngine()
	host := te.db.addUser("host", 1200)
	guest := te.db.addUser("guest", 1300)
	extra := te.db.addUser("extra", 1100)
	te.db.addQuestions(2)
	ctx := context.Background()

	sess, parts, err := te.db.CreateSession(database.CreateSessionParams{
		Mode:            types.ModeGroupPlay,
		Difficulty:      types.DifficultyEasy,
		DurationMinutes: 5,
		UserIDs:         []string{host.ID, guest.ID, extra.ID},
		RoomCode:        "ROOM123457",
		HostUserID:      host.ID,
		MinPlayers:      2,
		MaxPlayers:      8,
	})
	require.NoError(t, err)
	require.NoError(t, te.db.SetCountdownStarted(sess.ID, time.Now().UTC()))
	require.NoError(t, te.engine.StartGroupGame(ctx, sess.ID))

	s := te.actorFor(sess.ID)
	drain(s)

	pg := participantFor(parts, guest.ID)
	te.engine.HandleAnswer(ctx, sess.ID, pg.ID, "q0", "q0-right")
	drain(s)

	// Score updates go to the whole room under the group event name
	updates := te.bus.events(EventGroupGameScore)
	require.Len(t, updates, 1)
	assert.Empty(t, te.bus.events(EventScoreUpdate))

	ratingBefore, _ := te.db.GetUserRating(guest.ID)
	fireGameEnd(t, te, sess.ID)

	ends := te.bus.events(EventGroupGameFinished)
	require.Len(t, ends, 1)
	scores := ends[0].payload["scores"].(map[string]interface{})
	assert.EqualValues(t, 10, scores[pg.ID])

	// More than two humans: no rating movement
	ratingAfter, _ := te.db.GetUserRating(guest.ID)
	assert.Equal(t, ratingBefore, ratingAfter)
}
