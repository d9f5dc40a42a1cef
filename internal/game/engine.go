package game

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/neo/quizrush_backend/internal/bot"
	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/live"
	"github.com/neo/quizrush_backend/internal/logging"
	"github.com/neo/quizrush_backend/internal/timer"
	"github.com/neo/quizrush_backend/internal/types"
)

// liveStateSlack pads the live-state TTL past the whole-game deadline so the
// end-of-game path can still read it after a late timer delivery
const liveStateSlack = 5 * time.Minute

// practiceSafetyMinutes bounds an abandoned practice session; the client
// drives the pace, so without this an orphaned session would never end
const practiceSafetyMinutes = 30

// timeAttackPoolSize is the oversized fetch for a mode that can outrun any
// normal batch within its countdown
const timeAttackPoolSize = 999

// Engine runs the per-mode state machines. One actor goroutine per live
// session owns the mutable state; the engine routes client events, bot
// answers, and timer deliveries onto the right actor.
type Engine struct {
	cfg    Config
	db     database.Store
	live   LiveStore
	timers Timers
	bus    Emitter
	bots   *bot.Agent

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewEngine wires the engine over its collaborators
func NewEngine(cfg Config, db database.Store, liveStore LiveStore, timers Timers, emitter Emitter, bots *bot.Agent) *Engine {
	return &Engine{
		cfg:      cfg,
		db:       db,
		live:     liveStore,
		timers:   timers,
		bus:      emitter,
		bots:     bots,
		sessions: make(map[string]*session),
	}
}

// Shutdown stops every live actor. Pending live state stays checkpointed so
// another process can pick the sessions up.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, s := range e.sessions {
		s.close()
		delete(e.sessions, id)
	}
}

// StartQuickDuel provisions and activates a duel between the given users
// plus botCount simulated opponents. Difficulty defaults to the tier derived
// from the first user's rating.
func (e *Engine) StartQuickDuel(ctx context.Context, userIDs []string, botCount int, durationMinutes int, difficulty types.Difficulty) (*database.Session, []database.Participant, error) {
	return e.startTimedGame(ctx, types.ModeQuickDuel, userIDs, botCount, durationMinutes, difficulty, EventGameError)
}

// StartFastestFinger provisions and activates a fastest-finger race. The
// whole-game duration defaults from configuration, as does the per-question
// clock.
func (e *Engine) StartFastestFinger(ctx context.Context, userIDs []string, botCount int, durationMinutes int, difficulty types.Difficulty) (*database.Session, []database.Participant, error) {
	if durationMinutes <= 0 {
		durationMinutes = e.cfg.FFFDurationMinutes
	}
	return e.startTimedGame(ctx, types.ModeFastestFingerFirst, userIDs, botCount, durationMinutes, difficulty, EventGameError)
}

func (e *Engine) startTimedGame(ctx context.Context, mode types.GameMode, userIDs []string, botCount int, durationMinutes int, difficulty types.Difficulty, errEvent string) (*database.Session, []database.Participant, error) {
	if len(userIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one user required", types.ErrValidation)
	}
	if durationMinutes <= 0 {
		return nil, nil, fmt.Errorf("%w: duration must be positive", types.ErrValidation)
	}

	if difficulty == "" {
		rating, err := e.db.GetUserRating(userIDs[0])
		if err != nil {
			return nil, nil, err
		}
		difficulty = types.DifficultyFromRating(rating)
	} else if !difficulty.IsValid() {
		return nil, nil, fmt.Errorf("%w: difficulty %s", types.ErrValidation, difficulty)
	}

	sess, parts, err := e.db.CreateSession(database.CreateSessionParams{
		Mode:            mode,
		Difficulty:      difficulty,
		DurationMinutes: durationMinutes,
		UserIDs:         userIDs,
		BotCount:        botCount,
		BotRating:       e.cfg.BotDefaultRating,
	})
	if err != nil {
		return nil, nil, err
	}

	st, err := e.buildLiveState(ctx, sess, parts, e.cfg.QuestionBatchSize, nil, errEvent)
	if err != nil {
		return nil, nil, err
	}
	if mode == types.ModeFastestFingerFirst {
		st.TimePerQuestion = e.cfg.FFFQuestionMillis
	}

	if err := e.activate(ctx, sess, parts, st); err != nil {
		return nil, nil, err
	}
	return sess, parts, nil
}

// StartPractice provisions a client-paced practice session for one user with
// exactly numQuestions questions
func (e *Engine) StartPractice(ctx context.Context, userID string, difficulty types.Difficulty, categories []string, numQuestions int) (*database.Session, []database.Participant, error) {
	if !difficulty.IsValid() {
		return nil, nil, fmt.Errorf("%w: difficulty %s", types.ErrValidation, difficulty)
	}
	if numQuestions <= 0 {
		return nil, nil, fmt.Errorf("%w: question count must be positive", types.ErrValidation)
	}

	sess, parts, err := e.db.CreateSession(database.CreateSessionParams{
		Mode:            types.ModePractice,
		Difficulty:      difficulty,
		DurationMinutes: practiceSafetyMinutes,
		UserIDs:         []string{userID},
	})
	if err != nil {
		return nil, nil, err
	}

	st, err := e.buildLiveState(ctx, sess, parts, numQuestions, categories, EventPracticeError)
	if err != nil {
		return nil, nil, err
	}

	if err := e.activate(ctx, sess, parts, st); err != nil {
		return nil, nil, err
	}
	return sess, parts, nil
}

// StartTimeAttack provisions a solo sprint against the session countdown,
// backed by an oversized question pool
func (e *Engine) StartTimeAttack(ctx context.Context, userID string, difficulty types.Difficulty, durationMinutes int) (*database.Session, []database.Participant, error) {
	if !difficulty.IsValid() {
		return nil, nil, fmt.Errorf("%w: difficulty %s", types.ErrValidation, difficulty)
	}
	if durationMinutes <= 0 {
		return nil, nil, fmt.Errorf("%w: duration must be positive", types.ErrValidation)
	}

	sess, parts, err := e.db.CreateSession(database.CreateSessionParams{
		Mode:            types.ModeTimeAttack,
		Difficulty:      difficulty,
		DurationMinutes: durationMinutes,
		UserIDs:         []string{userID},
	})
	if err != nil {
		return nil, nil, err
	}

	st, err := e.buildLiveState(ctx, sess, parts, timeAttackPoolSize, nil, EventTimeAttackError)
	if err != nil {
		return nil, nil, err
	}

	if err := e.activate(ctx, sess, parts, st); err != nil {
		return nil, nil, err
	}
	return sess, parts, nil
}

// StartGroupGame activates a lobby session handed off by the countdown. The
// lobby controller has already cleared the room code.
func (e *Engine) StartGroupGame(ctx context.Context, sessionID string) error {
	sess, err := e.db.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess.Status != types.StatusReadyCountdown {
		return fmt.Errorf("%w: session %s is %s", types.ErrStateConflict, sessionID, sess.Status)
	}

	parts, err := e.db.GetParticipants(sessionID)
	if err != nil {
		return err
	}

	st, err := e.buildLiveState(ctx, sess, parts, e.cfg.QuestionBatchSize, nil, EventGameError)
	if err != nil {
		return err
	}
	return e.activate(ctx, sess, parts, st)
}

// buildLiveState fetches the question batch and initializes the live state.
// An empty pool cancels the session and notifies the users before failing
// the call.
func (e *Engine) buildLiveState(ctx context.Context, sess *database.Session, parts []database.Participant, count int, categories []string, errEvent string) (*live.State, error) {
	questions, err := e.db.FetchQuestionBatch(sess.Difficulty, categories, count)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		if cancelErr := e.db.CancelSession(sess.ID); cancelErr != nil {
			logging.Error("Failed to cancel session with empty question pool", map[string]interface{}{
				"session_id": sess.ID,
				"error":      cancelErr.Error(),
			})
		}
		for _, p := range parts {
			if !p.IsBot {
				e.bus.EmitToUsers(ctx, []string{p.UserID}, errEvent, map[string]interface{}{
					"sessionId": sess.ID,
					"message":   "no questions available for this configuration",
				})
			}
		}
		return nil, fmt.Errorf("%w: empty question pool for tier %s", types.ErrStateConflict, sess.Difficulty)
	}

	pids := make([]string, len(parts))
	for i, p := range parts {
		pids[i] = p.ID
	}
	endTime := time.Now().Add(time.Duration(sess.DurationMinutes) * time.Minute)
	return live.NewState(sess.Mode, sess.Difficulty, questions, pids, endTime), nil
}

// activate flips the session to ACTIVE, checkpoints the initial state, arms
// the whole-game timer, and hands control to the mode handler's onStart on a
// fresh actor.
func (e *Engine) activate(ctx context.Context, sess *database.Session, parts []database.Participant, st *live.State) error {
	if err := e.db.ActivateSession(sess.ID); err != nil {
		return err
	}

	ttl := time.Until(st.EndTime) + liveStateSlack
	if err := e.live.Set(ctx, sess.ID, st, ttl); err != nil {
		return err
	}

	if err := e.timers.Schedule(ctx, timer.QueueGameTimers, timer.GameTimerPayload{
		SessionID:  sess.ID,
		QuestionID: timer.JobGameEnd,
	}, time.Until(st.EndTime), gameEndJobID(sess.ID)); err != nil {
		return err
	}

	s := newSession(sess.ID, sess.Mode, st, parts)
	s.handler = e.handlerFor(sess.Mode)

	e.mu.Lock()
	e.sessions[sess.ID] = s
	e.mu.Unlock()

	logging.LogGameEvent("session_started", sess.ID, map[string]interface{}{
		"mode":         sess.Mode.String(),
		"difficulty":   sess.Difficulty.String(),
		"participants": len(parts),
		"questions":    len(st.Questions),
	})

	s.post(func() { s.handler.onStart(ctx, s) })
	return nil
}

// HandleAnswer routes an answer submission onto the session actor. Unknown
// or terminated sessions are dropped silently.
func (e *Engine) HandleAnswer(ctx context.Context, sessionID, participantID, questionID, optionID string) {
	s := e.actor(ctx, sessionID)
	if s == nil {
		return
	}
	s.post(func() { s.handler.onAnswer(ctx, s, participantID, questionID, optionID) })
}

// HandleSkip routes a skip onto the session actor
func (e *Engine) HandleSkip(ctx context.Context, sessionID, participantID string) {
	s := e.actor(ctx, sessionID)
	if s == nil {
		return
	}
	s.post(func() { s.handler.onSkip(ctx, s, participantID) })
}

// HandleNextQuestion routes a client-paced next-question request onto the
// session actor
func (e *Engine) HandleNextQuestion(ctx context.Context, sessionID, participantID string) {
	s := e.actor(ctx, sessionID)
	if s == nil {
		return
	}
	s.post(func() { s.handler.onNextQuestion(ctx, s, participantID) })
}

// HandleGameTimer is the worker callback for the game-timers queue. The
// payload's questionId selects the action; redeliveries and late firings
// land on actors that drop them without mutation.
func (e *Engine) HandleGameTimer(ctx context.Context, jobID string, raw []byte) error {
	var payload timer.GameTimerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to decode game timer payload: %v", err)
	}

	s := e.actor(ctx, payload.SessionID)
	if s == nil {
		return nil
	}

	switch payload.QuestionID {
	case timer.JobGameEnd:
		s.post(func() { e.finishGame(ctx, s) })
	case timer.JobNextQuestion:
		next, ok := advanceTarget(jobID)
		if !ok {
			logging.Error("Dropping malformed advance job", map[string]interface{}{"job_id": jobID})
			return nil
		}
		s.post(func() { s.handler.onAdvance(ctx, s, next) })
	default:
		questionID := payload.QuestionID
		s.post(func() { s.handler.onQuestionTimeout(ctx, s, questionID) })
	}
	return nil
}

// actor returns the live actor for a session, rehydrating it from the
// session store and the live-state checkpoint when this process does not
// hold it yet. Returns nil when the session is unknown or no longer ACTIVE.
func (e *Engine) actor(ctx context.Context, sessionID string) *session {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if ok {
		return s
	}

	sess, err := e.db.GetSession(sessionID)
	if err != nil || sess.Status != types.StatusActive {
		return nil
	}

	st, err := e.live.Get(ctx, sessionID)
	if err != nil || st == nil {
		return nil
	}

	parts, err := e.db.GetParticipants(sessionID)
	if err != nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.sessions[sessionID]; ok {
		return existing
	}
	s = newSession(sessionID, sess.Mode, st, parts)
	s.handler = e.handlerFor(sess.Mode)
	e.sessions[sessionID] = s

	logging.LogGameEvent("session_rehydrated", sessionID, map[string]interface{}{
		"mode": sess.Mode.String(),
	})

	// Durable jobs survive a restart on their own; in-process bot timers do
	// not, so the mode handler re-arms them
	s.post(func() { s.handler.onRehydrate(ctx, s) })
	return s
}

// checkpoint flushes the actor-owned state to the live store, preserving the
// TTL armed at activation
func (e *Engine) checkpoint(ctx context.Context, s *session) {
	if err := e.live.Set(ctx, s.id, s.state, 0); err != nil {
		logging.Error("Failed to checkpoint live state", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}
}

// scheduleBotAnswer computes a simulated opponent decision and posts it onto
// the actor after the bot's delay. The delayed call is session-scoped, so a
// finished game never receives stray bot answers.
func (e *Engine) scheduleBotAnswer(s *session, p *database.Participant, q *database.Question, timeLimit time.Duration) {
	decision := e.bots.ChooseAnswer(q, s.mode, p.Rating, timeLimit)
	pid, qid, oid := p.ID, q.ID, decision.OptionID
	s.later(decision.Delay, func() {
		s.handler.onAnswer(context.Background(), s, pid, qid, oid)
	})
}

func gameEndJobID(sessionID string) string {
	return "game-end:" + sessionID
}

func ffTimeoutJobID(sessionID, questionID string) string {
	return "ff-timeout:" + sessionID + ":" + questionID
}

func ffAdvanceJobID(sessionID string, nextIndex int) string {
	return "ff-next:" + sessionID + ":" + strconv.Itoa(nextIndex)
}

// advanceTarget extracts the target question index from an ff-next job id
func advanceTarget(jobID string) (int, bool) {
	i := strings.LastIndex(jobID, ":")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(jobID[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
