package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neo/quizrush_backend/internal/bot"
	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/live"
	"github.com/neo/quizrush_backend/internal/types"
)

// memStore is an in-memory database.Store for engine tests
type memStore struct {
	mu           sync.Mutex
	users        map[string]*database.User
	sessions     map[string]*database.Session
	participants map[string][]database.Participant
	questions    []database.Question
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*database.User),
		sessions:     make(map[string]*database.Session),
		participants: make(map[string][]database.Participant),
	}
}

func (m *memStore) addUser(username string, rating int) *database.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &database.User{ID: uuid.New().String(), Username: username, Rating: rating}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addQuestions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		correct := fmt.Sprintf("q%d-right", i)
		m.questions = append(m.questions, database.Question{
			ID:     fmt.Sprintf("q%d", i),
			Prompt: fmt.Sprintf("prompt %d", i),
			Options: []database.Option{
				{ID: correct, Text: "right"},
				{ID: fmt.Sprintf("q%d-wrong", i), Text: "wrong"},
			},
			CorrectOptionID: correct,
			Explanation:     "because",
			LearningTip:     "remember",
			Difficulty:      types.DifficultyEasy,
		})
	}
}

func (m *memStore) Close() error                   { return nil }
func (m *memStore) RunMigrations(dir string) error { return nil }

func (m *memStore) CreateUser(u *database.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) GetUserByID(id string) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", types.ErrNotFound, id)
	}
	return u, nil
}

func (m *memStore) GetUserRating(id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, fmt.Errorf("%w: user %s", types.ErrNotFound, id)
	}
	return u.Rating, nil
}

func (m *memStore) UpdateRatings(userA string, newA int, userB string, newB int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, okA := m.users[userA]
	b, okB := m.users[userB]
	if !okA || !okB {
		return fmt.Errorf("%w: user", types.ErrNotFound)
	}
	a.Rating, b.Rating = newA, newB
	return nil
}

func (m *memStore) CreateQuestion(q *database.Question, categories []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, *q)
	return nil
}

func (m *memStore) FetchQuestionBatch(tier types.Difficulty, categoryTags []string, count int) ([]database.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.questions) == 0 {
		return nil, nil
	}
	if count > len(m.questions) {
		count = len(m.questions)
	}
	out := make([]database.Question, count)
	copy(out, m.questions[:count])
	return out, nil
}

func (m *memStore) CreateSession(params database.CreateSessionParams) (*database.Session, []database.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := types.StatusWaiting
	if params.RoomCode != "" {
		status = types.StatusLobby
	}
	sess := &database.Session{
		ID:              uuid.New().String(),
		Mode:            params.Mode,
		Status:          status,
		Difficulty:      params.Difficulty,
		DurationMinutes: params.DurationMinutes,
		RoomCode:        params.RoomCode,
		HostUserID:      params.HostUserID,
		MinPlayers:      params.MinPlayers,
		MaxPlayers:      params.MaxPlayers,
		CreatedAt:       time.Now().UTC(),
	}
	m.sessions[sess.ID] = sess

	var parts []database.Participant
	for _, userID := range params.UserIDs {
		u, ok := m.users[userID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: user %s", types.ErrNotFound, userID)
		}
		parts = append(parts, database.Participant{
			ID:          uuid.New().String(),
			SessionID:   sess.ID,
			UserID:      userID,
			DisplayName: u.Username,
			Rating:      u.Rating,
		})
	}
	botRating := params.BotRating
	if botRating <= 0 {
		botRating = 1200
	}
	for i := 0; i < params.BotCount; i++ {
		parts = append(parts, database.Participant{
			ID:          uuid.New().String(),
			SessionID:   sess.ID,
			UserID:      "bot-" + uuid.New().String(),
			IsBot:       true,
			DisplayName: fmt.Sprintf("Bot %d", i+1),
			Rating:      botRating,
		})
	}
	m.participants[sess.ID] = parts
	return sess, parts, nil
}

func (m *memStore) GetSession(id string) (*database.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	}
	copied := *sess
	return &copied, nil
}

func (m *memStore) GetSessionByRoomCode(code string) (*database.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.RoomCode == code && code != "" {
			copied := *sess
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: room %s", types.ErrNotFound, code)
}

func (m *memStore) RoomCodeInUse(code string) (bool, error) {
	_, err := m.GetSessionByRoomCode(code)
	return err == nil, nil
}

func (m *memStore) setStatus(id string, status types.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	}
	sess.Status = status
	return nil
}

func (m *memStore) ActivateSession(id string) error { return m.setStatus(id, types.StatusActive) }

func (m *memStore) CancelSession(id string) error {
	if err := m.setStatus(id, types.StatusCancelled); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.sessions[id].FinishedAt = &now
	m.sessions[id].RoomCode = ""
	return nil
}

func (m *memStore) EndSession(id string, finalScores map[string]int) error {
	if err := m.setStatus(id, types.StatusFinished); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.sessions[id].FinishedAt = &now
	m.sessions[id].RoomCode = ""
	parts := m.participants[id]
	for i := range parts {
		if score, ok := finalScores[parts[i].ID]; ok {
			parts[i].FinalScore = score
		}
	}
	return nil
}

func (m *memStore) SetCountdownStarted(id string, at time.Time) error {
	if err := m.setStatus(id, types.StatusReadyCountdown); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id].CountdownStartedAt = &at
	return nil
}

func (m *memStore) ClearCountdown(id string) error {
	if err := m.setStatus(id, types.StatusLobby); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id].CountdownStartedAt = nil
	return nil
}

func (m *memStore) ClearRoomCode(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	}
	sess.RoomCode = ""
	return nil
}

func (m *memStore) ListSessions(filter database.SessionFilter) ([]*database.Session, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Session
	for _, sess := range m.sessions {
		copied := *sess
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (m *memStore) AddParticipant(sessionID, userID, displayName string, maxPlayers int) (*database.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxPlayers > 0 && len(m.participants[sessionID]) >= maxPlayers {
		return nil, fmt.Errorf("%w: session full", types.ErrStateConflict)
	}
	for _, p := range m.participants[sessionID] {
		if p.UserID == userID {
			return nil, fmt.Errorf("%w: duplicate participant", types.ErrStateConflict)
		}
	}
	if displayName == "" {
		if u, ok := m.users[userID]; ok {
			displayName = u.Username
		}
	}
	p := database.Participant{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		UserID:      userID,
		DisplayName: displayName,
		Rating:      1200,
	}
	if u, ok := m.users[userID]; ok {
		p.Rating = u.Rating
	}
	m.participants[sessionID] = append(m.participants[sessionID], p)
	return &p, nil
}

func (m *memStore) RemoveParticipant(sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := m.participants[sessionID]
	for i, p := range parts {
		if p.UserID == userID {
			m.participants[sessionID] = append(parts[:i], parts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: participant", types.ErrNotFound)
}

func (m *memStore) GetParticipants(sessionID string) ([]database.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.Participant, len(m.participants[sessionID]))
	copy(out, m.participants[sessionID])
	return out, nil
}

func (m *memStore) DeleteParticipants(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.participants, sessionID)
	return nil
}

var _ database.Store = (*memStore)(nil)

// memLive is an in-memory LiveStore; states round-trip through JSON like
// they would through redis
type memLive struct {
	mu     sync.Mutex
	states map[string][]byte
	timers map[string]string
}

func newMemLive() *memLive {
	return &memLive{states: make(map[string][]byte), timers: make(map[string]string)}
}

func (m *memLive) Get(ctx context.Context, sessionID string) (*live.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.states[sessionID]
	if !ok {
		return nil, nil
	}
	var st live.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *memLive) Set(ctx context.Context, sessionID string, state *live.State, ttl time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = raw
	return nil
}

func (m *memLive) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	delete(m.timers, sessionID)
	return nil
}

func (m *memLive) SetTimerJob(ctx context.Context, sessionID, jobID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[sessionID] = jobID
	return nil
}

func (m *memLive) GetTimerJob(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers[sessionID], nil
}

func (m *memLive) ClearTimerJob(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, sessionID)
	return nil
}

func (m *memLive) InvalidateLeaderboards(ctx context.Context, userIDs ...string) error {
	return nil
}

func (m *memLive) has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[sessionID]
	return ok
}

// fakeTimers records scheduled and cancelled jobs
type fakeTimers struct {
	mu        sync.Mutex
	scheduled map[string]scheduledJob
	cancelled map[string]bool
}

type scheduledJob struct {
	queue   string
	delay   time.Duration
	payload []byte
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{scheduled: make(map[string]scheduledJob), cancelled: make(map[string]bool)}
}

func (f *fakeTimers) Schedule(ctx context.Context, queue string, payload interface{}, delay time.Duration, jobID string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scheduled[jobID]; !ok {
		f.scheduled[jobID] = scheduledJob{queue: queue, delay: delay, payload: raw}
	}
	return nil
}

func (f *fakeTimers) Cancel(ctx context.Context, queue string, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, jobID)
	f.cancelled[jobID] = true
	return nil
}

func (f *fakeTimers) pending(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.scheduled[jobID]
	return ok
}

func (f *fakeTimers) wasCancelled(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[jobID]
}

func (f *fakeTimers) job(jobID string) (scheduledJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.scheduled[jobID]
	return j, ok
}

// fakeBus records emitted events
type fakeBus struct {
	mu      sync.Mutex
	emitted []emittedEvent
}

type emittedEvent struct {
	target  string
	ids     []string
	event   string
	payload map[string]interface{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{}
}

func (f *fakeBus) record(target string, ids []string, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var decoded map[string]interface{}
	json.Unmarshal(raw, &decoded)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emittedEvent{target: target, ids: ids, event: event, payload: decoded})
	return nil
}

func (f *fakeBus) EmitToUsers(ctx context.Context, userIDs []string, event string, payload interface{}) error {
	return f.record("user", userIDs, event, payload)
}

func (f *fakeBus) EmitToParticipants(ctx context.Context, participantIDs []string, event string, payload interface{}) error {
	return f.record("participant", participantIDs, event, payload)
}

func (f *fakeBus) EmitToRoom(ctx context.Context, sessionID string, event string, payload interface{}) error {
	return f.record("room", []string{sessionID}, event, payload)
}

func (f *fakeBus) events(event string) []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emittedEvent
	for _, e := range f.emitted {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeBus) count(event string) int {
	return len(f.events(event))
}

// testEngine bundles an engine with its fakes
type testEngine struct {
	engine *Engine
	db     *memStore
	live   *memLive
	timers *fakeTimers
	bus    *fakeBus
}

func newTestEngine() *testEngine {
	db := newMemStore()
	liveStore := newMemLive()
	timers := newFakeTimers()
	b := newFakeBus()
	engine := NewEngine(DefaultConfig(), db, liveStore, timers, b, bot.New())
	return &testEngine{engine: engine, db: db, live: liveStore, timers: timers, bus: b}
}

// drain blocks until the actor has processed everything posted before it
func drain(s *session) {
	done := make(chan struct{})
	s.post(func() { close(done) })
	select {
	case <-done:
	case <-s.done:
	}
}

func (te *testEngine) actorFor(sessionID string) *session {
	te.engine.mu.RLock()
	defer te.engine.mu.RUnlock()
	return te.engine.sessions[sessionID]
}
