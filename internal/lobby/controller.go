package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/logging"
	"github.com/neo/quizrush_backend/internal/timer"
	"github.com/neo/quizrush_backend/internal/types"
)

// Outbound lobby events
const (
	EventUpdate             = "lobby:update"
	EventCountdownStarted   = "lobby:countdown_started"
	EventCountdownCancelled = "lobby:countdown_cancelled"
	EventDissolved          = "lobby:dissolved"
)

// Room code shape: 10 uppercase base-36 characters, globally unique while
// the lobby is joinable
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 10
	codeAttempts = 20
)

// Lobby bounds. The host-facing API may advertise a wider max; these are
// authoritative for the state machine.
const (
	minPlayersFloor = 2
	maxPlayersCeil  = 8
)

var validDurations = map[int]bool{1: true, 2: true, 5: true, 10: true}

// Timers schedules and cancels the countdown job
type Timers interface {
	Schedule(ctx context.Context, queue string, payload interface{}, delay time.Duration, jobID string) error
	Cancel(ctx context.Context, queue string, jobID string) error
}

// Emitter fans lobby events out to the session room
type Emitter interface {
	EmitToRoom(ctx context.Context, sessionID string, event string, payload interface{}) error
}

// GameStarter hands a counted-down lobby over to the game engine
type GameStarter interface {
	StartGroupGame(ctx context.Context, sessionID string) error
}

// Projection is the client-facing view of a lobby, derived from the session
// and its participants on every change
type Projection struct {
	SessionID          string              `json:"sessionId"`
	RoomCode           string              `json:"roomCode"`
	HostUserID         string              `json:"hostUserId"`
	Status             types.SessionStatus `json:"status"`
	Difficulty         types.Difficulty    `json:"difficulty"`
	DurationMinutes    int                 `json:"durationMinutes"`
	MinPlayers         int                 `json:"minPlayers"`
	MaxPlayers         int                 `json:"maxPlayers"`
	Participants       []Member            `json:"participants"`
	CountdownStartedAt *time.Time          `json:"countdownStartedAt,omitempty"`
}

// Member is one entry in the lobby roster
type Member struct {
	ParticipantID string `json:"participantId"`
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	IsHost        bool   `json:"isHost"`
}

// Controller runs the pre-game state machine for group play: code-addressed
// rooms, join/leave, and the host-initiated ready countdown.
type Controller struct {
	db               database.Store
	timers           Timers
	bus              Emitter
	engine           GameStarter
	countdownSeconds int

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a lobby controller
func New(db database.Store, timers Timers, bus Emitter, engine GameStarter, countdownSeconds int) *Controller {
	return &Controller{
		db:               db,
		timers:           timers,
		bus:              bus,
		engine:           engine,
		countdownSeconds: countdownSeconds,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateLobby provisions a LOBBY session with the host as its first
// participant and a freshly generated room code
func (c *Controller) CreateLobby(ctx context.Context, hostID string, difficulty types.Difficulty, durationMinutes, minPlayers, maxPlayers int) (*database.Session, *Projection, error) {
	if !difficulty.IsValid() {
		return nil, nil, fmt.Errorf("%w: difficulty %s", types.ErrValidation, difficulty)
	}
	if !validDurations[durationMinutes] {
		return nil, nil, fmt.Errorf("%w: duration %d minutes", types.ErrValidation, durationMinutes)
	}
	if maxPlayers < minPlayersFloor || maxPlayers > maxPlayersCeil {
		return nil, nil, fmt.Errorf("%w: max players %d out of range [%d, %d]", types.ErrValidation, maxPlayers, minPlayersFloor, maxPlayersCeil)
	}
	if minPlayers == 0 {
		minPlayers = minPlayersFloor
	}
	if minPlayers < minPlayersFloor || minPlayers > maxPlayers {
		return nil, nil, fmt.Errorf("%w: min players %d out of range [%d, %d]", types.ErrValidation, minPlayers, minPlayersFloor, maxPlayers)
	}

	code, err := c.generateRoomCode()
	if err != nil {
		return nil, nil, err
	}

	sess, parts, err := c.db.CreateSession(database.CreateSessionParams{
		Mode:            types.ModeGroupPlay,
		Difficulty:      difficulty,
		DurationMinutes: durationMinutes,
		UserIDs:         []string{hostID},
		RoomCode:        code,
		HostUserID:      hostID,
		MinPlayers:      minPlayers,
		MaxPlayers:      maxPlayers,
	})
	if err != nil {
		return nil, nil, err
	}

	logging.LogLobbyEvent("lobby_created", sess.ID, code, map[string]interface{}{
		"host":        hostID,
		"max_players": maxPlayers,
	})

	proj := buildProjection(sess, parts)
	c.bus.EmitToRoom(ctx, sess.ID, EventUpdate, proj)
	return sess, proj, nil
}

// Join adds a user to a lobby addressed by room code. Rejections: unknown
// code, lobby no longer open, lobby full, duplicate user.
func (c *Controller) Join(ctx context.Context, userID, roomCode string) (*database.Session, *Projection, error) {
	sess, err := c.db.GetSessionByRoomCode(roomCode)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != types.StatusLobby {
		return nil, nil, fmt.Errorf("%w: lobby %s is %s", types.ErrStateConflict, roomCode, sess.Status)
	}

	// Capacity is enforced inside the insert transaction, so two joins
	// racing for the last seat cannot both land.
	if _, err := c.db.AddParticipant(sess.ID, userID, "", sess.MaxPlayers); err != nil {
		return nil, nil, err
	}

	parts, err := c.db.GetParticipants(sess.ID)
	if err != nil {
		return nil, nil, err
	}

	logging.LogLobbyEvent("lobby_joined", sess.ID, roomCode, map[string]interface{}{
		"user_id": userID,
		"count":   len(parts),
	})

	proj := buildProjection(sess, parts)
	c.bus.EmitToRoom(ctx, sess.ID, EventUpdate, proj)
	return sess, proj, nil
}

// Leave removes a user from a lobby. A leaving host dissolves the lobby; a
// leave that drops a counting-down lobby below its minimum cancels the
// countdown.
func (c *Controller) Leave(ctx context.Context, userID, roomCode string) error {
	sess, err := c.db.GetSessionByRoomCode(roomCode)
	if err != nil {
		return err
	}
	if sess.Status != types.StatusLobby && sess.Status != types.StatusReadyCountdown {
		return fmt.Errorf("%w: lobby %s is %s", types.ErrStateConflict, roomCode, sess.Status)
	}

	if userID == sess.HostUserID {
		return c.dissolve(ctx, sess, "host left")
	}

	if err := c.db.RemoveParticipant(sess.ID, userID); err != nil {
		return err
	}

	parts, err := c.db.GetParticipants(sess.ID)
	if err != nil {
		return err
	}

	logging.LogLobbyEvent("lobby_left", sess.ID, roomCode, map[string]interface{}{
		"user_id": userID,
		"count":   len(parts),
	})

	if sess.Status == types.StatusReadyCountdown && len(parts) < sess.MinPlayers {
		if err := c.cancelCountdown(ctx, sess, "not enough players"); err != nil {
			return err
		}
		sess.Status = types.StatusLobby
		sess.CountdownStartedAt = nil
	}

	c.bus.EmitToRoom(ctx, sess.ID, EventUpdate, buildProjection(sess, parts))
	return nil
}

// InitiateCountdown starts the ready countdown. Only the host may start it,
// only from LOBBY, and only with enough players.
func (c *Controller) InitiateCountdown(ctx context.Context, hostID, roomCode string) error {
	sess, err := c.db.GetSessionByRoomCode(roomCode)
	if err != nil {
		return err
	}
	if hostID != sess.HostUserID {
		return fmt.Errorf("%w: only the host can start the countdown", types.ErrStateConflict)
	}
	if sess.Status != types.StatusLobby {
		return fmt.Errorf("%w: lobby %s is %s", types.ErrStateConflict, roomCode, sess.Status)
	}

	parts, err := c.db.GetParticipants(sess.ID)
	if err != nil {
		return err
	}
	if len(parts) < sess.MinPlayers {
		return fmt.Errorf("%w: need at least %d players", types.ErrStateConflict, sess.MinPlayers)
	}

	now := time.Now().UTC()
	if err := c.db.SetCountdownStarted(sess.ID, now); err != nil {
		return err
	}

	delay := time.Duration(c.countdownSeconds) * time.Second
	if err := c.timers.Schedule(ctx, timer.QueueLobbyCountdown, timer.LobbyCountdownPayload{
		SessionID: sess.ID,
	}, delay, countdownJobID(sess.ID)); err != nil {
		return err
	}

	logging.LogLobbyEvent("countdown_started", sess.ID, roomCode, map[string]interface{}{
		"seconds": c.countdownSeconds,
	})

	c.bus.EmitToRoom(ctx, sess.ID, EventCountdownStarted, map[string]interface{}{
		"duration":  c.countdownSeconds,
		"startTime": now.Format(time.RFC3339),
	})
	return nil
}

// CancelCountdown aborts a running countdown on the host's request
func (c *Controller) CancelCountdown(ctx context.Context, hostID, roomCode string) error {
	sess, err := c.db.GetSessionByRoomCode(roomCode)
	if err != nil {
		return err
	}
	if hostID != sess.HostUserID {
		return fmt.Errorf("%w: only the host can cancel the countdown", types.ErrStateConflict)
	}
	if sess.Status != types.StatusReadyCountdown {
		return fmt.Errorf("%w: no countdown running for %s", types.ErrStateConflict, roomCode)
	}
	return c.cancelCountdown(ctx, sess, "cancelled by host")
}

// cancelCountdown reverts READY_COUNTDOWN to LOBBY: drops the pending job,
// clears the countdown mark, notifies the room
func (c *Controller) cancelCountdown(ctx context.Context, sess *database.Session, reason string) error {
	if err := c.timers.Cancel(ctx, timer.QueueLobbyCountdown, countdownJobID(sess.ID)); err != nil {
		return err
	}
	if err := c.db.ClearCountdown(sess.ID); err != nil {
		return err
	}

	logging.LogLobbyEvent("countdown_cancelled", sess.ID, sess.RoomCode, map[string]interface{}{
		"reason": reason,
	})

	c.bus.EmitToRoom(ctx, sess.ID, EventCountdownCancelled, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// HandleCountdownJob is the worker callback for lobby-countdown-jobs. It
// re-validates the player minimum before activation; a stale delivery for a
// lobby that is no longer counting down is a no-op.
func (c *Controller) HandleCountdownJob(ctx context.Context, jobID string, raw []byte) error {
	var payload timer.LobbyCountdownPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to decode countdown payload: %v", err)
	}

	sess, err := c.db.GetSession(payload.SessionID)
	if err != nil {
		return nil
	}
	if sess.Status != types.StatusReadyCountdown {
		return nil
	}

	parts, err := c.db.GetParticipants(sess.ID)
	if err != nil {
		return err
	}
	if len(parts) < sess.MinPlayers {
		if err := c.cancelCountdown(ctx, sess, "not enough players"); err != nil {
			return err
		}
		sess.Status = types.StatusLobby
		sess.CountdownStartedAt = nil
		c.bus.EmitToRoom(ctx, sess.ID, EventUpdate, buildProjection(sess, parts))
		return nil
	}

	// The lobby stops being joinable the moment the game starts
	if err := c.db.ClearRoomCode(sess.ID); err != nil {
		return err
	}

	logging.LogLobbyEvent("countdown_elapsed", sess.ID, sess.RoomCode, nil)
	return c.engine.StartGroupGame(ctx, sess.ID)
}

// dissolve tears a lobby down before it ever becomes a game: the pending
// countdown job is dropped, participants are deleted, and the session is
// cancelled
func (c *Controller) dissolve(ctx context.Context, sess *database.Session, reason string) error {
	if sess.Status == types.StatusReadyCountdown {
		if err := c.timers.Cancel(ctx, timer.QueueLobbyCountdown, countdownJobID(sess.ID)); err != nil {
			return err
		}
	}
	if err := c.db.DeleteParticipants(sess.ID); err != nil {
		return err
	}
	if err := c.db.CancelSession(sess.ID); err != nil {
		return err
	}

	logging.LogLobbyEvent("lobby_dissolved", sess.ID, sess.RoomCode, map[string]interface{}{
		"reason": reason,
	})

	c.bus.EmitToRoom(ctx, sess.ID, EventDissolved, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// generateRoomCode rejection-resamples until it finds a code not currently
// held by any session
func (c *Controller) generateRoomCode() (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := c.randomCode()
		inUse, err := c.db.RoomCodeInUse(code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique room code after %d attempts", codeAttempts)
}

func (c *Controller) randomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[c.rng.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

func countdownJobID(sessionID string) string {
	return "lobby-start-" + sessionID
}

func buildProjection(sess *database.Session, parts []database.Participant) *Projection {
	members := make([]Member, 0, len(parts))
	for _, p := range parts {
		members = append(members, Member{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			IsHost:        p.UserID == sess.HostUserID,
		})
	}
	return &Projection{
		SessionID:          sess.ID,
		RoomCode:           sess.RoomCode,
		HostUserID:         sess.HostUserID,
		Status:             sess.Status,
		Difficulty:         sess.Difficulty,
		DurationMinutes:    sess.DurationMinutes,
		MinPlayers:         sess.MinPlayers,
		MaxPlayers:         sess.MaxPlayers,
		Participants:       members,
		CountdownStartedAt: sess.CountdownStartedAt,
	}
}
