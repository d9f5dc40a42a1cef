package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo/quizrush_backend/internal/types"
)

const sessionColumns = `id, mode, status, difficulty, duration_minutes, room_code,
	host_user_id, min_players, max_players, countdown_started_at, created_at, finished_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*Session, error) {
	var s Session
	var mode, status, difficulty string
	var roomCode, hostUserID sql.NullString
	var countdownAt, finishedAt sql.NullTime

	err := row.Scan(&s.ID, &mode, &status, &difficulty, &s.DurationMinutes,
		&roomCode, &hostUserID, &s.MinPlayers, &s.MaxPlayers,
		&countdownAt, &s.CreatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	s.Mode = types.GameMode(mode)
	s.Status = types.SessionStatus(status)
	s.Difficulty = types.Difficulty(difficulty)
	s.RoomCode = roomCode.String
	s.HostUserID = hostUserID.String
	if countdownAt.Valid {
		t := countdownAt.Time
		s.CountdownStartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		s.FinishedAt = &t
	}
	return &s, nil
}

// CreateSession provisions a session in status WAITING (or LOBBY when a room
// code is given) together with one participant per user plus the requested
// number of bot participants, all in one transaction. A missing user is fatal
// for the call; a duplicate user is rejected as a state conflict.
func (d *Database) CreateSession(params CreateSessionParams) (*Session, []Participant, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	status := types.StatusWaiting
	if params.RoomCode != "" {
		status = types.StatusLobby
	}

	session := &Session{
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

	_, err = tx.Exec(`INSERT INTO sessions
		(id, mode, status, difficulty, duration_minutes, room_code, host_user_id, min_players, max_players)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Mode.String(), session.Status.String(), session.Difficulty.String(),
		session.DurationMinutes, nullable(session.RoomCode), nullable(session.HostUserID),
		session.MinPlayers, session.MaxPlayers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert session: %v", err)
	}

	var participants []Participant

	for _, userID := range params.UserIDs {
		var username string
		var rating int
		err := tx.QueryRow("SELECT username, rating FROM users WHERE id = ?", userID).Scan(&username, &rating)
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("%w: user %s", types.ErrNotFound, userID)
		} else if err != nil {
			return nil, nil, fmt.Errorf("failed to look up user %s: %v", userID, err)
		}

		p := Participant{
			ID:          uuid.New().String(),
			SessionID:   session.ID,
			UserID:      userID,
			DisplayName: username,
			Rating:      rating,
		}
		if err := insertParticipant(tx, &p); err != nil {
			return nil, nil, err
		}
		participants = append(participants, p)
	}

	botRating := params.BotRating
	if botRating <= 0 {
		botRating = defaultBotRating
	}
	for i := 0; i < params.BotCount; i++ {
		p := Participant{
			ID:          uuid.New().String(),
			SessionID:   session.ID,
			UserID:      "bot-" + uuid.New().String(),
			IsBot:       true,
			DisplayName: botDisplayName(i),
			Rating:      botRating,
		}
		if err := insertParticipant(tx, &p); err != nil {
			return nil, nil, err
		}
		participants = append(participants, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit session: %v", err)
	}

	return session, participants, nil
}

// GetSession retrieves a session by ID
func (d *Database) GetSession(id string) (*Session, error) {
	row := d.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get session: %v", err)
	}
	return session, nil
}

// GetSessionByRoomCode retrieves a lobby session by its room code
func (d *Database) GetSessionByRoomCode(code string) (*Session, error) {
	row := d.db.QueryRow("SELECT "+sessionColumns+" FROM sessions WHERE room_code = ?", code)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: room %s", types.ErrNotFound, code)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get session by room code: %v", err)
	}
	return session, nil
}

// RoomCodeInUse reports whether a room code is currently held by any session
func (d *Database) RoomCodeInUse(code string) (bool, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE room_code = ?", code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to probe room code: %v", err)
	}
	return count > 0, nil
}

func (d *Database) setStatus(id string, status types.SessionStatus) error {
	res, err := d.db.Exec("UPDATE sessions SET status = ? WHERE id = ?", status.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %v", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	}
	return nil
}

// ActivateSession transitions a session to ACTIVE
func (d *Database) ActivateSession(id string) error {
	return d.setStatus(id, types.StatusActive)
}

// CancelSession transitions a session to CANCELLED and stamps finished_at
func (d *Database) CancelSession(id string) error {
	res, err := d.db.Exec("UPDATE sessions SET status = ?, finished_at = CURRENT_TIMESTAMP, room_code = NULL WHERE id = ?",
		types.StatusCancelled.String(), id)
	if err != nil {
		return fmt.Errorf("failed to cancel session: %v", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	}
	return nil
}

// EndSession sets status FINISHED and persists per-participant final scores
// atomically
func (d *Database) EndSession(id string, finalScores map[string]int) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE sessions SET status = ?, finished_at = CURRENT_TIMESTAMP, room_code = NULL WHERE id = ?",
		types.StatusFinished.String(), id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %v", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: session %s", types.ErrNotFound, id)
	}

	for participantID, score := range finalScores {
		_, err := tx.Exec("UPDATE participants SET final_score = ? WHERE id = ? AND session_id = ?",
			score, participantID, id)
		if err != nil {
			return fmt.Errorf("failed to persist final score for %s: %v", participantID, err)
		}
	}

	return tx.Commit()
}

// SetCountdownStarted records the countdown start time and moves the lobby
// to READY_COUNTDOWN
func (d *Database) SetCountdownStarted(id string, at time.Time) error {
	_, err := d.db.Exec("UPDATE sessions SET status = ?, countdown_started_at = ? WHERE id = ?",
		types.StatusReadyCountdown.String(), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set countdown start: %v", err)
	}
	return nil
}

// ClearCountdown drops the countdown mark and returns the lobby to LOBBY
func (d *Database) ClearCountdown(id string) error {
	_, err := d.db.Exec("UPDATE sessions SET status = ?, countdown_started_at = NULL WHERE id = ?",
		types.StatusLobby.String(), id)
	if err != nil {
		return fmt.Errorf("failed to clear countdown: %v", err)
	}
	return nil
}

// ClearRoomCode removes the room code so the lobby is no longer joinable
func (d *Database) ClearRoomCode(id string) error {
	_, err := d.db.Exec("UPDATE sessions SET room_code = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to clear room code: %v", err)
	}
	return nil
}

// DeleteParticipants removes every participant of a session (full lobby
// dissolution before ACTIVE); the session row itself stays for history
func (d *Database) DeleteParticipants(sessionID string) error {
	if _, err := d.db.Exec("DELETE FROM participants WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete participants: %v", err)
	}
	return nil
}

// ListSessions returns a page of session history plus the total count
func (d *Database) ListSessions(filter SessionFilter) ([]*Session, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Mode != "" {
		conditions = append(conditions, "mode = ?")
		args = append(args, filter.Mode)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "id IN (SELECT session_id FROM participants WHERE user_id = ?)")
		args = append(args, filter.UserID)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM sessions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %v", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + sessionColumns + " FROM sessions" + where +
		" ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sessions: %v", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %v", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, total, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
