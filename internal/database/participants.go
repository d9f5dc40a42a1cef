package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neo/quizrush_backend/internal/types"
)

// defaultBotRating is the rating every synthesized bot participant carries
const defaultBotRating = 1200

var botNames = []string{
	"QuizBot", "TriviaTron", "BrainBox", "FactFinder", "Sage", "Whiz", "Probe", "Echo",
}

func botDisplayName(i int) string {
	return fmt.Sprintf("%s %d", botNames[i%len(botNames)], i+1)
}

func insertParticipant(tx *sql.Tx, p *Participant) error {
	isBot := 0
	if p.IsBot {
		isBot = 1
	}
	_, err := tx.Exec(`INSERT INTO participants (id, session_id, user_id, is_bot, display_name, rating)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.UserID, isBot, p.DisplayName, p.Rating)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: user %s already in session %s", types.ErrStateConflict, p.UserID, p.SessionID)
		}
		return fmt.Errorf("failed to insert participant: %v", err)
	}
	return nil
}

// AddParticipant enrolls a user in a session (lobby join). The participant
// count is checked against maxPlayers inside the insert transaction, so
// concurrent joins cannot race past the last seat; zero disables the bound.
// Duplicate users within one session are rejected.
func (d *Database) AddParticipant(sessionID, userID, displayName string, maxPlayers int) (*Participant, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if maxPlayers > 0 {
		var count int
		if err := tx.QueryRow("SELECT COUNT(*) FROM participants WHERE session_id = ?", sessionID).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count participants: %v", err)
		}
		if count >= maxPlayers {
			return nil, fmt.Errorf("%w: session %s is full", types.ErrStateConflict, sessionID)
		}
	}

	rating := defaultBotRating
	if displayName == "" {
		err := tx.QueryRow("SELECT username, rating FROM users WHERE id = ?", userID).Scan(&displayName, &rating)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: user %s", types.ErrNotFound, userID)
		} else if err != nil {
			return nil, fmt.Errorf("failed to look up user %s: %v", userID, err)
		}
	}

	p := &Participant{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		UserID:      userID,
		DisplayName: displayName,
		Rating:      rating,
	}
	if err := insertParticipant(tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit participant: %v", err)
	}
	return p, nil
}

// RemoveParticipant removes a user's enrollment from a session (lobby leave)
func (d *Database) RemoveParticipant(sessionID, userID string) error {
	res, err := d.db.Exec("DELETE FROM participants WHERE session_id = ? AND user_id = ?", sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %v", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: user %s in session %s", types.ErrNotFound, userID, sessionID)
	}
	return nil
}

// GetParticipants returns the participant set of a session in join order
func (d *Database) GetParticipants(sessionID string) ([]Participant, error) {
	rows, err := d.db.Query(`SELECT id, session_id, user_id, is_bot, display_name, rating, final_score
		FROM participants WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %v", err)
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		var isBot int
		err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &isBot, &p.DisplayName, &p.Rating, &p.FinalScore)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %v", err)
		}
		p.IsBot = isBot != 0
		participants = append(participants, p)
	}

	return participants, nil
}
