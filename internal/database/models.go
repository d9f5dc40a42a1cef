package database

import (
	"time"

	"github.com/neo/quizrush_backend/internal/types"
)

// User represents a player profile in the database
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Session represents a single game instance
type Session struct {
	ID                 string              `json:"id"`
	Mode               types.GameMode      `json:"mode"`
	Status             types.SessionStatus `json:"status"`
	Difficulty         types.Difficulty    `json:"difficulty"`
	DurationMinutes    int                 `json:"duration_minutes"`
	RoomCode           string              `json:"room_code,omitempty"`
	HostUserID         string              `json:"host_user_id,omitempty"`
	MinPlayers         int                 `json:"min_players"`
	MaxPlayers         int                 `json:"max_players"`
	CountdownStartedAt *time.Time          `json:"countdown_started_at,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	FinishedAt         *time.Time          `json:"finished_at,omitempty"`
}

// Participant represents a user's (or bot's) enrollment in one session.
// The participant id is the identity used in live-state keys and event routing.
type Participant struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	IsBot       bool   `json:"is_bot"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
	FinalScore  int    `json:"final_score"`
}

// Option is one answer choice of a question
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is read-only within the core. CorrectOptionID, Explanation and
// LearningTip are authoritative fields that never leave the server unstripped.
type Question struct {
	ID              string           `json:"id"`
	Prompt          string           `json:"prompt"`
	Options         []Option         `json:"options"`
	CorrectOptionID string           `json:"correctOptionId"`
	Explanation     string           `json:"explanation,omitempty"`
	LearningTip     string           `json:"learningTip,omitempty"`
	Difficulty      types.Difficulty `json:"difficulty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PublicQuestion is the client-safe projection of a Question
type PublicQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// Public strips the authoritative fields before a question is sent to a client
func (q *Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:      q.ID,
		Prompt:  q.Prompt,
		Options: q.Options,
	}
}

// CreateSessionParams bundles the inputs for provisioning a session with
// its initial participant set in one transaction
type CreateSessionParams struct {
	Mode            types.GameMode
	Difficulty      types.Difficulty
	DurationMinutes int
	UserIDs         []string
	BotCount        int
	BotRating       int // zero falls back to the default bot rating
	RoomCode        string
	HostUserID      string
	MinPlayers      int
	MaxPlayers      int
}

// SessionFilter selects and pages session history
type SessionFilter struct {
	UserID string
	Mode   string
	Status string
	Offset int
	Limit  int
}
