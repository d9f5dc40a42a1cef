package database

import (
	"time"

	"github.com/neo/quizrush_backend/internal/types"
)

// Store defines the interface for durable storage operations
type Store interface {
	Close() error

	// User management
	CreateUser(user *User) error
	GetUserByID(id string) (*User, error)
	GetUserRating(id string) (int, error)
	UpdateRatings(userA string, newA int, userB string, newB int) error

	// Question repository
	CreateQuestion(question *Question, categories []string) error
	FetchQuestionBatch(tier types.Difficulty, categoryTags []string, count int) ([]Question, error)

	// Sessions
	CreateSession(params CreateSessionParams) (*Session, []Participant, error)
	GetSession(id string) (*Session, error)
	GetSessionByRoomCode(code string) (*Session, error)
	RoomCodeInUse(code string) (bool, error)
	ActivateSession(id string) error
	CancelSession(id string) error
	EndSession(id string, finalScores map[string]int) error
	SetCountdownStarted(id string, at time.Time) error
	ClearCountdown(id string) error
	ClearRoomCode(id string) error
	ListSessions(filter SessionFilter) ([]*Session, int, error)

	// Participants
	AddParticipant(sessionID, userID, displayName string, maxPlayers int) (*Participant, error)
	RemoveParticipant(sessionID, userID string) error
	GetParticipants(sessionID string) ([]Participant, error)
	DeleteParticipants(sessionID string) error

	// Migration runner
	RunMigrations(migrationsDir string) error
}

// Ensure Database implements Store
var _ Store = (*Database)(nil)
