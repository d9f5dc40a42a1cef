package types

import (
	"fmt"
)

// GameMode represents the kind of game a session runs
type GameMode string

const (
	ModeQuickDuel          GameMode = "QUICK_DUEL"           // 1v1 duel with per-participant progression
	ModeFastestFingerFirst GameMode = "FASTEST_FINGER_FIRST" // shared clock, first correct answer scores
	ModePractice           GameMode = "PRACTICE"             // single player, client-paced, with feedback
	ModeTimeAttack         GameMode = "TIME_ATTACK"          // single player against a shared countdown
	ModeGroupPlay          GameMode = "GROUP_PLAY"           // host-managed lobby, room-wide fan-out
)

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	StatusWaiting        SessionStatus = "WAITING"
	StatusLobby          SessionStatus = "LOBBY"
	StatusReadyCountdown SessionStatus = "READY_COUNTDOWN"
	StatusActive         SessionStatus = "ACTIVE"
	StatusFinished       SessionStatus = "FINISHED"
	StatusCancelled      SessionStatus = "CANCELLED"
)

// Difficulty represents the question tier of a session
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// AnswerAction records how a participant consumed a question
type AnswerAction string

const (
	ActionAnswered AnswerAction = "answered"
	ActionSkipped  AnswerAction = "skipped"
	ActionTimeout  AnswerAction = "timeout"
)

var (
	// AllGameModes contains all valid game modes
	AllGameModes = []GameMode{
		ModeQuickDuel,
		ModeFastestFingerFirst,
		ModePractice,
		ModeTimeAttack,
		ModeGroupPlay,
	}

	// AllDifficulties contains all valid difficulty tiers
	AllDifficulties = []Difficulty{
		DifficultyEasy,
		DifficultyMedium,
		DifficultyHard,
	}

	gameModeMap = map[string]GameMode{
		string(ModeQuickDuel):          ModeQuickDuel,
		string(ModeFastestFingerFirst): ModeFastestFingerFirst,
		string(ModePractice):           ModePractice,
		string(ModeTimeAttack):         ModeTimeAttack,
		string(ModeGroupPlay):          ModeGroupPlay,
	}

	sessionStatusMap = map[string]SessionStatus{
		string(StatusWaiting):        StatusWaiting,
		string(StatusLobby):          StatusLobby,
		string(StatusReadyCountdown): StatusReadyCountdown,
		string(StatusActive):         StatusActive,
		string(StatusFinished):       StatusFinished,
		string(StatusCancelled):      StatusCancelled,
	}

	difficultyMap = map[string]Difficulty{
		string(DifficultyEasy):   DifficultyEasy,
		string(DifficultyMedium): DifficultyMedium,
		string(DifficultyHard):   DifficultyHard,
	}
)

// Error types for invalid values
var (
	ErrInvalidGameMode   = fmt.Errorf("invalid game mode")
	ErrInvalidStatus     = fmt.Errorf("invalid session status")
	ErrInvalidDifficulty = fmt.Errorf("invalid difficulty")
)

// IsValid checks if the GameMode is valid
func (m GameMode) IsValid() bool {
	_, ok := gameModeMap[string(m)]
	return ok
}

// String converts the enum to string
func (m GameMode) String() string {
	return string(m)
}

// ParseGameMode parses a string into a GameMode
func ParseGameMode(s string) (GameMode, error) {
	if mode, ok := gameModeMap[s]; ok {
		return mode, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidGameMode, s)
}

// IsTerminal reports whether the status admits no further transitions
func (s SessionStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// IsValid checks if the SessionStatus is valid
func (s SessionStatus) IsValid() bool {
	_, ok := sessionStatusMap[string(s)]
	return ok
}

// String converts the enum to string
func (s SessionStatus) String() string {
	return string(s)
}

// ParseSessionStatus parses a string into a SessionStatus
func ParseSessionStatus(s string) (SessionStatus, error) {
	if status, ok := sessionStatusMap[s]; ok {
		return status, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidStatus, s)
}

// IsValid checks if the Difficulty is valid
func (d Difficulty) IsValid() bool {
	_, ok := difficultyMap[string(d)]
	return ok
}

// String converts the enum to string
func (d Difficulty) String() string {
	return string(d)
}

// ParseDifficulty parses a string into a Difficulty
func ParseDifficulty(s string) (Difficulty, error) {
	if tier, ok := difficultyMap[s]; ok {
		return tier, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidDifficulty, s)
}

// Rating cutoffs for the rating→tier map
const (
	mediumRatingCutoff = 1300
	hardRatingCutoff   = 1600
)

// DifficultyFromRating maps a numeric rating to a question tier
func DifficultyFromRating(rating int) Difficulty {
	switch {
	case rating >= hardRatingCutoff:
		return DifficultyHard
	case rating >= mediumRatingCutoff:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}
