package live

import (
	"time"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/types"
)

// AnswerRecord is one per-answer entry in a participant's results sequence
type AnswerRecord struct {
	QuestionID string             `json:"questionId"`
	TimeTaken  int64              `json:"timeTaken"` // milliseconds
	Action     types.AnswerAction `json:"action"`
	Correct    bool               `json:"correct"`
}

// QuestionAnswer is one arrival-ordered answer within a fastest-finger
// question window. Timestamps are recorded for audit; the first-correct
// decision is made by processing order, not by these values.
type QuestionAnswer struct {
	ParticipantID string `json:"participantId"`
	OptionID      string `json:"optionId"`
	Timestamp     int64  `json:"timestamp"` // unix milliseconds
	Correct       bool   `json:"correct"`
}

// State is the mutable per-session game state. It is serialized as one
// atomic blob per write; the engine's per-session actor is the only mutator.
type State struct {
	Questions  []database.Question `json:"questions"`
	GameMode   types.GameMode      `json:"gameMode"`
	Difficulty types.Difficulty    `json:"difficulty"`
	EndTime    time.Time           `json:"endTime"`

	Scores         map[string]int            `json:"scores"`
	UserProgress   map[string]int            `json:"userProgress"`
	QuestionSentAt map[string]int64          `json:"questionSentAt"` // unix ms
	Results        map[string][]AnswerRecord `json:"results"`

	// Fastest-finger only
	TimePerQuestion      int64            `json:"timePerQuestion,omitempty"` // milliseconds
	CurrentQuestionIndex int              `json:"currentQuestionIndex,omitempty"`
	QuestionStartTime    int64            `json:"questionStartTime,omitempty"` // unix ms
	QuestionAnswers      []QuestionAnswer `json:"questionAnswers,omitempty"`
}

// NewState initializes live state for a participant set. Scores keys always
// equal the set of participant ids for the session.
func NewState(mode types.GameMode, difficulty types.Difficulty, questions []database.Question, participantIDs []string, endTime time.Time) *State {
	s := &State{
		Questions:      questions,
		GameMode:       mode,
		Difficulty:     difficulty,
		EndTime:        endTime,
		Scores:         make(map[string]int, len(participantIDs)),
		UserProgress:   make(map[string]int, len(participantIDs)),
		QuestionSentAt: make(map[string]int64, len(participantIDs)),
		Results:        make(map[string][]AnswerRecord, len(participantIDs)),
	}
	for _, pid := range participantIDs {
		s.Scores[pid] = 0
		s.UserProgress[pid] = 0
		s.Results[pid] = nil
	}
	return s
}

// QuestionByID returns the question with the given id, or nil
func (s *State) QuestionByID(id string) *database.Question {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i]
		}
	}
	return nil
}

// CurrentQuestionFor returns the next question to serve to a participant in
// per-participant progression modes, or nil when the list is exhausted
func (s *State) CurrentQuestionFor(participantID string) *database.Question {
	idx := s.UserProgress[participantID]
	if idx < 0 || idx >= len(s.Questions) {
		return nil
	}
	return &s.Questions[idx]
}

// HasAnswered reports whether a participant already answered the current
// fastest-finger question
func (s *State) HasAnswered(participantID string) bool {
	for _, a := range s.QuestionAnswers {
		if a.ParticipantID == participantID {
			return true
		}
	}
	return false
}
