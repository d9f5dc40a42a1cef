package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGameMode(t *testing.T) {
	for _, mode := range AllGameModes {
		parsed, err := ParseGameMode(string(mode))
		assert.NoError(t, err)
		assert.Equal(t, mode, parsed)
		assert.True(t, mode.IsValid())
	}

	_, err := ParseGameMode("SPEED_ROUND")
	assert.ErrorIs(t, err, ErrInvalidGameMode)
	assert.False(t, GameMode("SPEED_ROUND").IsValid())
}

func TestParseDifficulty(t *testing.T) {
	for _, tier := range AllDifficulties {
		parsed, err := ParseDifficulty(string(tier))
		assert.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}

	_, err := ParseDifficulty("NIGHTMARE")
	assert.ErrorIs(t, err, ErrInvalidDifficulty)
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.True(t, StatusFinished.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusWaiting.IsTerminal())
	assert.False(t, StatusLobby.IsTerminal())
	assert.False(t, StatusReadyCountdown.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
}

func TestDifficultyFromRating(t *testing.T) {
	tests := []struct {
		rating int
		want   Difficulty
	}{
		{600, DifficultyEasy},
		{1299, DifficultyEasy},
		{1300, DifficultyMedium},
		{1599, DifficultyMedium},
		{1600, DifficultyHard},
		{2800, DifficultyHard},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DifficultyFromRating(tt.rating), "rating %d", tt.rating)
	}
}
