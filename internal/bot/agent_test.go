package bot

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/types"
)

func testQuestion() *database.Question {
	return &database.Question{
		ID: "q1",
		Options: []database.Option{
			{ID: "a", Text: "right"},
			{ID: "b", Text: "wrong 1"},
			{ID: "c", Text: "wrong 2"},
			{ID: "d", Text: "wrong 3"},
		},
		CorrectOptionID: "a",
	}
}

func TestAccuracyInterpolation(t *testing.T) {
	assert.InDelta(t, 0.70, Accuracy(600), 1e-9)
	assert.InDelta(t, 0.99, Accuracy(2800), 1e-9)
	assert.InDelta(t, 0.845, Accuracy(1700), 1e-9)

	// Clamped outside the anchor band
	assert.InDelta(t, 0.70, Accuracy(100), 1e-9)
	assert.InDelta(t, 0.99, Accuracy(3500), 1e-9)
}

func TestAccuracyMatchesObservedFrequency(t *testing.T) {
	agent := NewWithRand(rand.New(rand.NewSource(42)))
	q := testQuestion()

	const trials = 5000
	correct := 0
	for i := 0; i < trials; i++ {
		d := agent.ChooseAnswer(q, types.ModeQuickDuel, 1200, 0)
		if d.OptionID == q.CorrectOptionID {
			correct++
		}
	}

	want := Accuracy(1200)
	got := float64(correct) / trials
	assert.InDelta(t, want, got, 0.03)
}

func TestWrongOptionNeverCorrectByConstruction(t *testing.T) {
	agent := NewWithRand(rand.New(rand.NewSource(7)))
	q := testQuestion()

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		opt := agent.wrongOption(q)
		require.NotEqual(t, q.CorrectOptionID, opt)
		seen[opt] = true
	}
	// All wrong options get drawn eventually
	assert.Len(t, seen, 3)
}

func TestDelayStaysInHumanBand(t *testing.T) {
	agent := NewWithRand(rand.New(rand.NewSource(99)))
	q := testQuestion()

	for _, tc := range []struct {
		mode     types.GameMode
		min, max time.Duration
	}{
		{types.ModeQuickDuel, 800 * time.Millisecond, 15000 * time.Millisecond},
		{types.ModeFastestFingerFirst, 400 * time.Millisecond, 8000 * time.Millisecond},
		{types.ModeGroupPlay, 800 * time.Millisecond, 15000 * time.Millisecond},
	} {
		for _, rating := range []int{400, 900, 1500, 2200, 3000} {
			for i := 0; i < 200; i++ {
				d := agent.ChooseAnswer(q, tc.mode, rating, 0)
				assert.GreaterOrEqual(t, d.Delay, tc.min, "mode %s rating %d", tc.mode, rating)
				assert.LessOrEqual(t, d.Delay, tc.max, "mode %s rating %d", tc.mode, rating)
			}
		}
	}
}

func TestDelayCappedUnderQuestionDeadline(t *testing.T) {
	agent := NewWithRand(rand.New(rand.NewSource(3)))
	q := testQuestion()

	limit := 2 * time.Second
	for i := 0; i < 500; i++ {
		d := agent.ChooseAnswer(q, types.ModeFastestFingerFirst, 800, limit)
		assert.LessOrEqual(t, d.Delay, limit-100*time.Millisecond)
	}
}

func TestStrongerBotsAnswerFasterOnAverage(t *testing.T) {
	agent := NewWithRand(rand.New(rand.NewSource(11)))
	q := testQuestion()

	mean := func(rating int) time.Duration {
		var total time.Duration
		const n = 2000
		for i := 0; i < n; i++ {
			total += agent.ChooseAnswer(q, types.ModeQuickDuel, rating, 0).Delay
		}
		return total / n
	}

	assert.Less(t, mean(2600), mean(800))
}

func TestUnknownModeFallsBackToQuickDuelBand(t *testing.T) {
	agent := NewWithRand(rand.New(rand.NewSource(5)))
	q := testQuestion()

	for i := 0; i < 200; i++ {
		d := agent.ChooseAnswer(q, types.ModePractice, 1200, 0)
		assert.GreaterOrEqual(t, d.Delay, 800*time.Millisecond)
		assert.LessOrEqual(t, d.Delay, 15000*time.Millisecond)
	}
}
