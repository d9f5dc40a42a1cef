package bot

import (
	"math/rand"
	"sync"
	"time"

	"github.com/neo/quizrush_backend/internal/database"
	"github.com/neo/quizrush_backend/internal/types"
)

// Rating anchors for the linear interpolations
const (
	minRating = 600
	maxRating = 2800

	minAccuracy = 0.70
	maxAccuracy = 0.99
)

// Per-mode base delay bands, interpolated from minRating to maxRating, and
// the human bands the final delay is clamped into
var delayProfiles = map[types.GameMode]struct {
	baseSlow, baseFast time.Duration // at minRating / maxRating
	humanMin, humanMax time.Duration
}{
	types.ModeQuickDuel: {
		baseSlow: 4000 * time.Millisecond,
		baseFast: 1000 * time.Millisecond,
		humanMin: 800 * time.Millisecond,
		humanMax: 15000 * time.Millisecond,
	},
	types.ModeFastestFingerFirst: {
		baseSlow: 2500 * time.Millisecond,
		baseFast: 500 * time.Millisecond,
		humanMin: 400 * time.Millisecond,
		humanMax: 8000 * time.Millisecond,
	},
	types.ModeGroupPlay: {
		baseSlow: 4000 * time.Millisecond,
		baseFast: 1000 * time.Millisecond,
		humanMin: 800 * time.Millisecond,
		humanMax: 15000 * time.Millisecond,
	},
}

// Decision is a simulated opponent move: which option to submit and when
type Decision struct {
	OptionID string
	Delay    time.Duration
}

// Agent simulates opponent decisions. Stronger bots answer correctly more
// often and faster; timing noise keeps them from looking mechanical.
type Agent struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an agent seeded from the clock
func New() *Agent {
	return NewWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand creates an agent over a caller-supplied source, so tests can
// seed the randomness
func NewWithRand(rng *rand.Rand) *Agent {
	return &Agent{rng: rng}
}

// skill maps a rating onto [0, 1] across the anchor band
func skill(rating int) float64 {
	if rating <= minRating {
		return 0
	}
	if rating >= maxRating {
		return 1
	}
	return float64(rating-minRating) / float64(maxRating-minRating)
}

// Accuracy returns the probability a bot of the given rating answers
// correctly
func Accuracy(rating int) float64 {
	return minAccuracy + (maxAccuracy-minAccuracy)*skill(rating)
}

// ChooseAnswer picks an option and a submission delay for the given
// question. For fastest-finger, timeLimit caps the delay 100ms short of the
// question deadline so the bot never races past it; pass zero for modes
// without a per-question clock.
func (a *Agent) ChooseAnswer(q *database.Question, mode types.GameMode, rating int, timeLimit time.Duration) Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	optionID := q.CorrectOptionID
	if a.rng.Float64() >= Accuracy(rating) {
		optionID = a.wrongOption(q)
	}

	return Decision{
		OptionID: optionID,
		Delay:    a.delay(mode, rating, timeLimit),
	}
}

// wrongOption draws uniformly from the non-correct options. A question with
// no wrong options falls back to the correct one.
func (a *Agent) wrongOption(q *database.Question) string {
	wrong := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt.ID != q.CorrectOptionID {
			wrong = append(wrong, opt.ID)
		}
	}
	if len(wrong) == 0 {
		return q.CorrectOptionID
	}
	return wrong[a.rng.Intn(len(wrong))]
}

func (a *Agent) delay(mode types.GameMode, rating int, timeLimit time.Duration) time.Duration {
	profile, ok := delayProfiles[mode]
	if !ok {
		profile = delayProfiles[types.ModeQuickDuel]
	}

	s := skill(rating)
	base := float64(profile.baseSlow) + (float64(profile.baseFast)-float64(profile.baseSlow))*s

	// ±30% jitter
	factor := 0.7 + a.rng.Float64()*0.6

	// Thinking pause and quick response are mutually exclusive
	switch roll := a.rng.Float64(); {
	case roll < 0.10:
		factor *= 1.5 + a.rng.Float64()*1.5 // 1.5–3.0× pause
	case roll < 0.25:
		factor *= 0.4 + a.rng.Float64()*0.4 // 0.4–0.8× snap answer
	}

	// Consistency rises with rating
	factor *= 0.7 + 0.6*s

	d := time.Duration(base * factor)
	if d < profile.humanMin {
		d = profile.humanMin
	}
	if d > profile.humanMax {
		d = profile.humanMax
	}

	if timeLimit > 0 {
		limit := timeLimit - 100*time.Millisecond
		if limit < 0 {
			limit = 0
		}
		if d > limit {
			d = limit
		}
	}
	return d
}
