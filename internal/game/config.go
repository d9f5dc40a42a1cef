package game

import (
	"os"
	"strconv"
)

// Config holds the knobs the core recognizes. Everything else is wiring.
type Config struct {
	MatchRatingBand     int // matchmaking rating window
	MatchTimeoutSeconds int
	FFFDurationMinutes  int   // fastest-finger default whole-game duration
	FFFQuestionMillis   int64 // fastest-finger per-question limit
	QuestionBatchSize   int
	CountdownSeconds    int // lobby ready countdown
	KFactor             int
	BotDefaultRating    int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MatchRatingBand:     200,
		MatchTimeoutSeconds: 30,
		FFFDurationMinutes:  2,
		FFFQuestionMillis:   30000,
		QuestionBatchSize:   50,
		CountdownSeconds:    10,
		KFactor:             32,
		BotDefaultRating:    1200,
	}
}

// LoadConfig reads overrides from the environment on top of the defaults
func LoadConfig() Config {
	cfg := DefaultConfig()
	envInt("MATCH_RATING_BAND", &cfg.MatchRatingBand)
	envInt("MATCH_TIMEOUT_SECONDS", &cfg.MatchTimeoutSeconds)
	envInt("FFF_DURATION_MINUTES", &cfg.FFFDurationMinutes)
	envInt64("FFF_QUESTION_MILLIS", &cfg.FFFQuestionMillis)
	envInt("QUESTION_BATCH_SIZE", &cfg.QuestionBatchSize)
	envInt("COUNTDOWN_SECONDS", &cfg.CountdownSeconds)
	envInt("RATING_K_FACTOR", &cfg.KFactor)
	envInt("BOT_DEFAULT_RATING", &cfg.BotDefaultRating)
	return cfg
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
