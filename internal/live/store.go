package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout in the ephemeral store
const (
	stateKeyPrefix    = "game:state:"
	timerJobKeyPrefix = "ff_timer_job:"
	leaderboardGlobal = "leaderboard:global"
	leaderboardUser   = "leaderboard:user:"
)

// Store holds per-session live state as TTL'd JSON blobs in redis, plus the
// single timer-job slot used for fastest-finger per-question cancellation.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a live-state store over the given redis client
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Get returns the live state for a session, or nil when absent
func (s *Store) Get(ctx context.Context, sessionID string) (*State, error) {
	raw, err := s.rdb.Get(ctx, stateKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read live state: %v", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode live state: %v", err)
	}
	return &state, nil
}

// Set writes the live state blob. A positive ttl (re)arms expiry; zero
// preserves whatever TTL the key already carries.
func (s *Store) Set(ctx context.Context, sessionID string, state *State, ttl time.Duration) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode live state: %v", err)
	}

	expiry := ttl
	if expiry == 0 {
		expiry = redis.KeepTTL
	}
	if err := s.rdb.Set(ctx, stateKeyPrefix+sessionID, raw, expiry).Err(); err != nil {
		return fmt.Errorf("failed to write live state: %v", err)
	}
	return nil
}

// Delete removes the live state and the timer-job slot for a session
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, stateKeyPrefix+sessionID, timerJobKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete live state: %v", err)
	}
	return nil
}

// SetTimerJob records the currently scheduled per-question timeout job id
func (s *Store) SetTimerJob(ctx context.Context, sessionID, jobID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, timerJobKeyPrefix+sessionID, jobID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store timer job id: %v", err)
	}
	return nil
}

// GetTimerJob returns the currently scheduled per-question timeout job id,
// or empty string when none is pending
func (s *Store) GetTimerJob(ctx context.Context, sessionID string) (string, error) {
	jobID, err := s.rdb.Get(ctx, timerJobKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to read timer job id: %v", err)
	}
	return jobID, nil
}

// ClearTimerJob removes the timer-job slot
func (s *Store) ClearTimerJob(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, timerJobKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear timer job id: %v", err)
	}
	return nil
}

// InvalidateLeaderboards drops the global leaderboard projection and the
// per-user projections for the given user ids
func (s *Store) InvalidateLeaderboards(ctx context.Context, userIDs ...string) error {
	keys := make([]string, 0, len(userIDs)+1)
	keys = append(keys, leaderboardGlobal)
	for _, id := range userIDs {
		keys = append(keys, leaderboardUser+id)
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate leaderboards: %v", err)
	}
	return nil
}
