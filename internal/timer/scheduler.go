package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neo/quizrush_backend/internal/logging"
)

// Queues used by the core
const (
	QueueGameTimers     = "game-timers"
	QueueLobbyCountdown = "lobby-countdown-jobs"
)

// GameTimerPayload is carried on the game-timers queue. QuestionID selects
// the action: "game-end" terminates the whole game, "next-question" advances
// a fastest-finger session past the inter-question gap, and any other value
// times out that single fastest-finger question.
type GameTimerPayload struct {
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
}

// QuestionID sentinels on the game-timers queue
const (
	JobGameEnd      = "game-end"
	JobNextQuestion = "next-question"
)

// LobbyCountdownPayload is carried on the lobby-countdown-jobs queue
type LobbyCountdownPayload struct {
	SessionID string `json:"sessionId"`
}

func queueKey(queue string) string      { return "jobs:" + queue + ":due" }
func payloadKey(queue string) string    { return "jobs:" + queue + ":payload" }
func processingKey(queue string) string { return "jobs:" + queue + ":processing" }

// Scheduler enqueues and cancels delayed jobs. Jobs live in redis (a sorted
// set keyed by due time plus a payload hash) so they survive worker
// restarts. Enqueueing a jobID that is already pending is a no-op.
type Scheduler struct {
	rdb *redis.Client
}

// NewScheduler creates a scheduler over the given redis client
func NewScheduler(rdb *redis.Client) *Scheduler {
	return &Scheduler{rdb: rdb}
}

// Schedule delivers payload to the queue's worker after delay, uniquely
// keyed by jobID
func (s *Scheduler) Schedule(ctx context.Context, queue string, payload interface{}, delay time.Duration, jobID string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode job payload: %v", err)
	}

	// Payload first so a concurrent worker can never claim a job it cannot
	// load. A duplicate enqueue rewrites an identical payload.
	if err := s.rdb.HSet(ctx, payloadKey(queue), jobID, raw).Err(); err != nil {
		return fmt.Errorf("failed to store job payload: %v", err)
	}

	due := float64(time.Now().Add(delay).UnixMilli())
	added, err := s.rdb.ZAddNX(ctx, queueKey(queue), redis.Z{Score: due, Member: jobID}).Result()
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %v", err)
	}

	logging.LogTimerEvent("job_scheduled", queue, jobID, map[string]interface{}{
		"delay_ms":  delay.Milliseconds(),
		"duplicate": added == 0,
	})
	return nil
}

// Cancel removes a pending job. Cancelling a job that already fired or never
// existed is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, queue string, jobID string) error {
	removed, err := s.rdb.ZRem(ctx, queueKey(queue), jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to cancel job: %v", err)
	}
	// A claimed-but-unfinished job must not come back through the lease reaper
	if err := s.rdb.ZRem(ctx, processingKey(queue), jobID).Err(); err != nil {
		return fmt.Errorf("failed to cancel claimed job: %v", err)
	}
	if err := s.rdb.HDel(ctx, payloadKey(queue), jobID).Err(); err != nil {
		return fmt.Errorf("failed to drop job payload: %v", err)
	}

	logging.LogTimerEvent("job_cancelled", queue, jobID, map[string]interface{}{
		"was_pending": removed > 0,
	})
	return nil
}
