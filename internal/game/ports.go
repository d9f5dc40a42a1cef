package game

import (
	"context"
	"time"

	"github.com/neo/quizrush_backend/internal/live"
)

// LiveStore is the ephemeral per-session state store the engine checkpoints
// into. The redis-backed live.Store is the production implementation; tests
// substitute an in-memory fake.
type LiveStore interface {
	Get(ctx context.Context, sessionID string) (*live.State, error)
	Set(ctx context.Context, sessionID string, state *live.State, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
	SetTimerJob(ctx context.Context, sessionID, jobID string, ttl time.Duration) error
	GetTimerJob(ctx context.Context, sessionID string) (string, error)
	ClearTimerJob(ctx context.Context, sessionID string) error
	InvalidateLeaderboards(ctx context.Context, userIDs ...string) error
}

// Timers is the durable delayed-job dispatcher
type Timers interface {
	Schedule(ctx context.Context, queue string, payload interface{}, delay time.Duration, jobID string) error
	Cancel(ctx context.Context, queue string, jobID string) error
}

// Emitter fans game events out to the gateway
type Emitter interface {
	EmitToUsers(ctx context.Context, userIDs []string, event string, payload interface{}) error
	EmitToParticipants(ctx context.Context, participantIDs []string, event string, payload interface{}) error
	EmitToRoom(ctx context.Context, sessionID string, event string, payload interface{}) error
}
