package timer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neo/quizrush_backend/internal/logging"
)

// Handler consumes one delivered job. Delivery is at-least-once; handlers
// must be idempotent.
type Handler func(ctx context.Context, jobID string, payload []byte)

// defaultLease bounds how long a claimed job may run before other workers
// assume the claimant died and redeliver it
const defaultLease = 30 * time.Second

// moveJob atomically transfers a member between two sorted sets. Exactly one
// caller wins a contested move; the rest see 0.
var moveJob = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 1 then
	redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
	return 1
end
return 0
`)

// Worker polls the job queues and dispatches due jobs to their registered
// handlers. A claim moves the job from the due set into a per-queue
// processing set scored by lease expiry; the durable record is dropped only
// after the handler returns, so a worker that dies mid-handler leaves a job
// the lease reaper re-enqueues instead of a lost one.
type Worker struct {
	rdb          *redis.Client
	pollInterval time.Duration
	lease        time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWorker creates a worker with the given poll interval
func NewWorker(rdb *redis.Client, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Worker{
		rdb:          rdb,
		pollInterval: pollInterval,
		lease:        defaultLease,
		handlers:     make(map[string]Handler),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Register binds a handler to a queue. Must be called before Start.
func (w *Worker) Register(queue string, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[queue] = handler
}

// Start runs the polling loop until Stop is called or ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.doneCh)

		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	}()
}

// Stop terminates the polling loop and waits for it to exit
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Worker) poll(ctx context.Context) {
	w.mu.RLock()
	queues := make([]string, 0, len(w.handlers))
	for queue := range w.handlers {
		queues = append(queues, queue)
	}
	w.mu.RUnlock()

	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	for _, queue := range queues {
		w.reap(ctx, queue, now)

		due, err := w.rdb.ZRangeByScore(ctx, queueKey(queue), &redis.ZRangeBy{
			Min: "-inf", Max: now, Count: 32,
		}).Result()
		if err != nil {
			logging.Error("Failed to poll job queue", map[string]interface{}{
				"queue": queue,
				"error": err.Error(),
			})
			continue
		}

		for _, jobID := range due {
			w.claim(ctx, queue, jobID)
		}
	}
}

// reap re-enqueues jobs whose claimant never finished within its lease
func (w *Worker) reap(ctx context.Context, queue, now string) {
	expired, err := w.rdb.ZRangeByScore(ctx, processingKey(queue), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 32,
	}).Result()
	if err != nil {
		logging.Error("Failed to scan processing set", map[string]interface{}{
			"queue": queue,
			"error": err.Error(),
		})
		return
	}

	for _, jobID := range expired {
		moved, err := moveJob.Run(ctx, w.rdb, []string{processingKey(queue), queueKey(queue)}, jobID, now).Int()
		if err != nil || moved == 0 {
			continue
		}
		logging.LogTimerEvent("job_lease_expired", queue, jobID, nil)
	}
}

func (w *Worker) claim(ctx context.Context, queue, jobID string) {
	leaseUntil := strconv.FormatInt(time.Now().Add(w.lease).UnixMilli(), 10)
	claimed, err := moveJob.Run(ctx, w.rdb, []string{queueKey(queue), processingKey(queue)}, jobID, leaseUntil).Int()
	if err != nil || claimed == 0 {
		// Another worker claimed it, or the job was cancelled underneath us
		return
	}

	payload, err := w.rdb.HGet(ctx, payloadKey(queue), jobID).Bytes()
	if err == redis.Nil {
		payload = nil
	} else if err != nil {
		logging.Error("Failed to load job payload", map[string]interface{}{
			"queue":  queue,
			"job_id": jobID,
			"error":  err.Error(),
		})
		// The job stays claimed; the lease reaper redelivers it
		return
	}

	w.mu.RLock()
	handler := w.handlers[queue]
	w.mu.RUnlock()
	if handler != nil {
		logging.LogTimerEvent("job_delivered", queue, jobID, nil)
		handler(ctx, jobID, payload)
	}

	// The durable record goes away only after the handler has run
	w.rdb.ZRem(ctx, processingKey(queue), jobID)
	w.rdb.HDel(ctx, payloadKey(queue), jobID)
}
