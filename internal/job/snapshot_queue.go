// Package job implements the snapshot collection job queue.
// The request path only enqueues work and stores an opaque job-group handle;
// a separate collector worker drains the queue and reports completion through
// the same handle.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const jobQueueKey = "snapshot:jobs"

func groupKey(groupID string) string {
	return "snapshot:group:" + groupID
}

// SnapshotJob is one queued collection request
type SnapshotJob struct {
	GroupID    string    `json:"groupId"`
	UserID     string    `json:"userId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// SnapshotQueue is a Redis-backed queue of snapshot collection jobs with
// per-group completion state.
type SnapshotQueue struct {
	redis *storage.RedisStore
	ttl   time.Duration
}

// NewSnapshotQueue creates a snapshot job queue
func NewSnapshotQueue(redis *storage.RedisStore, ttl time.Duration) *SnapshotQueue {
	return &SnapshotQueue{redis: redis, ttl: ttl}
}

// Enqueue queues a collection run for the user and returns the job-group
// handle callers poll with.
func (q *SnapshotQueue) Enqueue(ctx context.Context, userID string) (string, error) {
	job := SnapshotJob{
		GroupID:    uuid.New().String(),
		UserID:     userID,
		EnqueuedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot job: %w", err)
	}

	if err := q.redis.Client().Set(ctx, groupKey(job.GroupID), string(types.JobPending), q.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to mark job group pending: %w", err)
	}

	if err := q.redis.Client().LPush(ctx, jobQueueKey, payload).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue snapshot job: %w", err)
	}

	return job.GroupID, nil
}

// Dequeue pops the next job, blocking up to timeout. Returns nil when the
// queue stayed empty.
func (q *SnapshotQueue) Dequeue(ctx context.Context, timeout time.Duration) (*SnapshotJob, error) {
	result, err := q.redis.Client().BRPop(ctx, timeout, jobQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue snapshot job: %w", err)
	}

	// BRPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var job SnapshotJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot job: %w", err)
	}

	return &job, nil
}

// MarkComplete records that every task in the job group finished
func (q *SnapshotQueue) MarkComplete(ctx context.Context, groupID string) error {
	if err := q.redis.Client().Set(ctx, groupKey(groupID), string(types.JobComplete), q.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark job group complete: %w", err)
	}
	return nil
}

// Status reports the state of a job group. An unknown or expired handle is
// reported complete, matching how the poll endpoint treats a session without
// a pending refresh. A stuck worker leaves the group pending until the handle
// expires; the poll endpoint keeps reporting pending, which is accepted
// degradation rather than an error.
func (q *SnapshotQueue) Status(ctx context.Context, groupID string) (types.JobStatus, error) {
	value, err := q.redis.Client().Get(ctx, groupKey(groupID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.JobComplete, nil
		}
		return "", fmt.Errorf("failed to read job group status: %w", err)
	}

	if value == string(types.JobComplete) {
		return types.JobComplete, nil
	}
	return types.JobPending, nil
}
