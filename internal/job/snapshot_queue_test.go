package job

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, ttl time.Duration) (*SnapshotQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSnapshotQueue(storage.NewRedisStoreWithClient(client), ttl), mr
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, time.Hour)

	groupID, err := queue.Enqueue(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, groupID)

	job, err := queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, groupID, job.GroupID)
	assert.Equal(t, "user-1", job.UserID)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestDequeueOrderIsFIFO(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, time.Hour)

	first, err := queue.Enqueue(ctx, "user-1")
	require.NoError(t, err)
	second, err := queue.Enqueue(ctx, "user-2")
	require.NoError(t, err)

	job, err := queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, job.GroupID)

	job, err = queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second, job.GroupID)
}

func TestDequeueEmptyReturnsNil(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, time.Hour)

	job, err := queue.Dequeue(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, time.Hour)

	groupID, err := queue.Enqueue(ctx, "user-1")
	require.NoError(t, err)

	status, err := queue.Status(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, types.JobPending, status)

	require.NoError(t, queue.MarkComplete(ctx, groupID))

	status, err = queue.Status(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, types.JobComplete, status)
}

func TestStatusUnknownGroupReportsComplete(t *testing.T) {
	ctx := context.Background()
	queue, _ := newTestQueue(t, time.Hour)

	status, err := queue.Status(ctx, "never-enqueued")
	require.NoError(t, err)
	assert.Equal(t, types.JobComplete, status)
}

func TestStatusExpiredGroupReportsComplete(t *testing.T) {
	ctx := context.Background()
	queue, mr := newTestQueue(t, time.Minute)

	groupID, err := queue.Enqueue(ctx, "user-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	status, err := queue.Status(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, types.JobComplete, status)
}
