package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	ran chan string
	err error
}

func (m *mockRunner) Run(ctx context.Context, userID string) error {
	m.ran <- userID
	return m.err
}

func testLogger() *logging.Logger {
	return logging.New(logging.LevelFatal, logging.FormatText)
}

func waitForStatus(t *testing.T, queue *SnapshotQueue, groupID string, want types.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := queue.Status(context.Background(), groupID)
		require.NoError(t, err)
		if status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job group %s never reached status %s", groupID, want)
}

func TestWorkerProcessesJob(t *testing.T) {
	queue, _ := newTestQueue(t, time.Hour)
	runner := &mockRunner{ran: make(chan string, 1)}
	worker := NewWorker(queue, runner, 50*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	groupID, err := queue.Enqueue(ctx, "user-1")
	require.NoError(t, err)

	select {
	case userID := <-runner.ran:
		assert.Equal(t, "user-1", userID)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never ran the job")
	}

	waitForStatus(t, queue, groupID, types.JobComplete)
}

func TestWorkerMarksFailedRunComplete(t *testing.T) {
	queue, _ := newTestQueue(t, time.Hour)
	runner := &mockRunner{ran: make(chan string, 1), err: errors.New("collection blew up")}
	worker := NewWorker(queue, runner, 50*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	groupID, err := queue.Enqueue(ctx, "user-1")
	require.NoError(t, err)

	<-runner.ran

	// A failed run must not leave the poll endpoint hanging on pending
	waitForStatus(t, queue, groupID, types.JobComplete)
}
