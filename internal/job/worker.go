package job

import (
	"context"
	"time"

	"github.com/cryptotracker/internal/logging"
)

// SnapshotRunner executes one snapshot collection run for a user
type SnapshotRunner interface {
	Run(ctx context.Context, userID string) error
}

// Worker drains the snapshot queue and executes collection runs.
// A failed run is still marked complete: its failures live in the error
// ledger, and leaving the group pending would just hang the poll endpoint.
type Worker struct {
	queue       *SnapshotQueue
	runner      SnapshotRunner
	pollTimeout time.Duration
	logger      *logging.Logger
}

// NewWorker creates a snapshot worker
func NewWorker(queue *SnapshotQueue, runner SnapshotRunner, pollTimeout time.Duration, logger *logging.Logger) *Worker {
	return &Worker{
		queue:       queue,
		runner:      runner,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Start processes jobs until the context is cancelled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("snapshot worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("snapshot worker stopping")
			return ctx.Err()
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.WithError(err).Error("failed to dequeue snapshot job")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *SnapshotJob) {
	logger := w.logger.WithFields(map[string]interface{}{
		"groupId": job.GroupID,
		"userId":  job.UserID,
	})

	if err := w.runner.Run(ctx, job.UserID); err != nil {
		logger.WithError(err).Error("snapshot run failed")
	}

	if err := w.queue.MarkComplete(ctx, job.GroupID); err != nil {
		logger.WithError(err).Error("failed to mark job group complete")
		return
	}

	logger.Info("snapshot job finished")
}
