package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/models"
	"github.com/jonasrichard/mediamosaic/internal/sandbox"
)

// Coordinator accepts sync requests and hands them to the worker.
type Coordinator struct {
	sandbox  *sandbox.Sandbox
	queue    *Queue
	recorder Recorder
	events   Publisher
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator and hooks it into queue so every
// accepted command is recorded before the worker can see it.
func NewCoordinator(sb *sandbox.Sandbox, queue *Queue, recorder Recorder, events Publisher, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		sandbox:  sb,
		queue:    queue,
		recorder: recorder,
		events:   events,
		logger:   logging.Component(logger, "coordinator"),
	}
	queue.OnQueued = c.accepted
	return c
}

// Sync validates relPath and queues a rebuild of that directory. It blocks
// while the queue is full. Requests for a directory that is already waiting
// return the waiting command.
func (c *Coordinator) Sync(ctx context.Context, relPath string) (*Command, error) {
	dirPath, err := c.sandbox.ToAbsolute(relPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, apperrors.IO("sync", dirPath, err)
	}
	if !info.IsDir() {
		return nil, apperrors.IO("sync", dirPath, errors.New("not a directory"))
	}

	rel, err := c.sandbox.ToRelative(dirPath)
	if err != nil {
		return nil, err
	}

	cmd, merged, err := c.queue.Enqueue(ctx, rel)
	if err != nil {
		if cmd != nil && c.recorder != nil {
			if rerr := c.recorder.FinishRun(context.WithoutCancel(ctx), cmd.ID, 0, 0, err, time.Now()); rerr != nil {
				c.logger.Warn("failed to record abandoned run", "run", cmd.ID, "error", rerr)
			}
		}
		return nil, err
	}
	if merged {
		c.logger.Debug("sync already queued", "run", cmd.ID, "dir", rel)
	}
	return cmd, nil
}

// QueueDepth returns the number of commands waiting for the worker.
func (c *Coordinator) QueueDepth() int {
	return c.queue.Len()
}

func (c *Coordinator) accepted(cmd *Command) {
	c.logger.Info("sync queued", "run", cmd.ID, "dir", cmd.Directory)

	if c.recorder != nil {
		run := &models.SyncRun{
			ID:        cmd.ID,
			Directory: cmd.Directory,
			Status:    models.SyncQueued,
			QueuedAt:  cmd.QueuedAt,
		}
		if err := c.recorder.InsertRun(context.Background(), run); err != nil {
			c.logger.Warn("failed to record queued run", "run", cmd.ID, "error", err)
		}
	}
	if c.events != nil {
		c.events.Publish(models.SyncEvent{
			Type:      models.EventSyncQueued,
			RunID:     cmd.ID,
			Directory: cmd.Directory,
			Timestamp: cmd.QueuedAt,
		})
	}
}
