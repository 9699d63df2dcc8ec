package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/models"
)

// Recorder persists the sync history. *storage.DB satisfies it.
type Recorder interface {
	InsertRun(ctx context.Context, run *models.SyncRun) error
	MarkRunning(ctx context.Context, id string, at time.Time) error
	FinishRun(ctx context.Context, id string, images, bundles int, runErr error, at time.Time) error
}

// Publisher receives status changes. *websocket.Hub satisfies it.
type Publisher interface {
	Publish(event models.SyncEvent)
}

// Runner rebuilds one directory. *Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, relPath string) (*Result, error)
}

// Worker is the single consumer of a Queue.
type Worker struct {
	queue    *Queue
	runner   Runner
	recorder Recorder
	events   Publisher
	logger   *slog.Logger
}

// NewWorker creates a Worker. recorder and events may be nil.
func NewWorker(queue *Queue, runner Runner, recorder Recorder, events Publisher, logger *slog.Logger) *Worker {
	return &Worker{
		queue:    queue,
		runner:   runner,
		recorder: recorder,
		events:   events,
		logger:   logging.Component(logger, "worker"),
	}
}

// Run processes commands until ctx is done or the queue is closed and
// drained. A failing command is logged and never stops the loop. The command
// in progress when ctx is cancelled runs to completion.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("sync worker started")
	defer w.logger.Info("sync worker stopped")

	for {
		cmd, err := w.queue.Next(ctx)
		if err != nil {
			if errors.Is(err, apperrors.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		w.handle(context.WithoutCancel(ctx), cmd)
	}
}

func (w *Worker) handle(ctx context.Context, cmd *Command) {
	logger := w.logger.With("run", cmd.ID, "dir", cmd.Directory)
	logger.Info("sync started", "waited", time.Since(cmd.QueuedAt).Round(time.Millisecond))

	if w.recorder != nil {
		if err := w.recorder.MarkRunning(ctx, cmd.ID, time.Now()); err != nil {
			logger.Warn("failed to record run start", "error", err)
		}
	}
	w.publish(models.SyncEvent{Type: models.EventSyncStarted, RunID: cmd.ID, Directory: cmd.Directory})

	res, err := w.process(ctx, cmd)

	images, bundles := 0, 0
	if res != nil {
		images, bundles = res.Images, res.Bundles
	}
	if w.recorder != nil {
		if rerr := w.recorder.FinishRun(ctx, cmd.ID, images, bundles, err, time.Now()); rerr != nil {
			logger.Warn("failed to record run result", "error", rerr)
		}
	}

	if err != nil {
		logger.Error("sync failed", "kind", apperrors.KindOf(err), "error", err)
		w.publish(models.SyncEvent{Type: models.EventSyncFailed, RunID: cmd.ID, Directory: cmd.Directory, Error: err.Error()})
		return
	}

	logger.Info("sync finished", "images", images, "bundles", bundles, "took", res.Duration.Round(time.Millisecond))
	w.publish(models.SyncEvent{
		Type:        models.EventSyncDone,
		RunID:       cmd.ID,
		Directory:   cmd.Directory,
		ImageCount:  images,
		BundleCount: bundles,
	})
}

// process runs the pipeline, turning a panic into an error.
func (w *Worker) process(ctx context.Context, cmd *Command) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("sync panicked", "run", cmd.ID, "panic", r, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("sync panicked: %v", r)
		}
	}()
	return w.runner.Run(ctx, cmd.Directory)
}

func (w *Worker) publish(event models.SyncEvent) {
	if w.events == nil {
		return
	}
	event.Timestamp = time.Now()
	w.events.Publish(event)
}
