package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/models"
	"github.com/jonasrichard/mediamosaic/internal/sandbox"
	"github.com/jonasrichard/mediamosaic/internal/sidecar"
	"github.com/jonasrichard/mediamosaic/internal/testutils"
)

type fakeRunner struct {
	mu      sync.Mutex
	ran     []string
	started chan string
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, dir string) (*Result, error) {
	if f.started != nil {
		f.started <- dir
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	f.ran = append(f.ran, dir)
	f.mu.Unlock()

	switch dir {
	case "panic":
		panic("corrupt state")
	case "fail":
		return nil, apperrors.IO("list directory", dir, errors.New("permission denied"))
	}
	return &Result{Directory: dir, Images: 2, Bundles: 1}, nil
}

func (f *fakeRunner) Ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs map[string]*models.SyncRun
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{runs: make(map[string]*models.SyncRun)}
}

func (f *fakeRecorder) InsertRun(_ context.Context, run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeRecorder) MarkRunning(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return fmt.Errorf("unknown run %s", id)
	}
	run.Status = models.SyncRunning
	run.StartedAt = &at
	return nil
}

func (f *fakeRecorder) FinishRun(_ context.Context, id string, images, bundles int, runErr error, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return fmt.Errorf("unknown run %s", id)
	}
	run.Status = models.SyncDone
	if runErr != nil {
		run.Status = models.SyncFailed
		run.Error = runErr.Error()
	}
	run.ImageCount, run.BundleCount = images, bundles
	run.FinishedAt = &at
	return nil
}

func (f *fakeRecorder) Get(id string) models.SyncRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.runs[id]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.SyncEvent
}

func (f *fakePublisher) Publish(event models.SyncEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) Types(runID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, e := range f.events {
		if e.RunID == runID {
			types = append(types, e.Type)
		}
	}
	return types
}

type harness struct {
	root     string
	queue    *Queue
	coord    *Coordinator
	recorder *fakeRecorder
	events   *fakePublisher
	done     chan error
}

func startWorker(t *testing.T, runner Runner, dirs ...string) *harness {
	t.Helper()

	root := t.TempDir()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0755))
	}
	sb, err := sandbox.New(root)
	require.NoError(t, err)

	h := &harness{
		root:     root,
		queue:    NewQueue(16),
		recorder: newFakeRecorder(),
		events:   &fakePublisher{},
		done:     make(chan error, 1),
	}
	h.coord = NewCoordinator(sb, h.queue, h.recorder, h.events, logging.Discard())
	worker := NewWorker(h.queue, runner, h.recorder, h.events, logging.Discard())

	go func() { h.done <- worker.Run(context.Background()) }()
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()

	h.queue.Close()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerSurvivesFailures(t *testing.T) {
	runner := &fakeRunner{}
	h := startWorker(t, runner, "panic", "fail", "ok")
	ctx := context.Background()

	var ids []string
	for _, dir := range []string{"panic", "fail", "ok"} {
		cmd, err := h.coord.Sync(ctx, dir)
		require.NoError(t, err)
		ids = append(ids, cmd.ID)
	}
	h.stop(t)

	assert.Equal(t, []string{"panic", "fail", "ok"}, runner.Ran())

	panicked := h.recorder.Get(ids[0])
	assert.Equal(t, models.SyncFailed, panicked.Status)
	assert.Contains(t, panicked.Error, "corrupt state")

	failed := h.recorder.Get(ids[1])
	assert.Equal(t, models.SyncFailed, failed.Status)
	assert.Contains(t, failed.Error, "permission denied")

	ok := h.recorder.Get(ids[2])
	assert.Equal(t, models.SyncDone, ok.Status)
	assert.Equal(t, 2, ok.ImageCount)
	require.NotNil(t, ok.StartedAt)

	assert.Equal(t, []string{models.EventSyncQueued, models.EventSyncStarted, models.EventSyncFailed}, h.events.Types(ids[0]))
	assert.Equal(t, []string{models.EventSyncQueued, models.EventSyncStarted, models.EventSyncDone}, h.events.Types(ids[2]))
}

func TestSeventeenthEnqueueWaitsForBusyWorker(t *testing.T) {
	runner := &fakeRunner{started: make(chan string, 32), release: make(chan struct{})}
	dirs := make([]string, 18)
	for i := range dirs {
		dirs[i] = fmt.Sprintf("d%02d", i)
	}
	h := startWorker(t, runner, dirs...)
	ctx := context.Background()

	_, err := h.coord.Sync(ctx, dirs[0])
	require.NoError(t, err)
	<-runner.started // the worker is now busy with d00

	for _, d := range dirs[1:17] {
		_, err := h.coord.Sync(ctx, d)
		require.NoError(t, err)
	}
	assert.Equal(t, 16, h.coord.QueueDepth())

	blocked := make(chan error, 1)
	go func() {
		_, err := h.coord.Sync(ctx, dirs[17])
		blocked <- err
	}()

	select {
	case err := <-blocked:
		t.Fatalf("17th pending sync did not wait: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
	select {
	case err := <-blocked:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("17th sync never got a slot")
	}

	h.stop(t)
	assert.Equal(t, dirs, runner.Ran())
}

func TestCoordinatorValidatesPath(t *testing.T) {
	h := startWorker(t, &fakeRunner{})
	defer h.stop(t)
	ctx := context.Background()

	_, err := h.coord.Sync(ctx, "../outside")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPath))
	assert.Equal(t, 400, apperrors.HTTPStatus(err))

	_, err = h.coord.Sync(ctx, "missing")
	assert.Equal(t, 404, apperrors.HTTPStatus(err))

	testutils.WriteFile(t, h.root, "file.jpg", []byte("x"))
	_, err = h.coord.Sync(ctx, "file.jpg")
	assert.True(t, errors.Is(err, apperrors.ErrIO))
}

func TestCoordinatorAfterClose(t *testing.T) {
	h := startWorker(t, &fakeRunner{}, "a")
	h.stop(t)

	_, err := h.coord.Sync(context.Background(), "a")
	assert.True(t, errors.Is(err, apperrors.ErrQueueClosed))
	assert.Equal(t, 503, apperrors.HTTPStatus(err))
}

func TestWorkerEndToEnd(t *testing.T) {
	root := t.TempDir()
	testutils.CreateWorkedExample(t, filepath.Join(root, "album"))

	sb, err := sandbox.New(root)
	require.NoError(t, err)
	queue := NewQueue(4)
	events := &fakePublisher{}
	coord := NewCoordinator(sb, queue, nil, events, logging.Discard())
	worker := NewWorker(queue, newPipeline(t, root), nil, events, logging.Discard())

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	cmd, err := coord.Sync(context.Background(), "album/")
	require.NoError(t, err)
	assert.Equal(t, "album", cmd.Directory)

	queue.Close()
	require.NoError(t, <-done)

	assert.Equal(t, []string{models.EventSyncQueued, models.EventSyncStarted, models.EventSyncDone}, events.Types(cmd.ID))
	entries, err := sidecar.Read(filepath.Join(root, "album"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
