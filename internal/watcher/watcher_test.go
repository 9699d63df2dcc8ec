package watcher

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/sandbox"
	"github.com/jonasrichard/mediamosaic/internal/sidecar"
	"github.com/jonasrichard/mediamosaic/internal/syncer"
	"github.com/jonasrichard/mediamosaic/internal/testutils"
)

type recordingSyncer struct {
	mu   sync.Mutex
	dirs []string
}

func (r *recordingSyncer) Sync(_ context.Context, rel string) (*syncer.Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, rel)
	return &syncer.Command{ID: "run", Directory: rel}, nil
}

func (r *recordingSyncer) Dirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dirs...)
}

func setup(t *testing.T) (string, *Watcher, *recordingSyncer) {
	t.Helper()

	root := t.TempDir()
	synced := filepath.Join(root, "synced")
	plain := filepath.Join(root, "plain")
	testutils.CreateWorkedExample(t, synced)
	require.NoError(t, os.MkdirAll(plain, 0755))
	require.NoError(t, sidecar.Write(synced, nil))

	sb, err := sandbox.New(root)
	require.NoError(t, err)
	rec := &recordingSyncer{}
	w, err := New(sb, rec, "jpg", 50*time.Millisecond, logging.Discard())
	require.NoError(t, err)
	return root, w, rec
}

func TestNewWatchesTree(t *testing.T) {
	_, w, _ := setup(t)
	defer w.fsw.Close()
	assert.Equal(t, 3, w.WatchedCount())
}

func TestRelevant(t *testing.T) {
	_, w, _ := setup(t)
	defer w.fsw.Close()

	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/r/a.jpg", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/r/a.jpg", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/r/a.jpg", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/r/a.jpg", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/r/thumbs_1.jpg", Op: fsnotify.Create}, false},
		{fsnotify.Event{Name: "/r/bundles.json", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/r/a.JPG", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.relevant(tt.event), "%s", tt.event)
	}
}

func TestFlushDebouncesAndRequiresSidecar(t *testing.T) {
	root, w, rec := setup(t)
	defer w.fsw.Close()

	now := time.Now()
	w.dirty[filepath.Join(root, "synced")] = now
	w.dirty[filepath.Join(root, "plain")] = now.Add(-time.Second)

	w.flush(context.Background(), now)
	assert.Empty(t, rec.Dirs(), "synced dir is still settling")

	w.flush(context.Background(), now.Add(time.Second))
	assert.Equal(t, []string{"synced"}, rec.Dirs())
	assert.Empty(t, w.dirty)
}

func TestRunResyncsChangedGallery(t *testing.T) {
	root, w, rec := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Own artifacts and unsynced directories never trigger a sync.
	testutils.WriteFile(t, filepath.Join(root, "synced"), "thumbs_1.jpg", []byte("x"))
	testutils.WriteJPEG(t, filepath.Join(root, "plain"), "new.jpg", 4, 4, color.White)
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.Dirs())

	testutils.WriteJPEG(t, filepath.Join(root, "synced"), "D.jpg", 4, 4, color.White)
	require.Eventually(t, func() bool { return len(rec.Dirs()) > 0 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "synced", rec.Dirs()[0])
}
