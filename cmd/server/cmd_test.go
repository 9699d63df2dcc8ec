package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
	"github.com/jonasrichard/mediamosaic/internal/sidecar"
	"github.com/jonasrichard/mediamosaic/internal/storage"
	"github.com/jonasrichard/mediamosaic/internal/syncer"
	"github.com/jonasrichard/mediamosaic/internal/testutils"
)

func TestSyncCommand(t *testing.T) {
	root := t.TempDir()
	testutils.CreateWorkedExample(t, filepath.Join(root, "holiday"))

	dbPath := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("MEDIAMOSAIC_STORAGE_DATABASE", dbPath)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"sync", "holiday", "--root", root, "--log-level", "error"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "synced /holiday: 3 images in 2 bundles")
	assert.True(t, sidecar.Exists(filepath.Join(root, "holiday")))

	db, err := storage.InitDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	run, err := db.LatestRun(context.Background(), "holiday")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "done", string(run.Status))
	assert.Equal(t, 3, run.ImageCount)
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 image", plural(1, "image"))
	assert.Equal(t, "0 bundles", plural(0, "bundle"))
	assert.Equal(t, "1,200 images", plural(1200, "image"))
}

// drainingServer stands in for an HTTP server whose only in-flight request
// is blocked in Enqueue.
type drainingServer struct {
	inflight <-chan error
	got      error
}

func (d *drainingServer) Shutdown(ctx context.Context) error {
	select {
	case err := <-d.inflight:
		d.got = err
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestShutdownReleasesBlockedEnqueue(t *testing.T) {
	queue := syncer.NewQueue(1)
	_, _, err := queue.Enqueue(context.Background(), "a")
	require.NoError(t, err)

	inflight := make(chan error, 1)
	go func() {
		_, _, err := queue.Enqueue(context.Background(), "b")
		inflight <- err
	}()
	time.Sleep(50 * time.Millisecond)

	srv := &drainingServer{inflight: inflight}
	start := time.Now()
	require.NoError(t, shutdown(srv, queue, 5*time.Second))

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, errors.Is(srv.got, apperrors.ErrQueueClosed))
	assert.Equal(t, 503, apperrors.HTTPStatus(srv.got))
}
