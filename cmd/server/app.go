package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonasrichard/mediamosaic/internal/config"
	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/sandbox"
	"github.com/jonasrichard/mediamosaic/internal/scanner"
	"github.com/jonasrichard/mediamosaic/internal/storage"
	"github.com/jonasrichard/mediamosaic/internal/syncer"
	"github.com/jonasrichard/mediamosaic/internal/thumbnail"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	sandbox   *sandbox.Sandbox
	db        *storage.DB
	scanner   *scanner.Scanner
	pipeline  *syncer.Pipeline
}

func newApp(cfg *config.Config) (*app, error) {
	logger, closer, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	sb, err := sandbox.New(cfg.Storage.Root)
	if err != nil {
		closer.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, logCloser: closer, sandbox: sb}

	if cfg.Storage.Database != "" {
		db, err := storage.InitDB(cfg.Storage.Database)
		if err != nil {
			closer.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = db

		n, err := db.FailUnfinished(context.Background(), time.Now())
		if err != nil {
			logger.Warn("failed to close out interrupted runs", "error", err)
		} else if n > 0 {
			logger.Info("marked interrupted runs as failed", "count", n)
		}
	}

	a.scanner = scanner.New(sb,
		thumbnail.NewGenerator(cfg.Sync.ThumbnailWidth, cfg.Sync.ThumbnailHeight),
		scanner.Options{
			Extension:      cfg.Sync.ImageExtension,
			Workers:        cfg.Sync.DecodeWorkers,
			SkipUnreadable: cfg.Sync.SkipUnreadable,
		},
		logger)

	a.pipeline = syncer.NewPipeline(sb, a.scanner, syncer.PipelineOptions{
		BundleCapacity:  cfg.Sync.BundleCapacity,
		BundleExtension: cfg.Sync.BundleExtension,
		JPEGQuality:     cfg.Sync.JPEGQuality,
	}, logger)

	return a, nil
}

// recorder returns the history store, or nil when history is disabled. The
// explicit nil keeps a nil *storage.DB out of the interface.
func (a *app) recorder() syncer.Recorder {
	if a.db == nil {
		return nil
	}
	return a.db
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
	a.logCloser.Close()
}
