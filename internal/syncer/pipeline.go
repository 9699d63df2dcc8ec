// Package syncer rebuilds directory galleries.
//
// A sync request becomes a Command on a bounded Queue. One Worker drains the
// queue and runs the Pipeline for each command, so at most one rebuild is
// active at any time. A full queue blocks the requester.
//
// Before rebuilding a directory that already carries a sidecar, the pipeline
// removes the sidecar and every composite. This cleanup runs on the worker
// right before the rebuild, never in the requesting goroutine, so it cannot
// race another rebuild of the same directory.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonasrichard/mediamosaic/internal/bundle"
	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/models"
	"github.com/jonasrichard/mediamosaic/internal/sandbox"
	"github.com/jonasrichard/mediamosaic/internal/scanner"
	"github.com/jonasrichard/mediamosaic/internal/sidecar"
	"github.com/jonasrichard/mediamosaic/internal/sprite"
)

// PipelineOptions tunes grouping and composite encoding.
type PipelineOptions struct {
	BundleCapacity  int
	BundleExtension string
	JPEGQuality     int
}

// Result summarizes one rebuild.
type Result struct {
	Directory string
	Images    int
	Bundles   int
	Removed   []string
	Duration  time.Duration
}

// Pipeline runs scan, group, compose and describe for one directory.
type Pipeline struct {
	sandbox  *sandbox.Sandbox
	scanner  *scanner.Scanner
	composer *sprite.Composer
	opts     PipelineOptions
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(sb *sandbox.Sandbox, sc *scanner.Scanner, opts PipelineOptions, logger *slog.Logger) *Pipeline {
	if opts.BundleCapacity <= 0 {
		opts.BundleCapacity = models.DefaultBundleCapacity
	}
	if opts.BundleExtension == "" {
		opts.BundleExtension = bundle.DefaultExtension
	}
	return &Pipeline{
		sandbox:  sb,
		scanner:  sc,
		composer: sprite.NewComposer(opts.JPEGQuality),
		opts:     opts,
		logger:   logging.Component(logger, "pipeline"),
	}
}

// Run rebuilds every artifact of the directory at relPath.
func (p *Pipeline) Run(ctx context.Context, relPath string) (*Result, error) {
	start := time.Now()

	dirPath, err := p.sandbox.ToAbsolute(relPath)
	if err != nil {
		return nil, err
	}

	removed, err := p.cleanup(dirPath)
	if err != nil {
		return nil, err
	}

	dir, err := p.scanner.Scan(ctx, relPath)
	if err != nil {
		return nil, err
	}

	bundles := bundle.Group(dir.Images, p.opts.BundleCapacity, p.opts.BundleExtension)
	p.logger.Debug("bundles created", "dir", dir.RelPath, "images", len(dir.Images), "bundles", len(bundles))

	for _, b := range bundles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.composer.Compose(dir, b); err != nil {
			return nil, err
		}
	}

	entries, err := sidecar.Build(dir, bundles)
	if err != nil {
		return nil, err
	}
	if err := sidecar.Write(dir.Path, entries); err != nil {
		return nil, err
	}

	return &Result{
		Directory: dir.RelPath,
		Images:    len(dir.Images),
		Bundles:   len(bundles),
		Removed:   removed,
		Duration:  time.Since(start),
	}, nil
}

// cleanup drops the artifacts of a previous sync. Directories without a
// sidecar are left untouched.
func (p *Pipeline) cleanup(dirPath string) ([]string, error) {
	if !sidecar.Exists(dirPath) {
		return nil, nil
	}
	if err := sidecar.Remove(dirPath); err != nil {
		return nil, err
	}
	removed, err := sprite.RemoveComposites(dirPath)
	if err != nil {
		return removed, err
	}
	removed = append(removed, models.SidecarFileName)
	p.logger.Debug("stale artifacts removed", "dir", dirPath, "files", len(removed))
	return removed, nil
}
