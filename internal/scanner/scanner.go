// Package scanner lists a directory under the sandbox root, keeps the
// supported image files and builds their thumbnails.
//
// Entries are sorted byte-wise by file name, so ids are stable across runs:
// the first image in that order gets id 1, the next id 2 and so on. Entries
// that are not regular files with the supported extension never consume an
// id. The extension match is literal and case-sensitive ("jpg" does not match
// "JPG" or "jpeg").
//
// Thumbnails are decoded concurrently, but results are placed by position so
// concurrency never changes the ids.
package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/models"
	"github.com/jonasrichard/mediamosaic/internal/sandbox"
	"github.com/jonasrichard/mediamosaic/internal/thumbnail"
)

// DefaultExtension is the only image extension recognized out of the box.
const DefaultExtension = "jpg"

// Options tunes a Scanner.
type Options struct {
	Extension string
	Workers   int
	// SkipUnreadable logs and skips images that fail to decode instead of
	// failing the whole scan.
	SkipUnreadable bool
}

// Scanner builds Directory values.
type Scanner struct {
	sandbox *sandbox.Sandbox
	thumbs  *thumbnail.Generator
	opts    Options
	logger  *slog.Logger
}

// New creates a Scanner.
func New(sb *sandbox.Sandbox, thumbs *thumbnail.Generator, opts Options, logger *slog.Logger) *Scanner {
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	opts.Extension = strings.TrimPrefix(opts.Extension, ".")
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if thumbs == nil {
		thumbs = thumbnail.NewGenerator(0, 0)
	}
	return &Scanner{
		sandbox: sb,
		thumbs:  thumbs,
		opts:    opts,
		logger:  logging.Component(logger, "scanner"),
	}
}

// IsImage reports whether name carries the supported extension.
func IsImage(name, ext string) bool {
	return filepath.Ext(name) == "."+strings.TrimPrefix(ext, ".")
}

// Extension returns the supported image extension without the dot.
func (s *Scanner) Extension() string {
	return s.opts.Extension
}

type candidate struct {
	path string
	size int64
}

// Scan lists the directory at relPath and thumbnails every image in it.
func (s *Scanner) Scan(ctx context.Context, relPath string) (*models.Directory, error) {
	dirPath, err := s.sandbox.ToAbsolute(relPath)
	if err != nil {
		return nil, err
	}
	rel, err := s.sandbox.ToRelative(dirPath)
	if err != nil {
		return nil, err
	}

	candidates, err := s.list(dirPath)
	if err != nil {
		return nil, err
	}

	thumbs := make([]*thumbnail.RGB, len(candidates))
	failed := make([]error, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			thumb, err := s.thumbs.Create(c.path)
			if err != nil {
				if s.opts.SkipUnreadable {
					failed[i] = err
					return nil
				}
				return err
			}
			thumbs[i] = thumb
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dir := &models.Directory{Path: dirPath, RelPath: rel}
	for i, c := range candidates {
		if failed[i] != nil {
			s.logger.Warn("skipping unreadable image", "path", c.path, "error", failed[i])
			continue
		}
		dir.Images = append(dir.Images, &models.Image{
			ID:        len(dir.Images) + 1,
			Path:      c.path,
			Width:     thumbs[i].Width(),
			Height:    thumbs[i].Height(),
			Size:      c.size,
			Thumbnail: thumbs[i],
		})
	}

	s.logger.Debug("directory scanned", "dir", dirPath, "images", len(dir.Images), "skipped", len(candidates)-len(dir.Images))
	return dir, nil
}

// list returns the image files of dir in byte-wise file name order.
func (s *Scanner) list(dir string) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.IO("list directory", dir, err)
	}

	slices.SortFunc(entries, func(a, b os.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})

	var out []candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsImage(entry.Name(), s.opts.Extension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, apperrors.IO("stat", filepath.Join(dir, entry.Name()), err)
		}
		out = append(out, candidate{
			path: filepath.Join(dir, entry.Name()),
			size: info.Size(),
		})
	}
	return out, nil
}
