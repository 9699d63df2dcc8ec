// Package sprite concatenates the thumbnails of a bundle left to right into
// one composite image and writes it next to the source images.
package sprite

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
	"github.com/jonasrichard/mediamosaic/internal/models"
	"github.com/jonasrichard/mediamosaic/internal/thumbnail"
)

// DefaultQuality is the JPEG quality composites are encoded with.
const DefaultQuality = 90

// Composer renders bundles.
type Composer struct {
	Quality int
}

// NewComposer returns a Composer. A quality outside 1..100 falls back to
// DefaultQuality.
func NewComposer(quality int) *Composer {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Composer{Quality: quality}
}

// Render builds the composite canvas of b without writing it. The canvas is
// as wide as the summed member widths and as tall as the bundle.
func Render(dir *models.Directory, b *models.Bundle) (*thumbnail.RGB, error) {
	width := 0
	for _, id := range b.ImageIDs {
		img := dir.Image(id)
		if img == nil || img.Thumbnail == nil {
			return nil, fmt.Errorf("bundle %d references unknown image %d", b.ID, id)
		}
		if img.Height != b.Height {
			return nil, fmt.Errorf("image %d is %dpx tall, bundle %d is %dpx", id, img.Height, b.ID, b.Height)
		}
		width += img.Width
	}

	canvas := thumbnail.NewRGB(image.Rect(0, 0, width, b.Height))
	x := 0
	for _, id := range b.ImageIDs {
		thumb := dir.Image(id).Thumbnail
		blit(canvas, thumb, x)
		x += thumb.Width()
	}
	return canvas, nil
}

// blit copies src into dst row by row with its left edge at column x.
func blit(dst, src *thumbnail.RGB, x int) {
	for y := 0; y < src.Height(); y++ {
		row := src.Row(src.Rect.Min.Y + y)
		i := dst.PixOffset(x, y)
		copy(dst.Pix[i:i+len(row)], row)
	}
}

// Compose renders b and writes it to dir.Path/b.FileName, replacing any
// previous file of that name.
func (c *Composer) Compose(dir *models.Directory, b *models.Bundle) error {
	path := filepath.Join(dir.Path, b.FileName)

	canvas, err := Render(dir, b)
	if err != nil {
		return apperrors.Unsupported("compose", path, "%v", err)
	}

	data, err := c.encode(canvas, filepath.Ext(b.FileName))
	if err != nil {
		return apperrors.IO("encode composite", path, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.IO("write composite", path, err)
	}
	return nil
}

func (c *Composer) encode(img image.Image, ext string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.Quality}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no encoder for %q", ext)
	}
	return buf.Bytes(), nil
}

var compositeName = regexp.MustCompile(`^thumbs_[0-9]+\.(jpg|jpeg|png)$`)

// IsComposite reports whether name looks like a composite written by Compose.
func IsComposite(name string) bool {
	return compositeName.MatchString(name)
}

// RemoveComposites deletes every composite file in dirPath and returns the
// names it removed. A missing directory is not an error.
func RemoveComposites(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.IO("list composites", dirPath, err)
	}

	var removed []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsComposite(entry.Name()) {
			continue
		}
		path := filepath.Join(dirPath, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, apperrors.IO("remove composite", path, err)
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}
