package models

import (
	"path/filepath"

	"github.com/jonasrichard/mediamosaic/internal/thumbnail"
)

// Directory is the in-memory result of scanning one directory. It lives for
// a single sync pass.
type Directory struct {
	Path    string // absolute
	RelPath string // root-relative, slash separated
	Images  []*Image
}

// Image is one scanned source image and its thumbnail
type Image struct {
	ID        int // 1-based, dense, in filename order
	Path      string
	Width     int // thumbnail width
	Height    int // thumbnail height
	Size      int64
	Thumbnail *thumbnail.RGB
}

// Name returns the source file name.
func (img *Image) Name() string {
	return filepath.Base(img.Path)
}

// Image returns the image with the given id, or nil.
func (d *Directory) Image(id int) *Image {
	if id < 1 || id > len(d.Images) {
		return nil
	}
	img := d.Images[id-1]
	if img.ID != id {
		return nil
	}
	return img
}
