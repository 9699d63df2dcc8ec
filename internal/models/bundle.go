package models

import "fmt"

// DefaultBundleCapacity is the maximum number of images per bundle
const DefaultBundleCapacity = 8

// Bundle groups same-height images into one composite. Members are referenced
// by image id and resolved through the owning Directory.
type Bundle struct {
	ID       int
	FileName string
	Height   int
	ImageIDs []int
	Capacity int
}

// BundleFileName returns the composite file name for a bundle id.
func BundleFileName(id int, ext string) string {
	return fmt.Sprintf("thumbs_%d.%s", id, ext)
}

// Accepts reports whether an image of the given height can join the bundle.
func (b *Bundle) Accepts(height int) bool {
	return b.Height == height && len(b.ImageIDs) < b.Capacity
}
