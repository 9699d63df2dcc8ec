// Package bundle groups thumbnails of equal height into capacity-limited
// bundles, one composite image per bundle.
//
// Grouping is first-fit: each image joins the first existing bundle (in
// creation order) that has its height and a free slot, otherwise it opens a
// new bundle. Same-height images therefore spill into several bundles once
// one fills up, and bundle ids follow creation order rather than height.
package bundle

import (
	"github.com/jonasrichard/mediamosaic/internal/models"
)

// DefaultExtension is the composite image extension.
const DefaultExtension = "jpg"

// Group assigns every image to exactly one bundle. Images are processed in
// the given order, which is the scan (id) order.
func Group(images []*models.Image, capacity int, ext string) []*models.Bundle {
	if capacity <= 0 {
		capacity = models.DefaultBundleCapacity
	}
	if ext == "" {
		ext = DefaultExtension
	}

	var bundles []*models.Bundle
	for _, img := range images {
		if b := firstFit(bundles, img.Height); b != nil {
			b.ImageIDs = append(b.ImageIDs, img.ID)
			continue
		}

		id := len(bundles) + 1
		bundles = append(bundles, &models.Bundle{
			ID:       id,
			FileName: models.BundleFileName(id, ext),
			Height:   img.Height,
			ImageIDs: []int{img.ID},
			Capacity: capacity,
		})
	}
	return bundles
}

func firstFit(bundles []*models.Bundle, height int) *models.Bundle {
	for _, b := range bundles {
		if b.Accepts(height) {
			return b
		}
	}
	return nil
}

// Width returns the composite width of b: the sum of its member widths.
func Width(dir *models.Directory, b *models.Bundle) int {
	total := 0
	for _, id := range b.ImageIDs {
		if img := dir.Image(id); img != nil {
			total += img.Width
		}
	}
	return total
}

// Offsets returns the x offset of every member of b, in member order. The
// offset of the k-th member is the summed width of members 0..k-1.
func Offsets(dir *models.Directory, b *models.Bundle) []int {
	offsets := make([]int, len(b.ImageIDs))
	x := 0
	for i, id := range b.ImageIDs {
		offsets[i] = x
		if img := dir.Image(id); img != nil {
			x += img.Width
		}
	}
	return offsets
}

// Index maps every image id to the bundle holding it and its position in
// that bundle.
func Index(bundles []*models.Bundle) map[int]Slot {
	idx := make(map[int]Slot)
	for _, b := range bundles {
		for pos, id := range b.ImageIDs {
			idx[id] = Slot{Bundle: b, Position: pos}
		}
	}
	return idx
}

// Slot locates an image inside a bundle.
type Slot struct {
	Bundle   *models.Bundle
	Position int
}
