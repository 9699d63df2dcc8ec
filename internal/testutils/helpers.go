// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteJPEG writes a solid-color w x h JPEG to dir/name and returns its path.
func WriteJPEG(t *testing.T, dir, name string, w, h int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
	return path
}

// WriteFile writes raw bytes to dir/name and returns its path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// CreateWorkedExample populates dir with the three-image gallery used across
// the pipeline tests: A.jpg 100x50, B.jpg 120x50, C.jpg 90x60.
func CreateWorkedExample(t *testing.T, dir string) {
	t.Helper()

	WriteJPEG(t, dir, "A.jpg", 100, 50, color.RGBA{255, 0, 0, 255})
	WriteJPEG(t, dir, "B.jpg", 120, 50, color.RGBA{0, 255, 0, 255})
	WriteJPEG(t, dir, "C.jpg", 90, 60, color.RGBA{0, 0, 255, 255})
}
