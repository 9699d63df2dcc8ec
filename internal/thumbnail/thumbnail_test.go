package thumbnail

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// withOrientation splices a minimal EXIF APP1 segment carrying the given
// orientation right after the JPEG SOI marker.
func withOrientation(data []byte, o uint16) []byte {
	tiff := []byte{
		'M', 'M', 0, 42, 0, 0, 0, 8, // header, IFD0 at offset 8
		0, 1, // one entry
		0x01, 0x12, 0, 3, 0, 0, 0, 1, byte(o >> 8), byte(o), 0, 0, // Orientation SHORT
		0, 0, 0, 0, // no next IFD
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	size := len(payload) + 2

	out := []byte{0xFF, 0xD8, 0xFF, 0xE1, byte(size >> 8), byte(size)}
	out = append(out, payload...)
	return append(out, data[2:]...)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestCreateDownsamplesPreservingAspect(t *testing.T) {
	path := writeFile(t, "wide.jpg", encodeJPEG(t, solid(600, 300, color.RGBA{200, 10, 10, 255})))

	thumb, err := Create(path, 256, 256)
	require.NoError(t, err)
	assert.Equal(t, 256, thumb.Width())
	assert.Equal(t, 128, thumb.Height())
	assert.Len(t, thumb.Pix, 256*128*3)

	c := thumb.RGBAAt(100, 60)
	assert.InDelta(t, 200, int(c.R), 12)
	assert.InDelta(t, 10, int(c.G), 12)
}

func TestCreateKeepsSmallImages(t *testing.T) {
	path := writeFile(t, "small.jpg", encodeJPEG(t, solid(100, 50, color.White)))

	thumb, err := NewGenerator(256, 256).Create(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), thumb.Bounds())
}

func TestCreateAppliesOrientationBeforeResize(t *testing.T) {
	// 400x200 landscape pixels tagged "rotate 90 CW" display as portrait.
	data := withOrientation(encodeJPEG(t, solid(400, 200, color.Gray{128})), 6)
	path := writeFile(t, "rotated.jpg", data)

	thumb, err := Create(path, 256, 256)
	require.NoError(t, err)
	assert.Equal(t, 128, thumb.Width())
	assert.Equal(t, 256, thumb.Height())
}

func TestCreateDecodeError(t *testing.T) {
	path := writeFile(t, "broken.jpg", []byte("definitely not a jpeg"))

	_, err := Create(path, 256, 256)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDecode))

	_, err = Create(filepath.Join(t.TempDir(), "missing.jpg"), 256, 256)
	assert.True(t, errors.Is(err, apperrors.ErrDecode))
}

func TestCreateRejectsTranslucentImages(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{255, 0, 0, 128})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := writeFile(t, "alpha.png", buf.Bytes())

	_, err := Create(path, 256, 256)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedFormat))
}

func TestReadOrientation(t *testing.T) {
	plain := encodeJPEG(t, solid(4, 4, color.Black))
	assert.Equal(t, 1, ReadOrientation(plain))
	assert.Equal(t, 1, ReadOrientation([]byte("garbage")))

	for _, o := range []uint16{2, 3, 6, 8} {
		assert.Equal(t, int(o), ReadOrientation(withOrientation(plain, o)))
	}
}

func TestApplyOrientation(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}

	// Left pixel red, right pixel blue.
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, red)
	src.Set(1, 0, blue)

	tests := []struct {
		orientation int
		size        image.Point
		at          image.Point
		want        color.NRGBA
	}{
		{1, image.Pt(2, 1), image.Pt(0, 0), red},
		{2, image.Pt(2, 1), image.Pt(0, 0), blue},
		{3, image.Pt(2, 1), image.Pt(0, 0), blue},
		{6, image.Pt(1, 2), image.Pt(0, 0), red},
		{8, image.Pt(1, 2), image.Pt(0, 0), blue},
	}

	for _, tt := range tests {
		got := ApplyOrientation(src, tt.orientation)
		assert.Equal(t, tt.size, got.Bounds().Size(), "orientation %d", tt.orientation)

		r, g, b, _ := got.At(tt.at.X, tt.at.Y).RGBA()
		wr, wg, wb, _ := tt.want.RGBA()
		assert.Equal(t, []uint32{wr, wg, wb}, []uint32{r, g, b}, "orientation %d", tt.orientation)
	}
}

func TestNormalize(t *testing.T) {
	src := image.NewGray(image.Rect(5, 5, 8, 7))
	src.SetGray(6, 6, color.Gray{Y: 77})

	rgb, err := Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), rgb.Bounds())
	assert.Equal(t, color.RGBA{77, 77, 77, 255}, rgb.RGBAAt(1, 1))

	_, err = Normalize(image.NewRGBA(image.Rectangle{}))
	assert.Error(t, err)
}

func TestRGBSetAndRow(t *testing.T) {
	img := NewRGB(image.Rect(0, 0, 2, 2))
	img.Set(1, 0, color.RGBA{1, 2, 3, 255})
	img.Set(5, 5, color.White) // out of bounds is ignored

	assert.Equal(t, []uint8{0, 0, 0, 1, 2, 3}, img.Row(0))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(-1, 0))
	assert.True(t, img.Opaque())
}
