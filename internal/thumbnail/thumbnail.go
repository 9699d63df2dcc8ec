// Package thumbnail decodes source images and produces bounded-size RGB
// thumbnails.
//
// Creating a thumbnail happens in four steps:
//
//  1. Decode the file (JPEG, PNG, GIF, WebP, BMP and TIFF decoders are
//     registered).
//  2. Read the EXIF orientation tag and rotate/flip the decoded image so it
//     is upright. Orientation is applied before any resizing.
//  3. Downsample with Lanczos3 so that neither side exceeds the bound while
//     keeping the aspect ratio. Images already inside the bound keep their
//     size.
//  4. Normalize to RGB. Images with translucent pixels cannot be represented
//     without an alpha channel and fail with UnsupportedFormat.
package thumbnail

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
)

const (
	DefaultMaxWidth  = 256
	DefaultMaxHeight = 256
)

// Generator creates thumbnails bounded by MaxWidth x MaxHeight.
type Generator struct {
	MaxWidth  int
	MaxHeight int
}

// NewGenerator returns a generator with the given bound. Non-positive values
// fall back to the defaults.
func NewGenerator(maxWidth, maxHeight int) *Generator {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return &Generator{MaxWidth: maxWidth, MaxHeight: maxHeight}
}

// Create builds the thumbnail of the image file at path.
func (g *Generator) Create(path string) (*RGB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Decode("read image", path, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Decode("decode image", path, err)
	}

	if !isOpaque(img) {
		return nil, apperrors.Unsupported("normalize", path, "image has translucent pixels")
	}

	img = ApplyOrientation(img, ReadOrientation(data))
	thumb := resize.Thumbnail(uint(g.MaxWidth), uint(g.MaxHeight), img, resize.Lanczos3)

	rgb, err := Normalize(thumb)
	if err != nil {
		return nil, apperrors.Unsupported("normalize", path, "%v", err)
	}
	return rgb, nil
}

// Create builds a thumbnail bounded by maxWidth x maxHeight.
func Create(path string, maxWidth, maxHeight int) (*RGB, error) {
	return NewGenerator(maxWidth, maxHeight).Create(path)
}

// Normalize converts img to RGB. The result always starts at (0, 0).
func Normalize(img image.Image) (*RGB, error) {
	if rgb, ok := img.(*RGB); ok && rgb.Rect.Min == (image.Point{}) {
		return rgb, nil
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, errEmptyImage
	}

	dst := NewRGB(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst, nil
}

// ReadOrientation returns the EXIF orientation (1..8) of an encoded image.
// Missing or malformed metadata reads as 1, the identity.
func ReadOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// ApplyOrientation transforms img so that an image tagged with the given
// EXIF orientation displays upright.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

type opaquer interface {
	Opaque() bool
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

var errEmptyImage = errors.New("image has no pixels")
