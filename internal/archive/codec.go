package archive

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/raster"
)

// Codec reads and writes pixel buffers on disk. The archive is codec
// agnostic; anything satisfying this interface plugs in.
type Codec interface {
	Read(path string) (*raster.Buffer, error)
	Write(path string, b *raster.Buffer) error
}

// imageExtToType maps known file extensions to the archive image type.
var imageExtToType = map[string]string{
	"png":  "image",
	"jpg":  "image",
	"jpeg": "image",
}

// TypeForExtension infers the archive image type from a file extension.
func TypeForExtension(ext string) (string, error) {
	t, ok := imageExtToType[strings.ToLower(ext)]
	if !ok {
		return "", errs.Configf("archive", "invalid image extension %q", ext)
	}
	return t, nil
}

// StdCodec is the default Codec, backed by the standard library PNG and
// JPEG encoders. Buffers are RGB (C=3) on read; on write C=1 is
// treated as grayscale and C>=3 as RGB.
type StdCodec struct {
	// JPEGQuality applies to .jpg/.jpeg writes. Zero means the
	// encoder default.
	JPEGQuality int
}

// Read decodes the image at path into an RGB buffer.
func (c StdCodec) Read(path string) (*raster.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fromImage(img), nil
}

// Write encodes the buffer to path, creating parent directories.
func (c StdCodec) Write(path string, b *raster.Buffer) error {
	if b.Empty() {
		return &errs.PersistError{Path: path, Err: fmt.Errorf("no pixels to write")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &errs.PersistError{Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &errs.PersistError{Path: path, Err: err}
	}
	defer f.Close()

	img := toImage(b)
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg":
		q := c.JPEGQuality
		if q == 0 {
			q = jpeg.DefaultQuality
		}
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: q})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return &errs.PersistError{Path: path, Err: err}
	}
	return nil
}

func fromImage(img image.Image) *raster.Buffer {
	bounds := img.Bounds()
	b := raster.NewBuffer(bounds.Dy(), bounds.Dx(), 3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			yy, xx := y-bounds.Min.Y, x-bounds.Min.X
			b.Set(yy, xx, 0, uint8(r>>8))
			b.Set(yy, xx, 1, uint8(g>>8))
			b.Set(yy, xx, 2, uint8(bl>>8))
		}
	}
	return b
}

func toImage(b *raster.Buffer) image.Image {
	if b.C == 1 {
		img := image.NewGray(image.Rect(0, 0, b.W, b.H))
		for y := 0; y < b.H; y++ {
			for x := 0; x < b.W; x++ {
				img.SetGray(x, y, color.Gray{Y: b.At(y, x, 0)})
			}
		}
		return img
	}
	img := image.NewRGBA(image.Rect(0, 0, b.W, b.H))
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: b.At(y, x, 0),
				G: b.At(y, x, 1),
				B: b.At(y, x, 2),
				A: 255,
			})
		}
	}
	return img
}
