package imagefetch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decoded area of a single image
const DefaultMaxPixels int64 = 25_000_000

// ErrUnsupportedFormat is returned for bodies that are not a decodable image
var ErrUnsupportedFormat = errors.New("unsupported image format")

type codec struct {
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
}

var codecs = map[string]codec{
	"image/png":  {png.DecodeConfig, png.Decode},
	"image/jpeg": {jpeg.DecodeConfig, jpeg.Decode},
	"image/gif":  {gif.DecodeConfig, gif.Decode},
	"image/webp": {webp.DecodeConfig, webp.Decode},
	"image/bmp":  {bmp.DecodeConfig, bmp.Decode},
}

// Decode sniffs data and decodes every frame it carries. Icon files yield
// one image per directory entry; other formats yield one image. Images
// whose declared area exceeds maxPixels are rejected before any pixel
// buffer is allocated. A maxPixels of zero or less disables the check.
func Decode(data []byte, maxPixels int64) ([]image.Image, string, error) {
	mtype := mimetype.Detect(data)

	if mtype.Is("image/x-icon") || mtype.Is("image/vnd.microsoft.icon") {
		frames, err := decodeICO(data, maxPixels)
		if err != nil {
			return nil, mtype.String(), err
		}
		return frames, mtype.String(), nil
	}

	c, ok := codecs[mtype.String()]
	if !ok {
		return nil, mtype.String(), fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
	}

	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, mtype.String(), fmt.Errorf("decode %s: %w", mtype.String(), err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, mtype.String(), err
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, mtype.String(), fmt.Errorf("decode %s: %w", mtype.String(), err)
	}
	return []image.Image{img}, mtype.String(), nil
}

// checkPixels rejects declared dimensions that are negative or over budget
func checkPixels(width, height int, maxPixels int64) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrUnsupportedFormat, width, height)
	}
	if maxPixels > 0 && int64(width)*int64(height) > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds pixel budget %d", ErrUnsupportedFormat, width, height, maxPixels)
	}
	return nil
}
