package artwork

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/crypto/blake2b"
)

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// Encoded is a PNG rendition of resolved artwork
type Encoded struct {
	PNG    []byte
	ETag   string
	Width  int
	Height int
}

// Encode renders img as PNG and derives a strong ETag from its bytes
func Encode(img image.Image) (*Encoded, error) {
	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	sum := blake2b.Sum256(buf.Bytes())
	b := img.Bounds()
	return &Encoded{
		PNG:    buf.Bytes(),
		ETag:   `"` + hex.EncodeToString(sum[:16]) + `"`,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// DataURL returns the PNG as a data: URL
func (e *Encoded) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(e.PNG)
}
