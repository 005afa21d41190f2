package media

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Size is a width/height pair in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String formats the size the way HTML sizes attributes do ("200x100")
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Image describes a candidate artwork image before it is downloaded.
// An empty Sizes slice means the source declared no dimensions.
type Image struct {
	Src   string `json:"src"`
	Type  string `json:"type,omitempty"`
	Sizes []Size `json:"sizes,omitempty"`
}

// SizeOf returns the dimensions of a decoded bitmap
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// ParseSizes parses an HTML sizes attribute such as "16x16 32X32".
// "any" and malformed tokens are skipped.
func ParseSizes(attr string) []Size {
	var sizes []Size
	for _, token := range strings.Fields(attr) {
		token = strings.ToLower(token)
		if token == "any" {
			continue
		}

		w, h, ok := strings.Cut(token, "x")
		if !ok {
			continue
		}

		width, err := strconv.Atoi(w)
		if err != nil || width <= 0 {
			continue
		}
		height, err := strconv.Atoi(h)
		if err != nil || height <= 0 {
			continue
		}

		sizes = append(sizes, Size{Width: width, Height: height})
	}
	return sizes
}

// FormatSizes is the inverse of ParseSizes
func FormatSizes(sizes []Size) string {
	parts := make([]string, len(sizes))
	for i, s := range sizes {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}
