package imagefetch

import (
	"image"
	"sort"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
	"golang.org/x/image/draw"
)

// Prepare orders frames closest to idealSize first and scales down any
// frame whose longer edge exceeds maxSize. The returned sizes are the
// original, pre-scaling dimensions, parallel to the returned bitmaps.
func Prepare(frames []image.Image, idealSize, maxSize int) ([]image.Image, []media.Size) {
	type frame struct {
		img  image.Image
		size media.Size
	}

	ordered := make([]frame, 0, len(frames))
	for _, img := range frames {
		if img == nil {
			continue
		}
		ordered = append(ordered, frame{img: img, size: media.SizeOf(img)})
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := distance(ordered[i].size, idealSize), distance(ordered[j].size, idealSize)
		if di != dj {
			return di < dj
		}
		// Equal distance: prefer the larger frame, it scales down cleanly
		return longEdge(ordered[i].size) > longEdge(ordered[j].size)
	})

	bitmaps := make([]image.Image, len(ordered))
	sizes := make([]media.Size, len(ordered))
	for i, f := range ordered {
		bitmaps[i] = downscale(f.img, maxSize)
		sizes[i] = f.size
	}
	return bitmaps, sizes
}

func downscale(img image.Image, maxSize int) image.Image {
	size := media.SizeOf(img)
	edge := longEdge(size)
	if maxSize <= 0 || edge <= maxSize {
		return img
	}

	w := size.Width * maxSize / edge
	h := size.Height * maxSize / edge
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func distance(s media.Size, ideal int) int {
	d := longEdge(s) - ideal
	if d < 0 {
		return -d
	}
	return d
}

func longEdge(s media.Size) int {
	if s.Width > s.Height {
		return s.Width
	}
	return s.Height
}
