package imagefetch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/bmp"
)

const (
	icoHeaderLen = 6
	icoEntryLen  = 16
	bmpFileLen   = 14
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type icoEntry struct {
	size   uint32
	offset uint32
}

// decodeICO decodes every frame of a Windows icon. Frames are either
// embedded PNG files or headerless DIBs with a trailing AND mask. Frames
// that fail to decode or exceed maxPixels are skipped.
func decodeICO(data []byte, maxPixels int64) ([]image.Image, error) {
	if len(data) < icoHeaderLen {
		return nil, fmt.Errorf("%w: short icon header", ErrUnsupportedFormat)
	}
	if binary.LittleEndian.Uint16(data[0:2]) != 0 || binary.LittleEndian.Uint16(data[2:4]) != 1 {
		return nil, fmt.Errorf("%w: not an icon", ErrUnsupportedFormat)
	}

	count := int(binary.LittleEndian.Uint16(data[4:6]))
	if len(data) < icoHeaderLen+count*icoEntryLen {
		return nil, fmt.Errorf("%w: truncated icon directory", ErrUnsupportedFormat)
	}

	frames := make([]image.Image, 0, count)
	for i := 0; i < count; i++ {
		raw := data[icoHeaderLen+i*icoEntryLen:]
		entry := icoEntry{
			size:   binary.LittleEndian.Uint32(raw[8:12]),
			offset: binary.LittleEndian.Uint32(raw[12:16]),
		}
		end := uint64(entry.offset) + uint64(entry.size)
		if entry.size == 0 || end > uint64(len(data)) {
			continue
		}

		frame, err := decodeICOFrame(data[entry.offset:end], maxPixels)
		if err != nil {
			continue
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no decodable icon frames", ErrUnsupportedFormat)
	}
	return frames, nil
}

func decodeICOFrame(frame []byte, maxPixels int64) (image.Image, error) {
	if bytes.HasPrefix(frame, pngMagic) {
		cfg, err := png.DecodeConfig(bytes.NewReader(frame))
		if err != nil {
			return nil, err
		}
		if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
			return nil, err
		}
		return png.Decode(bytes.NewReader(frame))
	}
	return decodeDIB(frame, maxPixels)
}

// decodeDIB prepends a BMP file header to an icon DIB and halves its
// height, which counts the XOR and AND masks together
func decodeDIB(dib []byte, maxPixels int64) (image.Image, error) {
	if len(dib) < 40 {
		return nil, fmt.Errorf("short dib")
	}

	width := int32(binary.LittleEndian.Uint32(dib[4:8]))
	rows := int32(binary.LittleEndian.Uint32(dib[8:12])) / 2
	if rows < 0 {
		rows = -rows
	}
	if err := checkPixels(int(width), int(rows), maxPixels); err != nil {
		return nil, err
	}

	headerLen := binary.LittleEndian.Uint32(dib[0:4])
	bpp := binary.LittleEndian.Uint16(dib[14:16])
	colors := binary.LittleEndian.Uint32(dib[32:36])
	if colors == 0 && bpp <= 8 {
		colors = 1 << bpp
	}
	if bpp > 8 {
		colors = 0
	}

	fixed := make([]byte, bmpFileLen+len(dib))
	copy(fixed[bmpFileLen:], dib)

	info := fixed[bmpFileLen:]
	height := int32(binary.LittleEndian.Uint32(info[8:12]))
	binary.LittleEndian.PutUint32(info[8:12], uint32(height/2))

	fixed[0], fixed[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(fixed[2:6], uint32(len(fixed)))
	binary.LittleEndian.PutUint32(fixed[10:14], bmpFileLen+headerLen+colors*4)

	return bmp.Decode(bytes.NewReader(fixed))
}
