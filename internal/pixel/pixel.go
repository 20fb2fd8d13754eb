// Package pixel holds the quantized pixel representation backing every
// compiled spritesheet: truecolor input reduced to 4 bits per channel, with
// a horizontally mirrored twin produced in the same pass so flip-X sprite
// variants need no runtime transform.
package pixel

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// Region is an optional crop applied before quantization. It is clamped to
// the image bounds rather than rejected.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Buffer is a dense RGBA4444 pixel grid. Each pixel packs R, G, B, A into
// one uint16, 4 bits per channel, row-major.
type Buffer struct {
	W, H int
	Pix  []uint16
}

// At returns the packed pixel at (x, y). Out-of-bounds reads return zero
// (fully transparent black).
func (b *Buffer) At(x, y int) uint16 {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return 0
	}
	return b.Pix[y*b.W+x]
}

// Alpha returns the 4-bit alpha component of a packed pixel, 0..15.
func Alpha(p uint16) uint8 {
	return uint8(p & 0xF)
}

// Pack reduces 8-bit channels to a packed RGBA4444 value.
func Pack(r, g, b, a uint8) uint16 {
	return uint16(r>>4)<<12 | uint16(g>>4)<<8 | uint16(b>>4)<<4 | uint16(a>>4)
}

// Bytes returns the memory footprint of the buffer in bytes.
func (b *Buffer) Bytes() int {
	return len(b.Pix) * 2
}

// DecodePNG decodes a PNG payload into an image.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding PNG: %w", err)
	}
	return img, nil
}

// Quantize reduces img to RGBA4444 and returns the buffer together with its
// horizontally mirrored twin, built in the same scan. A non-nil region crops
// the source first, clamped to the image bounds.
func Quantize(img image.Image, region *Region) (base, mirrored *Buffer) {
	bounds := img.Bounds()
	x0, y0 := bounds.Min.X, bounds.Min.Y
	w, h := bounds.Dx(), bounds.Dy()

	if region != nil {
		rx, ry, rw, rh := region.X, region.Y, region.W, region.H
		if rx < 0 {
			rw += rx
			rx = 0
		}
		if ry < 0 {
			rh += ry
			ry = 0
		}
		if rx+rw > w {
			rw = w - rx
		}
		if ry+rh > h {
			rh = h - ry
		}
		if rw < 0 {
			rw = 0
		}
		if rh < 0 {
			rh = 0
		}
		x0, y0, w, h = x0+rx, y0+ry, rw, rh
	}

	base = &Buffer{W: w, H: h, Pix: make([]uint16, w*h)}
	mirrored = &Buffer{W: w, H: h, Pix: make([]uint16, w*h)}

	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(x0+x, y0+y).RGBA()
			p := Pack(uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8))
			base.Pix[row+x] = p
			mirrored.Pix[row+(w-1-x)] = p
		}
	}
	return base, mirrored
}
