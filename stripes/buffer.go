package stripes

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
)

var ErrShapeMismatch = errors.New("buffer shape mismatch")

// Buffer is a row-major Height x Width x Channels grid of samples.
// Channels is 1 (gray), 3 (RGB) or 4 (non-premultiplied RGBA). Depth is the
// bytes per sample: 1, or 2 for 16-bit samples stored big-endian as in
// image.Gray16. A zero Depth means 1.
type Buffer struct {
	Height   int
	Width    int
	Channels int
	Depth    int
	Pix      []uint8
}

// NewBuffer allocates a zeroed 8-bit buffer.
func NewBuffer(height, width, channels int) Buffer {
	return NewBufferDepth(height, width, channels, 1)
}

// NewBufferDepth allocates a zeroed buffer with depth bytes per sample.
func NewBufferDepth(height, width, channels, depth int) Buffer {
	return Buffer{
		Height:   height,
		Width:    width,
		Channels: channels,
		Depth:    depth,
		Pix:      make([]uint8, height*width*channels*depth),
	}
}

func (b Buffer) depth() int {
	if b.Depth == 0 {
		return 1
	}
	return b.Depth
}

// PixelLen is the number of bytes one pixel occupies.
func (b Buffer) PixelLen() int { return b.Channels * b.depth() }

func (b Buffer) rowLen() int { return b.Width * b.PixelLen() }

// Row returns the bytes of row y. The slice aliases b.Pix.
func (b Buffer) Row(y int) []uint8 {
	n := b.rowLen()
	return b.Pix[y*n : (y+1)*n]
}

// At returns the bytes of the pixel at (x, y). The slice aliases b.Pix.
func (b Buffer) At(x, y int) []uint8 {
	n := b.PixelLen()
	off := y*b.rowLen() + x*n
	return b.Pix[off : off+n]
}

// Equal reports whether both buffers have the same shape and samples.
func (b Buffer) Equal(o Buffer) bool {
	if b.Height != o.Height || b.Width != o.Width || b.Channels != o.Channels || b.depth() != o.depth() {
		return false
	}
	if len(b.Pix) != len(o.Pix) {
		return false
	}
	for i := range b.Pix {
		if b.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// FromImage copies img into a Buffer. Gray images keep a single channel,
// opaque color images become RGB, everything else RGBA. 16-bit images
// (Gray16, RGBA64, NRGBA64) keep their full precision.
func FromImage(img image.Image) Buffer {
	r := img.Bounds()
	w, h := r.Dx(), r.Dy()

	switch src := img.(type) {
	case *image.Gray:
		buf := NewBuffer(h, w, 1)
		for y := 0; y < h; y++ {
			off := src.PixOffset(r.Min.X, r.Min.Y+y)
			copy(buf.Row(y), src.Pix[off:off+w])
		}
		return buf
	case *image.Gray16:
		buf := NewBufferDepth(h, w, 1, 2)
		for y := 0; y < h; y++ {
			off := src.PixOffset(r.Min.X, r.Min.Y+y)
			copy(buf.Row(y), src.Pix[off:off+2*w])
		}
		return buf
	case *image.RGBA64, *image.NRGBA64:
		wide, ok := img.(*image.NRGBA64)
		if !ok {
			wide = image.NewNRGBA64(image.Rect(0, 0, w, h))
			draw.Draw(wide, wide.Bounds(), img, r.Min, draw.Src)
		}
		return fromInterleaved(wide.Pix, wide.Stride, wide.PixOffset(wide.Bounds().Min.X, wide.Bounds().Min.Y), h, w, 2, isOpaque(img))
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), img, r.Min, draw.Src)
	}
	return fromInterleaved(nrgba.Pix, nrgba.Stride, nrgba.PixOffset(nrgba.Bounds().Min.X, nrgba.Bounds().Min.Y), h, w, 1, isOpaque(img))
}

// fromInterleaved copies 4-channel RGBA rows, dropping alpha when opaque.
func fromInterleaved(pix []uint8, stride, origin, h, w, depth int, opaque bool) Buffer {
	channels := 4
	if opaque {
		channels = 3
	}
	buf := NewBufferDepth(h, w, channels, depth)
	src4 := 4 * depth
	dst := buf.PixelLen()
	for y := 0; y < h; y++ {
		src := pix[origin+y*stride:]
		row := buf.Row(y)
		if channels == 4 {
			copy(row, src[:src4*w])
			continue
		}
		for x := 0; x < w; x++ {
			copy(row[dst*x:dst*(x+1)], src[src4*x:src4*x+dst])
		}
	}
	return buf
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// Image converts the buffer back into an image.Image anchored at (0, 0).
func (b Buffer) Image() image.Image {
	rect := image.Rect(0, 0, b.Width, b.Height)
	wide := b.depth() == 2
	switch {
	case b.Channels == 1 && wide:
		img := image.NewGray16(rect)
		copy(img.Pix, b.Pix)
		return img
	case b.Channels == 1:
		img := image.NewGray(rect)
		copy(img.Pix, b.Pix)
		return img
	case b.Channels == 3 && wide:
		img := image.NewRGBA64(rect)
		for i, j := 0, 0; j < len(b.Pix); i, j = i+8, j+6 {
			copy(img.Pix[i:i+6], b.Pix[j:j+6])
			img.Pix[i+6], img.Pix[i+7] = 0xff, 0xff
		}
		return img
	case b.Channels == 3:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; j < len(b.Pix); i, j = i+4, j+3 {
			copy(img.Pix[i:i+3], b.Pix[j:j+3])
			img.Pix[i+3] = 0xff
		}
		return img
	case wide:
		img := image.NewNRGBA64(rect)
		copy(img.Pix, b.Pix)
		return img
	default:
		img := image.NewNRGBA(rect)
		copy(img.Pix, b.Pix)
		return img
	}
}

// Stack concatenates buffers along the row axis, top to bottom.
func Stack(bufs ...Buffer) (Buffer, error) {
	if len(bufs) == 0 {
		return Buffer{}, fmt.Errorf("%w: nothing to stack", ErrShapeMismatch)
	}
	first := bufs[0]
	height := 0
	for i, b := range bufs {
		if b.Width != first.Width || b.Channels != first.Channels || b.depth() != first.depth() {
			return Buffer{}, fmt.Errorf("%w: buffer %d is %dx%dx%d depth %d, want width %d channels %d depth %d",
				ErrShapeMismatch, i, b.Height, b.Width, b.Channels, b.depth(), first.Width, first.Channels, first.depth())
		}
		height += b.Height
	}
	out := Buffer{Height: height, Width: first.Width, Channels: first.Channels, Depth: first.depth(),
		Pix: make([]uint8, 0, height*first.rowLen())}
	for _, b := range bufs {
		out.Pix = append(out.Pix, b.Pix...)
	}
	return out, nil
}
