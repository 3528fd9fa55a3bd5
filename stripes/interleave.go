// Package stripes builds the strip-interleaved composite: the aligned image
// stacked over a column-interleaved and a row-interleaved variant.
package stripes

import (
	"errors"
	"fmt"
	"image"

	"github.com/Ceslavas/image-processing-tools/imagefile"
)

var (
	ErrInvalidStep = errors.New("step must be >= 1")
	ErrInvalidAxis = errors.New("invalid axis")
)

// Axis selects the interleaving direction.
type Axis int

const (
	Rows Axis = iota
	Columns
)

func (a Axis) String() string {
	switch a {
	case Rows:
		return "rows"
	case Columns:
		return "columns"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Interleaver splits an axis into bands of Step rows or columns and moves
// the even bands in front of the odd ones.
type Interleaver struct {
	step int
}

// New returns an Interleaver for the given band width.
func New(step int) (*Interleaver, error) {
	if step < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidStep, step)
	}
	return &Interleaver{step: step}, nil
}

// Step returns the band width.
func (p *Interleaver) Step() int { return p.step }

// Align crops height and width down to multiples of the step, keeping the
// top-left corner. The result never shares memory with buf.
func (p *Interleaver) Align(buf Buffer) Buffer {
	h := buf.Height / p.step * p.step
	w := buf.Width / p.step * p.step

	out := NewBufferDepth(h, w, buf.Channels, buf.depth())
	n := w * buf.PixelLen()
	for y := 0; y < h; y++ {
		copy(out.Row(y), buf.Row(y)[:n])
	}
	return out
}

// Interleave aligns buf, then reorders positions along axis so that every
// position in an even band ((i/step)%2 == 0) comes first, followed by the
// odd-band positions. Order inside each group is preserved.
func (p *Interleaver) Interleave(buf Buffer, axis Axis) (Buffer, error) {
	aligned := p.Align(buf)

	var extent int
	switch axis {
	case Rows:
		extent = aligned.Height
	case Columns:
		extent = aligned.Width
	default:
		return Buffer{}, fmt.Errorf("%w: %v", ErrInvalidAxis, axis)
	}

	order := p.bandOrder(extent)
	out := NewBufferDepth(aligned.Height, aligned.Width, aligned.Channels, aligned.depth())

	if axis == Rows {
		for dst, src := range order {
			copy(out.Row(dst), aligned.Row(src))
		}
		return out, nil
	}

	c := aligned.PixelLen()
	for y := 0; y < aligned.Height; y++ {
		src, dst := aligned.Row(y), out.Row(y)
		for dx, sx := range order {
			copy(dst[dx*c:(dx+1)*c], src[sx*c:(sx+1)*c])
		}
	}
	return out, nil
}

// InterleaveImage is Interleave returning a displayable image.
func (p *Interleaver) InterleaveImage(buf Buffer, axis Axis) (image.Image, error) {
	out, err := p.Interleave(buf, axis)
	if err != nil {
		return nil, err
	}
	return out.Image(), nil
}

// bandOrder maps each output position to its source position.
func (p *Interleaver) bandOrder(extent int) []int {
	order := make([]int, 0, extent)
	for i := 0; i < extent; i++ {
		if (i/p.step)%2 == 0 {
			order = append(order, i)
		}
	}
	for i := 0; i < extent; i++ {
		if (i/p.step)%2 == 1 {
			order = append(order, i)
		}
	}
	return order
}

// Process opens the image at path and returns the composite.
func (p *Interleaver) Process(path string) (image.Image, error) {
	img, err := imagefile.Open(path)
	if err != nil {
		return nil, err
	}
	return p.ProcessImage(img)
}

// ProcessImage stacks the aligned image, its column interleave, and the row
// interleave of the column result. Output is 3*h' tall and w' wide.
func (p *Interleaver) ProcessImage(img image.Image) (image.Image, error) {
	out, err := p.Composite(FromImage(img))
	if err != nil {
		return nil, err
	}
	return out.Image(), nil
}

// Composite is ProcessImage on a raw buffer.
func (p *Interleaver) Composite(buf Buffer) (Buffer, error) {
	base := p.Align(buf)
	vertical, err := p.Interleave(base, Columns)
	if err != nil {
		return Buffer{}, err
	}
	// 水平切分叠加在垂直结果之上
	horizontal, err := p.Interleave(vertical, Rows)
	if err != nil {
		return Buffer{}, err
	}
	return Stack(base, vertical, horizontal)
}
