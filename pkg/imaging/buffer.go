// Package imaging provides the 2D sample grid shared by frames and masks.
// Frames hold raw scanner intensities while masks hold membership flags,
// both stored in row-major order.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/exp/constraints"
)

var (
	// ErrDimensionMismatch is returned when sample data or a mask does not
	// agree with a buffer's width and height.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrOutOfRange is returned by the checked accessors for coordinates
	// outside the buffer.
	ErrOutOfRange = errors.New("pixel coordinate out of range")
)

// MaskMember is the mask value that marks a pixel as part of the region of
// interest. Any other value excludes the pixel.
const MaskMember float32 = 1.0

// Sample is the set of numeric types a Buffer can hold.
type Sample interface {
	constraints.Integer | constraints.Float
}

// Buffer is a fixed-size 2D grid of samples.
type Buffer[T Sample] struct {
	width  int
	height int
	data   []T
}

// NewBuffer creates a zero-filled buffer. Dimensions are assumed positive.
func NewBuffer[T Sample](width, height int) *Buffer[T] {
	return &Buffer[T]{
		width:  width,
		height: height,
		data:   make([]T, width*height),
	}
}

// NewBufferFromData creates a buffer holding a copy of data, which must
// contain exactly width*height samples in row-major order.
func NewBufferFromData[T Sample](width, height int, data []T) (*Buffer[T], error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, fmt.Errorf("%w: %d samples for %dx%d buffer", ErrDimensionMismatch, len(data), width, height)
	}

	b := &Buffer[T]{
		width:  width,
		height: height,
		data:   make([]T, len(data)),
	}
	copy(b.data, data)
	return b, nil
}

// Width returns the number of columns.
func (b *Buffer[T]) Width() int { return b.width }

// Height returns the number of rows.
func (b *Buffer[T]) Height() int { return b.height }

// Data returns the underlying samples. Callers must not modify the slice.
func (b *Buffer[T]) Data() []T { return b.data }

// SameSize reports whether b and other have identical dimensions.
func SameSize[T, U Sample](b *Buffer[T], other *Buffer[U]) bool {
	return b.width == other.width && b.height == other.height
}

// At returns the sample at (x, y) without bounds checking.
func (b *Buffer[T]) At(x, y int) T {
	return b.data[x+b.width*y]
}

// Set stores v at (x, y) without bounds checking.
func (b *Buffer[T]) Set(x, y int, v T) {
	b.data[x+b.width*y] = v
}

// Get is the bounds-checked form of At.
func (b *Buffer[T]) Get(x, y int) (T, error) {
	if !b.contains(x, y) {
		var zero T
		return zero, fmt.Errorf("%w: (%d,%d) in %dx%d buffer", ErrOutOfRange, x, y, b.width, b.height)
	}
	return b.At(x, y), nil
}

// Put is the bounds-checked form of Set.
func (b *Buffer[T]) Put(x, y int, v T) error {
	if !b.contains(x, y) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d buffer", ErrOutOfRange, x, y, b.width, b.height)
	}
	b.Set(x, y, v)
	return nil
}

func (b *Buffer[T]) contains(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// Max returns the largest sample in the buffer, or zero for an empty one.
func (b *Buffer[T]) Max() T {
	if len(b.data) == 0 {
		var zero T
		return zero
	}
	m := b.data[0]
	for _, v := range b.data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// AverageWithinMask returns the mean sample value over the pixels marked
// with MaskMember. An empty mask yields 0.
func (b *Buffer[T]) AverageWithinMask(mask *Buffer[float32]) (float64, error) {
	if !SameSize(b, mask) {
		return 0, fmt.Errorf("%w: mask is %dx%d, buffer is %dx%d",
			ErrDimensionMismatch, mask.width, mask.height, b.width, b.height)
	}

	sum := 0.0
	count := 0
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			if mask.At(x, y) == MaskMember {
				sum += float64(b.At(x, y))
				count++
			}
		}
	}

	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

// Image renders the buffer as an 8-bit grayscale image. Samples are
// linearly windowed so that lo maps to black and hi to white, and each
// pixel is replicated magnify times in both directions.
func (b *Buffer[T]) Image(lo, hi float64, magnify int) image.Image {
	if magnify < 1 {
		magnify = 1
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	img := image.NewGray(image.Rect(0, 0, b.width*magnify, b.height*magnify))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			v := (float64(b.At(x, y)) - lo) / span * 255
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			c := color.Gray{Y: uint8(v + 0.5)}
			for dy := 0; dy < magnify; dy++ {
				for dx := 0; dx < magnify; dx++ {
					img.SetGray(x*magnify+dx, y*magnify+dy, c)
				}
			}
		}
	}
	return img
}
