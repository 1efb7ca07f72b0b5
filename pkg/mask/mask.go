// Package mask generates region-of-interest masks for frame averaging.
//
// A mask is an imaging.Buffer[float32] in which imaging.MaskMember marks the
// pixels that belong to the region. Each region shape is a Strategy that
// paints its pixels into a pre-zeroed buffer.
package mask

import (
	"errors"
	"fmt"

	"mriperfusion/pkg/imaging"
)

// ErrInvalidCenter is returned when a region center has a negative coordinate.
var ErrInvalidCenter = errors.New("mask center coordinates must be non-negative")

// Strategy fills a mask buffer with one region shape.
type Strategy interface {
	// Fill marks the region's pixels in target and leaves all others untouched.
	Fill(target *imaging.Buffer[float32]) error

	// String describes the region for logs and reports.
	String() string
}

// Build allocates a zeroed width x height mask and fills it with s.
func Build(s Strategy, width, height int) (*imaging.Buffer[float32], error) {
	m := imaging.NewBuffer[float32](width, height)
	if err := s.Fill(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Count returns the number of member pixels in m.
func Count(m *imaging.Buffer[float32]) int {
	n := 0
	for _, v := range m.Data() {
		if v == imaging.MaskMember {
			n++
		}
	}
	return n
}

// region holds the geometry shared by all centered shapes.
type region struct {
	Width, Height    int
	CenterX, CenterY int
}

func (r region) check(target *imaging.Buffer[float32]) error {
	if r.CenterX < 0 || r.CenterY < 0 {
		return fmt.Errorf("%w: got (%d,%d)", ErrInvalidCenter, r.CenterX, r.CenterY)
	}
	if target.Width() != r.Width || target.Height() != r.Height {
		return fmt.Errorf("%w: mask region is %dx%d, target is %dx%d",
			imaging.ErrDimensionMismatch, r.Width, r.Height, target.Width(), target.Height())
	}
	return nil
}

// Square is a square region of side Size centered on (CenterX, CenterY).
// Rows and columns falling outside the image are clipped.
type Square struct {
	region
	Size int
}

// NewSquare creates a square region for a width x height image.
func NewSquare(width, height, centerX, centerY, size int) *Square {
	return &Square{
		region: region{Width: width, Height: height, CenterX: centerX, CenterY: centerY},
		Size:   size,
	}
}

// Fill implements Strategy.
func (s *Square) Fill(target *imaging.Buffer[float32]) error {
	if err := s.check(target); err != nil {
		return err
	}

	half := s.Size / 2
	for y := s.CenterY - half; y <= s.CenterY+half; y++ {
		if y < 0 || y >= s.Height {
			continue
		}
		for x := s.CenterX - half; x <= s.CenterX+half; x++ {
			if x < 0 || x >= s.Width {
				continue
			}
			target.Set(x, y, imaging.MaskMember)
		}
	}
	return nil
}

func (s *Square) String() string {
	return fmt.Sprintf("square %dpx at (%d,%d)", s.Size, s.CenterX, s.CenterY)
}

// Circle is a disc of the given Radius centered on (CenterX, CenterY).
type Circle struct {
	region
	Radius int
}

// NewCircle creates a disc region for a width x height image.
func NewCircle(width, height, centerX, centerY, radius int) *Circle {
	return &Circle{
		region: region{Width: width, Height: height, CenterX: centerX, CenterY: centerY},
		Radius: radius,
	}
}

// Fill implements Strategy.
func (c *Circle) Fill(target *imaging.Buffer[float32]) error {
	if err := c.check(target); err != nil {
		return err
	}

	r2 := c.Radius * c.Radius
	for y := c.CenterY - c.Radius; y <= c.CenterY+c.Radius; y++ {
		if y < 0 || y >= c.Height {
			continue
		}
		dy := y - c.CenterY
		for x := c.CenterX - c.Radius; x <= c.CenterX+c.Radius; x++ {
			if x < 0 || x >= c.Width {
				continue
			}
			dx := x - c.CenterX
			if dx*dx+dy*dy <= r2 {
				target.Set(x, y, imaging.MaskMember)
			}
		}
	}
	return nil
}

func (c *Circle) String() string {
	return fmt.Sprintf("circle r=%dpx at (%d,%d)", c.Radius, c.CenterX, c.CenterY)
}
