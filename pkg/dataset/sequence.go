// Package dataset holds a perfusion study as a time-ordered sequence of
// equally sized frames.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"

	"mriperfusion/internal/logger"
	"mriperfusion/pkg/imaging"
)

var (
	// ErrEmptySequence is returned when a load is attempted with no sources.
	ErrEmptySequence = errors.New("no filenames supplied when loading dataset")

	// ErrFrameIndex is returned by At for an index outside the sequence.
	ErrFrameIndex = errors.New("frame index out of range")
)

// FrameSource decodes one frame from a path. It returns the pixel buffer
// and the maximum sample value declared by the file.
type FrameSource[T imaging.Sample] interface {
	Decode(path string) (*imaging.Buffer[T], T, error)
}

// Sequence is an ordered collection of frames acquired over time. Every
// frame has the dimensions of the first one.
type Sequence[T imaging.Sample] struct {
	source FrameSource[T]
	logger *slog.Logger

	frames []*imaging.Buffer[T]
	paths  []string
	maxVal T
}

// New creates an empty sequence that loads frames through source.
func New[T imaging.Sample](source FrameSource[T], log *slog.Logger) *Sequence[T] {
	return &Sequence[T]{
		source: source,
		logger: logger.OrDiscard(log),
	}
}

// Load decodes every path in order and replaces the held frames. On any
// error the previously held frames are left untouched.
func (s *Sequence[T]) Load(paths []string) error {
	if len(paths) == 0 {
		return ErrEmptySequence
	}

	frames := make([]*imaging.Buffer[T], 0, len(paths))
	var maxVal T
	for i, path := range paths {
		frame, declaredMax, err := s.source.Decode(path)
		if err != nil {
			return fmt.Errorf("failed to load frame %d (%s): %w", i, path, err)
		}

		if i > 0 && !imaging.SameSize(frame, frames[0]) {
			return fmt.Errorf("%w: frame %d (%s) is %dx%d, expected %dx%d",
				imaging.ErrDimensionMismatch, i, path,
				frame.Width(), frame.Height(), frames[0].Width(), frames[0].Height())
		}

		if i == 0 || declaredMax > maxVal {
			maxVal = declaredMax
		}
		frames = append(frames, frame)
	}

	s.frames = frames
	s.paths = append([]string(nil), paths...)
	s.maxVal = maxVal

	s.logger.Debug("loaded frames",
		"count", len(frames),
		"width", frames[0].Width(),
		"height", frames[0].Height())
	return nil
}

// Size returns the number of frames.
func (s *Sequence[T]) Size() int { return len(s.frames) }

// Frame returns the frame at time index i. The index must be in [0, Size()).
func (s *Sequence[T]) Frame(i int) *imaging.Buffer[T] { return s.frames[i] }

// At is the bounds-checked form of Frame.
func (s *Sequence[T]) At(i int) (*imaging.Buffer[T], error) {
	if i < 0 || i >= len(s.frames) {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrFrameIndex, i, len(s.frames))
	}
	return s.frames[i], nil
}

// Width returns the shared frame width, or 0 before a successful load.
func (s *Sequence[T]) Width() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[0].Width()
}

// Height returns the shared frame height, or 0 before a successful load.
func (s *Sequence[T]) Height() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[0].Height()
}

// Paths returns the sources of the loaded frames in time order.
func (s *Sequence[T]) Paths() []string { return s.paths }

// MaxValue returns the largest maximum sample value declared by any frame.
func (s *Sequence[T]) MaxValue() T { return s.maxVal }
