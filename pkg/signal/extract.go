// Package signal turns a frame sequence and a region mask into the signal
// timecourse: one masked average per frame, in time order.
package signal

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mriperfusion/pkg/imaging"
)

// Frames is the read access the extractor needs from a sequence.
type Frames[T imaging.Sample] interface {
	Size() int
	Frame(i int) *imaging.Buffer[T]
}

// Extract computes the masked average of every frame sequentially.
func Extract[T imaging.Sample](frames Frames[T], mask *imaging.Buffer[float32]) ([]float64, error) {
	signal := make([]float64, frames.Size())
	for d := range signal {
		avg, err := frames.Frame(d).AverageWithinMask(mask)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", d, err)
		}
		signal[d] = avg
	}
	return signal, nil
}

// ExtractParallel computes the same timecourse as Extract using up to
// workers goroutines. Each goroutine reads one frame and the shared mask,
// which must not be modified while the call is running.
func ExtractParallel[T imaging.Sample](ctx context.Context, frames Frames[T], mask *imaging.Buffer[float32], workers int) ([]float64, error) {
	if workers <= 1 {
		return Extract(frames, mask)
	}

	signal := make([]float64, frames.Size())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for d := range signal {
		if gctx.Err() != nil {
			break
		}
		frame := frames.Frame(d)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			avg, err := frame.AverageWithinMask(mask)
			if err != nil {
				return fmt.Errorf("frame %d: %w", d, err)
			}
			signal[d] = avg
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return signal, nil
}
