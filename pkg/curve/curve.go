// Package curve analyses a signal timecourse: its temporal gradient, the
// frame of peak contrast concentration, the frame of contrast arrival and
// the uptake gradient between the two.
//
// All functions are pure and operate only on their arguments.
package curve

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmptySignal is returned when a timecourse has no samples.
	ErrEmptySignal = errors.New("empty signal vector")

	// ErrLengthMismatch is returned when a gradient and its signal differ in length.
	ErrLengthMismatch = errors.New("gradient and signal lengths differ")
)

// Contrast is a contrast event: a frame index and the signal at that frame.
type Contrast struct {
	Frame  int     `yaml:"frame" json:"frame"`
	Signal float64 `yaml:"signal" json:"signal"`
}

// Gradient returns the forward difference of signal. The last entry has no
// forward neighbour and is 0, so the result has the same length as signal.
func Gradient(signal []float64) ([]float64, error) {
	n := len(signal)
	if n == 0 {
		return nil, ErrEmptySignal
	}

	gradient := make([]float64, n)
	floats.SubTo(gradient[:n-1], signal[1:], signal[:n-1])
	return gradient, nil
}

// FindPeak returns the frame with the highest signal. The earliest frame
// wins when several share the maximum.
func FindPeak(signal []float64) (Contrast, error) {
	if len(signal) == 0 {
		return Contrast{}, ErrEmptySignal
	}

	peak := Contrast{Frame: 0, Signal: signal[0]}
	for d := 1; d < len(signal); d++ {
		if signal[d] > peak.Signal {
			peak = Contrast{Frame: d, Signal: signal[d]}
		}
	}
	return peak, nil
}

// FindArrival returns the earliest frame before peakFrame whose gradient
// exceeds threshold, paired with the signal at that frame. When no frame
// qualifies, arrival is reported at frame 0.
func FindArrival(signal, gradient []float64, peakFrame int, threshold float64) (Contrast, error) {
	arrival, _, err := DetectArrival(signal, gradient, peakFrame, threshold)
	return arrival, err
}

// DetectArrival is FindArrival with an extra result reporting whether a
// threshold crossing was actually found, which separates a genuine arrival
// at frame 0 from the fallback.
func DetectArrival(signal, gradient []float64, peakFrame int, threshold float64) (Contrast, bool, error) {
	if len(signal) == 0 {
		return Contrast{}, false, ErrEmptySignal
	}
	if len(gradient) != len(signal) {
		return Contrast{}, false, fmt.Errorf("%w: %d gradients for %d samples",
			ErrLengthMismatch, len(gradient), len(signal))
	}

	for d := 0; d < peakFrame && d < len(gradient); d++ {
		if gradient[d] > threshold {
			return Contrast{Frame: d, Signal: signal[d]}, true, nil
		}
	}
	return Contrast{Frame: 0, Signal: signal[0]}, false, nil
}

// UptakeGradient returns the mean rate of signal change between arrival and
// peak. Coinciding frames give 0.
func UptakeGradient(peakSignal, arrivalSignal float64, peakFrame, arrivalFrame int) float64 {
	if peakFrame == arrivalFrame {
		return 0.0
	}
	return (peakSignal - arrivalSignal) / float64(peakFrame-arrivalFrame)
}

// Baseline returns the mean and standard deviation of the pre-contrast
// signal, frames 0 through arrivalFrame inclusive. A single frame has zero
// deviation.
func Baseline(signal []float64, arrivalFrame int) (mean, stddev float64, err error) {
	if len(signal) == 0 {
		return 0, 0, ErrEmptySignal
	}

	end := arrivalFrame + 1
	if end < 1 {
		end = 1
	}
	if end > len(signal) {
		end = len(signal)
	}

	window := signal[:end]
	if len(window) == 1 {
		return window[0], 0, nil
	}
	mean, stddev = stat.MeanStdDev(window, nil)
	return mean, stddev, nil
}

// FitUptake returns the least-squares slope of the signal over frames
// arrivalFrame through peakFrame inclusive. Fewer than two frames give 0.
func FitUptake(signal []float64, arrivalFrame, peakFrame int) float64 {
	if arrivalFrame < 0 {
		arrivalFrame = 0
	}
	if peakFrame >= len(signal) {
		peakFrame = len(signal) - 1
	}
	if peakFrame-arrivalFrame < 1 {
		return 0
	}

	x := make([]float64, 0, peakFrame-arrivalFrame+1)
	for d := arrivalFrame; d <= peakFrame; d++ {
		x = append(x, float64(d))
	}
	_, beta := stat.LinearRegression(x, signal[arrivalFrame:peakFrame+1], nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}
