package models

import (
	"time"
)

// Run is one stored perfusion analysis
type Run struct {
	// ID uniquely identifies the run
	ID string

	// CreatedAt is when the analysis finished
	CreatedAt time.Time

	// FramePaths lists the analysed frames in time order
	FramePaths []string

	// Width and Height are the shared frame dimensions in pixels
	Width, Height int

	// Region describes the region of interest used for averaging
	Region string

	// Threshold is the gradient threshold used for arrival detection
	Threshold float64

	// PeakFrame and PeakSignal locate the peak contrast concentration
	PeakFrame  int
	PeakSignal float64

	// ArrivalFrame and ArrivalSignal locate the contrast arrival
	ArrivalFrame  int
	ArrivalSignal float64

	// ArrivalDetected is false when arrival fell back to frame 0
	ArrivalDetected bool

	// UptakeGradient is the slope between arrival and peak
	UptakeGradient float64

	// FittedUptake is the least-squares slope between arrival and peak
	FittedUptake float64

	// BaselineMean and BaselineStdDev summarise the pre-contrast signal
	BaselineMean   float64
	BaselineStdDev float64

	// Agent and Dose are empty when no contrast metadata was available
	Agent string
	Dose  float64

	// Samples holds the per-frame timecourse
	Samples []Sample
}

// Sample is the signal and gradient at one frame
type Sample struct {
	Frame    int
	Signal   float64
	Gradient float64
}
