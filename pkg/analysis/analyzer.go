// Package analysis runs the perfusion pipeline: it loads the frame
// sequence, builds the region-of-interest mask, extracts the signal
// timecourse and analyses the contrast uptake curve.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mriperfusion/internal/logger"
	"mriperfusion/internal/models"
	"mriperfusion/pkg/config"
	"mriperfusion/pkg/contrast"
	"mriperfusion/pkg/curve"
	"mriperfusion/pkg/dataset"
	"mriperfusion/pkg/frames"
	"mriperfusion/pkg/imaging"
	"mriperfusion/pkg/mask"
	"mriperfusion/pkg/signal"
	"mriperfusion/pkg/visualization"
)

// RegionFunc builds the mask strategy once the frame size is known.
type RegionFunc func(width, height int) mask.Strategy

// Params holds the analysis parameters.
type Params struct {
	// FramePaths lists the frame files in acquisition order.
	FramePaths []string

	// MetadataPath is the optional contrast-agent file; empty means none.
	MetadataPath string

	// Region builds the region of interest for the loaded frame size.
	Region RegionFunc

	// Threshold is the gradient value that signals contrast arrival.
	Threshold float64

	// NumCores bounds the number of frames averaged in parallel.
	NumCores int

	// Source decodes frames. Nil selects frames.Auto.
	Source dataset.FrameSource[int]

	// PeakImage is the JPEG path for the peak frame; empty disables it.
	// WindowMin, WindowMax and Magnify control its rendering.
	PeakImage string
	WindowMin float64
	WindowMax float64
	Magnify   int

	// ReportFile is the YAML report path; empty disables it.
	ReportFile string
}

// ParamsFromConfig builds Params for framePaths from a loaded configuration.
func ParamsFromConfig(cfg *config.Config, framePaths []string, metadataPath string) *Params {
	return &Params{
		FramePaths:   framePaths,
		MetadataPath: metadataPath,
		Region:       RegionFromConfig(cfg),
		Threshold:    cfg.Analysis.Threshold,
		NumCores:     cfg.Processing.NumCores,
		PeakImage:    cfg.Output.PeakImage,
		WindowMin:    cfg.Output.WindowMin,
		WindowMax:    cfg.Output.WindowMax,
		Magnify:      cfg.Output.Magnify,
		ReportFile:   cfg.Output.ReportFile,
	}
}

// RegionFromConfig returns the region described by the mask section.
// For a circle, Size is the diameter.
func RegionFromConfig(cfg *config.Config) RegionFunc {
	m := cfg.Mask
	if strings.EqualFold(m.Shape, config.ShapeCircle) {
		return func(width, height int) mask.Strategy {
			return mask.NewCircle(width, height, m.CenterX, m.CenterY, m.Size/2)
		}
	}
	return func(width, height int) mask.Strategy {
		return mask.NewSquare(width, height, m.CenterX, m.CenterY, m.Size)
	}
}

// Result holds everything computed by one analysis.
type Result struct {
	// Signal is the mean ROI intensity per frame.
	Signal []float64

	// Analysis holds the gradient and detected contrast events.
	Analysis *curve.Analysis

	// Agent is the contrast agent, valid when AgentLoaded is set.
	Agent       contrast.Agent
	AgentLoaded bool

	// Width and Height are the frame dimensions.
	Width, Height int

	// Region describes the mask used for averaging.
	Region string

	// MaskPixels is the number of pixels in the region of interest.
	MaskPixels int

	// FramePaths lists the analysed frames.
	FramePaths []string

	// PeakFrame is the frame at peak contrast concentration.
	PeakFrame *imaging.Buffer[int]

	// Duration is the wall time spent in Process.
	Duration time.Duration
}

// Analyzer runs the perfusion analysis pipeline.
type Analyzer struct {
	params *Params
	logger *slog.Logger

	sequence *dataset.Sequence[int]
	result   *Result
}

// NewAnalyzer creates a new analyzer with the provided parameters.
func NewAnalyzer(params *Params, log *slog.Logger) *Analyzer {
	log = logger.OrDiscard(log)
	source := params.Source
	if source == nil {
		source = frames.Auto{Logger: log}
	}

	return &Analyzer{
		params:   params,
		logger:   log,
		sequence: dataset.New[int](source, log),
	}
}

// Process runs the complete analysis pipeline.
func (a *Analyzer) Process(ctx context.Context) error {
	start := time.Now()

	// Step 1: contrast metadata is optional and never fails the run
	agent, loaded := contrast.Resolve(a.params.MetadataPath, a.logger)

	// Step 2: load the frame sequence
	a.logger.Info("loading frames", "count", len(a.params.FramePaths))
	if err := a.sequence.Load(a.params.FramePaths); err != nil {
		return fmt.Errorf("failed to load frames: %w", err)
	}

	// Step 3: build the region of interest for the loaded frame size
	if a.params.Region == nil {
		return fmt.Errorf("no region of interest configured")
	}
	region := a.params.Region(a.sequence.Width(), a.sequence.Height())
	roi, err := mask.Build(region, a.sequence.Width(), a.sequence.Height())
	if err != nil {
		return fmt.Errorf("failed to create mask: %w", err)
	}
	pixels := mask.Count(roi)
	a.logger.Debug("created mask", "region", region.String(),
		"width", roi.Width(), "height", roi.Height(), "pixels", pixels)
	if pixels == 0 {
		a.logger.Warn("region of interest lies outside the frame, signal will be zero", "region", region.String())
	}

	// Step 4: average the region in every frame
	timecourse, err := signal.ExtractParallel[int](ctx, a.sequence, roi, a.params.NumCores)
	if err != nil {
		return fmt.Errorf("failed to extract signal: %w", err)
	}

	// Step 5: analyse the uptake curve
	result, err := curve.Analyze(timecourse, a.params.Threshold)
	if err != nil {
		return fmt.Errorf("failed to analyse signal: %w", err)
	}
	a.logger.Debug("analysed timecourse",
		"peak_frame", result.Peak.Frame, "arrival_frame", result.Arrival.Frame,
		"arrival_detected", result.ArrivalDetected)

	res := &Result{
		Signal:      timecourse,
		Analysis:    result,
		Agent:       agent,
		AgentLoaded: loaded,
		Width:       a.sequence.Width(),
		Height:      a.sequence.Height(),
		Region:      region.String(),
		MaskPixels:  pixels,
		FramePaths:  a.sequence.Paths(),
		PeakFrame:   a.sequence.Frame(result.Peak.Frame),
	}

	// Step 6: optional outputs
	if a.params.PeakImage != "" {
		if err := visualization.SaveFrame(res.PeakFrame, a.params.PeakImage,
			a.params.WindowMin, a.params.WindowMax, a.params.Magnify); err != nil {
			return fmt.Errorf("failed to save peak frame: %w", err)
		}
		a.logger.Info("saved peak frame", "path", a.params.PeakImage)
	}

	res.Duration = time.Since(start)

	if a.params.ReportFile != "" {
		if err := WriteReport(res, a.params.ReportFile); err != nil {
			return err
		}
		a.logger.Info("wrote report", "path", a.params.ReportFile)
	}

	a.result = res
	return nil
}

// Result returns the outcome of the last successful Process call, or nil.
func (a *Analyzer) Result() *Result {
	return a.result
}

// Sequence returns the loaded frames.
func (a *Analyzer) Sequence() *dataset.Sequence[int] {
	return a.sequence
}

// Presentation returns the values handed to the display layer.
func (r *Result) Presentation() visualization.Presentation {
	p := visualization.Presentation{
		Signal:          r.Signal,
		Gradient:        r.Analysis.Gradient,
		Peak:            r.Analysis.Peak,
		Arrival:         r.Analysis.Arrival,
		ArrivalDetected: r.Analysis.ArrivalDetected,
		UptakeGradient:  r.Analysis.UptakeGradient,
	}
	if r.AgentLoaded {
		p.Agent = r.Agent
	}
	return p
}

// Run converts the result into a record for the results store.
func (r *Result) Run() *models.Run {
	a := r.Analysis
	run := &models.Run{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		FramePaths:      r.FramePaths,
		Width:           r.Width,
		Height:          r.Height,
		Region:          r.Region,
		Threshold:       a.Threshold,
		PeakFrame:       a.Peak.Frame,
		PeakSignal:      a.Peak.Signal,
		ArrivalFrame:    a.Arrival.Frame,
		ArrivalSignal:   a.Arrival.Signal,
		ArrivalDetected: a.ArrivalDetected,
		UptakeGradient:  a.UptakeGradient,
		FittedUptake:    a.FittedUptake,
		BaselineMean:    a.BaselineMean,
		BaselineStdDev:  a.BaselineStdDev,
		Samples:         make([]models.Sample, len(r.Signal)),
	}
	if r.AgentLoaded {
		run.Agent = r.Agent.Name
		run.Dose = r.Agent.Dose
	}
	for d, s := range r.Signal {
		run.Samples[d] = models.Sample{Frame: d, Signal: s, Gradient: a.Gradient[d]}
	}
	return run
}
