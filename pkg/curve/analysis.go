package curve

// Analysis collects every quantity derived from one timecourse.
type Analysis struct {
	Gradient        []float64 `yaml:"gradient"`
	Peak            Contrast  `yaml:"peak"`
	Arrival         Contrast  `yaml:"arrival"`
	ArrivalDetected bool      `yaml:"arrivalDetected"`
	Threshold       float64   `yaml:"threshold"`
	UptakeGradient  float64   `yaml:"uptakeGradient"`
	FittedUptake    float64   `yaml:"fittedUptake"`
	BaselineMean    float64   `yaml:"baselineMean"`
	BaselineStdDev  float64   `yaml:"baselineStdDev"`
}

// Analyze runs the full curve analysis on signal with the given arrival
// threshold.
func Analyze(signal []float64, threshold float64) (*Analysis, error) {
	gradient, err := Gradient(signal)
	if err != nil {
		return nil, err
	}

	peak, err := FindPeak(signal)
	if err != nil {
		return nil, err
	}

	arrival, detected, err := DetectArrival(signal, gradient, peak.Frame, threshold)
	if err != nil {
		return nil, err
	}

	mean, stddev, err := Baseline(signal, arrival.Frame)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Gradient:        gradient,
		Peak:            peak,
		Arrival:         arrival,
		ArrivalDetected: detected,
		Threshold:       threshold,
		UptakeGradient:  UptakeGradient(peak.Signal, arrival.Signal, peak.Frame, arrival.Frame),
		FittedUptake:    FitUptake(signal, arrival.Frame, peak.Frame),
		BaselineMean:    mean,
		BaselineStdDev:  stddev,
	}, nil
}
