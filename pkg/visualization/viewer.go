package visualization

import (
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	"github.com/guptarohit/asciigraph"

	"mriperfusion/pkg/contrast"
	"mriperfusion/pkg/curve"
	"mriperfusion/pkg/imaging"
)

// Presentation is everything the analysis hands over for display.
type Presentation struct {
	// Signal is the mean ROI intensity per frame
	Signal []float64

	// Gradient is the frame-to-frame difference of Signal
	Gradient []float64

	// Peak and Arrival are the detected contrast events
	Peak    curve.Contrast
	Arrival curve.Contrast

	// ArrivalDetected is false when arrival fell back to frame 0
	ArrivalDetected bool

	// UptakeGradient is the slope between arrival and peak
	UptakeGradient float64

	// Agent is only shown when it is Available
	Agent contrast.Agent
}

// Plot draws values as a terminal line chart, one column per frame, about
// height rows tall, with title as the caption.
func Plot(w io.Writer, title string, values []float64, height int) error {
	if len(values) == 0 {
		_, err := fmt.Fprintf(w, "%s\n(no data)\n", title)
		return err
	}
	if height < 3 {
		height = 3
	}

	chart := asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Precision(2),
		asciigraph.Caption(title))
	_, err := fmt.Fprintln(w, chart)
	return err
}

// SaveFrame saves a frame as a JPEG image, windowed to [lo, hi] and
// magnified by pixel replication.
func SaveFrame[T imaging.Sample](buf *imaging.Buffer[T], filename string, lo, hi float64, magnify int) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, buf.Image(lo, hi, magnify), &jpeg.Options{Quality: 90})
}

// PrintReport writes the plots and the clinical summary of p to w.
func PrintReport(w io.Writer, p Presentation, plotHeight int) error {
	if plotHeight > 0 {
		if err := Plot(w, "Signal timecourse within ROI", p.Signal, plotHeight); err != nil {
			return err
		}
		fmt.Fprintln(w)
		if err := Plot(w, "Gradient of signal timecourse within ROI", p.Gradient, plotHeight); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	return PrintSummary(w, p)
}

// PrintSummary writes the text lines of the report without plots.
func PrintSummary(w io.Writer, p Presentation) error {
	if p.Agent.Available() {
		fmt.Fprintf(w, "Contrast agent: %s\n", p.Agent)
	} else {
		fmt.Fprintln(w, "No contrast agent data available")
	}

	fmt.Fprintf(w, "Contrast arrival occurs at time frame %d, with signal intensity: %g\n",
		p.Arrival.Frame, p.Arrival.Signal)
	if !p.ArrivalDetected {
		fmt.Fprintln(w, "  (no gradient above threshold before the peak; arrival defaults to the first frame)")
	}

	fmt.Fprintf(w, "Peak contrast concentration occurs at time frame %d, with signal intensity: %g\n",
		p.Peak.Frame, p.Peak.Signal)

	_, err := fmt.Fprintf(w, "Temporal gradient of signal during contrast uptake: %g\n", p.UptakeGradient)
	return err
}
