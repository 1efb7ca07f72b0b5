package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mriperfusion/pkg/contrast"
	"mriperfusion/pkg/curve"
)

// Report is the YAML document written for one analysis.
type Report struct {
	Frames struct {
		Count  int      `yaml:"count"`
		Width  int      `yaml:"width"`
		Height int      `yaml:"height"`
		Paths  []string `yaml:"paths"`
	} `yaml:"frames"`

	Region     string          `yaml:"region"`
	MaskPixels int             `yaml:"maskPixels"`
	Agent      *contrast.Agent `yaml:"agent,omitempty"`
	Signal     []float64       `yaml:"signal"`
	Analysis   *curve.Analysis `yaml:"analysis"`
	Seconds    float64         `yaml:"seconds"`
}

// NewReport builds the report document for r.
func NewReport(r *Result) *Report {
	rep := &Report{
		Region:     r.Region,
		MaskPixels: r.MaskPixels,
		Signal:     r.Signal,
		Analysis:   r.Analysis,
		Seconds:    r.Duration.Seconds(),
	}
	rep.Frames.Count = len(r.Signal)
	rep.Frames.Width = r.Width
	rep.Frames.Height = r.Height
	rep.Frames.Paths = r.FramePaths
	if r.AgentLoaded {
		agent := r.Agent
		rep.Agent = &agent
	}
	return rep
}

// WriteReport saves the YAML report for r to path.
func WriteReport(r *Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating report directory: %w", err)
	}

	data, err := yaml.Marshal(NewReport(r))
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing report file: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading report file: %w", err)
	}

	rep := &Report{}
	if err := yaml.Unmarshal(data, rep); err != nil {
		return nil, fmt.Errorf("error parsing report file: %w", err)
	}
	return rep, nil
}
