package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mriperfusion/internal/logger"
	"mriperfusion/pkg/analysis"
	"mriperfusion/pkg/config"
	"mriperfusion/pkg/contrast"
	"mriperfusion/pkg/store"
	"mriperfusion/pkg/visualization"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// errUsage is returned when the command line cannot be used.
var errUsage = errors.New("usage")

// options holds the parsed command line.
type options struct {
	configPath  string
	writeConfig string
	listRuns    int
	frames      []string
	metadata    string
	cfg         *config.Config
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("perfusion", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: perfusion [flags] frame1 frame2 ... [contrast.txt]")
		fs.PrintDefaults()
	}

	opts := &options{}
	verbose := fs.Bool("v", false, "Enable verbose (debug) logging")
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&opts.writeConfig, "write-config", "", "Write the default configuration to this path and exit")
	fs.IntVar(&opts.listRuns, "list", 0, "List the N most recent stored runs and exit (requires -db)")
	threshold := fs.Float64("threshold", 0, "Gradient threshold for contrast arrival")
	maskX := fs.Int("mask-x", 0, "Region of interest center x in pixels")
	maskY := fs.Int("mask-y", 0, "Region of interest center y in pixels")
	maskSize := fs.Int("mask-size", 0, "Region side length (square) or diameter (circle) in pixels")
	maskShape := fs.String("mask-shape", "", "Region shape: square or circle")
	cores := fs.Int("cores", 0, "Number of frames averaged in parallel (default: all CPUs)")
	peakImage := fs.String("peak-image", "", "Save the peak frame as a JPEG to this path")
	report := fs.String("report", "", "Write a YAML report to this path")
	db := fs.String("db", "", "SQLite database that stores analysis runs")
	plot := fs.Bool("plot", true, "Draw the timecourse and gradient in the terminal")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return nil, errUsage
	}

	if opts.writeConfig == "" && opts.listRuns == 0 {
		opts.metadata, opts.frames = contrast.SplitArgs(positional)
		if len(opts.frames) == 0 {
			fs.Usage()
			return nil, errUsage
		}
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	// Explicit flags win over the file and the environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			cfg.Output.Verbose = *verbose
		case "threshold":
			cfg.Analysis.Threshold = *threshold
		case "mask-x":
			cfg.Mask.CenterX = *maskX
		case "mask-y":
			cfg.Mask.CenterY = *maskY
		case "mask-size":
			cfg.Mask.Size = *maskSize
		case "mask-shape":
			cfg.Mask.Shape = *maskShape
		case "cores":
			cfg.Processing.NumCores = *cores
		case "peak-image":
			cfg.Output.PeakImage = *peakImage
		case "report":
			cfg.Output.ReportFile = *report
		case "db":
			cfg.Output.Database = *db
		case "plot":
			cfg.Output.Plot = *plot
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	opts.cfg = cfg
	return opts, nil
}

// parseInterspersed parses args with fs, allowing flags after the frame
// paths. Everything following a "--" terminator is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}

		for len(rest) > 0 && !isFlag(rest[0]) {
			positional = append(positional, rest[0])
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return positional, nil
		}
		args = rest
	}
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}

// run executes the command and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, errUsage) {
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v - aborting\n", err)
		return 1
	}

	log := logger.New(stderr, opts.cfg.Output.Verbose)
	if err := execute(ctx, opts, stdout, log); err != nil {
		log.Debug("run failed", "error", err)
		fmt.Fprintf(stderr, "ERROR: %v - aborting\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, opts *options, stdout io.Writer, log *slog.Logger) error {
	cfg := opts.cfg

	if opts.writeConfig != "" {
		if err := config.CreateDefaultConfigFile(opts.writeConfig); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Default configuration written to %s\n", opts.writeConfig)
		return nil
	}

	if opts.listRuns > 0 {
		return listRuns(ctx, cfg.Output.Database, opts.listRuns, stdout)
	}

	log.Debug("starting analysis",
		"frames", len(opts.frames),
		"threshold", cfg.Analysis.Threshold,
		"mask_shape", cfg.Mask.Shape,
		"cores", cfg.Processing.NumCores)

	params := analysis.ParamsFromConfig(cfg, opts.frames, opts.metadata)
	analyzer := analysis.NewAnalyzer(params, log)
	if err := analyzer.Process(ctx); err != nil {
		return err
	}
	result := analyzer.Result()

	plotHeight := 0
	if cfg.Output.Plot {
		plotHeight = cfg.Output.PlotHeight
	}
	if err := visualization.PrintReport(stdout, result.Presentation(), plotHeight); err != nil {
		return err
	}
	log.Debug("analysis completed", "seconds", result.Duration.Seconds())

	if cfg.Output.Database == "" {
		return nil
	}

	db, err := store.New(cfg.Output.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	r := result.Run()
	if err := db.SaveRun(ctx, r); err != nil {
		return err
	}
	log.Info("stored run", "id", r.ID, "database", cfg.Output.Database)
	return nil
}

func listRuns(ctx context.Context, path string, limit int, stdout io.Writer) error {
	if path == "" {
		return errors.New("listing runs requires a database (-db or output.database)")
	}

	db, err := store.New(path)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No stored runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "%s  %s  frames=%d  peak=%d (%g)  arrival=%d  uptake=%g\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), len(r.FramePaths),
			r.PeakFrame, r.PeakSignal, r.ArrivalFrame, r.UptakeGradient)
	}
	return nil
}
