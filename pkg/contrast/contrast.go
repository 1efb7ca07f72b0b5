// Package contrast reads the optional contrast-agent description that
// accompanies a perfusion study.
//
// The file is plain text: the first line is the agent name and the next
// token is the administered dose in mmol/kg.
package contrast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"mriperfusion/internal/logger"
)

var (
	// ErrMissingAgent is returned when the first line holds no agent name.
	ErrMissingAgent = errors.New("contrast file does not name an agent")

	// ErrMissingDose is returned when no numeric dose follows the name.
	ErrMissingDose = errors.New("contrast file does not have a dose value")
)

// MetadataSuffix identifies the metadata file among command-line arguments.
const MetadataSuffix = ".txt"

// Agent describes the administered contrast agent.
type Agent struct {
	Name string  `yaml:"name"`
	Dose float64 `yaml:"dose"`
}

// Available reports whether the agent is complete enough to display.
func (a Agent) Available() bool {
	return a.Name != "" && a.Dose > 0
}

func (a Agent) String() string {
	return fmt.Sprintf("%s, dose = %g mmol/kg", a.Name, a.Dose)
}

// Load reads an agent description from path.
func Load(path string) (Agent, error) {
	file, err := os.Open(path)
	if err != nil {
		return Agent{}, fmt.Errorf("unable to open file %q: %w", path, err)
	}
	defer file.Close()

	agent, err := Parse(file)
	if err != nil {
		return Agent{}, fmt.Errorf("file %q: %w", path, err)
	}
	return agent, nil
}

// Parse reads an agent description from r.
func Parse(r io.Reader) (Agent, error) {
	br := bufio.NewReader(r)

	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Agent{}, err
	}
	name := strings.TrimRight(line, " \t\r\n")
	if name == "" {
		return Agent{}, ErrMissingAgent
	}

	var doseTok string
	if _, err := fmt.Fscan(br, &doseTok); err != nil {
		return Agent{}, fmt.Errorf("%w: %v", ErrMissingDose, err)
	}
	dose, err := strconv.ParseFloat(doseTok, 64)
	if err != nil {
		return Agent{}, fmt.Errorf("%w: %q", ErrMissingDose, doseTok)
	}

	return Agent{Name: name, Dose: dose}, nil
}

// SplitArgs separates the metadata path, the first argument containing
// MetadataSuffix, from the frame paths. The input slice is not modified.
func SplitArgs(args []string) (metadataPath string, frames []string) {
	frames = make([]string, 0, len(args))
	for _, arg := range args {
		if metadataPath == "" && strings.Contains(arg, MetadataSuffix) {
			metadataPath = arg
			continue
		}
		frames = append(frames, arg)
	}
	return metadataPath, frames
}

// Resolve loads the agent at path when possible. A missing path, a missing
// file or an unreadable file is reported through log and yields loaded=false.
func Resolve(path string, log *slog.Logger) (agent Agent, loaded bool) {
	log = logger.OrDiscard(log)

	if path == "" {
		log.Warn("no contrast data file, continuing without it")
		return Agent{}, false
	}
	if _, err := os.Stat(path); err != nil {
		log.Warn("contrast data file not found, continuing without it", "path", path)
		return Agent{}, false
	}

	agent, err := Load(path)
	if err != nil {
		log.Debug("failed to load contrast data", "error", err)
		log.Warn("could not load contrast data file, continuing without it", "path", path)
		return Agent{}, false
	}

	log.Debug("loaded contrast agent", "agent", agent.Name, "dose", agent.Dose)
	return agent, true
}
