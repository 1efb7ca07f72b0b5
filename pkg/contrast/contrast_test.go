package contrast

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mriperfusion/internal/logger"
)

func TestParse(t *testing.T) {
	agent, err := Parse(strings.NewReader("Gadobutrol  \t\n0.1\n"))
	require.NoError(t, err)
	assert.Equal(t, Agent{Name: "Gadobutrol", Dose: 0.1}, agent)
	assert.True(t, agent.Available())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"Empty", "", ErrMissingAgent},
		{"BlankName", "   \n0.1\n", ErrMissingAgent},
		{"NoDose", "Gadovist\n", ErrMissingDose},
		{"BadDose", "Gadovist\nlots\n", ErrMissingDose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAvailable(t *testing.T) {
	assert.False(t, Agent{}.Available())
	assert.False(t, Agent{Name: "x", Dose: 0}.Available())
	assert.False(t, Agent{Dose: 1}.Available())
}

func TestSplitArgs(t *testing.T) {
	args := []string{"f0.pgm", "agent.txt", "f1.pgm", "other.txt"}

	meta, frames := SplitArgs(args)
	assert.Equal(t, "agent.txt", meta)
	assert.Equal(t, []string{"f0.pgm", "f1.pgm", "other.txt"}, frames)
	assert.Len(t, args, 4, "input must not be modified")

	meta, frames = SplitArgs([]string{"a.pgm"})
	assert.Empty(t, meta)
	assert.Equal(t, []string{"a.pgm"}, frames)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "agent.txt")
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(good, []byte("Gadoterate\n0.05\n"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("\n"), 0644))

	var logs bytes.Buffer
	log := logger.New(&logs, false)

	agent, ok := Resolve(good, log)
	assert.True(t, ok)
	assert.Equal(t, "Gadoterate", agent.Name)
	assert.Equal(t, 0.05, agent.Dose)

	for _, path := range []string{"", filepath.Join(dir, "missing.txt"), bad} {
		agent, ok := Resolve(path, log)
		assert.False(t, ok, "path %q", path)
		assert.Equal(t, Agent{}, agent)
	}
	assert.Equal(t, 3, strings.Count(logs.String(), "level=WARN"))
}
