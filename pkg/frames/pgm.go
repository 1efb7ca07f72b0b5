package frames

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spakin/netpbm"
	"github.com/spakin/netpbm/npcolor"

	"mriperfusion/internal/logger"
	"mriperfusion/pkg/imaging"
)

// PGM decodes portable graymap files, both the plain (P2) and the binary
// (P5) variants.
type PGM struct {
	Logger *slog.Logger
}

// Decode implements dataset.FrameSource.
func (p PGM) Decode(path string) (*imaging.Buffer[int], int, error) {
	log := logger.OrDiscard(p.Logger)
	log.Debug("loading PGM file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to open file %q: %w", path, err)
	}

	buf, maxVal, err := DecodePGM(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("file %q: %w", path, err)
	}

	log.Debug("PGM file decoded", "path", path,
		"width", buf.Width(), "height", buf.Height(), "maxval", maxVal)
	return buf, maxVal, nil
}

// DecodePGM reads one PGM image from r. Samples keep their stored values
// and the declared maxval is returned alongside them.
//
// For plain files the sample count must match the declared dimensions
// exactly; reading stops at the first token that is not an integer.
func DecodePGM(r io.Reader) (*imaging.Buffer[int], int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}

	plain := bytes.HasPrefix(data, []byte("P2"))
	if !plain && !bytes.HasPrefix(data, []byte("P5")) {
		return nil, 0, fmt.Errorf("%w: got %q", ErrBadMagic, data[:min(len(data), 2)])
	}
	if plain {
		data = stripComments(data)
	}

	img, err := netpbm.Decode(bytes.NewReader(data), &netpbm.DecodeOptions{
		Target: netpbm.PGM,
		Exact:  true,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDataMismatch, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if plain {
		if n := countPlainSamples(data); n != width*height {
			return nil, 0, fmt.Errorf("%w: amount of data (%d) does not match dimensions (%dx%d)",
				ErrDataMismatch, n, width, height)
		}
	}

	buf := imaging.NewBuffer[int](width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch c := img.At(bounds.Min.X+x, bounds.Min.Y+y).(type) {
			case npcolor.GrayM:
				buf.Set(x, y, int(c.Y))
			case npcolor.GrayM32:
				buf.Set(x, y, int(c.Y))
			default:
				return nil, 0, fmt.Errorf("%w: PGM sample of type %T", ErrUnsupportedEncoding, c)
			}
		}
	}
	return buf, int(img.MaxValue()), nil
}

// stripComments drops everything from a '#' to the end of its line.
func stripComments(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		if before, _, found := bytes.Cut(line, []byte("#")); found {
			lines[i] = before
		}
	}
	return bytes.Join(lines, []byte("\n"))
}

// countPlainSamples counts the integer samples following the four header
// tokens of a comment-free plain PGM, up to the first non-integer token.
func countPlainSamples(data []byte) int {
	fields := bytes.Fields(data)
	if len(fields) < 4 {
		return 0
	}

	n := 0
	for _, f := range fields[4:] {
		if _, err := strconv.Atoi(string(f)); err != nil {
			break
		}
		n++
	}
	return n
}

// EncodePGM writes buf as a plain (P2) PGM image.
func EncodePGM(w io.Writer, buf *imaging.Buffer[int], maxVal int) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P2\n%d %d\n%d\n", buf.Width(), buf.Height(), maxVal)
	for y := 0; y < buf.Height(); y++ {
		for x := 0; x < buf.Width(); x++ {
			if x > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.Itoa(buf.At(x, y)))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
