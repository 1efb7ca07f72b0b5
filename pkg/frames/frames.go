// Package frames decodes individual perfusion frames from disk into pixel
// buffers. Every decoder satisfies dataset.FrameSource[int].
package frames

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"mriperfusion/internal/logger"
	"mriperfusion/pkg/imaging"
)

var (
	// ErrBadMagic is returned for a file whose header does not identify the
	// expected format.
	ErrBadMagic = errors.New("not in PGM format")

	// ErrDataMismatch is returned when the amount of pixel data disagrees
	// with the declared dimensions.
	ErrDataMismatch = errors.New("pixel data does not match dimensions")

	// ErrUnsupportedEncoding is returned for compressed DICOM pixel data.
	ErrUnsupportedEncoding = errors.New("unsupported pixel data encoding")
)

// Auto picks a decoder from the file extension: .pgm files go to PGM,
// .dcm and .dicom to DICOM, and everything else to Raster.
type Auto struct {
	Logger *slog.Logger
}

// Decode implements dataset.FrameSource.
func (a Auto) Decode(path string) (*imaging.Buffer[int], int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pgm":
		return PGM{Logger: a.Logger}.Decode(path)
	case ".dcm", ".dicom":
		return DICOM{Logger: a.Logger}.Decode(path)
	default:
		return Raster{Logger: a.Logger}.Decode(path)
	}
}

// Raster decodes PNG, JPEG, TIFF, BMP and colour netpbm (PPM, PAM) files.
// Grayscale images keep their native depth; colour images are reduced to
// 8-bit luma.
type Raster struct {
	Logger *slog.Logger
}

// Decode implements dataset.FrameSource.
func (r Raster) Decode(path string) (*imaging.Buffer[int], int, error) {
	log := logger.OrDiscard(r.Logger)

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to open file %q: %w", path, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, 0, fmt.Errorf("file %q: %w", path, err)
	}

	buf, maxVal := FromImage(img)
	log.Debug("image file decoded", "path", path, "format", format,
		"width", buf.Width(), "height", buf.Height(), "maxval", maxVal)
	return buf, maxVal, nil
}

// FromImage converts img into a buffer of intensities and returns it with
// the maximum value representable at the image's depth.
func FromImage(img image.Image) (*imaging.Buffer[int], int) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	buf := imaging.NewBuffer[int](width, height)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				buf.Set(x, y, int(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return buf, 0xffff

	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				buf.Set(x, y, int(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return buf, 0xff

	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				buf.Set(x, y, int(g.Y))
			}
		}
		return buf, 0xff
	}
}
