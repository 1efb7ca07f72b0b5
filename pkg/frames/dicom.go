package frames

import (
	"fmt"
	"log/slog"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"mriperfusion/internal/logger"
	"mriperfusion/pkg/imaging"
)

// DICOM decodes the first frame of a DICOM file with native
// (uncompressed) pixel data.
type DICOM struct {
	Logger *slog.Logger
}

// Decode implements dataset.FrameSource.
func (d DICOM) Decode(path string) (*imaging.Buffer[int], int, error) {
	log := logger.OrDiscard(d.Logger)
	log.Debug("loading DICOM file", "path", path)

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("file %q: %w", path, err)
	}

	pixelData, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, fmt.Errorf("file %q: no pixel data: %w", path, err)
	}

	info := dicom.MustGetPixelDataInfo(pixelData.Value)
	if len(info.Frames) == 0 {
		return nil, 0, fmt.Errorf("file %q: %w: no frames", path, ErrDataMismatch)
	}
	if len(info.Frames) > 1 {
		log.Warn("multi-frame DICOM file, using the first frame only",
			"path", path, "frames", len(info.Frames))
	}

	fr := info.Frames[0]
	if fr.Encapsulated {
		return nil, 0, fmt.Errorf("file %q: %w: encapsulated pixel data", path, ErrUnsupportedEncoding)
	}

	img, err := fr.GetImage()
	if err != nil {
		return nil, 0, fmt.Errorf("file %q: %w", path, err)
	}

	buf, maxVal := FromImage(img)
	if bits, err := ds.FindElementByTag(tag.BitsStored); err == nil {
		if v := dicom.MustGetInts(bits.Value); len(v) > 0 && v[0] > 0 && v[0] < 31 {
			maxVal = 1<<v[0] - 1
		}
	}

	log.Debug("DICOM file decoded", "path", path,
		"width", buf.Width(), "height", buf.Height(), "maxval", maxVal)
	return buf, maxVal, nil
}
