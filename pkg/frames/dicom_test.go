package frames

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/suyashkumar/dicom/pkg/uid"

	"mriperfusion/internal/logger"
)

func mustElement(t *testing.T, tg tag.Tag, data interface{}) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(tg, data)
	if err != nil {
		t.Fatalf("Failed to create element %v: %v", tg, err)
	}
	return elem
}

// nativeFrame builds a 2x2 16-bit single-sample frame
func nativeFrame(samples ...int) *frame.Frame {
	data := make([][]int, len(samples))
	for i, s := range samples {
		data[i] = []int{s}
	}
	return &frame.Frame{
		NativeData: frame.NativeFrame{
			BitsPerSample: 16,
			Rows:          2,
			Cols:          2,
			Data:          data,
		},
	}
}

// writeDICOM writes a 2x2 16-bit dataset with 12 stored bits to dir
func writeDICOM(t *testing.T, dir, name string, frames ...*frame.Frame) string {
	t.Helper()

	pixelData := mustElement(t, tag.PixelData, dicom.PixelDataInfo{Frames: frames})
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustElement(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.4.5.6.7"}),
		mustElement(t, tag.TransferSyntaxUID, []string{uid.ImplicitVRLittleEndian}),
		mustElement(t, tag.SamplesPerPixel, []int{1}),
		mustElement(t, tag.NumberOfFrames, []string{strconv.Itoa(len(frames))}),
		mustElement(t, tag.Rows, []int{2}),
		mustElement(t, tag.Columns, []int{2}),
		mustElement(t, tag.BitsAllocated, []int{16}),
		mustElement(t, tag.BitsStored, []int{12}),
		pixelData,
	}}
	return writeDataset(t, dir, name, ds)
}

func writeDataset(t *testing.T, dir, name string, ds dicom.Dataset) string {
	t.Helper()

	var out bytes.Buffer
	if err := dicom.Write(&out, ds); err != nil {
		t.Fatalf("Failed to write DICOM dataset: %v", err)
	}
	return writeFile(t, dir, name, out.Bytes())
}

func TestDecodeDICOM(t *testing.T) {
	path := writeDICOM(t, t.TempDir(), "frame.dcm", nativeFrame(0, 100, 2000, 4095))

	buf, maxVal, err := Auto{}.Decode(path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.Width() != 2 || buf.Height() != 2 {
		t.Fatalf("Expected 2x2 frame, got %dx%d", buf.Width(), buf.Height())
	}
	if buf.At(0, 0) != 0 || buf.At(1, 0) != 100 || buf.At(0, 1) != 2000 || buf.At(1, 1) != 4095 {
		t.Errorf("Unexpected samples: %v", buf.Data())
	}
	if maxVal != 4095 {
		t.Errorf("Expected maxval 4095 from 12 stored bits, got %d", maxVal)
	}
}

func TestDecodeDICOMMultiFrame(t *testing.T) {
	path := writeDICOM(t, t.TempDir(), "series.dcm",
		nativeFrame(1, 2, 3, 4),
		nativeFrame(50, 60, 70, 80))

	var logs bytes.Buffer
	buf, _, err := DICOM{Logger: logger.New(&logs, false)}.Decode(path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if buf.At(0, 0) != 1 || buf.At(1, 1) != 4 {
		t.Errorf("Expected the first frame, got %v", buf.Data())
	}
	if !strings.Contains(logs.String(), "multi-frame") {
		t.Errorf("Expected a multi-frame warning, got %q", logs.String())
	}
}

func TestDecodeDICOMEncapsulated(t *testing.T) {
	pixelData := mustElement(t, tag.PixelData, dicom.PixelDataInfo{
		IsEncapsulated: true,
		Frames: []*frame.Frame{{
			Encapsulated:     true,
			EncapsulatedData: frame.EncapsulatedFrame{Data: []byte{1, 2, 3, 4}},
		}},
	})
	pixelData.ValueLength = tag.VLUndefinedLength

	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustElement(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.4.5.6.7"}),
		mustElement(t, tag.TransferSyntaxUID, []string{uid.ImplicitVRLittleEndian}),
		mustElement(t, tag.BitsAllocated, []int{8}),
		pixelData,
	}}
	path := writeDataset(t, t.TempDir(), "compressed.dcm", ds)

	_, _, err := DICOM{}.Decode(path)
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("Expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestDecodeDICOMMissingFile(t *testing.T) {
	_, _, err := DICOM{}.Decode(filepath.Join(t.TempDir(), "absent.dcm"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}
