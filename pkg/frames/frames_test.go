package frames

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mriperfusion/pkg/imaging"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestDecodePlainPGM(t *testing.T) {
	src := "P2\n# created by scanner export\n3 2\n255\n1 2 3\n4 5 # trailing comment\n6\n"

	buf, maxVal, err := DecodePGM(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodePGM failed: %v", err)
	}
	if maxVal != 255 {
		t.Errorf("Expected maxval 255, got %d", maxVal)
	}
	if buf.Width() != 3 || buf.Height() != 2 {
		t.Fatalf("Expected 3x2, got %dx%d", buf.Width(), buf.Height())
	}
	if buf.At(2, 0) != 3 || buf.At(0, 1) != 4 || buf.At(2, 1) != 6 {
		t.Errorf("Unexpected sample layout: %v", buf.Data())
	}
}

func TestDecodeBinaryPGM(t *testing.T) {
	t.Run("8bit", func(t *testing.T) {
		src := append([]byte("P5\n2 2\n255\n"), 0, 10, 200, 255)
		buf, maxVal, err := DecodePGM(bytes.NewReader(src))
		if err != nil {
			t.Fatalf("DecodePGM failed: %v", err)
		}
		if maxVal != 255 || buf.At(1, 0) != 10 || buf.At(1, 1) != 255 {
			t.Errorf("Unexpected decode: maxval=%d data=%v", maxVal, buf.Data())
		}
	})

	t.Run("16bit", func(t *testing.T) {
		src := append([]byte("P5 2 1 4095\n"), 0x0f, 0xff, 0x01, 0x00)
		buf, maxVal, err := DecodePGM(bytes.NewReader(src))
		if err != nil {
			t.Fatalf("DecodePGM failed: %v", err)
		}
		if maxVal != 4095 || buf.At(0, 0) != 4095 || buf.At(1, 0) != 256 {
			t.Errorf("Unexpected decode: maxval=%d data=%v", maxVal, buf.Data())
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		src := append([]byte("P5\n2 2\n255\n"), 1, 2, 3)
		if _, _, err := DecodePGM(bytes.NewReader(src)); !errors.Is(err, ErrDataMismatch) {
			t.Errorf("Expected ErrDataMismatch, got %v", err)
		}
	})
}

func TestDecodePGMErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"BadMagic", "P3\n1 1\n255\n0 0 0\n", ErrBadMagic},
		{"Empty", "", ErrBadMagic},
		{"TooFewSamples", "P2\n2 2\n255\n1 2 3\n", ErrDataMismatch},
		{"TooManySamples", "P2\n1 1\n255\n1 2\n", ErrDataMismatch},
		{"BadHeader", "P2\n2 x\n255\n", ErrDataMismatch},
		{"TruncatedHeader", "P2\n2", ErrDataMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodePGM(strings.NewReader(tt.src))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodePlainPGMStopsAtText(t *testing.T) {
	buf, _, err := DecodePGM(strings.NewReader("P2\n2 1\n255\n7 8 end of data\n"))
	if err != nil {
		t.Fatalf("DecodePGM failed: %v", err)
	}
	if buf.At(0, 0) != 7 || buf.At(1, 0) != 8 {
		t.Errorf("Unexpected samples: %v", buf.Data())
	}
}

func TestRasterNetpbm(t *testing.T) {
	path := writeFile(t, t.TempDir(), "frame.ppm", []byte("P3\n2 1\n255\n255 255 255 0 0 0\n"))

	buf, maxVal, err := Auto{}.Decode(path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if maxVal != 0xff || buf.At(0, 0) != 255 || buf.At(1, 0) != 0 {
		t.Errorf("Unexpected decode: maxval=%d data=%v", maxVal, buf.Data())
	}
}

func TestPGMDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "frame.pgm", []byte("P2\n2 1\n100\n7 8\n"))

	buf, maxVal, err := PGM{}.Decode(path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if maxVal != 100 || buf.At(1, 0) != 8 {
		t.Errorf("Unexpected decode: maxval=%d data=%v", maxVal, buf.Data())
	}

	_, _, err = PGM{}.Decode(filepath.Join(dir, "missing.pgm"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestEncodePGMRoundTrip(t *testing.T) {
	orig, _ := imaging.NewBufferFromData(3, 2, []int{0, 1, 2, 30, 40, 50})

	var out bytes.Buffer
	if err := EncodePGM(&out, orig, 50); err != nil {
		t.Fatalf("EncodePGM failed: %v", err)
	}

	buf, maxVal, err := DecodePGM(&out)
	if err != nil {
		t.Fatalf("DecodePGM failed: %v", err)
	}
	if maxVal != 50 {
		t.Errorf("Expected maxval 50, got %d", maxVal)
	}
	for i, v := range orig.Data() {
		if buf.Data()[i] != v {
			t.Errorf("Sample %d: expected %d, got %d", i, v, buf.Data()[i])
		}
	}
}

func TestRasterGray16(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 2))
	img.SetGray16(1, 0, color.Gray16{Y: 1200})
	img.SetGray16(0, 1, color.Gray16{Y: 65535})

	var data bytes.Buffer
	if err := png.Encode(&data, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	path := writeFile(t, t.TempDir(), "frame.png", data.Bytes())

	buf, maxVal, err := Auto{}.Decode(path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if maxVal != 0xffff {
		t.Errorf("Expected 16-bit maxval, got %d", maxVal)
	}
	if buf.At(1, 0) != 1200 || buf.At(0, 1) != 65535 || buf.At(0, 0) != 0 {
		t.Errorf("Unexpected samples: %v", buf.Data())
	}
}

func TestFromImageColour(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	buf, maxVal := FromImage(img)
	if maxVal != 0xff || buf.At(0, 0) != 255 {
		t.Errorf("Expected white luma 255/255, got %d/%d", buf.At(0, 0), maxVal)
	}
}

func TestAutoRoutesByExtension(t *testing.T) {
	dir := t.TempDir()

	// Plain PGM content behind an upper-case extension
	pgm := writeFile(t, dir, "frame.PGM", []byte("P2 1 1 9 4\n"))
	buf, _, err := Auto{}.Decode(pgm)
	if err != nil || buf.At(0, 0) != 4 {
		t.Errorf("Expected PGM decode, got %v (err %v)", buf, err)
	}

	// Garbage behind a DICOM extension must fail inside the DICOM parser
	dcm := writeFile(t, dir, "frame.dcm", []byte("P2 1 1 9 4"))
	if _, _, err := (Auto{}).Decode(dcm); err == nil {
		t.Error("Expected DICOM decode error for non-DICOM content")
	}

	// Unknown formats fall through to the raster decoder
	raw := writeFile(t, dir, "frame.raw", []byte{1, 2, 3})
	if _, _, err := (Auto{}).Decode(raw); !errors.Is(err, image.ErrFormat) {
		t.Errorf("Expected image.ErrFormat, got %v", err)
	}
}
