package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createTestJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func TestProcessCoverJPEG(t *testing.T) {
	cover, err := ProcessCover(bytes.NewReader(createTestJPEG(100, 150)))
	if err != nil {
		t.Fatalf("ProcessCover JPEG: %v", err)
	}
	if cover.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", cover.MIME)
	}
	if len(cover.Data) == 0 {
		t.Error("expected non-empty data")
	}
}

func TestProcessCoverPNGBecomesJPEG(t *testing.T) {
	cover, err := ProcessCover(bytes.NewReader(createTestPNG(100, 100)))
	if err != nil {
		t.Fatalf("ProcessCover PNG: %v", err)
	}
	if cover.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", cover.MIME)
	}
	if _, err := jpeg.Decode(bytes.NewReader(cover.Data)); err != nil {
		t.Errorf("output is not a JPEG: %v", err)
	}
}

func TestProcessCoverFitsBounds(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"tall", 1200, 2400, 450, 900},
		{"wide", 1800, 900, 600, 300},
		{"small", 50, 80, 50, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cover, err := ProcessCover(bytes.NewReader(createTestJPEG(tt.w, tt.h)))
			if err != nil {
				t.Fatalf("ProcessCover: %v", err)
			}
			if cover.Width != tt.wantW || cover.Height != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, cover.Width, cover.Height)
			}

			img, _, err := image.Decode(bytes.NewReader(cover.Data))
			if err != nil {
				t.Fatalf("decoding result: %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("encoded size %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
			}
		})
	}
}

func TestProcessCoverRejectsOtherFormats(t *testing.T) {
	for name, data := range map[string][]byte{
		"text": []byte("not an image"),
		"gif":  []byte("GIF89a..."),
	} {
		if _, err := ProcessCover(bytes.NewReader(data)); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestProcessCoverTooLarge(t *testing.T) {
	if _, err := ProcessCover(bytes.NewReader(make([]byte, MaxUploadSize+10))); err == nil {
		t.Error("expected oversized upload to be rejected")
	}
}
