package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func closeTo(a, b uint32, tol uint32) bool {
	if a > b {
		return a-b <= tol
	}
	return b-a <= tol
}

func TestEncode_NativeResolution(t *testing.T) {
	enc := NewEncoder(90)

	out, err := enc.Encode(solidImage(64, 48, color.RGBA{R: 200, G: 30, B: 30, A: 255}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.MIMEType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", out.MIMEType)
	}
	if out.Width != 64 || out.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", out.Width, out.Height)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("output does not decode: %v", err)
	}
	if format != "jpeg" || cfg.Width != 64 || cfg.Height != 48 {
		t.Errorf("expected jpeg 64x48, got %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestEncode_ZeroSizeFrame(t *testing.T) {
	enc := NewEncoder(0)

	tests := []struct {
		name  string
		frame image.Image
	}{
		{"nil frame", nil},
		{"zero width", image.NewRGBA(image.Rect(0, 0, 0, 10))},
		{"zero height", image.NewRGBA(image.Rect(0, 0, 10, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(tt.frame)
			if !errors.Is(err, ErrEncodeFailed) {
				t.Errorf("expected ErrEncodeFailed, got %v", err)
			}
		})
	}
}

func TestNewEncoder_QualityClamp(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 92},
		{-4, 1},
		{50, 50},
		{150, 100},
	}
	for _, tt := range tests {
		if got := NewEncoder(tt.in).Quality; got != tt.want {
			t.Errorf("NewEncoder(%d).Quality = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDataURL_RoundTrip(t *testing.T) {
	src := solidImage(16, 16, color.RGBA{R: 10, G: 120, B: 240, A: 255})
	enc, err := NewEncoder(95).Encode(src)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	text := enc.DataURL()
	if !strings.HasPrefix(text, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data URL prefix: %.40s", text)
	}

	parsed, err := ParseDataURL(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(parsed.Data, enc.Data) {
		t.Error("parsed bytes differ from the encoded bytes")
	}
	if parsed.Width != 16 || parsed.Height != 16 {
		t.Errorf("expected 16x16, got %dx%d", parsed.Width, parsed.Height)
	}

	img, err := parsed.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := img.At(8, 8).RGBA()
	wr, wg, wb, _ := src.At(8, 8).RGBA()
	const tol = 0x0800
	if !closeTo(r, wr, tol) || !closeTo(g, wg, tol) || !closeTo(b, wb, tol) {
		t.Errorf("pixel content changed: got (%x,%x,%x) want (%x,%x,%x)", r, g, b, wr, wg, wb)
	}
}

func TestParseDataURL_BareBase64(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(4, 3, color.White)); err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseDataURL(base64.StdEncoding.EncodeToString(buf.Bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.MIMEType != "image/png" {
		t.Errorf("expected sniffed image/png, got %s", parsed.MIMEType)
	}
	if parsed.Width != 4 || parsed.Height != 3 {
		t.Errorf("expected 4x3, got %dx%d", parsed.Width, parsed.Height)
	}
}

func TestParseDataURL_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no separator", "data:image/jpeg;base64"},
		{"not base64 encoded", "data:image/jpeg,rawbytes"},
		{"bad base64", "data:image/jpeg;base64,!!!"},
		{"not an image", "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello world"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDataURL(tt.input); !errors.Is(err, ErrInvalidDataURL) {
				t.Errorf("expected ErrInvalidDataURL, got %v", err)
			}
		})
	}
}

func TestEncodedImage_ZeroDataURL(t *testing.T) {
	if got := (EncodedImage{}).DataURL(); got != "" {
		t.Errorf("expected empty data URL for zero image, got %q", got)
	}
}

func TestFileDecoder_ReencodesToJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(20, 10, color.Black)); err != nil {
		t.Fatal(err)
	}

	out, err := NewFileDecoder(0, 1<<20, 0).Decode(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.MIMEType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", out.MIMEType)
	}
	if out.Width != 20 || out.Height != 10 {
		t.Errorf("expected native 20x10, got %dx%d", out.Width, out.Height)
	}
}

func TestFileDecoder_BMPFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face.bmp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(f, solidImage(8, 8, color.Gray{Y: 128})); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := NewFileDecoder(80, 0, 0).DecodeFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Width != 8 || out.Height != 8 {
		t.Errorf("expected 8x8, got %dx%d", out.Width, out.Height)
	}
}

func TestFileDecoder_Downscale(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(400, 200, color.White)); err != nil {
		t.Fatal(err)
	}

	out, err := NewFileDecoder(0, 0, 100).Decode(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Width != 100 || out.Height != 50 {
		t.Errorf("expected 100x50, got %dx%d", out.Width, out.Height)
	}
}

func TestFileDecoder_Errors(t *testing.T) {
	dec := NewFileDecoder(0, 16, 0)

	if _, err := dec.Decode(bytes.NewReader(nil)); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("expected ErrEmptyFile, got %v", err)
	}
	if _, err := dec.Decode(bytes.NewReader(make([]byte, 17))); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
	if _, err := dec.Decode(strings.NewReader("not an image")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDownscale_SmallImageUnchanged(t *testing.T) {
	img := solidImage(10, 10, color.White)
	if got := Downscale(img, 100); got != image.Image(img) {
		t.Error("expected image within bounds to be returned unchanged")
	}
}
