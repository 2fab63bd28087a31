package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyFile is returned for a zero-length image file.
	ErrEmptyFile = errors.New("file is empty")
	// ErrFileTooLarge is returned when a file exceeds the configured byte limit.
	ErrFileTooLarge = errors.New("file is too large")
	// ErrUnsupportedFormat is returned when the file is not a decodable image.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// FileDecoder reads image files into the same representation produced by camera capture.
type FileDecoder struct {
	Encoder      *Encoder
	MaxBytes     int64
	MaxDimension int // 0 keeps the native resolution
}

// NewFileDecoder creates a decoder. maxBytes <= 0 disables the size check.
func NewFileDecoder(quality int, maxBytes int64, maxDimension int) *FileDecoder {
	return &FileDecoder{
		Encoder:      NewEncoder(quality),
		MaxBytes:     maxBytes,
		MaxDimension: maxDimension,
	}
}

// DecodeFile opens path and decodes it.
func (d *FileDecoder) DecodeFile(path string) (EncodedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return d.Decode(f)
}

// Decode reads r fully into memory, decodes it and re-encodes it as JPEG.
func (d *FileDecoder) Decode(r io.Reader) (EncodedImage, error) {
	src := r
	if d.MaxBytes > 0 {
		src = io.LimitReader(r, d.MaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return EncodedImage{}, ErrEmptyFile
	}
	if d.MaxBytes > 0 && int64(len(data)) > d.MaxBytes {
		return EncodedImage{}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, d.MaxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return EncodedImage{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	if d.MaxDimension > 0 {
		img = Downscale(img, d.MaxDimension)
	}

	enc := d.Encoder
	if enc == nil {
		enc = NewEncoder(0)
	}
	out, err := enc.Encode(img)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to re-encode %s image: %w", format, err)
	}
	return out, nil
}

// Downscale shrinks img so that neither side exceeds maxSize, keeping aspect ratio.
// Images already within the bound are returned unchanged.
func Downscale(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}
