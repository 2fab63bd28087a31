package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/kozaktomas/face-registry/internal/constants"
)

// Encoder turns a live frame into an encoded still. Output is always JPEG at the
// frame's native resolution.
type Encoder struct {
	Quality int
}

// NewEncoder returns an encoder with quality clamped to [1,100].
// Zero selects the default quality.
func NewEncoder(quality int) *Encoder {
	return &Encoder{Quality: clampQuality(quality)}
}

func clampQuality(q int) int {
	switch {
	case q == 0:
		return constants.DefaultJPEGQuality
	case q < 1:
		return 1
	case q > 100:
		return 100
	}
	return q
}

// Encode encodes frame. A nil frame or one with zero width or height means the
// stream has not produced a frame yet and fails with ErrEncodeFailed.
func (e *Encoder) Encode(frame image.Image) (EncodedImage, error) {
	if frame == nil {
		return EncodedImage{}, fmt.Errorf("%w: no frame available", ErrEncodeFailed)
	}
	b := frame.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return EncodedImage{}, fmt.Errorf("%w: frame has zero size (%dx%d)", ErrEncodeFailed, b.Dx(), b.Dy())
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: clampQuality(e.Quality)}); err != nil {
		return EncodedImage{}, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	return EncodedImage{
		MIMEType: constants.CaptureMIMEType,
		Data:     buf.Bytes(),
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}
