// Package imaging holds the encoded still image representation shared by every
// image source, the capture encoder and the file decoder.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
)

var (
	// ErrEncodeFailed is returned when a frame cannot be turned into a still image.
	ErrEncodeFailed = errors.New("encode failed")
	// ErrInvalidDataURL is returned for text that is neither a data URL nor base64 image data.
	ErrInvalidDataURL = errors.New("invalid image data")
)

// EncodedImage is a self-describing still image: format plus bytes.
type EncodedImage struct {
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// IsZero reports whether the image carries no data.
func (e EncodedImage) IsZero() bool {
	return len(e.Data) == 0
}

// DataURL returns the text-safe transport form, e.g. "data:image/jpeg;base64,/9j/4AAQ...".
func (e EncodedImage) DataURL() string {
	if e.IsZero() {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len("data:;base64,") + len(e.MIMEType) + base64.StdEncoding.EncodedLen(len(e.Data)))
	sb.WriteString("data:")
	sb.WriteString(e.MIMEType)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(e.Data))
	return sb.String()
}

// Decode decodes the pixel content.
func (e EncodedImage) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(e.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ParseDataURL parses a data URL produced by DataURL. A bare base64 string is accepted
// as well, in which case the format is sniffed from the decoded bytes.
func ParseDataURL(s string) (EncodedImage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EncodedImage{}, ErrInvalidDataURL
	}

	mimeType := ""
	payload := s
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return EncodedImage{}, fmt.Errorf("%w: missing data separator", ErrInvalidDataURL)
		}
		meta, isBase64 := strings.CutSuffix(header, ";base64")
		if !isBase64 {
			return EncodedImage{}, fmt.Errorf("%w: only base64 data URLs are supported", ErrInvalidDataURL)
		}
		mimeType = meta
		payload = data
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}

	sniffed := http.DetectContentType(raw)
	if !strings.HasPrefix(sniffed, "image/") {
		return EncodedImage{}, fmt.Errorf("%w: content is %s", ErrInvalidDataURL, sniffed)
	}
	if mimeType == "" {
		mimeType = sniffed
	}

	out := EncodedImage{MIMEType: mimeType, Data: raw}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
		out.Width = cfg.Width
		out.Height = cfg.Height
	}
	return out, nil
}
