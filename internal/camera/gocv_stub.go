//go:build !gocv

package camera

import (
	"errors"
	"time"
)

// NewGoCVDevice is unavailable without the gocv build tag.
func NewGoCVDevice(_ string, _, _, _ int, _ time.Duration) (Device, error) {
	return nil, errors.New("gocv camera backend not compiled in (build with -tags gocv)")
}
