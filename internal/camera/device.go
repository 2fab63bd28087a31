package camera

import (
	"fmt"

	"github.com/kozaktomas/face-registry/internal/config"
)

// NewDevice creates the capture device selected by cfg.Backend.
func NewDevice(cfg config.CameraConfig) (Device, error) {
	switch cfg.Backend {
	case "", "ffmpeg":
		return NewFFmpegDevice(cfg.Device, cfg.Width, cfg.Height, cfg.FPS, cfg.AcquireTimeout), nil
	case "gocv":
		return NewGoCVDevice(cfg.Device, cfg.Width, cfg.Height, cfg.FPS, cfg.AcquireTimeout)
	default:
		return nil, fmt.Errorf("unknown camera backend: %s", cfg.Backend)
	}
}
