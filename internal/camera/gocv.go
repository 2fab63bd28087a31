//go:build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// GoCVDevice captures through OpenCV. Build with -tags gocv.
type GoCVDevice struct {
	Path       string
	Width      int
	Height     int
	FPS        int
	FirstFrame time.Duration
}

// NewGoCVDevice creates an OpenCV-backed device.
func NewGoCVDevice(path string, width, height, fps int, firstFrame time.Duration) (Device, error) {
	return &GoCVDevice{Path: path, Width: width, Height: height, FPS: fps, FirstFrame: firstFrame}, nil
}

func (d *GoCVDevice) Name() string {
	return d.Path
}

func (d *GoCVDevice) RequestStream(ctx context.Context) (Stream, error) {
	if err := checkDeviceNode(d.Path); err != nil {
		return nil, err
	}

	webcam, err := gocv.OpenVideoCapture(d.Path)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("failed to open %s: %v", d.Path, err))
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, busy(fmt.Sprintf("%s could not be opened", d.Path))
	}
	if d.Width > 0 && d.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(d.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(d.Height))
	}
	if d.FPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(d.FPS))
	}

	s := &gocvStream{
		hub:   newFrameHub(),
		track: &gocvTrack{id: "video:" + d.Path, stop: make(chan struct{}), done: make(chan struct{})},
	}
	go s.loop(webcam)

	timeout := d.FirstFrame
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.hub.firstFrame():
		return s, nil
	case <-s.track.done:
		return nil, unavailable(fmt.Sprintf("%s stopped delivering frames", d.Path))
	case <-ctx.Done():
		s.track.Stop()
		return nil, ctx.Err()
	case <-timer.C:
		s.track.Stop()
		return nil, unavailable(fmt.Sprintf("no frames from %s within %s", d.Path, timeout))
	}
}

type gocvStream struct {
	hub   *frameHub
	track *gocvTrack
}

func (s *gocvStream) loop(webcam *gocv.VideoCapture) {
	mat := gocv.NewMat()
	defer func() {
		mat.Close()
		webcam.Close()
		s.hub.close()
		close(s.track.done)
	}()

	misses := 0
	for {
		select {
		case <-s.track.stop:
			return
		default:
		}

		if ok := webcam.Read(&mat); !ok || mat.Empty() {
			misses++
			if misses > 50 {
				log.WithField("track", s.track.id).Warn("camera stopped delivering frames")
				return
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}
		misses = 0

		img, err := mat.ToImage()
		if err != nil {
			continue
		}
		s.hub.publishImage(img)
	}
}

func (s *gocvStream) Tracks() []Track {
	return []Track{s.track}
}

func (s *gocvStream) LatestFrame() image.Image {
	return s.hub.latest()
}

func (s *gocvStream) Subscribe() (<-chan image.Image, func()) {
	return s.hub.subscribe()
}

type gocvTrack struct {
	id   string
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (t *gocvTrack) ID() string {
	return t.id
}

func (t *gocvTrack) State() TrackState {
	select {
	case <-t.stop:
		return TrackEnded
	case <-t.done:
		return TrackEnded
	default:
		return TrackLive
	}
}

func (t *gocvTrack) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
