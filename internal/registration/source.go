package registration

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/imaging"
)

// SourceKind names an image source variant.
type SourceKind string

const (
	SourceCamera SourceKind = "camera"
	SourceFile   SourceKind = "file"
)

// ImageSource produces one encoded still image for a form.
type ImageSource interface {
	Kind() SourceKind
	// Release frees anything the source holds. Safe to call repeatedly.
	Release()
}

// CameraSource produces stills from a live capture device. Each Start after a
// capture or release opens a fresh camera session.
type CameraSource struct {
	mu      sync.Mutex
	device  camera.Device
	encoder *imaging.Encoder
	session *camera.Session
	closed  bool
}

// NewCameraSource creates a camera source on device.
func NewCameraSource(device camera.Device, encoder *imaging.Encoder) *CameraSource {
	return &CameraSource{device: device, encoder: encoder}
}

func (c *CameraSource) Kind() SourceKind {
	return SourceCamera
}

// Start acquires the device. It is a no-op while already streaming.
func (c *CameraSource) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return camera.ErrSessionReleased
	}
	s := c.session
	if s != nil {
		switch s.State() {
		case camera.StateStreaming:
			c.mu.Unlock()
			return nil
		case camera.StateAcquiring:
			c.mu.Unlock()
			return camera.ErrSessionActive
		case camera.StateReleased:
			s = nil
		}
	}
	if s == nil {
		s = camera.NewSession(c.device, c.encoder)
		c.session = s
	}
	c.mu.Unlock()

	return s.Acquire(ctx)
}

// Capture freezes the current frame and releases the device.
func (c *CameraSource) Capture() (imaging.EncodedImage, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return imaging.EncodedImage{}, camera.ErrNotStreaming
	}
	return s.Freeze()
}

// State reports the state of the current session; Idle when none was started.
func (c *CameraSource) State() camera.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return camera.StateIdle
	}
	return c.session.State()
}

// Subscribe streams preview frames of the live session.
func (c *CameraSource) Subscribe() (<-chan image.Image, func(), error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil, nil, camera.ErrNotStreaming
	}
	return s.Subscribe()
}

// LatestFrame returns the current preview frame, or nil.
func (c *CameraSource) LatestFrame() image.Image {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.LatestFrame()
}

func (c *CameraSource) Release() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.Release()
	}
}

// Close releases the device and refuses further starts.
func (c *CameraSource) Close() {
	c.mu.Lock()
	c.closed = true
	s := c.session
	c.mu.Unlock()
	if s != nil {
		s.Release()
	}
}

// FileSource produces stills from image files.
type FileSource struct {
	decoder *imaging.FileDecoder
}

// NewFileSource creates a file source using decoder.
func NewFileSource(decoder *imaging.FileDecoder) *FileSource {
	return &FileSource{decoder: decoder}
}

func (f *FileSource) Kind() SourceKind {
	return SourceFile
}

// Load reads an image file fully and re-encodes it.
func (f *FileSource) Load(r io.Reader) (imaging.EncodedImage, error) {
	return f.decoder.Decode(r)
}

// LoadPath reads the image file at path.
func (f *FileSource) LoadPath(path string) (imaging.EncodedImage, error) {
	return f.decoder.DecodeFile(path)
}

// Release is a no-op: files hold no device.
func (f *FileSource) Release() {}
