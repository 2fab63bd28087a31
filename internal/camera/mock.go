package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// MockDevice is an in-memory Device for tests.
type MockDevice struct {
	mu       sync.Mutex
	frame    image.Image
	failWith error
	gate     chan struct{}
	streams  []*MockStream
	requests int
}

// NewMockDevice creates a device whose streams deliver frame. A nil frame yields a
// stream that never produces a frame.
func NewMockDevice(frame image.Image) *MockDevice {
	return &MockDevice{frame: frame}
}

// TestFrame returns a solid w x h frame.
func TestFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 180, G: 140, B: 120, A: 255})
		}
	}
	return img
}

func (m *MockDevice) Name() string {
	return "mock"
}

// SetShouldFail makes subsequent requests fail with err (nil clears it).
func (m *MockDevice) SetShouldFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Block makes subsequent requests wait until Unblock is called.
func (m *MockDevice) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Unblock releases requests waiting on Block.
func (m *MockDevice) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Requests returns how many streams were requested.
func (m *MockDevice) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Streams returns every stream granted so far.
func (m *MockDevice) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockStream(nil), m.streams...)
}

// LiveTracks counts live tracks across all granted streams.
func (m *MockDevice) LiveTracks() int {
	n := 0
	for _, s := range m.Streams() {
		n += ActiveTracks(s)
	}
	return n
}

func (m *MockDevice) RequestStream(ctx context.Context) (Stream, error) {
	m.mu.Lock()
	m.requests++
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			// A real device may still grant the stream after the caller gave up.
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	s := &MockStream{hub: newFrameHub(), track: &MockTrack{id: "mock-video"}}
	if m.frame != nil {
		s.hub.publishImage(m.frame)
	}
	s.track.onStop = s.hub.close
	m.streams = append(m.streams, s)
	return s, nil
}

// MockStream is a stream granted by MockDevice.
type MockStream struct {
	hub   *frameHub
	track *MockTrack
}

func (s *MockStream) Tracks() []Track {
	return []Track{s.track}
}

func (s *MockStream) LatestFrame() image.Image {
	return s.hub.latest()
}

func (s *MockStream) Subscribe() (<-chan image.Image, func()) {
	return s.hub.subscribe()
}

// Push publishes a new frame to the stream.
func (s *MockStream) Push(img image.Image) {
	s.hub.publishImage(img)
}

// MockTrack records whether it was stopped.
type MockTrack struct {
	mu      sync.Mutex
	id      string
	stopped bool
	onStop  func()
}

func (t *MockTrack) ID() string {
	return t.id
}

func (t *MockTrack) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return TrackEnded
	}
	return TrackLive
}

func (t *MockTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	onStop := t.onStop
	t.mu.Unlock()
	if onStop != nil {
		onStop()
	}
}
