package camera

import (
	"context"
	"fmt"
	"image"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/imaging"
)

// Session owns at most one stream of a capture device and walks it through
// Idle -> Acquiring -> Streaming -> Released. A released session is finished;
// acquiring again needs a new Session.
type Session struct {
	mu            sync.Mutex
	device        Device
	encoder       *imaging.Encoder
	state         State
	stream        Stream
	cancelAcquire context.CancelFunc
}

// NewSession creates an idle session for device.
func NewSession(device Device, encoder *imaging.Encoder) *Session {
	if encoder == nil {
		encoder = imaging.NewEncoder(0)
	}
	return &Session{
		device:  device,
		encoder: encoder,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acquire requests a stream from the device. The lock is not held while waiting
// for the grant, so Release may interrupt an acquisition in progress. On failure
// the session returns to Idle and the error is an *AcquireError.
func (s *Session) Acquire(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateAcquiring, StateStreaming:
		s.mu.Unlock()
		return ErrSessionActive
	case StateReleased:
		s.mu.Unlock()
		return ErrSessionReleased
	}
	acqCtx, cancel := context.WithCancel(ctx)
	s.state = StateAcquiring
	s.cancelAcquire = cancel
	s.mu.Unlock()

	stream, err := s.device.RequestStream(acqCtx)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAcquire = nil

	if s.state == StateReleased {
		// Released while waiting for the grant: nothing may keep the device open.
		if stream != nil {
			StopAll(stream)
		}
		log.WithField("device", s.device.Name()).Info("camera released during acquisition")
		return ErrSessionReleased
	}

	if err != nil {
		s.state = StateIdle
		ae := asAcquireError(err)
		log.WithField("device", s.device.Name()).WithError(err).Warn("camera acquisition failed")
		return ae
	}

	s.stream = stream
	s.state = StateStreaming
	log.WithFields(log.Fields{
		"device": s.device.Name(),
		"tracks": len(stream.Tracks()),
	}).Info("camera streaming")
	return nil
}

// Freeze encodes the latest frame and releases the device. It is valid only while
// Streaming. If encoding fails the stream stays open so the caller may retry.
func (s *Session) Freeze() (imaging.EncodedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return imaging.EncodedImage{}, fmt.Errorf("%w (state %s)", ErrNotStreaming, s.state)
	}

	still, err := s.encoder.Encode(s.stream.LatestFrame())
	if err != nil {
		return imaging.EncodedImage{}, err
	}

	StopAll(s.stream)
	s.stream = nil
	s.state = StateReleased
	log.WithFields(log.Fields{
		"device": s.device.Name(),
		"width":  still.Width,
		"height": still.Height,
	}).Info("frame captured, camera released")
	return still, nil
}

// Release stops every active track and marks the session Released. Safe to call
// in any state and more than once.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateReleased {
		return
	}
	if s.cancelAcquire != nil {
		s.cancelAcquire()
		s.cancelAcquire = nil
	}
	if s.stream != nil {
		StopAll(s.stream)
		s.stream = nil
	}
	s.state = StateReleased
}

// LatestFrame returns the current preview frame, or nil when not streaming.
func (s *Session) LatestFrame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	return s.stream.LatestFrame()
}

// Subscribe returns the live preview frames of the stream.
func (s *Session) Subscribe() (<-chan image.Image, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		return nil, nil, ErrNotStreaming
	}
	ch, cancel := s.stream.Subscribe()
	return ch, cancel, nil
}
