// Package camera manages capture-device streams: acquiring a device, exposing
// its live frames for preview, freezing one still and releasing the device.
package camera

import (
	"context"
	"errors"
	"image"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle      State = "idle"      // no device requested
	StateAcquiring State = "acquiring" // waiting on the device grant
	StateStreaming State = "streaming" // holding a live stream
	StateReleased  State = "released"  // all tracks stopped, session finished
)

// TrackState mirrors the ready state of a media track.
type TrackState string

const (
	TrackLive  TrackState = "live"
	TrackEnded TrackState = "ended"
)

var (
	ErrDeviceUnavailable = errors.New("device unavailable")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceBusy        = errors.New("device busy")

	// ErrNotStreaming is returned by operations that need a live stream.
	ErrNotStreaming = errors.New("camera is not streaming")
	// ErrSessionActive is returned when Acquire is called on a session that already holds or is requesting a stream.
	ErrSessionActive = errors.New("camera session already active")
	// ErrSessionReleased is returned when Acquire is called on, or interrupted by, a released session.
	ErrSessionReleased = errors.New("camera session released")
)

// AcquireError describes why a device could not be acquired. Kind is one of
// ErrDeviceUnavailable, ErrPermissionDenied or ErrDeviceBusy; Reason is shown to the user.
type AcquireError struct {
	Kind   error
	Reason string
}

func (e *AcquireError) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Reason
}

func (e *AcquireError) Is(target error) bool {
	return target == e.Kind
}

// Device is a host capture device that can grant a video stream.
type Device interface {
	// RequestStream blocks until the device delivers a stream or fails.
	// Cancelling ctx aborts the request; it does not end a stream already granted.
	RequestStream(ctx context.Context) (Stream, error)
	// Name identifies the device in logs.
	Name() string
}

// Stream is a granted video stream.
type Stream interface {
	Tracks() []Track
	// LatestFrame returns the most recent frame, or nil before the first frame.
	LatestFrame() image.Image
	// Subscribe delivers frames as they arrive. The channel is closed when the
	// stream ends or the returned cancel func is called.
	Subscribe() (<-chan image.Image, func())
}

// Track is one media track of a stream.
type Track interface {
	ID() string
	State() TrackState
	Stop()
}

// StopAll stops every track of s.
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// ActiveTracks counts tracks that are still live.
func ActiveTracks(s Stream) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, t := range s.Tracks() {
		if t.State() == TrackLive {
			n++
		}
	}
	return n
}

func unavailable(reason string) *AcquireError {
	return &AcquireError{Kind: ErrDeviceUnavailable, Reason: reason}
}

func denied(reason string) *AcquireError {
	return &AcquireError{Kind: ErrPermissionDenied, Reason: reason}
}

func busy(reason string) *AcquireError {
	return &AcquireError{Kind: ErrDeviceBusy, Reason: reason}
}

// asAcquireError normalizes a device failure into an *AcquireError.
func asAcquireError(err error) *AcquireError {
	var ae *AcquireError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return denied(err.Error())
	case errors.Is(err, ErrDeviceBusy):
		return busy(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return unavailable("timed out waiting for the camera")
	case errors.Is(err, context.Canceled):
		return unavailable("camera request was cancelled")
	}
	return unavailable(err.Error())
}
