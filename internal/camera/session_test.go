package camera

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-registry/internal/imaging"
)

func waitForState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session did not reach state %s, got %s", want, s.State())
}

func TestSession_AcquireAndFreeze(t *testing.T) {
	dev := NewMockDevice(TestFrame(32, 24))
	s := NewSession(dev, imaging.NewEncoder(90))

	if s.State() != StateIdle {
		t.Fatalf("expected new session to be idle, got %s", s.State())
	}

	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if s.State() != StateStreaming {
		t.Fatalf("expected streaming, got %s", s.State())
	}
	if dev.LiveTracks() != 1 {
		t.Fatalf("expected one live track, got %d", dev.LiveTracks())
	}

	still, err := s.Freeze()
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if still.Width != 32 || still.Height != 24 {
		t.Errorf("expected native 32x24 still, got %dx%d", still.Width, still.Height)
	}
	if still.MIMEType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", still.MIMEType)
	}
	if s.State() != StateReleased {
		t.Errorf("expected released after freeze, got %s", s.State())
	}
	if dev.LiveTracks() != 0 {
		t.Errorf("expected zero live tracks after freeze, got %d", dev.LiveTracks())
	}
}

func TestSession_AcquireFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind error
		wantText string
	}{
		{
			name:     "permission denied",
			err:      &AcquireError{Kind: ErrPermissionDenied, Reason: "Permission denied"},
			wantKind: ErrPermissionDenied,
			wantText: "Permission denied",
		},
		{
			name:     "busy",
			err:      &AcquireError{Kind: ErrDeviceBusy, Reason: "camera in use"},
			wantKind: ErrDeviceBusy,
			wantText: "camera in use",
		},
		{
			name:     "plain error becomes unavailable",
			err:      errors.New("no video devices"),
			wantKind: ErrDeviceUnavailable,
			wantText: "no video devices",
		},
		{
			name:     "wrapped sentinel keeps its kind",
			err:      fmt.Errorf("open: %w", ErrPermissionDenied),
			wantKind: ErrPermissionDenied,
			wantText: "open: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := NewMockDevice(TestFrame(4, 4))
			dev.SetShouldFail(tt.err)
			s := NewSession(dev, nil)

			err := s.Acquire(context.Background())
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("expected %v, got %v", tt.wantKind, err)
			}
			var ae *AcquireError
			if !errors.As(err, &ae) {
				t.Fatalf("expected *AcquireError, got %T", err)
			}
			if err.Error() != tt.wantText {
				t.Errorf("expected message %q, got %q", tt.wantText, err.Error())
			}
			if s.State() != StateIdle {
				t.Errorf("expected idle after failure, got %s", s.State())
			}
		})
	}
}

func TestSession_RetryAfterFailure(t *testing.T) {
	dev := NewMockDevice(TestFrame(4, 4))
	dev.SetShouldFail(&AcquireError{Kind: ErrDeviceBusy, Reason: "busy"})
	s := NewSession(dev, nil)

	if err := s.Acquire(context.Background()); err == nil {
		t.Fatal("expected first acquire to fail")
	}

	dev.SetShouldFail(nil)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("expected retry from idle to succeed, got %v", err)
	}
	if s.State() != StateStreaming {
		t.Errorf("expected streaming, got %s", s.State())
	}
	s.Release()
}

func TestSession_FreezeOutsideStreaming(t *testing.T) {
	s := NewSession(NewMockDevice(TestFrame(4, 4)), nil)

	if _, err := s.Freeze(); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("expected ErrNotStreaming from idle, got %v", err)
	}

	s.Release()
	if _, err := s.Freeze(); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("expected ErrNotStreaming from released, got %v", err)
	}
}

func TestSession_FreezeBeforeFirstFrame(t *testing.T) {
	dev := NewMockDevice(nil)
	s := NewSession(dev, nil)

	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := s.Freeze(); !errors.Is(err, imaging.ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed, got %v", err)
	}
	if s.State() != StateStreaming {
		t.Fatalf("expected session to keep streaming after encode failure, got %s", s.State())
	}

	dev.Streams()[0].Push(TestFrame(8, 6))
	still, err := s.Freeze()
	if err != nil {
		t.Fatalf("freeze after first frame: %v", err)
	}
	if still.Width != 8 || still.Height != 6 {
		t.Errorf("expected 8x6, got %dx%d", still.Width, still.Height)
	}
	if dev.LiveTracks() != 0 {
		t.Errorf("expected tracks stopped, got %d live", dev.LiveTracks())
	}
}

func TestSession_ReleaseIdempotent(t *testing.T) {
	dev := NewMockDevice(TestFrame(4, 4))
	s := NewSession(dev, nil)

	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	s.Release()
	s.Release()

	if s.State() != StateReleased {
		t.Errorf("expected released, got %s", s.State())
	}
	if dev.LiveTracks() != 0 {
		t.Errorf("expected zero live tracks, got %d", dev.LiveTracks())
	}
	if err := s.Acquire(context.Background()); !errors.Is(err, ErrSessionReleased) {
		t.Errorf("expected ErrSessionReleased on reuse, got %v", err)
	}
}

func TestSession_ReleaseWhileAcquiring(t *testing.T) {
	dev := NewMockDevice(TestFrame(4, 4))
	dev.Block()
	s := NewSession(dev, nil)

	done := make(chan error, 1)
	go func() {
		done <- s.Acquire(context.Background())
	}()

	waitForState(t, s, StateAcquiring)
	s.Release()

	select {
	case err := <-done:
		if !errors.Is(err, ErrSessionReleased) {
			t.Errorf("expected ErrSessionReleased, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not return after release")
	}

	if s.State() != StateReleased {
		t.Errorf("expected released, got %s", s.State())
	}
	// The device granted a stream after the release; it must have been stopped.
	if dev.LiveTracks() != 0 {
		t.Errorf("expected late grant to be stopped, got %d live tracks", dev.LiveTracks())
	}
}

func TestSession_AcquireTwice(t *testing.T) {
	s := NewSession(NewMockDevice(TestFrame(4, 4)), nil)
	defer s.Release()

	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.Acquire(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}
}

func TestSession_Subscribe(t *testing.T) {
	dev := NewMockDevice(TestFrame(4, 4))
	s := NewSession(dev, nil)

	if _, _, err := s.Subscribe(); !errors.Is(err, ErrNotStreaming) {
		t.Fatalf("expected ErrNotStreaming before acquire, got %v", err)
	}

	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	frames, cancel, err := s.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	dev.Streams()[0].Push(TestFrame(10, 10))
	select {
	case img := <-frames:
		if img.Bounds().Dx() != 10 {
			t.Errorf("expected 10px frame, got %d", img.Bounds().Dx())
		}
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}

	s.Release()
	select {
	case _, ok := <-frames:
		if ok {
			// Drain a buffered frame, then expect close.
			if _, ok := <-frames; ok {
				t.Error("expected subscription to close after release")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after release")
	}
}
