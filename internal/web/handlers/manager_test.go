package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/registration"
	"github.com/kozaktomas/face-registry/internal/store/mock"
)

func TestSurfaceManager_SweepClosesIdle(t *testing.T) {
	dev := camera.NewMockDevice(camera.TestFrame(8, 8))
	m := NewSurfaceManager(testOptions(dev, mock.New()), time.Minute, false)
	defer m.Stop()

	s := createSurface(t, m, registration.KindUser)
	if err := s.StartCamera(context.Background()); err != nil {
		t.Fatalf("start camera: %v", err)
	}

	if n := m.sweep(time.Now()); n != 0 {
		t.Fatalf("expected no idle surfaces yet, swept %d", n)
	}

	if n := m.sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected one idle surface, swept %d", n)
	}
	if m.Get(s.ID) != nil {
		t.Error("expected idle surface removed")
	}
	if !s.Closed() {
		t.Error("expected idle surface closed")
	}
	if dev.LiveTracks() != 0 {
		t.Errorf("expected camera released, %d tracks live", dev.LiveTracks())
	}
}

func TestSurfaceManager_StopClosesAll(t *testing.T) {
	dev := camera.NewMockDevice(camera.TestFrame(8, 8))
	m := NewSurfaceManager(testOptions(dev, mock.New()), time.Minute, false)

	a := createSurface(t, m, registration.KindUser)
	b := createSurface(t, m, registration.KindAdmin)
	if err := a.StartCamera(context.Background()); err != nil {
		t.Fatalf("start camera: %v", err)
	}

	m.Stop()
	m.Stop()

	if m.Len() != 0 {
		t.Errorf("expected no surfaces after stop, got %d", m.Len())
	}
	if !a.Closed() || !b.Closed() {
		t.Error("expected all surfaces closed")
	}
	if dev.LiveTracks() != 0 {
		t.Errorf("expected camera released, %d tracks live", dev.LiveTracks())
	}
}

func TestSurfaceManager_Limit(t *testing.T) {
	m := newTestManager(t, nil, mock.New())

	for range constants.MaxSurfaces {
		createSurface(t, m, registration.KindAdmin)
	}
	if _, err := m.Create(registration.KindAdmin); err != errTooManySurfaces {
		t.Errorf("expected errTooManySurfaces, got %v", err)
	}
}

func TestSurfaceManager_AllSources(t *testing.T) {
	dev := camera.NewMockDevice(camera.TestFrame(8, 8))
	m := NewSurfaceManager(testOptions(dev, mock.New()), 0, true)
	defer m.Stop()

	s := createSurface(t, m, registration.KindAdmin)
	if got := s.Sources(); len(got) != 2 {
		t.Errorf("expected camera and file sources, got %v", got)
	}
}
