package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/registration"
	"github.com/kozaktomas/face-registry/internal/store/mock"
)

func captureOptions(dev camera.Device, st *mock.Store) registration.Options {
	return registration.Options{
		Submitter: st,
		Camera:    dev,
		Encoder:   imaging.NewEncoder(90),
	}
}

func TestCaptureAndRegister(t *testing.T) {
	dev := camera.NewMockDevice(camera.TestFrame(40, 30))
	st := mock.New()
	var out bytes.Buffer

	if err := captureAndRegister(context.Background(), &out, captureOptions(dev, st), " Alice ", 0, time.Second); err != nil {
		t.Fatalf("captureAndRegister failed: %v", err)
	}

	records := st.Records()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].Label != "Alice" {
		t.Errorf("expected label 'Alice', got %q", records[0].Label)
	}
	if records[0].Image.Width != 40 || records[0].Image.Height != 30 {
		t.Errorf("expected 40x30 still, got %dx%d", records[0].Image.Width, records[0].Image.Height)
	}
	if dev.LiveTracks() != 0 {
		t.Errorf("expected device released, %d track(s) live", dev.LiveTracks())
	}
	if !strings.Contains(out.String(), "Captured 40x30 still") {
		t.Errorf("unexpected output %q", out.String())
	}
	if !strings.Contains(out.String(), "Successfully registered face: Alice") {
		t.Errorf("expected success line, got %q", out.String())
	}
}

func TestCaptureAndRegister_CaptureFailureReleasesDevice(t *testing.T) {
	// No frame ever arrives, so the still cannot be encoded.
	dev := camera.NewMockDevice(nil)
	st := mock.New()

	err := captureAndRegister(context.Background(), &bytes.Buffer{}, captureOptions(dev, st), "Alice", 0, time.Second)
	if err == nil {
		t.Fatal("expected capture to fail")
	}
	if !strings.HasPrefix(err.Error(), "Error capturing image: ") {
		t.Errorf("expected capture feedback, got %q", err.Error())
	}
	if len(dev.Streams()) != 1 {
		t.Fatalf("expected one stream requested, got %d", len(dev.Streams()))
	}
	if dev.LiveTracks() != 0 {
		t.Errorf("expected device released after failure, %d track(s) live", dev.LiveTracks())
	}
	if st.Writes() != 0 {
		t.Errorf("expected no store writes, got %d", st.Writes())
	}
}

func TestCaptureAndRegister_CameraDenied(t *testing.T) {
	dev := camera.NewMockDevice(camera.TestFrame(8, 8))
	dev.SetShouldFail(&camera.AcquireError{Kind: camera.ErrPermissionDenied, Reason: "Permission denied"})
	st := mock.New()

	err := captureAndRegister(context.Background(), &bytes.Buffer{}, captureOptions(dev, st), "Alice", 0, time.Second)
	if err == nil || err.Error() != "Error accessing camera: Permission denied" {
		t.Errorf("expected camera feedback, got %v", err)
	}
	if st.Writes() != 0 {
		t.Errorf("expected no store writes, got %d", st.Writes())
	}
}

func TestCaptureAndRegister_Cancelled(t *testing.T) {
	dev := camera.NewMockDevice(camera.TestFrame(8, 8))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := captureAndRegister(ctx, &bytes.Buffer{}, captureOptions(dev, mock.New()), "Alice", time.Minute, time.Second)
	if err == nil {
		t.Fatal("expected an error for a cancelled capture")
	}
	if dev.LiveTracks() != 0 {
		t.Errorf("expected device released, %d track(s) live", dev.LiveTracks())
	}
}
