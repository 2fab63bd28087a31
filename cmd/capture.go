package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/registration"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a face from the camera and register it",
	Long: `Open the configured camera, take one still at the camera's native resolution
and store it with the given label. The camera is released right after the
still is taken.

Example:
  face-registry capture --label "Alice"
  CAMERA_DEVICE=/dev/video2 face-registry capture --label "Bob" --warmup 2s`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("label", "", "Name of the person in front of the camera (required)")
	captureCmd.Flags().Duration("warmup", time.Second, "Time to let exposure settle before the still is taken")
	captureCmd.MarkFlagRequired("label")
}

// surfaceError turns a failed step into the feedback the surface shows.
func surfaceError(s *registration.Surface, err error) error {
	if fb := s.View().Feedback; fb != "" {
		return errors.New(fb)
	}
	return err
}

func runCapture(cmd *cobra.Command, args []string) error {
	label := mustGetString(cmd, "label")
	warmup := mustGetDuration(cmd, "warmup")

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	dev, err := camera.NewDevice(cfg.Camera)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}

	opts := registration.Options{
		Submitter: st.submitter,
		Camera:    dev,
		Encoder:   imaging.NewEncoder(cfg.Camera.Quality),
	}
	fmt.Printf("Starting camera %s...\n", dev.Name())
	return captureAndRegister(ctx, cmd.OutOrStdout(), opts, label, warmup, cfg.Store.Timeout)
}

// captureAndRegister runs one user surface from camera start to submit. The
// camera is released on every return path.
func captureAndRegister(ctx context.Context, out io.Writer, opts registration.Options, label string, warmup, submitTimeout time.Duration) error {
	surface := registration.NewSurface("cli", registration.KindUser, opts)
	defer surface.Close()

	if err := surface.StartCamera(ctx); err != nil {
		return surfaceError(surface, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(warmup):
	}

	if err := surface.Capture(); err != nil {
		return surfaceError(surface, err)
	}
	img, _ := surface.PendingImage()
	fmt.Fprintf(out, "Captured %dx%d still\n", img.Width, img.Height)

	if err := surface.SetLabel(label); err != nil {
		return err
	}

	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()

	ack, err := surface.Submit(submitCtx)
	if err != nil {
		return surfaceError(surface, err)
	}

	fmt.Fprintf(out, "%s: %s (id %s)\n", surface.View().Feedback, ack.Label, ack.ID)
	return nil
}
