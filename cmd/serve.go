package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Registry web server.
The server hosts the self-registration screen (camera) and the admin upload
screen (image files) and writes every registered face to the configured store.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("no-camera", false, "Disable the camera source")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// openCamera creates the configured capture device. The server still starts without
// one; self-registration screens then report that the camera source is unavailable.
func openCamera(cfg *config.Config, disabled bool) camera.Device {
	if disabled {
		return nil
	}
	dev, err := camera.NewDevice(cfg.Camera)
	if err != nil {
		log.WithError(err).Warn("camera disabled")
		return nil
	}
	log.WithFields(log.Fields{"backend": cfg.Camera.Backend, "device": dev.Name()}).Info("camera configured")
	return dev
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to %s store...\n", cfg.Store.Backend)
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, os.Getenv("WEB_ALLOWED_ORIGINS"), web.Dependencies{
		Submitter: st.submitter,
		Records:   st.backend,
		Camera:    openCamera(cfg, mustGetBool(cmd, "no-camera")),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Registry on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	// Start returns as soon as shutdown begins; in-flight submits finish before the store closes
	<-shutdownDone
	return nil
}
