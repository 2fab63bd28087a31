package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/constants"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpegDevice captures a V4L2 device through an ffmpeg process emitting an MJPEG pipe.
type FFmpegDevice struct {
	Path       string
	Width      int
	Height     int
	FPS        int
	FirstFrame time.Duration // how long to wait for the first frame
	Binary     string        // defaults to "ffmpeg"
}

// NewFFmpegDevice creates a device for the V4L2 node at path.
func NewFFmpegDevice(path string, width, height, fps int, firstFrame time.Duration) *FFmpegDevice {
	return &FFmpegDevice{
		Path:       path,
		Width:      width,
		Height:     height,
		FPS:        fps,
		FirstFrame: firstFrame,
		Binary:     "ffmpeg",
	}
}

func (d *FFmpegDevice) Name() string {
	return d.Path
}

func (d *FFmpegDevice) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if d.Width > 0 && d.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", d.Width, d.Height))
	}
	if d.FPS > 0 {
		args = append(args, "-framerate", strconv.Itoa(d.FPS))
	}
	return append(args,
		"-i", d.Path,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
}

// RequestStream starts ffmpeg and waits for its first frame.
func (d *FFmpegDevice) RequestStream(ctx context.Context) (Stream, error) {
	if err := checkDeviceNode(d.Path); err != nil {
		return nil, err
	}

	binary := d.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, unavailable(fmt.Sprintf("capture tool %s is not installed", binary))
	}

	// The process outlives ctx, which only bounds the acquisition.
	cmd := exec.Command(binary, d.args()...) //nolint:gosec // arguments come from configuration
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, unavailable(fmt.Sprintf("failed to start %s: %v", binary, err))
	}

	s := newFFmpegStream(cmd, d.Path)
	go s.readFrames(stdout)

	timeout := d.FirstFrame
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.hub.firstFrame():
		return s, nil
	case <-s.exited:
		return nil, classifyFFmpegError(d.Path, stderr.String())
	case <-ctx.Done():
		s.track.Stop()
		return nil, ctx.Err()
	case <-timer.C:
		s.track.Stop()
		return nil, unavailable(fmt.Sprintf("no frames from %s within %s", d.Path, timeout))
	}
}

// checkDeviceNode maps OS errors for the device node onto acquisition errors.
func checkDeviceNode(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err == nil {
		return f.Close()
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		return unavailable(fmt.Sprintf("no camera found at %s", path))
	case errors.Is(err, os.ErrPermission):
		return denied(fmt.Sprintf("permission denied opening %s", path))
	case errors.Is(err, syscall.EBUSY):
		return busy(fmt.Sprintf("%s is in use by another application", path))
	}
	return unavailable(err.Error())
}

// classifyFFmpegError turns the stderr of an ffmpeg process that exited before
// producing a frame into an acquisition error.
func classifyFFmpegError(path, stderr string) *AcquireError {
	detail := lastLine(stderr)
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "device or resource busy"):
		return busy(fmt.Sprintf("%s is in use by another application", path))
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "operation not permitted"):
		return denied(fmt.Sprintf("permission denied opening %s", path))
	case strings.Contains(lower, "no such file or directory"), strings.Contains(lower, "no such device"):
		return unavailable(fmt.Sprintf("no camera found at %s", path))
	case detail == "":
		return unavailable(fmt.Sprintf("capture of %s ended before the first frame", path))
	}
	return unavailable(detail)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images delimited by SOI/EOI markers.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF that may begin the next marker.
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	end += start + len(jpegSOI) + len(jpegEOI)
	return end, data[start:end], nil
}

type ffmpegStream struct {
	hub    *frameHub
	track  *processTrack
	exited chan struct{}
}

func newFFmpegStream(cmd *exec.Cmd, device string) *ffmpegStream {
	exited := make(chan struct{})
	return &ffmpegStream{
		hub:    newFrameHub(),
		track:  &processTrack{id: "video:" + device, cmd: cmd, exited: exited},
		exited: exited,
	}
}

func (s *ffmpegStream) readFrames(r io.Reader) {
	defer func() {
		s.hub.close()
		err := s.track.cmd.Wait()
		s.track.markEnded()
		close(s.exited)
		if err != nil && !s.track.stopped() {
			log.WithField("track", s.track.id).WithError(err).Warn("capture process exited")
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 512*1024), constants.FrameBufferSize)
	scanner.Split(splitJPEG)
	for scanner.Scan() {
		frame := make([]byte, len(scanner.Bytes()))
		copy(frame, scanner.Bytes())
		s.hub.publishJPEG(frame)
	}
	if err := scanner.Err(); err != nil && !s.track.stopped() {
		log.WithField("track", s.track.id).WithError(err).Warn("reading capture frames")
	}
}

func (s *ffmpegStream) Tracks() []Track {
	return []Track{s.track}
}

func (s *ffmpegStream) LatestFrame() image.Image {
	return s.hub.latest()
}

func (s *ffmpegStream) Subscribe() (<-chan image.Image, func()) {
	return s.hub.subscribe()
}

// processTrack is the single video track of an ffmpeg stream; stopping it ends the process.
type processTrack struct {
	id     string
	cmd    *exec.Cmd
	exited chan struct{}

	mu          sync.Mutex
	ended       bool
	stopRequest bool
}

func (t *processTrack) ID() string {
	return t.id
}

func (t *processTrack) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended || t.stopRequest {
		return TrackEnded
	}
	return TrackLive
}

// Stop asks ffmpeg to exit and kills it if it does not within the stop timeout.
func (t *processTrack) Stop() {
	t.mu.Lock()
	if t.stopRequest || t.ended {
		t.mu.Unlock()
		return
	}
	t.stopRequest = true
	t.mu.Unlock()

	if t.cmd.Process == nil {
		return
	}
	_ = t.cmd.Process.Signal(os.Interrupt)
	select {
	case <-t.exited:
	case <-time.After(constants.TrackStopTimeout):
		_ = t.cmd.Process.Kill()
		<-t.exited
	}
}

func (t *processTrack) markEnded() {
	t.mu.Lock()
	t.ended = true
	t.mu.Unlock()
}

func (t *processTrack) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopRequest
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
