package registration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/store"
)

// Kind is an entry surface variant.
type Kind string

const (
	KindUser  Kind = "user"  // self-registration through the camera
	KindAdmin Kind = "admin" // upload of existing image files
)

// ParseKind validates a surface kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindUser, KindAdmin:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown surface kind %q", s)
}

// Options are the collaborators of a surface.
type Options struct {
	Submitter store.Submitter
	Camera    camera.Device        // enables the camera source when set
	Encoder   *imaging.Encoder     // encoder for camera stills
	Files     *imaging.FileDecoder // enables the file source when set
	Now       func() time.Time     // record clock, defaults to time.Now
}

// Surface composes image sources with one form and submitter. The camera
// session it opens is owned by the surface and released by Close.
type Surface struct {
	ID   string
	Kind Kind

	form   *Form
	camera *CameraSource
	files  *FileSource

	mu         sync.Mutex
	closed     bool
	lastActive time.Time
}

// NewSurface creates a surface of kind. The user surface offers the camera and the
// admin surface offers files; either gets the other source too when both are configured
// through EnableAllSources.
func NewSurface(id string, kind Kind, opts Options) *Surface {
	success := constants.FeedbackUserSuccess
	if kind == KindAdmin {
		success = constants.FeedbackAdminSuccess
	}

	s := &Surface{
		ID:         id,
		Kind:       kind,
		form:       NewForm(opts.Submitter, success),
		lastActive: time.Now(),
	}
	if opts.Now != nil {
		s.form.SetClock(opts.Now)
	}

	switch kind {
	case KindUser:
		if opts.Camera != nil {
			s.camera = NewCameraSource(opts.Camera, opts.Encoder)
		}
	case KindAdmin:
		if opts.Files != nil {
			s.files = NewFileSource(opts.Files)
		}
	}
	return s
}

// EnableAllSources adds whichever configured sources the surface kind lacks.
func (s *Surface) EnableAllSources(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.camera == nil && opts.Camera != nil {
		s.camera = NewCameraSource(opts.Camera, opts.Encoder)
	}
	if s.files == nil && opts.Files != nil {
		s.files = NewFileSource(opts.Files)
	}
}

// Sources lists the enabled image sources.
func (s *Surface) Sources() []SourceKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SourceKind
	if s.camera != nil {
		out = append(out, SourceCamera)
	}
	if s.files != nil {
		out = append(out, SourceFile)
	}
	return out
}

// enter marks activity and returns the sources, or ErrSurfaceClosed.
func (s *Surface) enter() (*CameraSource, *FileSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, ErrSurfaceClosed
	}
	s.lastActive = time.Now()
	return s.camera, s.files, nil
}

// StartCamera acquires the capture device for a live preview.
func (s *Surface) StartCamera(ctx context.Context) error {
	cam, _, err := s.enter()
	if err != nil {
		return err
	}
	if cam == nil {
		s.form.SetFeedback(constants.FeedbackSourceNotEnabled)
		return ErrSourceUnsupported
	}

	s.form.SetFeedback(constants.FeedbackAcquiring)
	if err := cam.Start(ctx); err != nil {
		if errors.Is(err, camera.ErrSessionReleased) {
			// Torn down while acquiring; nobody is looking at this surface any more.
			return err
		}
		s.form.SetFeedback(constants.FeedbackCameraPrefix + err.Error())
		return err
	}
	s.form.SetFeedback("")
	return nil
}

// Capture freezes the preview into the pending image and releases the device.
func (s *Surface) Capture() error {
	cam, _, err := s.enter()
	if err != nil {
		return err
	}
	if cam == nil {
		s.form.SetFeedback(constants.FeedbackSourceNotEnabled)
		return ErrSourceUnsupported
	}

	if s.form.State().Submitting {
		return ErrSubmitInFlight
	}
	still, err := cam.Capture()
	if err != nil {
		s.form.SetFeedback(constants.FeedbackCapturePrefix + err.Error())
		return err
	}
	return s.form.SetImage(still)
}

// ReleaseCamera stops the preview without capturing.
func (s *Surface) ReleaseCamera() {
	s.mu.Lock()
	cam := s.camera
	s.mu.Unlock()
	if cam != nil {
		cam.Release()
	}
}

// CameraState reports the camera session state; empty when the surface has no camera.
func (s *Surface) CameraState() camera.State {
	s.mu.Lock()
	cam := s.camera
	s.mu.Unlock()
	if cam == nil {
		return ""
	}
	return cam.State()
}

// Preview streams live frames while the camera is streaming.
func (s *Surface) Preview() (<-chan image.Image, func(), error) {
	cam, _, err := s.enter()
	if err != nil {
		return nil, nil, err
	}
	if cam == nil {
		return nil, nil, ErrSourceUnsupported
	}
	return cam.Subscribe()
}

// LoadImage reads an image file into the pending image.
func (s *Surface) LoadImage(r io.Reader) error {
	_, files, err := s.enter()
	if err != nil {
		return err
	}
	if files == nil {
		s.form.SetFeedback(constants.FeedbackSourceNotEnabled)
		return ErrSourceUnsupported
	}

	img, err := files.Load(r)
	if err != nil {
		s.form.SetFeedback(constants.FeedbackFilePrefix + err.Error())
		return err
	}
	return s.form.SetImage(img)
}

// LoadDataURL reads a data URL, or bare base64 image data, into the pending image.
func (s *Surface) LoadDataURL(text string) error {
	_, files, err := s.enter()
	if err != nil {
		return err
	}
	if files == nil {
		s.form.SetFeedback(constants.FeedbackSourceNotEnabled)
		return ErrSourceUnsupported
	}

	img, err := imaging.ParseDataURL(text)
	if err != nil {
		s.form.SetFeedback(constants.FeedbackFilePrefix + err.Error())
		return err
	}
	return s.LoadImage(bytes.NewReader(img.Data))
}

// RejectImage reports an upload that never reached the decoder, such as a
// malformed request, and returns err.
func (s *Surface) RejectImage(err error) error {
	if _, _, cerr := s.enter(); cerr != nil {
		return cerr
	}
	s.form.SetFeedback(constants.FeedbackFilePrefix + err.Error())
	return err
}

// LoadImagePath reads the image file at path into the pending image.
func (s *Surface) LoadImagePath(path string) error {
	_, files, err := s.enter()
	if err != nil {
		return err
	}
	if files == nil {
		s.form.SetFeedback(constants.FeedbackSourceNotEnabled)
		return ErrSourceUnsupported
	}

	img, err := files.LoadPath(path)
	if err != nil {
		s.form.SetFeedback(constants.FeedbackFilePrefix + err.Error())
		return err
	}
	return s.form.SetImage(img)
}

// SetLabel updates the pending label.
func (s *Surface) SetLabel(text string) error {
	if _, _, err := s.enter(); err != nil {
		return err
	}
	return s.form.SetLabel(text)
}

// Submit submits the pending capture.
func (s *Surface) Submit(ctx context.Context) (store.Ack, error) {
	if _, _, err := s.enter(); err != nil {
		return store.Ack{}, err
	}
	return s.form.Submit(ctx)
}

// PendingImage returns the pending image, if any.
func (s *Surface) PendingImage() (imaging.EncodedImage, bool) {
	st := s.form.State()
	if st.Image == nil {
		return imaging.EncodedImage{}, false
	}
	return *st.Image, true
}

// Form exposes the surface's form.
func (s *Surface) Form() *Form {
	return s.form
}

// LastActive returns the time of the last user action.
func (s *Surface) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Closed reports whether Close was called.
func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the surface down: any camera session is released and the pending
// capture is destroyed. An in-flight submission completes but its result is discarded.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cam, files := s.camera, s.files
	s.mu.Unlock()

	if cam != nil {
		cam.Close()
	}
	if files != nil {
		files.Release()
	}
	s.form.Reset()
	log.WithFields(log.Fields{"surface": s.ID, "kind": s.Kind}).Debug("surface closed")
}

// View is the externally visible state of a surface.
type View struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	Sources     []SourceKind `json:"sources"`
	Label       string       `json:"label"`
	HasImage    bool         `json:"has_image"`
	ImageWidth  int          `json:"image_width,omitempty"`
	ImageHeight int          `json:"image_height,omitempty"`
	Feedback    string       `json:"feedback"`
	Submitting  bool         `json:"submitting"`
	CameraState camera.State `json:"camera_state,omitempty"`
	Closed      bool         `json:"closed"`
}

// View returns a snapshot for rendering.
func (s *Surface) View() View {
	st := s.form.State()
	v := View{
		ID:          s.ID,
		Kind:        s.Kind,
		Sources:     s.Sources(),
		Label:       st.Label,
		Feedback:    st.Feedback,
		Submitting:  st.Submitting,
		CameraState: s.CameraState(),
		Closed:      s.Closed(),
	}
	if st.Image != nil {
		v.HasImage = true
		v.ImageWidth = st.Image.Width
		v.ImageHeight = st.Image.Height
	}
	return v
}
