package handlers

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/registration"
	"github.com/kozaktomas/face-registry/internal/store"
)

const errSurfaceNotFound = "surface not found"

var (
	errInvalidImageBody = errors.New(errInvalidRequestBody)
	errMultipartForm    = errors.New("failed to parse multipart form")
	errFileRequired     = errors.New("file is required")
)

// SurfacesHandler exposes the entry surfaces over HTTP.
type SurfacesHandler struct {
	manager       *SurfaceManager
	submitTimeout time.Duration
	maxUpload     int64
	preview       *imaging.Encoder
}

// NewSurfacesHandler creates a surfaces handler. Submits run for at most
// submitTimeout regardless of the client connection.
func NewSurfacesHandler(manager *SurfaceManager, submitTimeout time.Duration, maxUploadBytes int64) *SurfacesHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = constants.DefaultMaxUploadBytes
	}
	return &SurfacesHandler{
		manager:       manager,
		submitTimeout: submitTimeout,
		maxUpload:     maxUploadBytes + constants.MultipartOverhead,
		preview:       imaging.NewEncoder(constants.PreviewJPEGQuality),
	}
}

// CreateSurfaceRequest is the body of the create endpoint.
type CreateSurfaceRequest struct {
	Kind string `json:"kind"`
}

// SetLabelRequest is the body of the label endpoint.
type SetLabelRequest struct {
	Label string `json:"label"`
}

// SetImageRequest carries an image as a data URL or bare base64.
type SetImageRequest struct {
	ImageData string `json:"image_data"`
}

// SubmitResponse is returned after a successful submit.
type SubmitResponse struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	Timestamp string            `json:"timestamp"`
	Surface   registration.View `json:"surface"`
}

// surface resolves the {id} URL parameter, writing 404 when unknown.
func (h *SurfacesHandler) surface(w http.ResponseWriter, r *http.Request) *registration.Surface {
	s := h.manager.Get(chi.URLParam(r, "id"))
	if s == nil {
		respondError(w, http.StatusNotFound, errSurfaceNotFound)
		return nil
	}
	return s
}

// respondSurfaceError reports err using the surface feedback when there is one.
func respondSurfaceError(w http.ResponseWriter, s *registration.Surface, err error) {
	msg := s.Form().State().Feedback
	if msg == "" {
		msg = err.Error()
	}
	respondError(w, statusForError(err), msg)
}

// Create opens a new surface.
func (h *SurfacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSurfaceRequest
	if err := decodeJSON(w, r, constants.MaxJSONBodySize, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	kind, err := registration.ParseKind(req.Kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.manager.Create(kind)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, s.View())
}

// Get returns the surface view.
func (h *SurfacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// Delete tears the surface down and releases its camera.
func (h *SurfacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Delete(chi.URLParam(r, "id")) {
		respondError(w, http.StatusNotFound, errSurfaceNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartCamera acquires the capture device. It returns once the first frame is available.
func (h *SurfacesHandler) StartCamera(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}
	if err := s.StartCamera(r.Context()); err != nil {
		log.WithField("surface", s.ID).WithError(err).Warn("camera start failed")
		respondSurfaceError(w, s, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// Capture freezes the current frame into the pending image and releases the camera.
func (h *SurfacesHandler) Capture(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}
	if err := s.Capture(); err != nil {
		respondSurfaceError(w, s, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// ReleaseCamera stops the preview without capturing.
func (h *SurfacesHandler) ReleaseCamera(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}
	s.ReleaseCamera()
	respondJSON(w, http.StatusOK, s.View())
}

// Preview streams the live camera as multipart MJPEG until the camera is released
// or the client disconnects.
func (h *SurfacesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}

	frames, cancel, err := s.Preview()
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary("frame"); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var last time.Time
	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if time.Since(last) < constants.PreviewFrameInterval {
				continue
			}
			last = time.Now()

			enc, err := h.preview.Encode(frame)
			if err != nil {
				continue
			}
			header := make(textproto.MIMEHeader)
			header.Set("Content-Type", enc.MIMEType)
			header.Set("Content-Length", strconv.Itoa(len(enc.Data)))
			part, err := mw.CreatePart(header)
			if err != nil {
				return
			}
			if _, err := part.Write(enc.Data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// SetImage loads the pending image from a multipart "file" field or a JSON data URL.
func (h *SurfacesHandler) SetImage(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req SetImageRequest
		if err := decodeJSON(w, r, h.maxUpload*4/3, &req); err != nil {
			respondSurfaceError(w, s, s.RejectImage(errInvalidImageBody))
			return
		}
		if err := s.LoadDataURL(req.ImageData); err != nil {
			respondSurfaceError(w, s, err)
			return
		}
		respondJSON(w, http.StatusOK, s.View())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondSurfaceError(w, s, s.RejectImage(imaging.ErrFileTooLarge))
			return
		}
		respondSurfaceError(w, s, s.RejectImage(errMultipartForm))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondSurfaceError(w, s, s.RejectImage(errFileRequired))
		return
	}
	defer file.Close()

	if err := s.LoadImage(file); err != nil {
		log.WithFields(log.Fields{"surface": s.ID, "file": sanitizeForLog(header.Filename)}).WithError(err).Warn("image rejected")
		respondSurfaceError(w, s, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// GetImage returns the pending image.
func (h *SurfacesHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}

	img, ok := s.PendingImage()
	if !ok {
		respondError(w, http.StatusNotFound, "no pending image")
		return
	}

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

// SetLabel updates the pending label.
func (h *SurfacesHandler) SetLabel(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}

	var req SetLabelRequest
	if err := decodeJSON(w, r, constants.MaxJSONBodySize, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := s.SetLabel(req.Label); err != nil {
		respondSurfaceError(w, s, err)
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// Submit writes the pending capture to the store. The write is detached from the
// client connection so an in-flight submit always completes.
func (h *SurfacesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s := h.surface(w, r)
	if s == nil {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if h.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.submitTimeout)
		defer cancel()
	}

	ack, err := s.Submit(ctx)
	if err != nil {
		var submitErr *store.SubmitError
		if errors.As(err, &submitErr) {
			log.WithField("surface", s.ID).WithError(err).Warn("submit failed")
		}
		respondSurfaceError(w, s, err)
		return
	}

	log.WithFields(log.Fields{"surface": s.ID, "id": ack.ID, "label": sanitizeForLog(ack.Label)}).Info("face registered")
	respondJSON(w, http.StatusCreated, SubmitResponse{
		ID:        ack.ID,
		Label:     ack.Label,
		Timestamp: store.FormatTimestamp(ack.CapturedAt),
		Surface:   s.View(),
	})
}
