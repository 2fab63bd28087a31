package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-registry/internal/camera"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/registration"
	"github.com/kozaktomas/face-registry/internal/store"
)

// testConfig creates a config with the built-in defaults
func testConfig() *config.Config {
	cfg := config.Defaults()
	return &cfg
}

// testOptions wires surfaces to the given device and store
func testOptions(dev camera.Device, st store.Submitter) registration.Options {
	return registration.Options{
		Submitter: st,
		Camera:    dev,
		Encoder:   imaging.NewEncoder(90),
		Files:     imaging.NewFileDecoder(90, 1<<20, 0),
		Now:       func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) },
	}
}

// newTestManager creates a manager without the idle janitor, stopped at test end
func newTestManager(t *testing.T, dev camera.Device, st store.Submitter) *SurfaceManager {
	t.Helper()
	m := NewSurfaceManager(testOptions(dev, st), 0, false)
	t.Cleanup(m.Stop)
	return m
}

// createSurface opens a surface of kind on the manager
func createSurface(t *testing.T, m *SurfaceManager, kind registration.Kind) *registration.Surface {
	t.Helper()
	s, err := m.Create(kind)
	if err != nil {
		t.Fatalf("failed to create surface: %v", err)
	}
	return s
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// surfaceRequest creates a request addressed to a surface
func surfaceRequest(method, path, id string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return requestWithChiParams(req, map[string]string{"id": id})
}

// pngBytes encodes a blank w x h PNG
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// multipartFile builds a multipart body with a single "file" field
func multipartFile(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// pngImage returns a small blank image
func pngImage(t *testing.T) image.Image {
	t.Helper()
	return image.NewRGBA(image.Rect(0, 0, 6, 4))
}
