package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-registry/internal/config"
)

// ConfigHandler exposes the non-secret settings a client needs to render the surfaces.
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	StoreBackend   string `json:"store_backend"`
	CameraBackend  string `json:"camera_backend"`
	CameraDevice   string `json:"camera_device"`
	UploadMaxBytes int64  `json:"upload_max_bytes"`
	AllSources     bool   `json:"all_sources"`
	Notifications  bool   `json:"notifications"`
}

// Get returns the public configuration. Credentials are never included.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		StoreBackend:   h.config.Store.Backend,
		CameraBackend:  h.config.Camera.Backend,
		CameraDevice:   h.config.Camera.Device,
		UploadMaxBytes: h.config.Upload.MaxBytes,
		AllSources:     h.config.Web.AllSources,
		Notifications:  h.config.MQTT.Broker != "",
	})
}
