package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	MariaDB  MariaDBConfig  `yaml:"mariadb"`
	Camera   CameraConfig   `yaml:"camera"`
	Upload   UploadConfig   `yaml:"upload"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Web      WebConfig      `yaml:"web"`
}

// StoreConfig selects the remote collaborator store that receives face records.
type StoreConfig struct {
	Backend string        `yaml:"backend"` // postgrest, postgres or mariadb
	URL     string        `yaml:"url"`     // base URL of the REST store (postgrest backend)
	Key     string        `yaml:"-"`       // opaque access credential, never logged
	Table   string        `yaml:"table"`   // collection receiving the rows
	Timeout time.Duration `yaml:"timeout"` // per-submit round trip limit
}

type DatabaseConfig struct {
	URL          string `yaml:"-"`              // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 10)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 2)
}

type MariaDBConfig struct {
	DSN string `yaml:"-"` // e.g. registry:registry@tcp(mariadb:3306)/registry?parseTime=true
}

type CameraConfig struct {
	Backend        string        `yaml:"backend"` // ffmpeg or gocv
	Device         string        `yaml:"device"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	FPS            int           `yaml:"fps"`
	Quality        int           `yaml:"quality"` // JPEG quality of captured stills
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

type UploadConfig struct {
	MaxBytes     int64 `yaml:"max_bytes"`
	MaxDimension int   `yaml:"max_dimension"` // 0 keeps the native resolution
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables notifications
	Topic    string `yaml:"topic"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

type WebConfig struct {
	SurfaceIdleTimeout time.Duration `yaml:"surface_idle_timeout"`
	AllSources         bool          `yaml:"all_sources"` // offer camera and file on every surface
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envInt64 is envInt for byte sizes.
func envInt64(key string, defaultVal int64) int64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration parses a Go duration string ("30s", "2m").
// Returns the default value if the env var is unset or not a positive duration.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the embedded defaults without consulting the environment.
func Defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	return cfg
}

// Load builds the process-wide configuration. It is called once at startup and the
// result is injected into the components that need it.
func Load() *Config {
	d := Defaults()

	// Max dimension may legitimately be 0, so it is parsed separately from envInt.
	maxDim := d.Upload.MaxDimension
	if s := os.Getenv("UPLOAD_MAX_DIMENSION"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			maxDim = n
		}
	}

	return &Config{
		Store: StoreConfig{
			Backend: strings.ToLower(envString("STORE_BACKEND", d.Store.Backend)),
			URL:     strings.TrimRight(os.Getenv("STORE_URL"), "/"),
			Key:     os.Getenv("STORE_KEY"),
			Table:   envString("STORE_TABLE", d.Store.Table),
			Timeout: envDuration("STORE_TIMEOUT", d.Store.Timeout),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Camera: CameraConfig{
			Backend:        strings.ToLower(envString("CAMERA_BACKEND", d.Camera.Backend)),
			Device:         envString("CAMERA_DEVICE", d.Camera.Device),
			Width:          envInt("CAMERA_WIDTH", d.Camera.Width),
			Height:         envInt("CAMERA_HEIGHT", d.Camera.Height),
			FPS:            envInt("CAMERA_FPS", d.Camera.FPS),
			Quality:        envInt("CAMERA_QUALITY", d.Camera.Quality),
			AcquireTimeout: envDuration("CAMERA_ACQUIRE_TIMEOUT", d.Camera.AcquireTimeout),
		},
		Upload: UploadConfig{
			MaxBytes:     envInt64("UPLOAD_MAX_BYTES", d.Upload.MaxBytes),
			MaxDimension: maxDim,
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("MQTT_TOPIC", d.MQTT.Topic),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
		Web: WebConfig{
			SurfaceIdleTimeout: envDuration("SURFACE_IDLE_TIMEOUT", d.Web.SurfaceIdleTimeout),
			AllSources:         envBool("SURFACE_ALL_SOURCES", d.Web.AllSources),
		},
	}
}

// HasCredential reports whether a store credential was supplied.
func (c *StoreConfig) HasCredential() bool {
	return c.Key != ""
}
