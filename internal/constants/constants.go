// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Image constants
const (
	// DefaultJPEGQuality is the quality used for captured stills when none is configured
	DefaultJPEGQuality = 92

	// CaptureMIMEType is the fixed target format of every encoded image
	CaptureMIMEType = "image/jpeg"

	// DefaultMaxUploadBytes is the largest image file accepted from a file source (10MB)
	DefaultMaxUploadBytes = 10 << 20
)

// Camera constants
const (
	// FrameBufferSize is the maximum size of a single MJPEG frame read from ffmpeg
	FrameBufferSize = 8 << 20

	// PreviewFrameInterval limits how often preview subscribers receive a frame
	PreviewFrameInterval = 66 * time.Millisecond

	// PreviewJPEGQuality is the quality of frames sent to live preview clients
	PreviewJPEGQuality = 75

	// TrackStopTimeout is how long Stop waits for a capture process to exit before killing it
	TrackStopTimeout = 2 * time.Second
)

// Store constants
const (
	// DefaultRecordsLimit is the default number of records returned by list operations
	DefaultRecordsLimit = 50

	// MaxRecordsLimit caps the number of records a single list request may return
	MaxRecordsLimit = 500

	// TimestampLayout is the ISO-8601 layout used for record timestamps (UTC, millisecond precision)
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Notification constants
const (
	// MQTTQoS is the delivery guarantee used for registration notifications
	MQTTQoS = 1

	// MQTTPublishTimeout bounds how long a publish may block the submit path
	MQTTPublishTimeout = 5 * time.Second
)
