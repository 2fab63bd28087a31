package constants

import "time"

// Surface constants
const (
	// SurfaceJanitorInterval is how often idle surfaces are swept
	SurfaceJanitorInterval = time.Minute

	// MaxSurfaces is the maximum number of concurrently open surfaces
	MaxSurfaces = 64

	// RequestTimeout bounds API requests other than the live preview
	RequestTimeout = 2 * time.Minute
)

// Request body constants
const (
	// MultipartOverhead is allowed on top of the file limit for multipart framing
	MultipartOverhead = 1 << 20

	// MaxUploadSize is the maximum multipart request size for the default file limit
	MaxUploadSize = DefaultMaxUploadBytes + MultipartOverhead

	// MaxJSONBodySize is the maximum size of a JSON request body
	MaxJSONBodySize = 64 << 10
)

// Feedback texts shown on the entry surfaces
const (
	FeedbackUserSuccess      = "Successfully registered face"
	FeedbackAdminSuccess     = "Successfully added to database"
	FeedbackMissingBoth      = "Please provide both image and label"
	FeedbackMissingLabel     = "Please provide a label"
	FeedbackMissingImage     = "Please provide an image"
	FeedbackCameraPrefix     = "Error accessing camera: "
	FeedbackCapturePrefix    = "Error capturing image: "
	FeedbackFilePrefix       = "Error reading image: "
	FeedbackSubmitPrefix     = "Error: "
	FeedbackAcquiring        = "Starting camera..."
	FeedbackSubmitting       = "Submitting..."
	FeedbackSourceNotEnabled = "This image source is not available on this screen"
)
