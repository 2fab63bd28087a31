package registration

import (
	"errors"
	"strings"

	"github.com/kozaktomas/face-registry/internal/constants"
)

var (
	ErrMissingLabel = errors.New("missing label")
	ErrMissingImage = errors.New("missing image")

	// ErrSubmitInFlight is returned when Submit is called before the previous call resolved.
	ErrSubmitInFlight = errors.New("a submission is already in progress")
	// ErrResultDiscarded is returned by a Submit whose form was reset while the write was in flight.
	ErrResultDiscarded = errors.New("submission result discarded: form was reset")
	// ErrSourceUnsupported is returned when a surface does not offer the requested image source.
	ErrSourceUnsupported = errors.New("image source not available on this surface")
	// ErrSurfaceClosed is returned by operations on a torn-down surface.
	ErrSurfaceClosed = errors.New("surface is closed")
)

// ValidationError lists every reason a form is not ready. errors.Is matches each reason.
type ValidationError struct {
	Reasons []error
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		parts[i] = r.Error()
	}
	return strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Reasons
}

// Feedback returns the message shown to the user.
func (e *ValidationError) Feedback() string {
	label := errors.Is(e, ErrMissingLabel)
	image := errors.Is(e, ErrMissingImage)
	switch {
	case label && image:
		return constants.FeedbackMissingBoth
	case label:
		return constants.FeedbackMissingLabel
	default:
		return constants.FeedbackMissingImage
	}
}
