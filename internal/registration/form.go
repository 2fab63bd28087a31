package registration

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"github.com/kozaktomas/face-registry/internal/store"
)

// Form holds the pending label and image, validates them and hands a complete
// record to the submitter. At most one submission is in flight at a time.
type Form struct {
	mu          sync.Mutex
	label       string
	image       *imaging.EncodedImage
	feedback    string
	submitting  bool
	generation  uint64
	submitter   store.Submitter
	successText string
	now         func() time.Time
}

// FormState is a snapshot of the pending capture.
type FormState struct {
	Label      string
	Image      *imaging.EncodedImage
	Feedback   string
	Submitting bool
}

// NewForm creates an empty form. successText is shown after an accepted submission.
func NewForm(submitter store.Submitter, successText string) *Form {
	return &Form{
		submitter:   submitter,
		successText: successText,
		now:         time.Now,
	}
}

// SetClock replaces the clock used to stamp records.
func (f *Form) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// SetLabel updates the label and clears stale feedback. The pending capture is
// frozen while a submission is in flight.
func (f *Form) SetLabel(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return ErrSubmitInFlight
	}
	f.label = text
	f.feedback = ""
	return nil
}

// SetImage updates the image and clears stale feedback.
func (f *Form) SetImage(img imaging.EncodedImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return ErrSubmitInFlight
	}
	f.image = &img
	f.feedback = ""
	return nil
}

// SetFeedback replaces the visible message.
func (f *Form) SetFeedback(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = msg
}

// State returns a snapshot.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := FormState{
		Label:      f.label,
		Feedback:   f.feedback,
		Submitting: f.submitting,
	}
	if f.image != nil {
		img := *f.image
		st.Image = &img
	}
	return st
}

// Validate returns nil when the form is ready, otherwise a *ValidationError.
func (f *Form) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *Form) validateLocked() error {
	var reasons []error
	if NormalizeLabel(f.label) == "" {
		reasons = append(reasons, ErrMissingLabel)
	}
	if f.image == nil || f.image.IsZero() {
		reasons = append(reasons, ErrMissingImage)
	}
	if len(reasons) > 0 {
		return &ValidationError{Reasons: reasons}
	}
	return nil
}

// Submit validates the form and, when ready, performs one write through the
// submitter. An invalid form only updates the feedback. On success the pending
// label and image are cleared; on failure they are kept for a retry.
func (f *Form) Submit(ctx context.Context) (store.Ack, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return store.Ack{}, ErrSubmitInFlight
	}
	if err := f.validateLocked(); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			f.feedback = ve.Feedback()
		}
		f.mu.Unlock()
		return store.Ack{}, err
	}

	record := store.FaceRecord{
		Label:      NormalizeLabel(f.label),
		Image:      *f.image,
		CapturedAt: f.now(),
	}
	gen := f.generation
	f.submitting = true
	f.feedback = constants.FeedbackSubmitting
	f.mu.Unlock()

	ack, err := f.submitter.Submit(ctx, record)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generation != gen {
		log.WithField("label", record.Label).Info("discarding result of submission for a reset form")
		return store.Ack{}, ErrResultDiscarded
	}
	f.submitting = false

	if err != nil {
		var se *store.SubmitError
		if !errors.As(err, &se) {
			se = store.NewSubmitError("", err)
		}
		f.feedback = constants.FeedbackSubmitPrefix + se.Error()
		log.WithField("label", record.Label).WithError(err).Warn("face registration failed")
		return store.Ack{}, se
	}

	f.label = ""
	f.image = nil
	f.feedback = f.successText
	log.WithFields(log.Fields{"id": ack.ID, "label": record.Label}).Info("face registered")
	return ack, nil
}

// Reset empties the form. A submission in flight completes but its result is discarded.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.label = ""
	f.image = nil
	f.feedback = ""
	f.submitting = false
	f.generation++
}
