// Package store defines the face record handed to the remote collaborator store
// and the contracts every store backend implements.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/imaging"
)

// ErrIncompleteRecord is returned by backends asked to write a record without a label or image.
var ErrIncompleteRecord = errors.New("record requires both label and image")

// FaceRecord is one labeled face image. CapturedAt is assigned by the submitting
// client at the moment of submission.
type FaceRecord struct {
	Label      string
	Image      imaging.EncodedImage
	CapturedAt time.Time
}

// Validate checks the record is complete.
func (r FaceRecord) Validate() error {
	if strings.TrimSpace(r.Label) == "" || r.Image.IsZero() {
		return ErrIncompleteRecord
	}
	if r.CapturedAt.IsZero() {
		return errors.New("record timestamp is not set")
	}
	return nil
}

// Row returns the wire form written to every backend.
func (r FaceRecord) Row() Row {
	return Row{
		Label:     r.Label,
		ImageData: r.Image.DataURL(),
		Timestamp: FormatTimestamp(r.CapturedAt),
	}
}

// Row is a stored face record as seen on the wire.
type Row struct {
	ID        string `json:"id,omitempty"`
	Label     string `json:"label"`
	ImageData string `json:"image_data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Ack acknowledges a successful write.
type Ack struct {
	ID         string
	Label      string
	CapturedAt time.Time
}

// Record is a stored row read back from a backend.
type Record struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	CapturedAt time.Time `json:"timestamp"`
	ImageData  string    `json:"image_data,omitempty"`
}

// ListOptions controls List.
type ListOptions struct {
	Limit         int
	IncludeImages bool
}

// Normalize clamps Limit into [1, MaxRecordsLimit].
func (o ListOptions) Normalize() ListOptions {
	switch {
	case o.Limit <= 0:
		o.Limit = constants.DefaultRecordsLimit
	case o.Limit > constants.MaxRecordsLimit:
		o.Limit = constants.MaxRecordsLimit
	}
	return o
}

// SubmitError is a failed remote write. Error returns the collaborator-supplied
// detail unchanged so it can be shown to the user.
type SubmitError struct {
	Detail string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "submit failed"
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// NewSubmitError wraps err; detail defaults to err's message.
func NewSubmitError(detail string, err error) *SubmitError {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &SubmitError{Detail: detail, Err: err}
}

// Submitter performs exactly one remote write per call and never retries.
type Submitter interface {
	Submit(ctx context.Context, record FaceRecord) (Ack, error)
}

// Reader lists stored records for matching consumers.
type Reader interface {
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Count(ctx context.Context) (int, error)
}

// Backend is a complete store implementation.
type Backend interface {
	Submitter
	Reader
	Name() string
	Close() error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, record FaceRecord) (Ack, error)

func (f SubmitterFunc) Submit(ctx context.Context, record FaceRecord) (Ack, error) {
	return f(ctx, record)
}

// FormatTimestamp renders t as ISO-8601 UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(constants.TimestampLayout)
}

// ParseTimestamp parses timestamps written by FormatTimestamp and the
// variants databases return (RFC 3339 with or without fractional seconds).
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	// PostgREST renders timestamptz as "2024-01-02T03:04:05.678+00:00" which RFC3339Nano
	// handles; plain timestamp columns come back without a zone.
	if t, err2 := time.Parse("2006-01-02T15:04:05.999999999", s); err2 == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
}
