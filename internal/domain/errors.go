package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies extraction failures and drives the retry decision.
type ErrorKind string

const (
	// ErrorAuth is a provider credential or permission failure. Terminal.
	ErrorAuth ErrorKind = "auth_error"
	// ErrorNotFound means the profile is no longer resolvable. Terminal.
	ErrorNotFound ErrorKind = "not_found"
	// ErrorRateLimited is a provider-imposed limit. Retryable.
	ErrorRateLimited ErrorKind = "rate_limited"
	// ErrorTransient covers network failures and timeouts. Retryable.
	ErrorTransient ErrorKind = "transient"
	// ErrorMalformed marks a single bad record. Never fails a job.
	ErrorMalformed ErrorKind = "malformed"
)

// Retryable reports whether a failure of this kind may be requeued.
func (k ErrorKind) Retryable() bool {
	return k == ErrorRateLimited || k == ErrorTransient
}

// ExtractError is a classified extraction failure.
type ExtractError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// NewExtractError wraps err with a classification.
func NewExtractError(kind ErrorKind, err error) *ExtractError {
	return &ExtractError{Kind: kind, Err: err}
}

// ClassifyError extracts the kind from err, defaulting unclassified errors
// to Transient so the retry path covers unexpected failures.
func ClassifyError(err error) ErrorKind {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ErrorTransient
}

// ErrInsufficientData is returned by report assembly when the requested
// period holds no daily metrics at all.
var ErrInsufficientData = errors.New("insufficient data for report period")

// ErrDayClosed is returned when an ingest targets a day older than the
// closed horizon without an explicit correction request.
var ErrDayClosed = errors.New("metric day is closed for updates")

// ErrJobTerminal is returned on attempts to transition a finished job.
var ErrJobTerminal = errors.New("job is in a terminal state")
