package domain

import "errors"

// Common domain errors
var (
	ErrNoEntries      = errors.New("latest entry not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrAlreadyFetched = errors.New("artifact already fetched")
)

// ResolutionError reports a feed entry that could not be turned into an
// Artifact because a required field was absent or malformed. It is recovered
// at the cycle boundary: logged, then the cycle ends and the next tick tries
// again. It is never fatal to the process.
type ResolutionError struct {
	Field string // the missing or malformed field, e.g. "pub date", "hash"
	Err   error
}

// Error returns the error message
func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return "resolve feed entry: " + e.Field + ": " + e.Err.Error()
	}
	return "resolve feed entry: " + e.Field + " not found"
}

// Unwrap returns the underlying error
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// NewResolutionError creates a ResolutionError for a missing field
func NewResolutionError(field string, err error) *ResolutionError {
	return &ResolutionError{Field: field, Err: err}
}

// IsResolution returns true if the error is a resolution failure
func IsResolution(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// TransferError reports a download that failed after exhausting its bounded
// retry budget, or a local filesystem failure at the destination path. The
// partially written file is left in place.
type TransferError struct {
	URL      string
	Attempts int
	Err      error
}

// Error returns the error message
func (e *TransferError) Error() string {
	if e.Err != nil {
		return "transfer " + e.URL + ": " + e.Err.Error()
	}
	return "transfer " + e.URL + " failed"
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

// IsTransfer returns true if the error is a transfer failure
func IsTransfer(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}
