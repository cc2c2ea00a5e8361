package manager

import "errors"

// loadFailureError wraps a loader failure. The manager is left without a
// resident model so the next Acquire retries.
type loadFailureError struct{ err error }

func (e loadFailureError) Error() string { return "model load failed: " + e.err.Error() }
func (e loadFailureError) Unwrap() error { return e.err }

// ErrModelLoadFailure wraps err as a model load failure.
func ErrModelLoadFailure(err error) error { return loadFailureError{err: err} }

// IsModelLoadFailure reports whether err came from the model loader (return 503).
func IsModelLoadFailure(err error) bool {
	var e loadFailureError
	return errors.As(err, &e)
}

// generationFailureError signals a fault inside a model call. The model has
// already been evicted when callers observe it.
type generationFailureError struct{ err error }

func (e generationFailureError) Error() string { return "generation failed: " + e.err.Error() }
func (e generationFailureError) Unwrap() error { return e.err }

// ErrGenerationFailure wraps err as a generation failure.
func ErrGenerationFailure(err error) error { return generationFailureError{err: err} }

// IsGenerationFailure reports whether err indicates a mid-synthesis fault.
func IsGenerationFailure(err error) bool {
	var e generationFailureError
	return errors.As(err, &e)
}

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("manager closed")
