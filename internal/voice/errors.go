package voice

import "errors"

// notFoundError means the requested voice has no registry entry.
type notFoundError struct{ ID string }

func (e notFoundError) Error() string { return "voice not found: " + e.ID }

// IsNotFound reports whether err means the voice id is unknown (404).
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// missingAudioError means a voice resolved but its reference audio is gone.
type missingAudioError struct {
	ID   string
	Path string
}

func (e missingAudioError) Error() string {
	return "voice " + e.ID + " is not available: reference audio missing at " + e.Path
}

// IsVoiceNotFound reports whether err means the chosen voice cannot be used
// for synthesis (400).
func IsVoiceNotFound(err error) bool {
	var e missingAudioError
	return errors.As(err, &e)
}

// forbiddenError is returned when mutating a preset voice.
type forbiddenError struct{ ID string }

func (e forbiddenError) Error() string {
	return "voice " + e.ID + " is a preset and cannot be modified"
}

// IsForbidden reports whether err is a preset mutation attempt (403).
func IsForbidden(err error) bool {
	var e forbiddenError
	return errors.As(err, &e)
}

// invalidInputError rejects an upload (400).
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return e.msg }

// IsInvalidInput reports whether err is a rejected upload.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}
