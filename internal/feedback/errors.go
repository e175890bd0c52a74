package feedback

import "errors"

var (
	// ErrUnavailable indicates the model provider could not be reached or
	// answered with a non-success status.
	ErrUnavailable = errors.New("model provider unavailable")

	// ErrTimeout indicates the model call exceeded its deadline.
	ErrTimeout = errors.New("model request timed out")

	// ErrInvalidOutput indicates the reply could not be turned into feedback.
	ErrInvalidOutput = errors.New("invalid model output")

	// ErrNotConfigured is returned when no model provider is configured.
	ErrNotConfigured = errors.New("model provider not configured")
)
