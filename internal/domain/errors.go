package domain

import "errors"

// Error classes returned by the booking core. Callers match them with errors.Is;
// messages are wrapped with context via fmt.Errorf("...: %w", ErrX).
var (
	// ErrNotFound: the referenced flight or booking does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientSeats: the request asks for more seats than are available.
	ErrInsufficientSeats = errors.New("insufficient seats")
	// ErrConcurrentUpdate: the row changed between read and write; re-read and retry.
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
	// ErrInvalidRequest: malformed input or a forbidden status transition.
	ErrInvalidRequest = errors.New("invalid request")
)
