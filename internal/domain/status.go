package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeStatus canonicalises a status: surrounding space trimmed, first letter
// upper case, the rest lower case. "cancelled" and "CANCELLED" both become "Cancelled".
func NormalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// Lifecycle governs booking status transitions. With Strict unset any non-empty status
// is accepted; with Strict set only Confirmed and Cancelled are.
type Lifecycle struct {
	Strict bool
}

// Transition validates current -> requested and returns the canonical next status and
// whether the booking's seats must go back to the flight. Only entering Cancelled
// releases seats, and a cancelled booking is terminal.
func (l Lifecycle) Transition(current, requested string) (string, bool, error) {
	next := NormalizeStatus(requested)
	if next == "" {
		return "", false, fmt.Errorf("status is required: %w", ErrInvalidRequest)
	}
	if l.Strict && next != BookingStatusConfirmed && next != BookingStatusCancelled {
		return "", false, fmt.Errorf("unknown booking status %q: %w", requested, ErrInvalidRequest)
	}

	if NormalizeStatus(current) == BookingStatusCancelled {
		if next == BookingStatusCancelled {
			return "", false, fmt.Errorf("booking already cancelled: %w", ErrInvalidRequest)
		}
		return "", false, fmt.Errorf("cancelled booking cannot move to %q: %w", next, ErrInvalidRequest)
	}

	return next, next == BookingStatusCancelled, nil
}
