package service

import "errors"

var (
	// ErrInvalidData covers every client input validation failure.
	// Wrapped with a safe-to-display detail message.
	ErrInvalidData = errors.New("invalid data")

	// ErrHoldExpired is returned when payment is started on a hold whose
	// expires_at has already passed.
	ErrHoldExpired = errors.New("hold expired")
)
