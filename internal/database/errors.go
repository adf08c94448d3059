package database

import "errors"

var (
	// ErrNotFound is returned when a booking, unit or block does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDatesUnavailable is returned when the requested range overlaps a
	// paid booking, an active hold or an admin block. A transactional
	// re-check losing the race also surfaces as this error, never as a
	// generic failure.
	ErrDatesUnavailable = errors.New("dates unavailable")

	// ErrAlreadyProcessed is returned by conditional status transitions
	// whose WHERE clause matched zero rows: another writer already moved
	// the booking out of pending. Callers must suppress duplicate side
	// effects when they see it.
	ErrAlreadyProcessed = errors.New("booking already processed")
)
