package models

const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusExpired  = "expired"
	StatusCanceled = "canceled"
)

// Day classification returned by the availability calendar.
const (
	DayAvailable = "available"
	DayHeld      = "held"
	DayBooked    = "booked"
	DayBlocked   = "blocked"
)

const (
	// HoldTTLMinutes is how long a pending hold keeps its dates.
	HoldTTLMinutes = 45

	// ReconcileGraceMinutes is the minimum age of a payment order
	// before the sweep re-queries the gateway for it.
	ReconcileGraceMinutes = 5

	// ReconcileBatchSize bounds one sweep run.
	ReconcileBatchSize = 50

	// DefaultCheckInHour and DefaultCheckOutHour drive the
	// check-in/check-out checkpoints on the calendar.
	DefaultCheckInHour  = 16
	DefaultCheckOutHour = 12

	// WorkerQueueSize is the in-memory fallback queue size for the
	// sheets sync worker.
	WorkerQueueSize = 1000
)

// DateLayout is the canonical date format used in storage and the API.
const DateLayout = "2006-01-02"
