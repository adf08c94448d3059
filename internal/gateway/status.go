package gateway

import "fmt"

// Status is the typed gateway payment state. Raw provider payloads never
// cross the package boundary except as opaque audit strings; everything
// else goes through ParseStatus.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusPaid
	StatusRejected
	StatusCanceled
)

// Flow-style numeric status codes.
const (
	codePending  = 1
	codePaid     = 2
	codeRejected = 3
	codeCanceled = 4
)

// ParseStatus validates a provider status code at the boundary.
func ParseStatus(code int) (Status, error) {
	switch code {
	case codePending:
		return StatusPending, nil
	case codePaid:
		return StatusPaid, nil
	case codeRejected:
		return StatusRejected, nil
	case codeCanceled:
		return StatusCanceled, nil
	default:
		return StatusUnknown, fmt.Errorf("unknown gateway status code %d", code)
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPaid:
		return "paid"
	case StatusRejected:
		return "rejected"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}
