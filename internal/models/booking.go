package models

import "time"

// Booking is the central entity: a hold on a date range that may become a
// paid stay. The UUID doubles as the correlation key with the payment
// gateway. Rows are never deleted; terminal statuses are monotonic.
type Booking struct {
	ID          string    `json:"id"`
	UnitID      int64     `json:"unit_id"`
	UnitName    string    `json:"unit_name"`
	StartDate   time.Time `json:"start_date"`         // check-in day
	EndDate     time.Time `json:"end_date"`           // check-out day, exclusive
	PartySize   int       `json:"party_size"`
	JacuzziDays []string  `json:"jacuzzi_days,omitempty"` // YYYY-MM-DD within [start, end)
	Towels      int       `json:"towels"`

	Status string `json:"status"` // pending, paid, expired, canceled

	Price PriceBreakdown `json:"price"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`

	ExpiresAt  *time.Time `json:"expires_at,omitempty"` // set only while pending
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`

	FlowOrderID   string `json:"flow_order_id,omitempty"`
	PaymentToken  string `json:"-"` // gateway token for status polling, never exposed
	GatewayStatus string `json:"gateway_status,omitempty"` // last raw payload, audit only

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceBreakdown is the full monetary decomposition of a booking.
// Everything is integer CLP; there are no fractional amounts.
type PriceBreakdown struct {
	Nights      int   `json:"nights"`
	Base        int64 `json:"base"`
	ExtraGuests int64 `json:"extra_guests"`
	Jacuzzi     int64 `json:"jacuzzi"`
	Towels      int64 `json:"towels"`
	Total       int64 `json:"total"`
}

// Nights returns the stay length in calendar days.
func (b *Booking) Nights() int {
	return int(b.EndDate.Sub(b.StartDate).Hours() / 24)
}

// IsActiveHold reports whether a pending booking still owns its dates at
// the given instant. Callers must pass one "now" per request and never
// trust the status column alone: a lapsed hold is expired for every
// reader even before the sweeper has flipped the row.
func (b *Booking) IsActiveHold(now time.Time) bool {
	if b.Status != StatusPending {
		return false
	}
	return b.ExpiresAt != nil && b.ExpiresAt.After(now)
}

// BlocksCalendar reports whether the booking excludes other customers
// from its dates at the given instant.
func (b *Booking) BlocksCalendar(now time.Time) bool {
	if b.Status == StatusPaid {
		return true
	}
	return b.IsActiveHold(now)
}

// CoversDay reports whether day falls inside the half-open stay range.
func (b *Booking) CoversDay(day time.Time) bool {
	return !day.Before(b.StartDate) && day.Before(b.EndDate)
}

// AdminBlock is a manual blackout range placed by managers. It never
// expires and wins over any booking when classifying days.
type AdminBlock struct {
	ID        int64     `json:"id"`
	UnitID    int64     `json:"unit_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"` // exclusive
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Checkpoint marks a check-in or check-out touching a calendar month.
type Checkpoint struct {
	Date   time.Time `json:"date"`
	Hour   int       `json:"hour"`
	Kind   string    `json:"kind"` // check_in, check_out
	Status string    `json:"status"`
}

// MonthAvailability is the calendar view for one unit and month.
type MonthAvailability struct {
	UnitID      int64             `json:"unit_id"`
	Year        int               `json:"year"`
	Month       time.Month        `json:"month"`
	Days        map[string]string `json:"days"` // YYYY-MM-DD -> day status
	CheckIns    []Checkpoint      `json:"check_ins"`
	CheckOuts   []Checkpoint      `json:"check_outs"`
	GeneratedAt time.Time         `json:"generated_at"`
}
