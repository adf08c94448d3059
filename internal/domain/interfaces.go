package domain

import (
	"context"
	"time"

	"cabanas/internal/gateway"
	"cabanas/internal/models"
)

// Store is the calendar store contract. All cross-request coordination
// goes through it; there are no in-process locks between handlers.
type Store interface {
	GetUnits() []models.Unit
	GetUnitByID(id int64) (models.Unit, error)
	GetUnitBySlug(slug string) (models.Unit, error)

	CreateHold(ctx context.Context, booking *models.Booking, now time.Time) error
	ExpireStaleHolds(ctx context.Context, unitID int64, now time.Time) (int64, error)
	ExpireAllStaleHolds(ctx context.Context, now time.Time) (int64, error)

	MarkPaid(ctx context.Context, id string, paidAt time.Time, payload string) error
	MarkCanceled(ctx context.Context, id string, canceledAt time.Time, payload string) error
	RecordGatewayStatus(ctx context.Context, id string, payload string, now time.Time) error
	SetFlowOrder(ctx context.Context, id string, flowOrderID, paymentToken string, now time.Time) error

	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	BookingsIntersecting(ctx context.Context, unitID int64, from, to time.Time) ([]*models.Booking, error)
	PendingWithOrder(ctx context.Context, cutoff time.Time, limit int) ([]*models.Booking, error)
	ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error)

	CreateBlock(ctx context.Context, block *models.AdminBlock) error
	DeleteBlock(ctx context.Context, id int64) error
	BlocksIntersecting(ctx context.Context, unitID int64, from, to time.Time) ([]*models.AdminBlock, error)
}

// Gateway is the payment provider contract. Failure modes (lost
// webhooks, duplicate delivery, out-of-order status) drive the
// reconciler design; the client itself stays thin.
type Gateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (gateway.OrderResponse, error)
	GetStatus(ctx context.Context, token string) (gateway.StatusResponse, error)
	VerifySignature(params map[string]string, signature string) bool
}

// Mailer sends customer-facing mail. Best effort: a failed send never
// rolls back a payment transition.
type Mailer interface {
	SendBookingConfirmation(ctx context.Context, booking *models.Booking) error
}

// Notifier pushes short operational notes to the managers.
type Notifier interface {
	NotifyBookingPaid(ctx context.Context, booking *models.Booking) error
}

// EventPublisher is the audit trail.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SheetsWriter mirrors the bookings ledger into the back-office sheet.
type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID string, status string) error
}

// SyncWorker queues sheet updates so request handlers never block on the
// Sheets API.
type SyncWorker interface {
	EnqueueUpsert(ctx context.Context, booking *models.Booking) error
	EnqueueStatus(ctx context.Context, bookingID string, status string) error
}

// AvailabilityCache caches rendered month views. A cache miss or error
// always falls through to the store. The caller computes the TTL so an
// entry never outlives the earliest hold expiry it contains.
type AvailabilityCache interface {
	GetMonth(ctx context.Context, unitID int64, year int, month time.Month) (*models.MonthAvailability, error)
	SetMonth(ctx context.Context, view *models.MonthAvailability, ttl time.Duration) error
	InvalidateUnit(ctx context.Context, unitID int64) error
}
