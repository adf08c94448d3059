package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"cabanas/internal/clock"
	"cabanas/internal/database"
	"cabanas/internal/domain"
	"cabanas/internal/events"
	"cabanas/internal/gateway"
	"cabanas/internal/metrics"
	"cabanas/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CreateHoldRequest is the validated-at-the-edge input for a new hold.
type CreateHoldRequest struct {
	UnitID      int64
	StartDate   time.Time
	EndDate     time.Time
	PartySize   int
	JacuzziDays []string
	Towels      int

	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// HoldService creates pending holds and starts payments for them.
type HoldService struct {
	store    domain.Store
	gw       domain.Gateway
	bus      domain.EventPublisher
	cache    domain.AvailabilityCache
	worker   domain.SyncWorker
	clk      clock.Clock
	holdTTL  time.Duration
	baseURL  string
	currency string
	logger   zerolog.Logger
}

func NewHoldService(store domain.Store, gw domain.Gateway, bus domain.EventPublisher, cache domain.AvailabilityCache, worker domain.SyncWorker, clk clock.Clock, holdTTL time.Duration, baseURL, currency string, logger *zerolog.Logger) *HoldService {
	if holdTTL <= 0 {
		holdTTL = models.HoldTTLMinutes * time.Minute
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "hold").Logger()
	}
	return &HoldService{
		store:    store,
		gw:       gw,
		bus:      bus,
		cache:    cache,
		worker:   worker,
		clk:      clk,
		holdTTL:  holdTTL,
		baseURL:  baseURL,
		currency: currency,
		logger:   log,
	}
}

// CreateHold validates the request, checks the calendar and inserts a
// pending hold with expires_at = now + TTL. The availability read here
// gives the customer a precise early answer; the storage-level
// transactional re-check is what actually arbitrates concurrent inserts,
// and its conflict surfaces as ErrDatesUnavailable, never a 500.
func (s *HoldService) CreateHold(ctx context.Context, req CreateHoldRequest) (*models.Booking, error) {
	unit, err := s.store.GetUnitByID(req.UnitID)
	if err != nil {
		return nil, err
	}
	if !unit.IsActive {
		return nil, fmt.Errorf("unit %s is not bookable: %w", unit.Slug, ErrInvalidData)
	}

	if err := s.validate(unit, req); err != nil {
		return nil, err
	}

	now := s.clk.Now()

	// Advisory pre-check so obvious conflicts fail fast with a clean 409.
	if err := s.checkCalendar(ctx, req, now); err != nil {
		return nil, err
	}

	price, err := CalculatePrice(unit, req.StartDate, req.EndDate, req.PartySize, req.JacuzziDays, req.Towels)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.holdTTL)
	booking := &models.Booking{
		ID:            uuid.NewString(),
		UnitID:        unit.ID,
		UnitName:      unit.Name,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		PartySize:     req.PartySize,
		JacuzziDays:   req.JacuzziDays,
		Towels:        req.Towels,
		Status:        models.StatusPending,
		Price:         price,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		ExpiresAt:     &expiresAt,
	}

	if err := s.store.CreateHold(ctx, booking, now); err != nil {
		if errors.Is(err, database.ErrDatesUnavailable) {
			metrics.IncHoldConflict()
		}
		return nil, err
	}

	metrics.IncHoldCreated()
	s.invalidate(ctx, unit.ID)
	s.publish(events.EventHoldCreated, booking, "api")
	if s.worker != nil {
		if err := s.worker.EnqueueUpsert(ctx, booking); err != nil {
			s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("sheets enqueue error")
		}
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Int64("unit_id", unit.ID).
		Str("start", req.StartDate.Format(models.DateLayout)).
		Str("end", req.EndDate.Format(models.DateLayout)).
		Int64("total", price.Total).
		Time("expires_at", expiresAt).
		Msg("hold created")

	return booking, nil
}

// StartPayment creates a gateway order for a pending hold and records
// the order id and polling token. Returns the URL the customer is
// redirected to.
func (s *HoldService) StartPayment(ctx context.Context, bookingID string) (string, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}

	now := s.clk.Now()
	if booking.Status != models.StatusPending {
		return "", fmt.Errorf("booking %s is %s: cannot start payment", booking.ID, booking.Status)
	}
	if !booking.IsActiveHold(now) {
		return "", fmt.Errorf("booking %s: %w", booking.ID, ErrHoldExpired)
	}

	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		CommerceOrder: booking.ID,
		Subject:       fmt.Sprintf("Reserva %s %s", booking.UnitName, booking.StartDate.Format(models.DateLayout)),
		Amount:        booking.Price.Total,
		Currency:      s.currency,
		PayerEmail:    booking.CustomerEmail,
		ConfirmURL:    s.baseURL + "/api/v1/payments/webhook",
		ReturnURL:     s.baseURL + "/api/v1/payments/return",
	})
	if err != nil {
		// Hold stays intact; the customer can retry.
		return "", err
	}

	if err := s.store.SetFlowOrder(ctx, booking.ID, order.FlowOrderID, order.Token, now); err != nil {
		return "", err
	}

	booking.FlowOrderID = order.FlowOrderID
	s.publish(events.EventPaymentStarted, booking, "api")

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("flow_order_id", order.FlowOrderID).
		Msg("payment started")

	return order.RedirectURL, nil
}

func (s *HoldService) validate(unit models.Unit, req CreateHoldRequest) error {
	nights := int(req.EndDate.Sub(req.StartDate).Hours() / 24)
	if nights < 1 {
		return fmt.Errorf("stay must be at least one night: %w", ErrInvalidData)
	}
	if req.PartySize < 1 || req.PartySize > unit.CapacityMax {
		return fmt.Errorf("party size must be between 1 and %d: %w", unit.CapacityMax, ErrInvalidData)
	}
	if req.Towels < 0 {
		return fmt.Errorf("towel count cannot be negative: %w", ErrInvalidData)
	}
	for _, rawDay := range req.JacuzziDays {
		day, err := time.Parse(models.DateLayout, rawDay)
		if err != nil {
			return fmt.Errorf("invalid jacuzzi day %q: %w", rawDay, ErrInvalidData)
		}
		if day.Before(req.StartDate) || !day.Before(req.EndDate) {
			return fmt.Errorf("jacuzzi day %s is outside the stay: %w", rawDay, ErrInvalidData)
		}
	}
	if req.CustomerName == "" {
		return fmt.Errorf("customer name is required: %w", ErrInvalidData)
	}
	if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
		return fmt.Errorf("invalid customer email: %w", ErrInvalidData)
	}
	return nil
}

func (s *HoldService) checkCalendar(ctx context.Context, req CreateHoldRequest, now time.Time) error {
	bookings, err := s.store.BookingsIntersecting(ctx, req.UnitID, req.StartDate, req.EndDate)
	if err != nil {
		return err
	}
	for _, b := range bookings {
		if b.BlocksCalendar(now) {
			metrics.IncHoldConflict()
			return fmt.Errorf("requested range overlaps booking %s: %w", b.ID, database.ErrDatesUnavailable)
		}
	}

	blocks, err := s.store.BlocksIntersecting(ctx, req.UnitID, req.StartDate, req.EndDate)
	if err != nil {
		return err
	}
	if len(blocks) > 0 {
		metrics.IncHoldConflict()
		return fmt.Errorf("requested range is blocked: %w", database.ErrDatesUnavailable)
	}
	return nil
}

func (s *HoldService) invalidate(ctx context.Context, unitID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUnit(ctx, unitID); err != nil {
		s.logger.Debug().Err(err).Int64("unit_id", unitID).Msg("availability cache invalidate failed")
	}
}

func (s *HoldService) publish(eventType string, booking *models.Booking, source string) {
	if s.bus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		UnitID:      booking.UnitID,
		UnitName:    booking.UnitName,
		Status:      booking.Status,
		StartDate:   booking.StartDate,
		EndDate:     booking.EndDate,
		PartySize:   booking.PartySize,
		Towels:      booking.Towels,
		Total:       booking.Price.Total,
		FlowOrderID: booking.FlowOrderID,
		Source:      source,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
