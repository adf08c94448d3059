package service

import (
	"context"
	"errors"
	"time"

	"cabanas/internal/clock"
	"cabanas/internal/database"
	"cabanas/internal/domain"
	"cabanas/internal/events"
	"cabanas/internal/gateway"
	"cabanas/internal/metrics"
	"cabanas/internal/models"

	"github.com/rs/zerolog"
)

// Outcome is the result of applying one gateway status to a booking.
type Outcome string

const (
	OutcomePaid      Outcome = "paid"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeRejected  Outcome = "rejected"
	OutcomePending   Outcome = "pending"
	OutcomeDuplicate Outcome = "duplicate"
)

// SweepSummary reports one reconcile sweep run.
type SweepSummary struct {
	Checked    int           `json:"checked"`
	Reconciled int           `json:"reconciled"`
	Errors     int           `json:"errors"`
	Expired    int64         `json:"expired_holds"`
	Duration   time.Duration `json:"duration"`
}

// Reconciler maps gateway statuses onto booking state. Webhook, browser
// return and the periodic sweep all funnel into ApplyStatus; the
// conditional pending-gated update in storage makes every path
// re-entrant and each side effect fire at most once.
type Reconciler struct {
	store    domain.Store
	gw       domain.Gateway
	mailer   domain.Mailer
	notifier domain.Notifier
	bus      domain.EventPublisher
	cache    domain.AvailabilityCache
	worker   domain.SyncWorker
	clk      clock.Clock
	grace    time.Duration
	batch    int
	logger   zerolog.Logger
}

func NewReconciler(store domain.Store, gw domain.Gateway, mailer domain.Mailer, notifier domain.Notifier, bus domain.EventPublisher, cache domain.AvailabilityCache, worker domain.SyncWorker, clk clock.Clock, grace time.Duration, batch int, logger *zerolog.Logger) *Reconciler {
	if grace <= 0 {
		grace = models.ReconcileGraceMinutes * time.Minute
	}
	if batch <= 0 {
		batch = models.ReconcileBatchSize
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "reconciler").Logger()
	}
	return &Reconciler{
		store:    store,
		gw:       gw,
		mailer:   mailer,
		notifier: notifier,
		bus:      bus,
		cache:    cache,
		worker:   worker,
		clk:      clk,
		grace:    grace,
		batch:    batch,
		logger:   log,
	}
}

// HandleWebhook processes a verified gateway push for a token. The
// caller has already checked the signature; this re-queries the gateway
// so the applied status is authoritative, not whatever the push claimed.
func (r *Reconciler) HandleWebhook(ctx context.Context, token string) (Outcome, error) {
	st, err := r.gw.GetStatus(ctx, token)
	if err != nil {
		return "", err
	}
	return r.ApplyStatus(ctx, st, "webhook")
}

// HandleReturn processes the customer's browser coming back from the
// payment page. Redirect parameters are never trusted as proof of
// payment; the gateway is re-queried and the same transition applied.
func (r *Reconciler) HandleReturn(ctx context.Context, token string) (string, Outcome, error) {
	st, err := r.gw.GetStatus(ctx, token)
	if err != nil {
		return "", "", err
	}
	outcome, err := r.ApplyStatus(ctx, st, "return")
	return st.CommerceOrder, outcome, err
}

// ApplyStatus is the single idempotent transition shared by all entry
// points. PAID and CANCELLED are conditional on the row still being
// pending; REJECTED only records the payload so the customer may retry
// while the hold lives.
func (r *Reconciler) ApplyStatus(ctx context.Context, st gateway.StatusResponse, source string) (Outcome, error) {
	now := r.clk.Now()
	bookingID := st.CommerceOrder

	switch st.Status {
	case gateway.StatusPaid:
		err := r.store.MarkPaid(ctx, bookingID, now, st.RawPayload)
		if errors.Is(err, database.ErrAlreadyProcessed) {
			r.logDuplicate(bookingID, source)
			return OutcomeDuplicate, nil
		}
		if err != nil {
			return "", err
		}
		r.afterPaid(ctx, bookingID, st, source)
		metrics.IncReconciled(string(OutcomePaid))
		return OutcomePaid, nil

	case gateway.StatusCanceled:
		err := r.store.MarkCanceled(ctx, bookingID, now, st.RawPayload)
		if errors.Is(err, database.ErrAlreadyProcessed) {
			r.logDuplicate(bookingID, source)
			return OutcomeDuplicate, nil
		}
		if err != nil {
			return "", err
		}
		r.afterCanceled(ctx, bookingID, source)
		metrics.IncReconciled(string(OutcomeCanceled))
		return OutcomeCanceled, nil

	case gateway.StatusRejected:
		// Not terminal for the hold: the customer may retry payment
		// until expires_at passes. Only the payload is recorded.
		if err := r.store.RecordGatewayStatus(ctx, bookingID, st.RawPayload, now); err != nil {
			return "", err
		}
		r.publishByID(ctx, events.EventPaymentRejected, bookingID, source)
		metrics.IncReconciled(string(OutcomeRejected))
		return OutcomeRejected, nil

	case gateway.StatusPending:
		if err := r.store.RecordGatewayStatus(ctx, bookingID, st.RawPayload, now); err != nil {
			return "", err
		}
		return OutcomePending, nil

	default:
		return "", &gateway.ErrGateway{Op: "apply-status", Err: errors.New("unmapped gateway status")}
	}
}

// RunSweep is the safety net for lost webhooks: bounded batch, one
// booking's failure never aborts the rest, safe to trigger from
// overlapping cron runs.
func (r *Reconciler) RunSweep(ctx context.Context) SweepSummary {
	started := r.clk.Now()
	summary := SweepSummary{}

	expired, err := r.store.ExpireAllStaleHolds(ctx, started)
	if err != nil {
		r.logger.Error().Err(err).Msg("sweep: expire stale holds failed")
		summary.Errors++
	}
	summary.Expired = expired
	metrics.AddHoldsExpired(expired)

	cutoff := started.Add(-r.grace)
	pending, err := r.store.PendingWithOrder(ctx, cutoff, r.batch)
	if err != nil {
		r.logger.Error().Err(err).Msg("sweep: list pending bookings failed")
		summary.Errors++
		summary.Duration = r.clk.Now().Sub(started)
		return summary
	}

	for _, booking := range pending {
		summary.Checked++
		if booking.PaymentToken == "" {
			continue
		}

		st, err := r.gw.GetStatus(ctx, booking.PaymentToken)
		if err != nil {
			r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("sweep: gateway status failed")
			summary.Errors++
			continue
		}

		outcome, err := r.ApplyStatus(ctx, st, "sweep")
		if err != nil {
			r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("sweep: apply status failed")
			summary.Errors++
			continue
		}
		if outcome == OutcomePaid || outcome == OutcomeCanceled {
			summary.Reconciled++
		}
	}

	summary.Duration = r.clk.Now().Sub(started)
	r.logger.Info().
		Int("checked", summary.Checked).
		Int("reconciled", summary.Reconciled).
		Int("errors", summary.Errors).
		Int64("expired_holds", summary.Expired).
		Dur("duration", summary.Duration).
		Msg("reconcile sweep finished")
	return summary
}

// afterPaid runs the side effects of a won pending→paid transition.
// Email and notifications are best effort and never undo the payment.
func (r *Reconciler) afterPaid(ctx context.Context, bookingID string, st gateway.StatusResponse, source string) {
	booking, err := r.store.GetBooking(ctx, bookingID)
	if err != nil {
		r.logger.Error().Err(err).Str("booking_id", bookingID).Msg("load booking after paid failed")
		return
	}

	if st.Amount > 0 && st.Amount != booking.Price.Total {
		r.logger.Warn().
			Str("booking_id", bookingID).
			Int64("expected", booking.Price.Total).
			Int64("charged", st.Amount).
			Msg("gateway amount differs from booking total")
	}

	r.publish(events.EventPaymentConfirmed, booking, source)
	r.invalidate(ctx, booking.UnitID)

	if r.worker != nil {
		if err := r.worker.EnqueueStatus(ctx, booking.ID, booking.Status); err != nil {
			r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("sheets enqueue error")
		}
	}

	if r.mailer != nil {
		if err := r.mailer.SendBookingConfirmation(ctx, booking); err != nil {
			metrics.IncEmail("failed")
			r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("confirmation email failed")
		} else {
			metrics.IncEmail("sent")
		}
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyBookingPaid(ctx, booking); err != nil {
			r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("manager notification failed")
		}
	}

	r.logger.Info().
		Str("booking_id", booking.ID).
		Str("source", source).
		Msg("booking paid")
}

func (r *Reconciler) afterCanceled(ctx context.Context, bookingID, source string) {
	booking, err := r.store.GetBooking(ctx, bookingID)
	if err != nil {
		r.logger.Error().Err(err).Str("booking_id", bookingID).Msg("load booking after cancel failed")
		return
	}

	r.publish(events.EventBookingCanceled, booking, source)
	r.invalidate(ctx, booking.UnitID)

	if r.worker != nil {
		if err := r.worker.EnqueueStatus(ctx, booking.ID, booking.Status); err != nil {
			r.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("sheets enqueue error")
		}
	}

	r.logger.Info().
		Str("booking_id", booking.ID).
		Str("source", source).
		Msg("booking canceled")
}

func (r *Reconciler) logDuplicate(bookingID, source string) {
	metrics.IncReconciled(string(OutcomeDuplicate))
	if r.bus != nil {
		_ = r.bus.PublishJSON(events.EventPaymentDuplicate, events.BookingEventPayload{
			BookingID: bookingID,
			Source:    source,
		})
	}
	r.logger.Info().
		Str("booking_id", bookingID).
		Str("source", source).
		Msg("payment already processed")
}

func (r *Reconciler) publishByID(ctx context.Context, eventType, bookingID, source string) {
	booking, err := r.store.GetBooking(ctx, bookingID)
	if err != nil {
		return
	}
	r.publish(eventType, booking, source)
}

func (r *Reconciler) publish(eventType string, booking *models.Booking, source string) {
	if r.bus == nil {
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
	if err := r.bus.PublishJSON(eventType, payload); err != nil {
		r.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (r *Reconciler) invalidate(ctx context.Context, unitID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateUnit(ctx, unitID); err != nil {
		r.logger.Debug().Err(err).Int64("unit_id", unitID).Msg("availability cache invalidate failed")
	}
}
