package service

import (
	"context"
	"sort"
	"time"

	"cabanas/internal/clock"
	"cabanas/internal/domain"
	"cabanas/internal/metrics"
	"cabanas/internal/models"

	"github.com/rs/zerolog"
)

const defaultCacheTTL = 30 * time.Second

// AvailabilityService derives the per-day calendar state for a unit and
// month. Every read sweeps stale holds first so a lapsed hold is durably
// expired and cannot reappear on another path.
type AvailabilityService struct {
	store        domain.Store
	cache        domain.AvailabilityCache
	clk          clock.Clock
	checkInHour  int
	checkOutHour int
	logger       zerolog.Logger
}

func NewAvailabilityService(store domain.Store, cache domain.AvailabilityCache, clk clock.Clock, checkInHour, checkOutHour int, logger *zerolog.Logger) *AvailabilityService {
	if checkInHour == 0 {
		checkInHour = models.DefaultCheckInHour
	}
	if checkOutHour == 0 {
		checkOutHour = models.DefaultCheckOutHour
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "availability").Logger()
	}
	return &AvailabilityService{
		store:        store,
		cache:        cache,
		clk:          clk,
		checkInHour:  checkInHour,
		checkOutHour: checkOutHour,
		logger:       log,
	}
}

// MonthAvailability classifies every day of the month as blocked,
// booked, held or available, in that priority order. "Now" is computed
// once per request; a pending booking whose hold has lapsed never marks
// its days as held regardless of what the status column still says.
func (s *AvailabilityService) MonthAvailability(ctx context.Context, unitID int64, year int, month time.Month) (*models.MonthAvailability, error) {
	if _, err := s.store.GetUnitByID(unitID); err != nil {
		return nil, err
	}

	now := s.clk.Now()

	// Durably expire lapsed holds before classifying. A failure here is
	// logged but not fatal: classification below is correct either way
	// because it compares expires_at against now itself.
	expired, err := s.store.ExpireStaleHolds(ctx, unitID, now)
	if err != nil {
		s.logger.Error().Err(err).Int64("unit_id", unitID).Msg("expire stale holds failed")
	}
	metrics.AddHoldsExpired(expired)

	if s.cache != nil {
		if view, err := s.cache.GetMonth(ctx, unitID, year, month); err == nil && view != nil {
			return view, nil
		}
	}

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	bookings, err := s.store.BookingsIntersecting(ctx, unitID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}
	blocks, err := s.store.BlocksIntersecting(ctx, unitID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}

	view := &models.MonthAvailability{
		UnitID:      unitID,
		Year:        year,
		Month:       month,
		Days:        make(map[string]string),
		GeneratedAt: now,
	}

	for day := monthStart; day.Before(monthEnd); day = day.AddDate(0, 0, 1) {
		view.Days[day.Format(models.DateLayout)] = s.classifyDay(day, bookings, blocks, now)
	}

	s.appendCheckpoints(view, bookings, monthStart, monthEnd, now)

	if s.cache != nil {
		if err := s.cache.SetMonth(ctx, view, s.cacheTTL(bookings, now)); err != nil {
			s.logger.Debug().Err(err).Int64("unit_id", unitID).Msg("availability cache set failed")
		}
	}

	return view, nil
}

func (s *AvailabilityService) classifyDay(day time.Time, bookings []*models.Booking, blocks []*models.AdminBlock, now time.Time) string {
	for _, block := range blocks {
		if !day.Before(block.StartDate) && day.Before(block.EndDate) {
			return models.DayBlocked
		}
	}

	held := false
	for _, b := range bookings {
		if !b.CoversDay(day) {
			continue
		}
		if b.Status == models.StatusPaid {
			return models.DayBooked
		}
		if b.IsActiveHold(now) {
			held = true
		}
	}
	if held {
		return models.DayHeld
	}
	return models.DayAvailable
}

func (s *AvailabilityService) appendCheckpoints(view *models.MonthAvailability, bookings []*models.Booking, monthStart, monthEnd, now time.Time) {
	for _, b := range bookings {
		if !b.BlocksCalendar(now) {
			continue
		}
		if !b.StartDate.Before(monthStart) && b.StartDate.Before(monthEnd) {
			view.CheckIns = append(view.CheckIns, models.Checkpoint{
				Date:   b.StartDate,
				Hour:   s.checkInHour,
				Kind:   "check_in",
				Status: b.Status,
			})
		}
		if !b.EndDate.Before(monthStart) && b.EndDate.Before(monthEnd) {
			view.CheckOuts = append(view.CheckOuts, models.Checkpoint{
				Date:   b.EndDate,
				Hour:   s.checkOutHour,
				Kind:   "check_out",
				Status: b.Status,
			})
		}
	}

	sort.Slice(view.CheckIns, func(i, j int) bool {
		return view.CheckIns[i].Date.Before(view.CheckIns[j].Date)
	})
	sort.Slice(view.CheckOuts, func(i, j int) bool {
		return view.CheckOuts[i].Date.Before(view.CheckOuts[j].Date)
	})
}

// cacheTTL clamps the cache lifetime so a cached view never outlives the
// earliest active hold it includes. Otherwise a hold could lapse while
// its days are still served as held.
func (s *AvailabilityService) cacheTTL(bookings []*models.Booking, now time.Time) time.Duration {
	ttl := defaultCacheTTL
	for _, b := range bookings {
		if !b.IsActiveHold(now) {
			continue
		}
		if remaining := b.ExpiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}
