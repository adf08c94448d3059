package service

import (
	"context"
	"testing"
	"time"

	"cabanas/internal/clock"
	"cabanas/internal/database"
	"cabanas/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHold(t *testing.T, db *database.DB, start, end string, expiresAt, now time.Time) *models.Booking {
	t.Helper()
	b := &models.Booking{
		ID:            uuid.NewString(),
		UnitID:        1,
		UnitName:      rustica.Name,
		StartDate:     day(start),
		EndDate:       day(end),
		PartySize:     2,
		Status:        models.StatusPending,
		Price:         models.PriceBreakdown{Nights: 2, Base: 110000, Total: 110000},
		CustomerName:  "Ana Pérez",
		CustomerEmail: "ana@example.com",
		ExpiresAt:     &expiresAt,
	}
	require.NoError(t, db.CreateHold(context.Background(), b, now))
	return b
}

func TestMonthAvailability(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	db := newTestStore(t)
	logger := zerolog.Nop()
	svc := NewAvailabilityService(db, nil, clk, 16, 12, &logger)
	ctx := context.Background()

	// Paid stay 10-12, active hold 15-17, admin block 20-22.
	paid := seedHold(t, db, "2026-03-10", "2026-03-12", now.Add(45*time.Minute), now)
	require.NoError(t, db.MarkPaid(ctx, paid.ID, now, "{}"))
	seedHold(t, db, "2026-03-15", "2026-03-17", now.Add(45*time.Minute), now)
	require.NoError(t, db.CreateBlock(ctx, &models.AdminBlock{
		UnitID:    1,
		StartDate: day("2026-03-20"),
		EndDate:   day("2026-03-22"),
		Reason:    "mantencion",
	}))

	view, err := svc.MonthAvailability(ctx, 1, 2026, time.March)
	require.NoError(t, err)
	require.NotNil(t, view)

	assert.Equal(t, models.DayBooked, view.Days["2026-03-10"])
	assert.Equal(t, models.DayBooked, view.Days["2026-03-11"])
	assert.Equal(t, models.DayAvailable, view.Days["2026-03-12"], "checkout day is free")
	assert.Equal(t, models.DayHeld, view.Days["2026-03-15"])
	assert.Equal(t, models.DayHeld, view.Days["2026-03-16"])
	assert.Equal(t, models.DayBlocked, view.Days["2026-03-20"])
	assert.Equal(t, models.DayBlocked, view.Days["2026-03-21"])
	assert.Equal(t, models.DayAvailable, view.Days["2026-03-22"])
	assert.Equal(t, models.DayAvailable, view.Days["2026-03-05"])

	// Check-in and check-out checkpoints carry the configured hours.
	require.NotEmpty(t, view.CheckIns)
	assert.Equal(t, 16, view.CheckIns[0].Hour)
	require.NotEmpty(t, view.CheckOuts)
	assert.Equal(t, 12, view.CheckOuts[0].Hour)

	t.Run("UnknownUnit", func(t *testing.T) {
		_, err := svc.MonthAvailability(ctx, 42, 2026, time.March)
		assert.Error(t, err)
	})
}

func TestMonthAvailabilityLazyExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	db := newTestStore(t)
	logger := zerolog.Nop()
	svc := NewAvailabilityService(db, nil, clk, 16, 12, &logger)
	ctx := context.Background()

	hold := seedHold(t, db, "2026-03-15", "2026-03-17", now.Add(45*time.Minute), now)

	view, err := svc.MonthAvailability(ctx, 1, 2026, time.March)
	require.NoError(t, err)
	assert.Equal(t, models.DayHeld, view.Days["2026-03-15"])

	// No sweeper runs. The next read past the TTL both shows the days
	// free and durably flips the row.
	clk.Advance(46 * time.Minute)

	view, err = svc.MonthAvailability(ctx, 1, 2026, time.March)
	require.NoError(t, err)
	assert.Equal(t, models.DayAvailable, view.Days["2026-03-15"])
	assert.Equal(t, models.DayAvailable, view.Days["2026-03-16"])

	stored, err := db.GetBooking(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
}

func TestMonthAvailabilityCacheTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	db := newTestStore(t)
	cache := newRecordingCache()
	logger := zerolog.Nop()
	svc := NewAvailabilityService(db, cache, clk, 16, 12, &logger)
	ctx := context.Background()

	t.Run("DefaultTTLWithoutHolds", func(t *testing.T) {
		_, err := svc.MonthAvailability(ctx, 1, 2026, time.February)
		require.NoError(t, err)
		assert.Equal(t, defaultCacheTTL, cache.lastTTL)
	})

	t.Run("ClampedToEarliestHoldExpiry", func(t *testing.T) {
		seedHold(t, db, "2026-03-15", "2026-03-17", now.Add(10*time.Second), now)

		_, err := svc.MonthAvailability(ctx, 1, 2026, time.March)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, cache.lastTTL,
			"cached view must not outlive the hold it marks as held")
	})

	t.Run("SecondReadServedFromCache", func(t *testing.T) {
		first, err := svc.MonthAvailability(ctx, 1, 2026, time.March)
		require.NoError(t, err)
		second, err := svc.MonthAvailability(ctx, 1, 2026, time.March)
		require.NoError(t, err)
		assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
	})
}
