package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cabanas/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func date(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func newHold(unitID int64, start, end string, expiresAt time.Time) *models.Booking {
	return &models.Booking{
		ID:        uuid.NewString(),
		UnitID:    unitID,
		UnitName:  "Cabaña Rústica",
		StartDate: date(start),
		EndDate:   date(end),
		PartySize: 2,
		Status:    models.StatusPending,
		Price: models.PriceBreakdown{
			Nights: 2,
			Base:   110000,
			Total:  110000,
		},
		CustomerName:  "Ana Pérez",
		CustomerEmail: "ana@example.com",
		ExpiresAt:     &expiresAt,
	}
}

func TestCreateHold(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("OverlapRejected", func(t *testing.T) {
		expires := now.Add(45 * time.Minute)
		first := newHold(1, "2026-03-10", "2026-03-12", expires)
		require.NoError(t, db.CreateHold(ctx, first, now))

		cases := []struct {
			name       string
			start, end string
			wantErr    error
		}{
			{"identical range", "2026-03-10", "2026-03-12", ErrDatesUnavailable},
			{"straddles start", "2026-03-09", "2026-03-11", ErrDatesUnavailable},
			{"straddles end", "2026-03-11", "2026-03-13", ErrDatesUnavailable},
			{"contained", "2026-03-10", "2026-03-11", ErrDatesUnavailable},
			{"checkout day is free", "2026-03-12", "2026-03-14", nil},
			{"ends on checkin day", "2026-03-08", "2026-03-10", nil},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				hold := newHold(1, tc.start, tc.end, expires)
				err := db.CreateHold(ctx, hold, now)
				if tc.wantErr != nil {
					assert.ErrorIs(t, err, tc.wantErr)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("OtherUnitUnaffected", func(t *testing.T) {
		expires := now.Add(45 * time.Minute)
		hold := newHold(2, "2026-03-10", "2026-03-12", expires)
		assert.NoError(t, db.CreateHold(ctx, hold, now))
	})

	t.Run("LapsedHoldDoesNotBlock", func(t *testing.T) {
		lapsed := newHold(3, "2026-04-01", "2026-04-03", now.Add(-time.Minute))
		require.NoError(t, db.CreateHold(ctx, lapsed, now.Add(-time.Hour)))

		// Same dates, from a "now" past the first hold's expiry. No
		// sweeper has run; the conflict query itself must skip it.
		fresh := newHold(3, "2026-04-01", "2026-04-03", now.Add(45*time.Minute))
		assert.NoError(t, db.CreateHold(ctx, fresh, now))
	})

	t.Run("AdminBlockWins", func(t *testing.T) {
		require.NoError(t, db.CreateBlock(ctx, &models.AdminBlock{
			UnitID:    4,
			StartDate: date("2026-05-01"),
			EndDate:   date("2026-05-05"),
			Reason:    "mantencion",
		}))

		hold := newHold(4, "2026-05-04", "2026-05-06", now.Add(45*time.Minute))
		assert.ErrorIs(t, db.CreateHold(ctx, hold, now), ErrDatesUnavailable)
	})
}

// Ten goroutines race for the same dates on a shared database file.
// Exactly one hold may win.
func TestCreateHoldConcurrent(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "race.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(45 * time.Minute)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hold := newHold(1, "2026-03-20", "2026-03-22", expires)
			errs[i] = db.CreateHold(ctx, hold, now)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrDatesUnavailable)
		}
	}
	assert.Equal(t, 1, winners, "exactly one hold must win the dates")
}

func TestExpireStaleHolds(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := newHold(1, "2026-03-10", "2026-03-12", now.Add(-time.Minute))
	require.NoError(t, db.CreateHold(ctx, stale, now.Add(-time.Hour)))
	fresh := newHold(1, "2026-03-15", "2026-03-17", now.Add(30*time.Minute))
	require.NoError(t, db.CreateHold(ctx, fresh, now))

	n, err := db.ExpireStaleHolds(ctx, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := db.GetBooking(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)

	got, err = db.GetBooking(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	// Second run finds nothing.
	n, err = db.ExpireStaleHolds(ctx, 1, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkPaid(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	hold := newHold(1, "2026-03-10", "2026-03-12", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, hold, now))

	paidAt := now.Add(5 * time.Minute)
	require.NoError(t, db.MarkPaid(ctx, hold.ID, paidAt, `{"status":2}`))

	got, err := db.GetBooking(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	assert.Nil(t, got.ExpiresAt)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))

	t.Run("SecondDeliveryIsDuplicate", func(t *testing.T) {
		err := db.MarkPaid(ctx, hold.ID, paidAt.Add(time.Minute), `{"status":2}`)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)

		// paid_at keeps the first value.
		got, err := db.GetBooking(ctx, hold.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAt.Equal(paidAt))
	})

	t.Run("UnknownBooking", func(t *testing.T) {
		err := db.MarkPaid(ctx, uuid.NewString(), paidAt, "{}")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMarkCanceled(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	hold := newHold(1, "2026-03-10", "2026-03-12", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, hold, now))
	require.NoError(t, db.SetFlowOrder(ctx, hold.ID, "981337", "tok-abc", now))

	require.NoError(t, db.MarkCanceled(ctx, hold.ID, now.Add(time.Minute), `{"status":4}`))

	got, err := db.GetBooking(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, got.Status)
	assert.Empty(t, got.FlowOrderID, "order id cleared so a fresh attempt can be made")
	assert.NotNil(t, got.CanceledAt)

	err = db.MarkCanceled(ctx, hold.ID, now.Add(2*time.Minute), "{}")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	// A paid booking cannot be flipped by a late cancel.
	paid := newHold(1, "2026-03-20", "2026-03-22", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, paid, now))
	require.NoError(t, db.MarkPaid(ctx, paid.ID, now, "{}"))
	err = db.MarkCanceled(ctx, paid.ID, now, "{}")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestSetFlowOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	hold := newHold(1, "2026-03-10", "2026-03-12", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, hold, now))

	require.NoError(t, db.SetFlowOrder(ctx, hold.ID, "981337", "tok-abc", now))

	got, err := db.GetBooking(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, "981337", got.FlowOrderID)
	assert.Equal(t, "tok-abc", got.PaymentToken)

	// Terminal bookings reject a late order attach.
	require.NoError(t, db.MarkPaid(ctx, hold.ID, now, "{}"))
	err = db.SetFlowOrder(ctx, hold.ID, "981338", "tok-def", now)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestPendingWithOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Old pending with an order: picked up.
	old := newHold(1, "2026-03-10", "2026-03-12", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, old, now.Add(-10*time.Minute)))
	require.NoError(t, db.SetFlowOrder(ctx, old.ID, "1001", "tok-1", now.Add(-10*time.Minute)))

	// Recent pending with an order: inside the grace window, skipped.
	recent := newHold(1, "2026-03-15", "2026-03-17", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, recent, now))
	require.NoError(t, db.SetFlowOrder(ctx, recent.ID, "1002", "tok-2", now))

	// Pending without an order: payment never started, nothing to poll.
	noOrder := newHold(1, "2026-03-20", "2026-03-22", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, noOrder, now.Add(-10*time.Minute)))

	cutoff := now.Add(-5 * time.Minute)
	pending, err := db.PendingWithOrder(ctx, cutoff, 50)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, old.ID, pending[0].ID)
	assert.Equal(t, "tok-1", pending[0].PaymentToken)
}

func TestPendingWithOrderLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	then := now.Add(-time.Hour)

	for i := 0; i < 5; i++ {
		start := date("2026-03-01").AddDate(0, 0, i*3)
		hold := newHold(1, start.Format(models.DateLayout), start.AddDate(0, 0, 2).Format(models.DateLayout), now.Add(45*time.Minute))
		require.NoError(t, db.CreateHold(ctx, hold, then))
		require.NoError(t, db.SetFlowOrder(ctx, hold.ID, fmt.Sprintf("%d", 2000+i), fmt.Sprintf("tok-%d", i), then))
	}

	pending, err := db.PendingWithOrder(ctx, now, 3)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestBookingsIntersecting(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	inside := newHold(1, "2026-03-10", "2026-03-12", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, inside, now))
	outside := newHold(1, "2026-04-02", "2026-04-04", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, outside, now))

	canceled := newHold(1, "2026-03-15", "2026-03-17", now.Add(45*time.Minute))
	require.NoError(t, db.CreateHold(ctx, canceled, now))
	require.NoError(t, db.MarkCanceled(ctx, canceled.ID, now, "{}"))

	got, err := db.BookingsIntersecting(ctx, 1, date("2026-03-01"), date("2026-04-01"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inside.ID, got[0].ID)
}

func TestBookingRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	hold := newHold(1, "2026-03-10", "2026-03-13", now.Add(45*time.Minute))
	hold.JacuzziDays = []string{"2026-03-10", "2026-03-11"}
	hold.Towels = 4
	hold.CustomerPhone = "+56 9 1234 5678"
	require.NoError(t, db.CreateHold(ctx, hold, now))

	got, err := db.GetBooking(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, hold.StartDate, got.StartDate)
	assert.Equal(t, hold.EndDate, got.EndDate)
	assert.Equal(t, []string{"2026-03-10", "2026-03-11"}, got.JacuzziDays)
	assert.Equal(t, 4, got.Towels)
	assert.Equal(t, "+56 9 1234 5678", got.CustomerPhone)
	assert.Equal(t, hold.Price.Total, got.Price.Total)
}
