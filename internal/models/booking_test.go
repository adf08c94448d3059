package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustDate(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBookingIsActiveHold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(10 * time.Minute)
	earlier := now.Add(-10 * time.Minute)

	cases := []struct {
		name      string
		status    string
		expiresAt *time.Time
		want      bool
	}{
		{"pending and live", StatusPending, &later, true},
		{"pending but lapsed", StatusPending, &earlier, false},
		{"pending expires exactly now", StatusPending, &now, false},
		{"pending without expiry", StatusPending, nil, false},
		{"paid", StatusPaid, &later, false},
		{"expired", StatusExpired, &later, false},
		{"canceled", StatusCanceled, &later, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := Booking{Status: tc.status, ExpiresAt: tc.expiresAt}
			assert.Equal(t, tc.want, b.IsActiveHold(now))
		})
	}
}

func TestBookingBlocksCalendar(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(10 * time.Minute)
	earlier := now.Add(-10 * time.Minute)

	assert.True(t, (&Booking{Status: StatusPaid}).BlocksCalendar(now))
	assert.True(t, (&Booking{Status: StatusPending, ExpiresAt: &later}).BlocksCalendar(now))
	assert.False(t, (&Booking{Status: StatusPending, ExpiresAt: &earlier}).BlocksCalendar(now))
	assert.False(t, (&Booking{Status: StatusCanceled}).BlocksCalendar(now))
}

func TestBookingCoversDay(t *testing.T) {
	b := Booking{StartDate: mustDate("2026-03-10"), EndDate: mustDate("2026-03-12")}

	assert.True(t, b.CoversDay(mustDate("2026-03-10")))
	assert.True(t, b.CoversDay(mustDate("2026-03-11")))
	assert.False(t, b.CoversDay(mustDate("2026-03-12")), "checkout day is outside the stay")
	assert.False(t, b.CoversDay(mustDate("2026-03-09")))
}

func TestBookingNights(t *testing.T) {
	b := Booking{StartDate: mustDate("2026-03-10"), EndDate: mustDate("2026-03-13")}
	assert.Equal(t, 3, b.Nights())
}

func TestUnitBaseGuests(t *testing.T) {
	cases := []struct {
		name     string
		included int
		capMax   int
		want     int
	}{
		{"normal", 2, 8, 2},
		{"zero falls back to capacity", 0, 8, 8},
		{"equal to capacity", 8, 8, 8},
		{"over capacity", 10, 8, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := Unit{IncludedGuests: tc.included, CapacityMax: tc.capMax}
			assert.Equal(t, tc.want, u.BaseGuests())
		})
	}
}
