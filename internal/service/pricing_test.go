package service

import (
	"testing"
	"time"

	"cabanas/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rustica = models.Unit{
	ID:              1,
	Slug:            "rustica",
	Name:            "Cabaña Rústica",
	CapacityMin:     2,
	CapacityMax:     8,
	IncludedGuests:  2,
	BasePrice:       55000,
	ExtraGuestPrice: 10000,
	JacuzziDayPrice: 25000,
	TowelFee:        3000,
	IsActive:        true,
}

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculatePrice(t *testing.T) {
	t.Run("BaseOnly", func(t *testing.T) {
		p, err := CalculatePrice(rustica, day("2026-03-10"), day("2026-03-12"), 2, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, p.Nights)
		assert.Equal(t, int64(110000), p.Base)
		assert.Zero(t, p.ExtraGuests)
		assert.Equal(t, int64(110000), p.Total)
	})

	t.Run("ExtraGuests", func(t *testing.T) {
		// 3 nights, 5 guests: 3 beyond the included 2.
		p, err := CalculatePrice(rustica, day("2026-03-10"), day("2026-03-13"), 5, nil, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(165000), p.Base)
		assert.Equal(t, int64(90000), p.ExtraGuests) // 3 × 10000 × 3 nights
		assert.Equal(t, int64(255000), p.Total)
	})

	t.Run("JacuzziAndTowels", func(t *testing.T) {
		p, err := CalculatePrice(rustica, day("2026-03-10"), day("2026-03-12"), 2,
			[]string{"2026-03-10", "2026-03-11"}, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), p.Jacuzzi)
		assert.Equal(t, int64(12000), p.Towels)
		assert.Equal(t, int64(172000), p.Total)
	})

	t.Run("IncludedGuestsFallback", func(t *testing.T) {
		// included_guests == capacity_max means the base price covers
		// everyone; a full house adds nothing.
		unit := rustica
		unit.IncludedGuests = unit.CapacityMax
		p, err := CalculatePrice(unit, day("2026-03-10"), day("2026-03-12"), 8, nil, 0)
		require.NoError(t, err)
		assert.Zero(t, p.ExtraGuests)

		unit.IncludedGuests = 0
		p, err = CalculatePrice(unit, day("2026-03-10"), day("2026-03-12"), 8, nil, 0)
		require.NoError(t, err)
		assert.Zero(t, p.ExtraGuests)
	})

	t.Run("ZeroNights", func(t *testing.T) {
		_, err := CalculatePrice(rustica, day("2026-03-10"), day("2026-03-10"), 2, nil, 0)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("NegativeRange", func(t *testing.T) {
		_, err := CalculatePrice(rustica, day("2026-03-12"), day("2026-03-10"), 2, nil, 0)
		assert.ErrorIs(t, err, ErrInvalidData)
	})
}
