package service

import (
	"fmt"
	"time"

	"cabanas/internal/models"
)

// CalculatePrice computes the full breakdown for a stay. Pure function:
// no I/O, no clock, integer CLP throughout.
//
// nights × base price, plus extra guests beyond the unit's included
// count × extra-guest rate × nights, plus jacuzzi days × day rate, plus
// towels × flat fee.
func CalculatePrice(unit models.Unit, start, end time.Time, partySize int, jacuzziDays []string, towels int) (models.PriceBreakdown, error) {
	nights := int(end.Sub(start).Hours() / 24)
	if nights < 1 {
		return models.PriceBreakdown{}, fmt.Errorf("stay must be at least one night: %w", ErrInvalidData)
	}

	breakdown := models.PriceBreakdown{
		Nights: nights,
		Base:   unit.BasePrice * int64(nights),
	}

	if extra := partySize - unit.BaseGuests(); extra > 0 {
		breakdown.ExtraGuests = int64(extra) * unit.ExtraGuestPrice * int64(nights)
	}

	breakdown.Jacuzzi = int64(len(jacuzziDays)) * unit.JacuzziDayPrice
	breakdown.Towels = int64(towels) * unit.TowelFee

	breakdown.Total = breakdown.Base + breakdown.ExtraGuests + breakdown.Jacuzzi + breakdown.Towels
	return breakdown, nil
}
