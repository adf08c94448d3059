package models

// Unit is a rental cabin. Units are loaded from configs/units.yaml at
// startup and cached by the storage layer; bookings reference them by ID
// but never own them.
type Unit struct {
	ID               int64  `yaml:"id" json:"id"`
	Slug             string `yaml:"slug" json:"slug"`
	Name             string `yaml:"name" json:"name"`
	CapacityMin      int    `yaml:"capacity_min" json:"capacity_min"`
	CapacityMax      int    `yaml:"capacity_max" json:"capacity_max"`
	IncludedGuests   int    `yaml:"included_guests" json:"included_guests"`
	BasePrice        int64  `yaml:"base_price" json:"base_price"`
	ExtraGuestPrice  int64  `yaml:"extra_guest_price" json:"extra_guest_price"`
	JacuzziDayPrice  int64  `yaml:"jacuzzi_day_price" json:"jacuzzi_day_price"`
	TowelFee         int64  `yaml:"towel_fee" json:"towel_fee"`
	IsActive         bool   `yaml:"is_active" json:"is_active"`
	SortOrder        int64  `yaml:"sort_order" json:"sort_order"`
}

// BaseGuests resolves the number of guests covered by the base price.
// Historical unit configs sometimes carry included_guests >= capacity_max
// (or zero), in which case the base price covers the full capacity.
func (u Unit) BaseGuests() int {
	if u.IncludedGuests <= 0 || u.IncludedGuests >= u.CapacityMax {
		return u.CapacityMax
	}
	return u.IncludedGuests
}
