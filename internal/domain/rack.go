package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AllocationMode decides how a rack is shared between reservations.
type AllocationMode string

const (
	// ModeExclusive racks hold one occupant at a time.
	ModeExclusive AllocationMode = "exclusive"
	// ModeAdditive racks share unit capacity between many occupants.
	ModeAdditive AllocationMode = "additive"
)

func (m AllocationMode) Valid() bool {
	return m == ModeExclusive || m == ModeAdditive
}

// Rack is a named physical storage slot. OccupiedUnits and OccupiedLength
// cache the reservations and deliveries that are live today.
type Rack struct {
	ID             string
	Zone           string
	Area           string
	Slot           string
	Name           string
	Mode           AllocationMode
	CapacityUnits  int
	CapacityLength decimal.NullDecimal
	OccupiedUnits  int
	OccupiedLength decimal.Decimal
	Version        int64
	UpdatedAt      time.Time
}

// RackCode builds the composite zone/area/slot identity of a rack.
func RackCode(zone, area, slot string) string {
	return strings.ToUpper(fmt.Sprintf("%s-%s-%s", zone, area, slot))
}

// AvailableUnits is the live headroom of the rack.
func (r Rack) AvailableUnits() int {
	return r.CapacityUnits - r.OccupiedUnits
}

// FitsOccupancy reports whether the given occupancy respects the rack's
// capacity in both units and, when configured, length.
func (r Rack) FitsOccupancy(units int, length decimal.Decimal) bool {
	if units < 0 || units > r.CapacityUnits {
		return false
	}
	if length.IsNegative() {
		return false
	}
	if r.CapacityLength.Valid && length.GreaterThan(r.CapacityLength.Decimal) {
		return false
	}
	return true
}

// CheckOccupancy explains why the rack cannot hold the given occupancy, or
// returns nil when it can. A negative result is corruption, not a full rack.
func (r Rack) CheckOccupancy(units int, length decimal.Decimal) error {
	if units < 0 || length.IsNegative() {
		return &Error{
			Kind:  ErrDataIntegrity,
			Msg:   "rack " + r.ID + " occupancy would go negative",
			Racks: []string{r.ID},
		}
	}
	if units <= r.CapacityUnits && !r.FitsOccupancy(units, length) {
		free := r.CapacityLength.Decimal.Sub(r.OccupiedLength)
		return &Error{
			Kind:  ErrCapacityExceeded,
			Msg:   fmt.Sprintf("rack %s has %s length available, %s requested", r.ID, free, length.Sub(r.OccupiedLength)),
			Racks: []string{r.ID},
		}
	}
	if !r.FitsOccupancy(units, length) {
		return &Error{
			Kind:      ErrCapacityExceeded,
			Msg:       fmt.Sprintf("rack %s has %d units available, %d requested", r.ID, r.AvailableUnits(), units-r.OccupiedUnits),
			Shortfall: max(units-r.CapacityUnits, 0),
			Racks:     []string{r.ID},
		}
	}
	return nil
}

// RackFilter narrows ListRacks. Zero values match everything.
type RackFilter struct {
	Zone              string
	Mode              AllocationMode
	MinAvailableUnits int
}

func (f RackFilter) Match(r Rack) bool {
	if f.Zone != "" && !strings.EqualFold(f.Zone, r.Zone) {
		return false
	}
	if f.Mode != "" && f.Mode != r.Mode {
		return false
	}
	if f.MinAvailableUnits > 0 && r.AvailableUnits() < f.MinAvailableUnits {
		return false
	}
	return true
}
