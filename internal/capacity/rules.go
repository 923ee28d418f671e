// Package capacity holds the rack capacity invariants. The same rules gate a
// reservation before it is written and re-validate the stored state on commit.
package capacity

import (
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

// CheckReservation validates candidate against the other reservations held on
// its rack. existing may include candidate itself (matched by ID) and
// reservations in any status; only active ones count.
func CheckReservation(rack domain.Rack, existing []domain.Reservation, candidate domain.Reservation) error {
	if candidate.RackID != rack.ID {
		return domain.Errorf(domain.ErrInvalidRack, "reservation %s targets rack %s, not %s", candidate.ID, candidate.RackID, rack.ID)
	}
	if candidate.ReservedUnits < 0 {
		return domain.Errorf(domain.ErrInvalidInput, "reserved units must not be negative, got %d", candidate.ReservedUnits)
	}
	if candidate.Period.End != nil && candidate.Period.End.Before(candidate.Period.Start) {
		return domain.Errorf(domain.ErrInvalidInput, "reservation %s ends before it starts", candidate.ID)
	}
	if candidate.Status != domain.ReservationActive {
		return nil
	}

	for _, r := range existing {
		if r.ID != candidate.ID && r.Status == domain.ReservationActive && r.RequestID == candidate.RequestID {
			return &domain.Error{
				Kind:      domain.ErrInvalidState,
				Msg:       "request " + candidate.RequestID + " already holds an active reservation on rack " + rack.ID,
				Racks:     []string{rack.ID},
				Conflicts: []string{r.ID},
			}
		}
	}

	switch rack.Mode {
	case domain.ModeExclusive:
		return checkExclusive(rack, existing, candidate)
	case domain.ModeAdditive:
		return checkAdditive(rack, existing, candidate)
	default:
		return domain.Errorf(domain.ErrDataIntegrity, "rack %s has unknown allocation mode %q", rack.ID, rack.Mode)
	}
}

func checkExclusive(rack domain.Rack, existing []domain.Reservation, candidate domain.Reservation) error {
	clashes := overlapping(existing, candidate.Period, candidate.ID)
	if len(clashes) == 0 {
		return nil
	}
	return &domain.Error{
		Kind:      domain.ErrOverlapConflict,
		Msg:       "rack " + rack.ID + " is already reserved during " + clashes[0].Period.String(),
		Racks:     []string{rack.ID},
		Conflicts: ids(clashes),
	}
}

func checkAdditive(rack domain.Rack, existing []domain.Reservation, candidate domain.Reservation) error {
	others := overlapping(existing, candidate.Period, candidate.ID)
	peak := PeakUnits(others, candidate.Period)
	if peak+candidate.ReservedUnits <= rack.CapacityUnits {
		return nil
	}
	free := rack.CapacityUnits - peak
	if free < 0 {
		free = 0
	}
	return &domain.Error{
		Kind:      domain.ErrCapacityExceeded,
		Msg:       formatShortfall(rack.ID, free, candidate.ReservedUnits),
		Shortfall: candidate.ReservedUnits - free,
		Racks:     []string{rack.ID},
		Conflicts: ids(others),
	}
}

// Validate re-checks the whole reservation set and live occupancy of one rack.
// Stores run it on every commit that touched the rack.
func Validate(rack domain.Rack, reservations []domain.Reservation) error {
	if rack.OccupiedUnits < 0 || rack.OccupiedLength.IsNegative() {
		return domain.Errorf(domain.ErrDataIntegrity, "rack %s has negative occupancy (%d units, %s length)",
			rack.ID, rack.OccupiedUnits, rack.OccupiedLength)
	}
	if !rack.FitsOccupancy(rack.OccupiedUnits, rack.OccupiedLength) {
		return &domain.Error{
			Kind:  domain.ErrCapacityExceeded,
			Msg:   "rack " + rack.ID + " occupancy exceeds its capacity",
			Racks: []string{rack.ID},
		}
	}

	var active []domain.Reservation
	for _, r := range reservations {
		if r.RackID == rack.ID && r.Status == domain.ReservationActive {
			active = append(active, r)
		}
	}
	for i, r := range active {
		if err := CheckReservation(rack, active[:i], r); err != nil {
			return err
		}
	}
	return nil
}

// Available returns how many units rack can still take for the whole window.
// On today, usage is the larger of the reserved units and the live occupancy,
// so stock without a reservation behind it still counts.
func Available(rack domain.Rack, reservations []domain.Reservation, window domain.DateRange, today time.Time) int {
	live := window.ActiveOn(today)

	if rack.Mode == domain.ModeExclusive {
		if len(overlapping(reservations, window, "")) > 0 {
			return 0
		}
		if live && rack.OccupiedUnits > 0 {
			return 0
		}
		return rack.CapacityUnits
	}

	used := PeakUnits(reservations, window)
	if live && rack.OccupiedUnits > used {
		used = rack.OccupiedUnits
	}
	if free := rack.CapacityUnits - used; free > 0 {
		return free
	}
	return 0
}
