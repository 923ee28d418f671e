package capacity

import (
	"sort"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

// forever stands in for an open-ended range bound.
var forever = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

type edge struct {
	at    time.Time
	delta int
}

func upper(r domain.DateRange) time.Time {
	if r.End == nil {
		return forever
	}
	return *r.End
}

// PeakUnits returns the largest sum of reserved units live at any instant of
// window, counting only active reservations that overlap it.
func PeakUnits(reservations []domain.Reservation, window domain.DateRange) int {
	lo, hi := window.Start, upper(window)
	edges := make([]edge, 0, 2*len(reservations))
	for _, r := range reservations {
		if r.Status != domain.ReservationActive || !r.Period.Overlaps(window) {
			continue
		}
		start, end := r.Period.Start, upper(r.Period)
		if start.Before(lo) {
			start = lo
		}
		if end.After(hi) {
			end = hi
		}
		edges = append(edges, edge{at: start, delta: r.ReservedUnits}, edge{at: end, delta: -r.ReservedUnits})
	}

	// Half-open ranges: a release on day D happens before a claim on day D.
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	peak, running := 0, 0
	for _, e := range edges {
		running += e.delta
		if running > peak {
			peak = running
		}
	}
	return peak
}

func overlapping(reservations []domain.Reservation, window domain.DateRange, skipID string) []domain.Reservation {
	var out []domain.Reservation
	for _, r := range reservations {
		if r.ID == skipID || r.Status != domain.ReservationActive {
			continue
		}
		if r.Period.Overlaps(window) {
			out = append(out, r)
		}
	}
	return out
}

func ids(reservations []domain.Reservation) []string {
	out := make([]string, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, r.ID)
	}
	return out
}
