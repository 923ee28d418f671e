package memory

import (
	"context"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
)

func reservationKey(id string) key { return key{kindReservation, id} }

func (s *Store) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	var res domain.Reservation
	err := s.run(ctx, func(t *tx) error {
		r, ok := t.state.reservations[id]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "reservation %s not found", id)
		}
		t.lock(reservationKey(id))
		res = r
		return nil
	})
	return res, err
}

func (s *Store) ListReservationsByRack(ctx context.Context, rackID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := s.read(ctx, func(st *state) error {
		out = st.reservationsOf(rackID)
		return nil
	})
	return out, err
}

func (s *Store) ListReservationsByRequest(ctx context.Context, requestID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := s.read(ctx, func(st *state) error {
		for _, r := range st.reservations {
			if r.RequestID == requestID {
				out = append(out, r)
			}
		}
		return nil
	})
	sortReservations(out)
	return out, err
}

func (s *Store) ListDueReservations(ctx context.Context, day time.Time) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := s.read(ctx, func(st *state) error {
		for _, r := range st.reservations {
			if r.Status == domain.ReservationActive && !r.OccupancyApplied && r.Period.ActiveOn(day) {
				out = append(out, r)
			}
		}
		return nil
	})
	sortReservations(out)
	return out, err
}

// CreateReservation also claims the rack, so two transactions booking the
// same rack cannot both commit.
func (s *Store) CreateReservation(ctx context.Context, r domain.Reservation) error {
	return s.run(ctx, func(t *tx) error {
		if _, ok := t.state.racks[r.RackID]; !ok {
			return rackNotFound(r.RackID)
		}
		if _, ok := t.state.reservations[r.ID]; ok {
			return domain.Errorf(domain.ErrInvalidState, "reservation %s already exists", r.ID)
		}
		t.write(rackKey(r.RackID))
		t.write(reservationKey(r.ID))
		t.state.reservations[r.ID] = r
		return nil
	})
}

func (s *Store) UpdateReservation(ctx context.Context, r domain.Reservation) error {
	return s.run(ctx, func(t *tx) error {
		cur, ok := t.state.reservations[r.ID]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "reservation %s not found", r.ID)
		}
		if cur.Final() {
			return domain.Errorf(domain.ErrInvalidState, "reservation %s is %s and can no longer change", r.ID, cur.Status)
		}
		t.write(rackKey(r.RackID))
		t.write(reservationKey(r.ID))
		t.state.reservations[r.ID] = r
		return nil
	})
}
