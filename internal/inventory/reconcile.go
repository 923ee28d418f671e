// Package inventory turns delivered and collected loads into stored-item
// changes: it gates an inbound count against its manifest and plans the
// per-rack release of an outbound pickup.
package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
)

// ReceiptInput describes one inbound delivery to reconcile.
type ReceiptInput struct {
	Load        domain.Load
	RequestRef  string
	RackID      string
	ActualUnits int
	Manifest    []domain.ManifestLine
	ReceivedAt  time.Time
	NewID       func() string
}

// Receipt is the reconciled outcome of an inbound delivery.
type Receipt struct {
	Items        []domain.StoredItem
	Units        int
	Length       decimal.Decimal
	FromManifest bool
}

// Reconcile builds the stored items for a delivery. With a manifest the line
// quantities must add up to the admin's count exactly; without one a single
// simplified item is built from the load's planned dimensions.
func Reconcile(in ReceiptInput) (Receipt, error) {
	if in.ActualUnits <= 0 {
		return Receipt{}, domain.Errorf(domain.ErrInvalidInput, "actual units must be positive, got %d", in.ActualUnits)
	}
	if len(in.Manifest) == 0 {
		return simplified(in), nil
	}

	rec := Receipt{FromManifest: true, Length: decimal.Zero}
	for i, line := range in.Manifest {
		if line.Quantity <= 0 {
			return Receipt{}, domain.Errorf(domain.ErrInvalidInput, "manifest line %d (%s) has non-positive quantity %d", i+1, line.Identifier, line.Quantity)
		}
		item := newItem(in, line.Quantity)
		item.Reference = line.Identifier
		if item.Reference == "" {
			item.Reference = fmt.Sprintf("%s-L%d-%d", in.RequestRef, in.Load.Sequence, i+1)
		}
		item.Grade = line.Grade
		item.Diameter = line.Diameter
		item.LengthPerUnit = domain.ScaleLength(line.LengthPerUnit)
		item.WeightPerUnit = line.WeightPerUnit

		rec.Items = append(rec.Items, item)
		rec.Units += line.Quantity
		rec.Length = rec.Length.Add(item.TotalLength())
	}

	if rec.Units != in.ActualUnits {
		return Receipt{}, &domain.Error{
			Kind:      domain.ErrQuantityMismatch,
			Msg:       fmt.Sprintf("manifest totals %d units but %d were entered for load %s", rec.Units, in.ActualUnits, in.Load.ID),
			Shortfall: in.ActualUnits - rec.Units,
			Racks:     []string{in.RackID},
		}
	}
	return rec, nil
}

func simplified(in ReceiptInput) Receipt {
	item := newItem(in, in.ActualUnits)
	item.Reference = fmt.Sprintf("%s-L%d", in.RequestRef, in.Load.Sequence)
	item.LengthPerUnit = in.Load.AverageLengthPerUnit()
	return Receipt{
		Items:  []domain.StoredItem{item},
		Units:  in.ActualUnits,
		Length: item.TotalLength(),
	}
}

func newItem(in ReceiptInput, qty int) domain.StoredItem {
	return domain.StoredItem{
		ID:            in.NewID(),
		CompanyID:     in.Load.CompanyID,
		RequestID:     in.Load.RequestID,
		Quantity:      qty,
		Status:        domain.ItemInStorage,
		RackID:        in.RackID,
		InboundLoadID: in.Load.ID,
		CreatedAt:     in.ReceivedAt,
		UpdatedAt:     in.ReceivedAt,
	}
}

// RackRelease is the occupancy to take off one rack for a pickup.
type RackRelease struct {
	RackID string
	Units  int
	Length decimal.Decimal
}

// GroupByRack sums the selected items per rack, ordered by rack ID so racks
// are always touched in the same order.
func GroupByRack(items []domain.StoredItem) []RackRelease {
	byRack := make(map[string]*RackRelease)
	for _, it := range items {
		rel, ok := byRack[it.RackID]
		if !ok {
			rel = &RackRelease{RackID: it.RackID, Length: decimal.Zero}
			byRack[it.RackID] = rel
		}
		rel.Units += it.Quantity
		rel.Length = rel.Length.Add(it.TotalLength())
	}

	out := make([]RackRelease, 0, len(byRack))
	for _, rel := range byRack {
		out = append(out, *rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RackID < out[j].RackID })
	return out
}

// Totals are the cumulative figures reported with completion notifications.
type Totals struct {
	LoadsCompleted int `json:"loads_completed"`
	UnitsReceived  int `json:"units_received"`
	UnitsInStorage int `json:"units_in_storage"`
}

// Summarize computes a request's cumulative totals from its loads and items.
func Summarize(loads []domain.Load, items []domain.StoredItem) Totals {
	var t Totals
	for _, l := range loads {
		if l.Direction != domain.DirectionInbound || l.Status != domain.LoadCompleted {
			continue
		}
		t.LoadsCompleted++
		if l.CompletedUnits != nil {
			t.UnitsReceived += *l.CompletedUnits
		}
	}
	for _, it := range items {
		if it.Status == domain.ItemInStorage {
			t.UnitsInStorage += it.Quantity
		}
	}
	return t
}
