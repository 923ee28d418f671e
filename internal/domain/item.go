package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LengthScale is the number of decimal places lengths are stored with.
const LengthScale = 3

// ScaleLength cuts l down to LengthScale places. Cutting rather than rounding
// keeps the units of a split length from adding up to more than the whole.
func ScaleLength(l decimal.Decimal) decimal.Decimal {
	return l.Truncate(LengthScale)
}

type ItemStatus string

const (
	ItemPendingDelivery ItemStatus = "pending_delivery"
	ItemInStorage       ItemStatus = "in_storage"
	ItemPickedUp        ItemStatus = "picked_up"
	ItemDelivered       ItemStatus = "delivered"
)

// StoredItem is a batch of identical joints sitting on a rack.
type StoredItem struct {
	ID             string
	CompanyID      string
	RequestID      string
	Reference      string
	Grade          string
	Diameter       decimal.Decimal
	LengthPerUnit  decimal.Decimal
	WeightPerUnit  decimal.Decimal
	Quantity       int
	Status         ItemStatus
	RackID         string
	InboundLoadID  string
	OutboundLoadID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TotalLength is the linear footprint of the whole batch.
func (i StoredItem) TotalLength() decimal.Decimal {
	return i.LengthPerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ManifestLine is one row of externally extracted delivery data.
type ManifestLine struct {
	Identifier    string
	Quantity      int
	LengthPerUnit decimal.Decimal
	Grade         string
	Diameter      decimal.Decimal
	WeightPerUnit decimal.Decimal
}
