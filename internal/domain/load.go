package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoadDirection string

const (
	DirectionInbound  LoadDirection = "inbound"
	DirectionOutbound LoadDirection = "outbound"
)

type LoadStatus string

const (
	LoadNew       LoadStatus = "new"
	LoadApproved  LoadStatus = "approved"
	LoadInTransit LoadStatus = "in_transit"
	LoadCompleted LoadStatus = "completed"
)

var loadSequence = []LoadStatus{LoadNew, LoadApproved, LoadInTransit, LoadCompleted}

// Next returns the only status a load may move to from s.
func (s LoadStatus) Next() (LoadStatus, bool) {
	for i, st := range loadSequence {
		if st == s && i+1 < len(loadSequence) {
			return loadSequence[i+1], true
		}
	}
	return "", false
}

// CanAdvanceTo reports whether moving from s to to is a single forward step.
func (s LoadStatus) CanAdvanceTo(to LoadStatus) bool {
	next, ok := s.Next()
	return ok && next == to
}

// Load is one inbound delivery or outbound pickup belonging to a request.
type Load struct {
	ID             string
	RequestID      string
	CompanyID      string
	Direction      LoadDirection
	Sequence       int
	Status         LoadStatus
	PlannedUnits   int
	PlannedLength  decimal.Decimal
	CompletedUnits *int
	RackID         string
	Notes          string
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

// AverageLengthPerUnit spreads the planned length over the planned units, at
// the stored length scale.
func (l Load) AverageLengthPerUnit() decimal.Decimal {
	if l.PlannedUnits <= 0 {
		return decimal.Zero
	}
	return ScaleLength(l.PlannedLength.Div(decimal.NewFromInt(int64(l.PlannedUnits))))
}
