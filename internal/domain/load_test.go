package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadStatusTransitions(t *testing.T) {
	next, ok := LoadNew.Next()
	assert.True(t, ok)
	assert.Equal(t, LoadApproved, next)

	_, ok = LoadCompleted.Next()
	assert.False(t, ok)

	assert.True(t, LoadApproved.CanAdvanceTo(LoadInTransit))
	assert.False(t, LoadNew.CanAdvanceTo(LoadInTransit), "no skipping")
	assert.False(t, LoadInTransit.CanAdvanceTo(LoadApproved), "no going back")
	assert.False(t, LoadStatus("lost").CanAdvanceTo(LoadNew))
}

func TestAverageLengthPerUnit(t *testing.T) {
	l := Load{PlannedUnits: 3, PlannedLength: decimal.NewFromInt(36)}
	assert.True(t, l.AverageLengthPerUnit().Equal(decimal.NewFromInt(12)))
	assert.True(t, Load{PlannedLength: decimal.NewFromInt(36)}.AverageLengthPerUnit().IsZero())
}

func TestAverageLengthPerUnitUsesStoredScale(t *testing.T) {
	l := Load{PlannedUnits: 3, PlannedLength: decimal.NewFromInt(200)}
	per := l.AverageLengthPerUnit()
	assert.Equal(t, "66.666", per.String())

	item := StoredItem{LengthPerUnit: per, Quantity: 3}
	assert.False(t, item.TotalLength().GreaterThan(l.PlannedLength))
	assert.Equal(t, "12.345", ScaleLength(decimal.RequireFromString("12.34599")).String())
}
