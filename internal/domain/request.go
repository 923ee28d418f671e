package domain

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// StorageRequest is a customer's ask for rack space over a date range. It is
// created pending by the submission flow and decided exactly once.
type StorageRequest struct {
	ID              string
	Reference       string
	CompanyID       string
	Status          RequestStatus
	RequiredUnits   int
	StorageStart    time.Time
	StorageEnd      *time.Time
	AssignedRackIDs []string
	AdminNotes      string
	RejectionReason string
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Period returns the request's storage window as a reservation range.
func (r StorageRequest) Period() (DateRange, error) {
	return NewDateRange(r.StorageStart, r.StorageEnd)
}
