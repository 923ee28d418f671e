package app

import (
	"context"
	"time"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
)

// Transactor runs fn inside one storage transaction. Repository calls made
// with the ctx handed to fn join that transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RackRepository interface {
	GetRack(ctx context.Context, id string) (domain.Rack, error)
	GetRackForUpdate(ctx context.Context, id string) (domain.Rack, error)
	ListRacks(ctx context.Context, filter domain.RackFilter) ([]domain.Rack, error)
	UpsertRack(ctx context.Context, rack domain.Rack) error
	// ApplyOccupancyDelta adds the deltas in one conditional write. It fails
	// with ErrCapacityExceeded or ErrDataIntegrity instead of writing an
	// occupancy outside [0, capacity].
	ApplyOccupancyDelta(ctx context.Context, id string, units int, length decimal.Decimal) (domain.Rack, error)
	// SetOccupancy overwrites occupancy; only manual correction uses it.
	SetOccupancy(ctx context.Context, id string, units int, length decimal.Decimal) (domain.Rack, error)
}

type ReservationRepository interface {
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	ListReservationsByRack(ctx context.Context, rackID string) ([]domain.Reservation, error)
	ListReservationsByRequest(ctx context.Context, requestID string) ([]domain.Reservation, error)
	// ListDueReservations returns active reservations live on day whose units
	// are not yet counted in rack occupancy.
	ListDueReservations(ctx context.Context, day time.Time) ([]domain.Reservation, error)
	CreateReservation(ctx context.Context, r domain.Reservation) error
	UpdateReservation(ctx context.Context, r domain.Reservation) error
}

type RequestRepository interface {
	GetRequestForUpdate(ctx context.Context, id string) (domain.StorageRequest, error)
	UpdateRequest(ctx context.Context, r domain.StorageRequest) error
}

type LoadRepository interface {
	GetLoadForUpdate(ctx context.Context, id string) (domain.Load, error)
	ListLoadsByRequest(ctx context.Context, requestID string) ([]domain.Load, error)
	UpdateLoad(ctx context.Context, l domain.Load) error
}

type InventoryRepository interface {
	// GetManifest returns the extracted manifest lines of a load, or nil when
	// the load has none.
	GetManifest(ctx context.Context, loadID string) ([]domain.ManifestLine, error)
	CreateItems(ctx context.Context, items []domain.StoredItem) error
	GetItemsForUpdate(ctx context.Context, ids []string) ([]domain.StoredItem, error)
	ListItemsByRequest(ctx context.Context, requestID string) ([]domain.StoredItem, error)
	UpdateItems(ctx context.Context, items []domain.StoredItem) error
}

type JournalRepository interface {
	AppendAudit(ctx context.Context, e domain.AuditEntry) error
	AppendAdjustment(ctx context.Context, a domain.OccupancyAdjustment) error
	EnqueueNotification(ctx context.Context, n domain.Notification) error
}

// Store is everything the coordinator needs from persistence.
type Store interface {
	Transactor
	RackRepository
	ReservationRepository
	RequestRepository
	LoadRepository
	InventoryRepository
	JournalRepository
}
