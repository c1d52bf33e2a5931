package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for the append-only stock ledger.
// There are no update or delete operations; corrections are appended as
// reversing movements.
type Repository interface {
	// Append writes all entries of one posting atomically
	Append(ctx context.Context, entries []*Entry) error

	// FindByItem returns all entries for an item in sequence order
	FindByItem(ctx context.Context, itemCode string) ([]Entry, error)

	// FindByJob returns all entries a job has posted, in sequence order
	FindByJob(ctx context.Context, jobID string) ([]Entry, error)

	// FindLots returns the item's non-zero stock lots across the given
	// locations (all locations when empty), built in sequence order
	FindLots(ctx context.Context, itemCode string, locationIDs []uuid.UUID) ([]StockLot, error)

	// AllLots returns every non-zero stock lot in the ledger. The startup
	// occupancy rebuild folds these into per-location capacity figures.
	AllLots(ctx context.Context) ([]StockLot, error)

	// Balance returns the signed sum of deltas for an item, optionally
	// narrowed to one location and/or batch
	Balance(ctx context.Context, itemCode string, locationID *uuid.UUID, batch string) (decimal.Decimal, error)

	// BalanceByUnit returns the item quantity resting on a handling unit
	BalanceByUnit(ctx context.Context, handlingUnitID uuid.UUID) (decimal.Decimal, error)

	// OccupancyByLocation returns the net unit count per location for all
	// items. The startup rebuild uses this to recompute capacity figures.
	OccupancyByLocation(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}
