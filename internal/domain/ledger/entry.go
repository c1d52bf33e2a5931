package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// PostingPhase identifies which leg of a job's movement an entry belongs to
type PostingPhase string

const (
	// PostingPhaseStage is the first leg: dock to staging for putaway,
	// storage to staging for pick.
	PostingPhaseStage PostingPhase = "STAGE"
	// PostingPhaseFinal is the second leg: staging to storage for putaway,
	// staging to departure for pick.
	PostingPhaseFinal PostingPhase = "FINAL"
)

// IsValid checks if the phase is a valid PostingPhase
func (p PostingPhase) IsValid() bool {
	return p == PostingPhaseStage || p == PostingPhaseFinal
}

// String returns the string representation of PostingPhase
func (p PostingPhase) String() string {
	return string(p)
}

// Entry is one immutable ledger record: a signed quantity delta for an
// (item, batch, location, handling unit) tuple. Entries are only ever
// appended; corrections are reversing entries, never updates.
//
// Sequence is assigned by the database on insert and totally orders all
// entries. FIFO and LIFO lot selection read this order, not wall-clock
// time, so allocation stays deterministic under clock skew.
type Entry struct {
	shared.BaseEntity
	Sequence       int64           `gorm:"not null;autoIncrement;uniqueIndex"`
	ItemCode       string          `gorm:"type:varchar(50);not null;index:idx_ledger_tuple"`
	Batch          string          `gorm:"type:varchar(50);not null;default:'';index:idx_ledger_tuple"`
	LocationID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_tuple"`
	HandlingUnitID *uuid.UUID      `gorm:"type:uuid;index:idx_ledger_tuple"`
	Delta          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UOM            string          `gorm:"type:varchar(20);not null"`
	JobID          string          `gorm:"type:varchar(50);not null;index"`
	RowID          string          `gorm:"type:varchar(50);not null"`
	Phase          PostingPhase    `gorm:"type:varchar(20);not null"`
	OccurredAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Entry) TableName() string {
	return "stock_ledger_entries"
}

// Movement is one balanced posting: an OUT entry at the source and a
// matching IN entry at the destination, same quantity, committed together
// or not at all.
type Movement struct {
	Out Entry
	In  Entry
}

// Entries returns the movement's entries in posting order
func (m *Movement) Entries() []*Entry {
	return []*Entry{&m.Out, &m.In}
}

// MovementSpec describes one balanced movement to be posted
type MovementSpec struct {
	ItemCode string
	Batch    string
	UOM      string
	Quantity decimal.Decimal

	FromLocationID     uuid.UUID
	ToLocationID       uuid.UUID
	FromHandlingUnitID *uuid.UUID
	ToHandlingUnitID   *uuid.UUID

	JobID string
	RowID string
	Phase PostingPhase
}

// NewMovement builds the balanced OUT/IN entry pair for one movement leg
func NewMovement(spec MovementSpec) (*Movement, error) {
	if spec.ItemCode == "" {
		return nil, shared.NewDomainError("INVALID_MOVEMENT", "Movement item code cannot be empty")
	}
	if spec.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_MOVEMENT", "Movement quantity must be positive")
	}
	if spec.FromLocationID == spec.ToLocationID {
		return nil, shared.NewDomainError("INVALID_MOVEMENT", "Movement source and destination must differ")
	}
	if !spec.Phase.IsValid() {
		return nil, shared.NewDomainError("INVALID_MOVEMENT", "Unknown posting phase")
	}

	now := time.Now()
	return &Movement{
		Out: Entry{
			BaseEntity:     shared.NewBaseEntity(),
			ItemCode:       spec.ItemCode,
			Batch:          spec.Batch,
			LocationID:     spec.FromLocationID,
			HandlingUnitID: spec.FromHandlingUnitID,
			Delta:          spec.Quantity.Neg(),
			UOM:            spec.UOM,
			JobID:          spec.JobID,
			RowID:          spec.RowID,
			Phase:          spec.Phase,
			OccurredAt:     now,
		},
		In: Entry{
			BaseEntity:     shared.NewBaseEntity(),
			ItemCode:       spec.ItemCode,
			Batch:          spec.Batch,
			LocationID:     spec.ToLocationID,
			HandlingUnitID: spec.ToHandlingUnitID,
			Delta:          spec.Quantity,
			UOM:            spec.UOM,
			JobID:          spec.JobID,
			RowID:          spec.RowID,
			Phase:          spec.Phase,
			OccurredAt:     now,
		},
	}, nil
}

// BalanceKey identifies the tuple a stock balance is computed over
type BalanceKey struct {
	ItemCode       string
	Batch          string
	LocationID     uuid.UUID
	HandlingUnitID *uuid.UUID
}

// StockLot is the on-hand balance of one (item, batch, location, handling
// unit) tuple, with the sequence numbers of its first and last inbound
// entries. FIFO orders lots by FirstSequence, LIFO by LastSequence.
type StockLot struct {
	ItemCode       string
	Batch          string
	LocationID     uuid.UUID
	HandlingUnitID *uuid.UUID
	Quantity       decimal.Decimal
	UOM            string
	FirstSequence  int64
	LastSequence   int64
}

// BuildLots folds ledger entries into per-tuple lots, dropping tuples whose
// balance has returned to zero. Entries must be supplied in sequence order.
func BuildLots(entries []Entry) []StockLot {
	type key struct {
		item     string
		batch    string
		location uuid.UUID
		unit     uuid.UUID
	}
	index := make(map[key]int)
	lots := make([]StockLot, 0)

	for _, e := range entries {
		k := key{item: e.ItemCode, batch: e.Batch, location: e.LocationID}
		if e.HandlingUnitID != nil {
			k.unit = *e.HandlingUnitID
		}

		idx, ok := index[k]
		if !ok {
			lots = append(lots, StockLot{
				ItemCode:       e.ItemCode,
				Batch:          e.Batch,
				LocationID:     e.LocationID,
				HandlingUnitID: e.HandlingUnitID,
				UOM:            e.UOM,
				FirstSequence:  e.Sequence,
			})
			idx = len(lots) - 1
			index[k] = idx
		}

		if e.Delta.GreaterThan(decimal.Zero) {
			// a tuple that drained to zero and comes back is new stock,
			// not the oldest lot in the warehouse
			if lots[idx].Quantity.LessThanOrEqual(decimal.Zero) {
				lots[idx].FirstSequence = e.Sequence
			}
			lots[idx].LastSequence = e.Sequence
		}
		lots[idx].Quantity = lots[idx].Quantity.Add(e.Delta)
	}

	result := make([]StockLot, 0, len(lots))
	for _, lot := range lots {
		if lot.Quantity.GreaterThan(decimal.Zero) {
			result = append(result, lot)
		}
	}
	return result
}
