package warehouse

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// OccupancyRebuildStats summarizes one rebuild sweep
type OccupancyRebuildStats struct {
	LocationsScanned int `json:"locations_scanned"`
	LocationsChanged int `json:"locations_changed"`
	Failures         int `json:"failures"`
}

// OccupancyService recomputes committed occupancy from the ledger and the
// handling unit registry. Occupancy is a derived figure; the ledger is the
// source of truth, so a crash mid-posting or a manual ledger correction is
// healed by running the rebuild at startup.
type OccupancyService struct {
	scope          TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewOccupancyService creates a new occupancy rebuild service
func NewOccupancyService(scope TransactionScope, logger *zap.Logger) *OccupancyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OccupancyService{scope: scope, logger: logger}
}

// SetEventPublisher wires the event publisher used after rebuilds
func (s *OccupancyService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Rebuild recomputes occupancy for every active location. Anchored handling
// units contribute their full footprint; stock sitting bare on a location
// contributes one unit count per item/batch lot.
func (s *OccupancyService) Rebuild(ctx context.Context) (*OccupancyRebuildStats, error) {
	stats := &OccupancyRebuildStats{}
	var changed []*location.StorageLocation

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locations, err := repos.Locations().FindActive(ctx)
		if err != nil {
			return err
		}
		lots, err := repos.Ledger().AllLots(ctx)
		if err != nil {
			return err
		}

		bareLots := bareLotsByLocation(lots)

		for idx := range locations {
			loc := &locations[idx]
			stats.LocationsScanned++

			units, err := repos.Units().FindByLocation(ctx, loc.ID)
			if err != nil {
				stats.Failures++
				s.logger.Error("Failed to load units for occupancy rebuild",
					zap.String("location_code", loc.Code), zap.Error(err))
				continue
			}

			occupied := location.Capacity{}
			for uidx := range units {
				occupied = occupied.Add(footprint(&units[uidx]))
			}
			occupied.UnitCount = occupied.UnitCount.Add(decimal.NewFromInt(int64(bareLots[loc.ID])))

			if capacityEqual(loc.Occupied, occupied) {
				continue
			}

			if err := loc.SetOccupied(occupied); err != nil {
				stats.Failures++
				continue
			}
			loc.AddDomainEvent(location.NewOccupancyRebuiltEvent(loc))
			if err := repos.Locations().SaveWithLock(ctx, loc); err != nil {
				stats.Failures++
				s.logger.Error("Failed to persist rebuilt occupancy",
					zap.String("location_code", loc.Code), zap.Error(err))
				continue
			}
			stats.LocationsChanged++
			changed = append(changed, loc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, loc := range changed {
		s.publishEvents(ctx, loc)
	}

	s.logger.Info("Occupancy rebuild finished",
		zap.Int("scanned", stats.LocationsScanned),
		zap.Int("changed", stats.LocationsChanged),
		zap.Int("failures", stats.Failures),
	)
	return stats, nil
}

func (s *OccupancyService) publishEvents(ctx context.Context, loc *location.StorageLocation) {
	if s.eventPublisher == nil {
		return
	}
	for _, event := range loc.GetDomainEvents() {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Error("Failed to publish event",
				zap.String("event_type", event.EventType()), zap.Error(err))
		}
	}
	loc.ClearDomainEvents()
}

// bareLotsByLocation counts positive lots that sit on a location without a
// handling unit. Each such lot holds one slot.
func bareLotsByLocation(lots []ledger.StockLot) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for idx := range lots {
		if lots[idx].HandlingUnitID == nil {
			counts[lots[idx].LocationID]++
		}
	}
	return counts
}

func capacityEqual(a, b location.Capacity) bool {
	return a.Volume.Equal(b.Volume) && a.Weight.Equal(b.Weight) && a.UnitCount.Equal(b.UnitCount)
}
