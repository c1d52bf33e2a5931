package strategy

import (
	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/domain/shared/strategy"
)

// NewRegistryWithDefaults creates a new registry with the built-in strategies
// registered. FIFO lot selection and first-fit placement are the defaults.
func NewRegistryWithDefaults() (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	// Register lot-selection strategies
	fifoLot := allocation.NewFIFOLotStrategy()
	if err := r.RegisterLotStrategy(fifoLot); err != nil {
		return nil, err
	}

	lifoLot := allocation.NewLIFOLotStrategy()
	if err := r.RegisterLotStrategy(lifoLot); err != nil {
		return nil, err
	}

	locationLot := allocation.NewLocationPreferenceLotStrategy()
	if err := r.RegisterLotStrategy(locationLot); err != nil {
		return nil, err
	}

	// Register placement strategies
	firstFit := allocation.NewFirstFitPlacementStrategy()
	if err := r.RegisterPlacementStrategy(firstFit); err != nil {
		return nil, err
	}

	nearestToStock := allocation.NewNearestToStockPlacementStrategy()
	if err := r.RegisterPlacementStrategy(nearestToStock); err != nil {
		return nil, err
	}

	// Set defaults
	if err := r.SetDefault(strategy.StrategyTypePicking, fifoLot.Name()); err != nil {
		return nil, err
	}
	if err := r.SetDefault(strategy.StrategyTypePlacement, firstFit.Name()); err != nil {
		return nil, err
	}

	return r, nil
}
