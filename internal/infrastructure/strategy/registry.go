package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/shared/strategy"
)

// StrategyRegistry manages strategy registrations
type StrategyRegistry struct {
	mu                  sync.RWMutex
	lotStrategies       map[string]allocation.LotSelectionStrategy
	placementStrategies map[string]allocation.PlacementStrategy
	defaults            map[strategy.StrategyType]string
}

// NewStrategyRegistry creates a new strategy registry
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		lotStrategies:       make(map[string]allocation.LotSelectionStrategy),
		placementStrategies: make(map[string]allocation.PlacementStrategy),
		defaults:            make(map[strategy.StrategyType]string),
	}
}

// RegisterLotStrategy registers a lot-selection strategy
func (r *StrategyRegistry) RegisterLotStrategy(s allocation.LotSelectionStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.lotStrategies[name]; exists {
		return fmt.Errorf("%w: lot-selection strategy '%s' already registered", shared.ErrAlreadyExists, name)
	}
	r.lotStrategies[name] = s
	return nil
}

// GetLotStrategy returns a lot-selection strategy by name, or the default if name is empty
func (r *StrategyRegistry) GetLotStrategy(name string) (allocation.LotSelectionStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaults[strategy.StrategyTypePicking]
		if name == "" {
			return nil, fmt.Errorf("%w: no default lot-selection strategy set", shared.ErrNotFound)
		}
	}

	s, exists := r.lotStrategies[name]
	if !exists {
		return nil, fmt.Errorf("%w: lot-selection strategy '%s' not found", shared.ErrNotFound, name)
	}
	return s, nil
}

// GetLotStrategyOrDefault returns a lot-selection strategy by name, or the default if not found
func (r *StrategyRegistry) GetLotStrategyOrDefault(name string) allocation.LotSelectionStrategy {
	s, err := r.GetLotStrategy(name)
	if err != nil {
		s, _ = r.GetLotStrategy("")
	}
	return s
}

// GetLotStrategyByPolicy returns the registered strategy implementing the given policy
func (r *StrategyRegistry) GetLotStrategyByPolicy(policy allocation.PolicyType) (allocation.LotSelectionStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.lotStrategies {
		if s.PolicyType() == policy {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: no lot-selection strategy registered for policy '%s'", shared.ErrNotFound, policy)
}

// ListLotStrategies returns all registered lot-selection strategy names
func (r *StrategyRegistry) ListLotStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.lotStrategies))
	for name := range r.lotStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnregisterLotStrategy removes a lot-selection strategy
func (r *StrategyRegistry) UnregisterLotStrategy(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lotStrategies[name]; !exists {
		return fmt.Errorf("%w: lot-selection strategy '%s' not found", shared.ErrNotFound, name)
	}
	delete(r.lotStrategies, name)

	if r.defaults[strategy.StrategyTypePicking] == name {
		delete(r.defaults, strategy.StrategyTypePicking)
	}
	return nil
}

// RegisterPlacementStrategy registers a placement strategy
func (r *StrategyRegistry) RegisterPlacementStrategy(s allocation.PlacementStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.placementStrategies[name]; exists {
		return fmt.Errorf("%w: placement strategy '%s' already registered", shared.ErrAlreadyExists, name)
	}
	r.placementStrategies[name] = s
	return nil
}

// GetPlacementStrategy returns a placement strategy by name, or the default if name is empty
func (r *StrategyRegistry) GetPlacementStrategy(name string) (allocation.PlacementStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaults[strategy.StrategyTypePlacement]
		if name == "" {
			return nil, fmt.Errorf("%w: no default placement strategy set", shared.ErrNotFound)
		}
	}

	s, exists := r.placementStrategies[name]
	if !exists {
		return nil, fmt.Errorf("%w: placement strategy '%s' not found", shared.ErrNotFound, name)
	}
	return s, nil
}

// GetPlacementStrategyOrDefault returns a placement strategy by name, or the default if not found
func (r *StrategyRegistry) GetPlacementStrategyOrDefault(name string) allocation.PlacementStrategy {
	s, err := r.GetPlacementStrategy(name)
	if err != nil {
		s, _ = r.GetPlacementStrategy("")
	}
	return s
}

// GetPlacementStrategyByPolicy returns the registered strategy implementing the given policy
func (r *StrategyRegistry) GetPlacementStrategyByPolicy(policy allocation.PlacementPolicy) (allocation.PlacementStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.placementStrategies {
		if s.Policy() == policy {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: no placement strategy registered for policy '%s'", shared.ErrNotFound, policy)
}

// ListPlacementStrategies returns all registered placement strategy names
func (r *StrategyRegistry) ListPlacementStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.placementStrategies))
	for name := range r.placementStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnregisterPlacementStrategy removes a placement strategy
func (r *StrategyRegistry) UnregisterPlacementStrategy(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.placementStrategies[name]; !exists {
		return fmt.Errorf("%w: placement strategy '%s' not found", shared.ErrNotFound, name)
	}
	delete(r.placementStrategies, name)

	if r.defaults[strategy.StrategyTypePlacement] == name {
		delete(r.defaults, strategy.StrategyTypePlacement)
	}
	return nil
}

// SetDefault sets the default strategy for a strategy type
func (r *StrategyRegistry) SetDefault(strategyType strategy.StrategyType, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRegisteredLocked(strategyType, name) {
		return fmt.Errorf("%w: strategy '%s' of type '%s' not found", shared.ErrNotFound, name, strategyType)
	}

	r.defaults[strategyType] = name
	return nil
}

// GetDefault returns the default strategy name for a strategy type
func (r *StrategyRegistry) GetDefault(strategyType strategy.StrategyType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[strategyType]
}

// HasDefault returns true if a default is set for the strategy type
func (r *StrategyRegistry) HasDefault(strategyType strategy.StrategyType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[strategyType] != ""
}

// IsRegistered returns true if a strategy with the given name is registered for the type
func (r *StrategyRegistry) IsRegistered(strategyType strategy.StrategyType, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRegisteredLocked(strategyType, name)
}

// isRegisteredLocked checks registration without locking (caller must hold lock)
func (r *StrategyRegistry) isRegisteredLocked(strategyType strategy.StrategyType, name string) bool {
	switch strategyType {
	case strategy.StrategyTypePicking:
		_, exists := r.lotStrategies[name]
		return exists
	case strategy.StrategyTypePlacement:
		_, exists := r.placementStrategies[name]
		return exists
	default:
		return false
	}
}

// Stats returns registration counts for each strategy type
func (r *StrategyRegistry) Stats() map[strategy.StrategyType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[strategy.StrategyType]int{
		strategy.StrategyTypePicking:   len(r.lotStrategies),
		strategy.StrategyTypePlacement: len(r.placementStrategies),
	}
}
