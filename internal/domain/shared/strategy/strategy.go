package strategy

// StrategyType partitions the pluggable policy families: how stock is
// allocated to outbound lines, how picks are sequenced, and where
// inbound stock is placed.
type StrategyType string

const (
	StrategyTypeAllocation StrategyType = "allocation"
	StrategyTypePicking    StrategyType = "picking"
	StrategyTypePlacement  StrategyType = "placement"
)

func (t StrategyType) String() string { return string(t) }

// IsValid reports whether t names a known strategy family.
func (t StrategyType) IsValid() bool {
	switch t {
	case StrategyTypeAllocation, StrategyTypePicking, StrategyTypePlacement:
		return true
	}
	return false
}

// Strategy is implemented by every registered policy.
type Strategy interface {
	// Name returns the unique name of the strategy
	Name() string
	// Type returns the type of the strategy
	Type() StrategyType
	// Description returns a human-readable description
	Description() string
}

// BaseStrategy holds the descriptor fields concrete strategies embed.
type BaseStrategy struct {
	name         string
	strategyType StrategyType
	description  string
}

// NewBaseStrategy creates a new BaseStrategy
func NewBaseStrategy(name string, strategyType StrategyType, description string) BaseStrategy {
	return BaseStrategy{name: name, strategyType: strategyType, description: description}
}

func (s BaseStrategy) Name() string       { return s.name }
func (s BaseStrategy) Type() StrategyType { return s.strategyType }

func (s BaseStrategy) Description() string { return s.description }
