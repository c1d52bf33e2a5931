package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/domain/shared/strategy"
	"github.com/wms/backend/internal/interfaces/http/dto"
)

// StrategyRegistry defines the interface for listing allocation strategies
type StrategyRegistry interface {
	ListLotStrategies() []string
	ListPlacementStrategies() []string
	GetDefault(strategyType strategy.StrategyType) string
	GetLotStrategy(name string) (allocation.LotSelectionStrategy, error)
	GetPlacementStrategy(name string) (allocation.PlacementStrategy, error)
}

// StrategyHandler handles strategy-related API endpoints
type StrategyHandler struct {
	BaseHandler
	registry StrategyRegistry
}

// NewStrategyHandler creates a new StrategyHandler
func NewStrategyHandler(registry StrategyRegistry) *StrategyHandler {
	return &StrategyHandler{
		registry: registry,
	}
}

// StrategyInfo represents information about a single strategy
type StrategyInfo struct {
	Name        string `json:"name" example:"fifo_lot_selection"`
	Type        string `json:"type" example:"picking"`
	Description string `json:"description" example:"FIFO lot selection"`
	IsDefault   bool   `json:"is_default" example:"true"`
}

// StrategiesResponse represents the list of available strategies
type StrategiesResponse struct {
	LotSelection []StrategyInfo `json:"lot_selection"`
	Placement    []StrategyInfo `json:"placement"`
}

// ListStrategies godoc
// @ID           listSystemStrategies
// @Summary      List available strategies
// @Description  Returns all registered lot-selection and placement strategies
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[StrategiesResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /system/strategies [get]
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	response := StrategiesResponse{
		LotSelection: h.buildLotStrategies(),
		Placement:    h.buildPlacementStrategies(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// describer names a registered strategy, used to fill in descriptions
// without caring which strategy family the name belongs to.
type describer interface {
	Description() string
}

// catalog assembles the info list for one strategy family. The lookup
// closure resolves a name to its implementation; unresolvable names keep
// an empty description rather than failing the listing.
func (h *StrategyHandler) catalog(stype strategy.StrategyType, names []string, lookup func(string) (describer, error)) []StrategyInfo {
	defaultName := h.registry.GetDefault(stype)

	infos := make([]StrategyInfo, len(names))
	for i, name := range names {
		infos[i] = StrategyInfo{
			Name:      name,
			Type:      string(stype),
			IsDefault: name == defaultName,
		}
		if impl, err := lookup(name); err == nil {
			infos[i].Description = impl.Description()
		}
	}
	return infos
}

func (h *StrategyHandler) buildLotStrategies() []StrategyInfo {
	return h.catalog(strategy.StrategyTypePicking, h.registry.ListLotStrategies(),
		func(name string) (describer, error) { return h.registry.GetLotStrategy(name) })
}

func (h *StrategyHandler) buildPlacementStrategies() []StrategyInfo {
	return h.catalog(strategy.StrategyTypePlacement, h.registry.ListPlacementStrategies(),
		func(name string) (describer, error) { return h.registry.GetPlacementStrategy(name) })
}

// GetLotStrategies godoc
// @ID           getSystemLotStrategies
// @Summary      List lot-selection strategies
// @Description  Returns all available lot-selection strategies (FIFO, LIFO, etc.)
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[[]StrategyInfo]
// @Failure      500 {object} ErrorResponse
// @Router       /system/strategies/lot-selection [get]
func (h *StrategyHandler) GetLotStrategies(c *gin.Context) {
	strategies := h.buildLotStrategies()
	c.JSON(http.StatusOK, dto.NewSuccessResponse(strategies))
}

// GetPlacementStrategies godoc
// @ID           getSystemPlacementStrategies
// @Summary      List placement strategies
// @Description  Returns all available placement strategies (first-fit, etc.)
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[[]StrategyInfo]
// @Failure      500 {object} ErrorResponse
// @Router       /system/strategies/placement [get]
func (h *StrategyHandler) GetPlacementStrategies(c *gin.Context) {
	strategies := h.buildPlacementStrategies()
	c.JSON(http.StatusOK, dto.NewSuccessResponse(strategies))
}
