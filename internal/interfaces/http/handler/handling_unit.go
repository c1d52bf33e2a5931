package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms/backend/internal/application/warehouse"
	"github.com/wms/backend/internal/interfaces/http/dto"
)

// HandlingUnitHandler handles handling unit API endpoints
type HandlingUnitHandler struct {
	BaseHandler
	handlingUnitService *warehouse.HandlingUnitService
}

// NewHandlingUnitHandler creates a new HandlingUnitHandler
func NewHandlingUnitHandler(handlingUnitService *warehouse.HandlingUnitService) *HandlingUnitHandler {
	return &HandlingUnitHandler{
		handlingUnitService: handlingUnitService,
	}
}

// GetByID godoc
// @ID           getHandlingUnitById
//
//	@Summary		Get handling unit by ID
//	@Description	Retrieve a handling unit with its type, anchoring and status
//	@Tags			handling-units
//	@Produce		json
//	@Param			id	path		string	true	"Handling unit ID"	format(uuid)
//	@Success		200	{object}	APIResponse[warehouse.HandlingUnitResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/handling-units/{id} [get]
func (h *HandlingUnitHandler) GetByID(c *gin.Context) {
	unitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid handling unit ID format")
		return
	}

	unit, err := h.handlingUnitService.GetUnit(c.Request.Context(), unitID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, unit)
}

// List godoc
// @ID           listHandlingUnits
//
//	@Summary		List handling units
//	@Description	List handling units with pagination
//	@Tags			handling-units
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Success		200			{object}	APIResponse[[]warehouse.HandlingUnitResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/handling-units [get]
func (h *HandlingUnitHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	filter := toFilter(req)

	units, err := h.handlingUnitService.ListUnits(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, units, int64(len(units)), filter.Page, filter.PageSize)
}
