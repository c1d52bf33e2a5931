package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms/backend/internal/application/warehouse"
	"github.com/wms/backend/internal/interfaces/http/dto"
)

// LocationHandler handles storage location API endpoints
type LocationHandler struct {
	BaseHandler
	locationService     *warehouse.LocationService
	handlingUnitService *warehouse.HandlingUnitService
}

// NewLocationHandler creates a new LocationHandler
func NewLocationHandler(locationService *warehouse.LocationService, handlingUnitService *warehouse.HandlingUnitService) *LocationHandler {
	return &LocationHandler{
		locationService:     locationService,
		handlingUnitService: handlingUnitService,
	}
}

// List godoc
// @ID           listLocations
//
//	@Summary		List storage locations
//	@Description	List storage locations with pagination
//	@Tags			locations
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Param			search		query		string	false	"Search by location code"
//	@Success		200			{object}	APIResponse[[]warehouse.LocationResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/locations [get]
func (h *LocationHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	filter := toFilter(req)

	locations, err := h.locationService.ListLocations(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, locations, int64(len(locations)), filter.Page, filter.PageSize)
}

// GetByID godoc
// @ID           getLocationById
//
//	@Summary		Get location by ID
//	@Description	Retrieve a storage location with its capacity figures
//	@Tags			locations
//	@Produce		json
//	@Param			id	path		string	true	"Location ID"	format(uuid)
//	@Success		200	{object}	APIResponse[warehouse.LocationResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/locations/{id} [get]
func (h *LocationHandler) GetByID(c *gin.Context) {
	locationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid location ID format")
		return
	}

	location, err := h.locationService.GetLocation(c.Request.Context(), locationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, location)
}

// GetCapacity godoc
// @ID           getLocationCapacity
//
//	@Summary		Get location capacity detail
//	@Description	Returns the ceiling, occupied and reserved figures for a
//	@Description	location together with its outstanding soft holds
//	@Tags			locations
//	@Produce		json
//	@Param			id	path		string	true	"Location ID"	format(uuid)
//	@Success		200	{object}	APIResponse[warehouse.LocationCapacityResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/locations/{id}/capacity [get]
func (h *LocationHandler) GetCapacity(c *gin.Context) {
	locationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid location ID format")
		return
	}

	capacity, err := h.locationService.GetCapacity(c.Request.Context(), locationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, capacity)
}

// ListUnits godoc
// @ID           listLocationUnits
//
//	@Summary		List handling units at a location
//	@Description	Returns the handling units currently anchored at a location
//	@Tags			locations
//	@Produce		json
//	@Param			id	path		string	true	"Location ID"	format(uuid)
//	@Success		200	{object}	APIResponse[[]warehouse.HandlingUnitResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/locations/{id}/handling-units [get]
func (h *LocationHandler) ListUnits(c *gin.Context) {
	locationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid location ID format")
		return
	}

	units, err := h.handlingUnitService.ListUnitsAtLocation(c.Request.Context(), locationID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, units)
}
