package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/wms/backend/internal/application/warehouse"
)

// BalanceHandler handles stock balance API endpoints
type BalanceHandler struct {
	BaseHandler
	jobService *warehouse.JobService
}

// NewBalanceHandler creates a new BalanceHandler
func NewBalanceHandler(jobService *warehouse.JobService) *BalanceHandler {
	return &BalanceHandler{
		jobService: jobService,
	}
}

// BalanceQuery represents the balance query parameters
type BalanceQuery struct {
	Item     string `form:"item" binding:"required"`
	Location string `form:"location"`
	Batch    string `form:"batch"`
}

// GetBalance godoc
// @ID           getBalance
//
//	@Summary		Get stock balance
//	@Description	Returns the signed ledger sum for an item, optionally
//	@Description	narrowed to one location and/or batch lot
//	@Tags			balances
//	@Produce		json
//	@Param			item		query		string	true	"Item code"
//	@Param			location	query		string	false	"Location code"
//	@Param			batch		query		string	false	"Batch lot"
//	@Success		200			{object}	APIResponse[warehouse.BalanceResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/balances [get]
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	var query BalanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	balance, err := h.jobService.GetBalance(c.Request.Context(), query.Item, query.Location, query.Batch)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, balance)
}
