package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms/backend/internal/application/warehouse"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/interfaces/http/dto"
)

// JobHandler handles warehouse job API endpoints
type JobHandler struct {
	BaseHandler
	jobService *warehouse.JobService
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobService *warehouse.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
	}
}

// Create godoc
// @ID           createJob
//
//	@Summary		Create a warehouse job
//	@Description	Create a draft job from a source order document
//	@Tags			jobs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		warehouse.CreateJobRequest	true	"Job creation request"
//	@Success		201		{object}	APIResponse[warehouse.JobResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/jobs [post]
func (h *JobHandler) Create(c *gin.Context) {
	var req warehouse.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	job, err := h.jobService.CreateJob(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, job)
}

// Allocate godoc
// @ID           allocateJob
//
//	@Summary		Allocate a job
//	@Description	Run the allocation engine for a draft job. Produces
//	@Description	allocation rows with soft capacity holds; lines that could
//	@Description	not be fully covered come back in unallocated_lines.
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"	format(uuid)
//	@Success		200	{object}	APIResponse[warehouse.AllocateResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/jobs/{id}/allocate [post]
func (h *JobHandler) Allocate(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	result, err := h.jobService.Allocate(c.Request.Context(), jobID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// PostPhase godoc
// @ID           postJobPhase
//
//	@Summary		Post a movement phase
//	@Description	Post one phase of the job's two-phase movement: STAGE moves
//	@Description	stock from source to the staging location, FINAL from
//	@Description	staging to destination. FINAL requires STAGE to be posted.
//	@Description	Rows that hit a capacity race are reported in conflicts and
//	@Description	can be retried by posting the phase again.
//	@Tags			jobs
//	@Produce		json
//	@Param			id		path		string	true	"Job ID"	format(uuid)
//	@Param			phase	path		string	true	"Posting phase"	Enums(STAGE, FINAL)
//	@Success		200		{object}	APIResponse[warehouse.PostPhaseResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/jobs/{id}/post/{phase} [post]
func (h *JobHandler) PostPhase(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	phase := ledger.PostingPhase(strings.ToUpper(c.Param("phase")))
	if !phase.IsValid() {
		h.BadRequest(c, "Invalid posting phase, expected STAGE or FINAL")
		return
	}

	result, err := h.jobService.PostPhase(c.Request.Context(), jobID, phase)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Cancel godoc
// @ID           cancelJob
//
//	@Summary		Cancel a job
//	@Description	Cancel a job that has not reached final posting. Releases
//	@Description	all outstanding capacity holds.
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"	format(uuid)
//	@Success		200	{object}	APIResponse[warehouse.JobResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/jobs/{id}/cancel [post]
func (h *JobHandler) Cancel(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, err := h.jobService.Cancel(c.Request.Context(), jobID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, job)
}

// GetByID godoc
// @ID           getJobById
//
//	@Summary		Get job by ID
//	@Description	Retrieve a job with its lines and allocation rows
//	@Tags			jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"	format(uuid)
//	@Success		200	{object}	APIResponse[warehouse.JobResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/jobs/{id} [get]
func (h *JobHandler) GetByID(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, job)
}

// List godoc
// @ID           listJobs
//
//	@Summary		List jobs
//	@Description	List jobs with pagination
//	@Tags			jobs
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Param			search		query		string	false	"Search by job code or source order"
//	@Success		200			{object}	APIResponse[[]warehouse.JobResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	filter := toFilter(req)

	jobs, err := h.jobService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, jobs, int64(len(jobs)), filter.Page, filter.PageSize)
}

// toFilter converts list query parameters to a repository filter,
// applying the default page settings
func toFilter(req dto.ListRequest) shared.Filter {
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	filter.Search = req.Search
	return filter
}
