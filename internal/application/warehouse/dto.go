package warehouse

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/domain/job"
)

// JobLineRequest is one requested line of a new job
type JobLineRequest struct {
	ItemCode          string          `json:"item_code" binding:"required"`
	Batch             string          `json:"batch"`
	Quantity          decimal.Decimal `json:"quantity" binding:"required"`
	UOM               string          `json:"uom" binding:"required"`
	RequiredStorage   string          `json:"required_storage"` // comma-separated storage-type tags
	PreferredLocation string          `json:"preferred_location"`
}

// CreateJobRequest creates a draft job from a source order document
type CreateJobRequest struct {
	Type            string           `json:"type" binding:"required,oneof=PUTAWAY PICK MOVE VAS STOCKTAKE"`
	SourceOrderRef  string           `json:"source_order_ref" binding:"required"`
	StagingLocation string           `json:"staging_location" binding:"required"`
	Lines           []JobLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// JobLineResponse represents one job line in API responses
type JobLineResponse struct {
	LineNo            int             `json:"line_no"`
	ItemCode          string          `json:"item_code"`
	Batch             string          `json:"batch,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	UOM               string          `json:"uom"`
	RequiredStorage   string          `json:"required_storage,omitempty"`
	PreferredLocation string          `json:"preferred_location,omitempty"`
}

// AllocationRowResponse represents one allocation row in API responses
type AllocationRowResponse struct {
	ID               uuid.UUID       `json:"id"`
	RowNo            int             `json:"row_no"`
	LineNo           int             `json:"line_no"`
	ItemCode         string          `json:"item_code"`
	Batch            string          `json:"batch,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	UOM              string          `json:"uom"`
	SourceLocationID *uuid.UUID      `json:"source_location_id,omitempty"`
	DestLocationID   *uuid.UUID      `json:"dest_location_id,omitempty"`
	HandlingUnitID   *uuid.UUID      `json:"handling_unit_id,omitempty"`
	StagePosted      bool            `json:"stage_posted"`
	FinalPosted      bool            `json:"final_posted"`
}

// JobResponse represents a warehouse job in API responses
type JobResponse struct {
	ID             uuid.UUID               `json:"id"`
	Code           string                  `json:"code"`
	Type           string                  `json:"type"`
	Status         string                  `json:"status"`
	SourceOrderRef string                  `json:"source_order_ref"`
	Lines          []JobLineResponse       `json:"lines"`
	Rows           []AllocationRowResponse `json:"rows"`
	CreatedAt      time.Time               `json:"created_at"`
	AllocatedAt    *time.Time              `json:"allocated_at,omitempty"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	CancelledAt    *time.Time              `json:"cancelled_at,omitempty"`
	Version        int                     `json:"version"`
}

// AllocateResponse is the outcome of one allocation run
type AllocateResponse struct {
	Job              JobResponse              `json:"job"`
	Rows             []AllocationRowResponse  `json:"rows"`
	UnallocatedLines []JobLineResponse        `json:"unallocated_lines"`
	Failures         []allocation.LineFailure `json:"failures"`
}

// PostConflict reports one row whose posting failed
type PostConflict struct {
	RowID  uuid.UUID `json:"row_id"`
	Code   string    `json:"code"`
	Reason string    `json:"reason"`
}

// PostPhaseResponse is the outcome of posting one phase across a job's rows
type PostPhaseResponse struct {
	Job        JobResponse  `json:"job"`
	PostedRows []uuid.UUID  `json:"posted_rows"`
	Conflicts  []PostConflict `json:"conflicts"`
}

// BalanceResponse reports a stock balance query result
type BalanceResponse struct {
	ItemCode     string          `json:"item_code"`
	LocationCode string          `json:"location_code,omitempty"`
	Batch        string          `json:"batch,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// ToJobLineResponse converts a domain job line to its response form
func ToJobLineResponse(line *job.JobLine) JobLineResponse {
	return JobLineResponse{
		LineNo:            line.LineNo,
		ItemCode:          line.ItemCode,
		Batch:             line.Batch,
		Quantity:          line.Quantity,
		UOM:               line.UOM,
		RequiredStorage:   line.RequiredStorage,
		PreferredLocation: line.PreferredLocation,
	}
}

// ToAllocationRowResponse converts a domain allocation row to its response form
func ToAllocationRowResponse(row *job.AllocationRow) AllocationRowResponse {
	return AllocationRowResponse{
		ID:               row.ID,
		RowNo:            row.RowNo,
		LineNo:           row.LineNo,
		ItemCode:         row.ItemCode,
		Batch:            row.Batch,
		Quantity:         row.Quantity,
		UOM:              row.UOM,
		SourceLocationID: row.SourceLocationID,
		DestLocationID:   row.DestLocationID,
		HandlingUnitID:   row.HandlingUnitID,
		StagePosted:      row.StagePosted,
		FinalPosted:      row.FinalPosted,
	}
}

// ToJobResponse converts a domain job to its response form
func ToJobResponse(j *job.WarehouseJob) JobResponse {
	lines := make([]JobLineResponse, 0, len(j.Lines))
	for idx := range j.Lines {
		lines = append(lines, ToJobLineResponse(&j.Lines[idx]))
	}
	rows := make([]AllocationRowResponse, 0, len(j.Rows))
	for idx := range j.Rows {
		rows = append(rows, ToAllocationRowResponse(&j.Rows[idx]))
	}
	return JobResponse{
		ID:             j.ID,
		Code:           j.Code,
		Type:           j.Type.String(),
		Status:         j.Status.String(),
		SourceOrderRef: j.SourceOrderRef,
		Lines:          lines,
		Rows:           rows,
		CreatedAt:      j.CreatedAt,
		AllocatedAt:    j.AllocatedAt,
		CompletedAt:    j.CompletedAt,
		CancelledAt:    j.CancelledAt,
		Version:        j.Version,
	}
}
