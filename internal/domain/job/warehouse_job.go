package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
)

// JobType represents the kind of physical work a warehouse job drives
type JobType string

const (
	JobTypePutaway   JobType = "PUTAWAY"
	JobTypePick      JobType = "PICK"
	JobTypeMove      JobType = "MOVE"
	JobTypeVAS       JobType = "VAS"
	JobTypeStocktake JobType = "STOCKTAKE"
)

// IsValid checks if the job type is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobTypePutaway, JobTypePick, JobTypeMove, JobTypeVAS, JobTypeStocktake:
		return true
	}
	return false
}

// String returns the string representation of JobType
func (t JobType) String() string {
	return string(t)
}

// RequiredPhases returns the posting phases a row of this job type must
// complete. Putaway, pick, move and VAS all pass through staging; a
// stocktake adjustment posts in a single phase.
func (t JobType) RequiredPhases() []ledger.PostingPhase {
	if t == JobTypeStocktake {
		return []ledger.PostingPhase{ledger.PostingPhaseFinal}
	}
	return []ledger.PostingPhase{ledger.PostingPhaseStage, ledger.PostingPhaseFinal}
}

// JobStatus represents the state machine status of a warehouse job
type JobStatus string

const (
	JobStatusDraft           JobStatus = "DRAFT"
	JobStatusAllocated       JobStatus = "ALLOCATED"
	JobStatusPartiallyPosted JobStatus = "PARTIALLY_POSTED"
	JobStatusCompleted       JobStatus = "COMPLETED"
	JobStatusCancelled       JobStatus = "CANCELLED"
)

// IsValid checks if the status is a valid JobStatus
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusDraft, JobStatusAllocated, JobStatusPartiallyPosted, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true for states that admit no further transitions
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusDraft:
		return target == JobStatusAllocated || target == JobStatusCancelled
	case JobStatusAllocated:
		return target == JobStatusPartiallyPosted || target == JobStatusCompleted || target == JobStatusCancelled
	case JobStatusPartiallyPosted:
		return target == JobStatusCompleted || target == JobStatusCancelled
	case JobStatusCompleted, JobStatusCancelled:
		return false // Terminal states
	}
	return false
}

// JobLine is one requested (item, quantity) line seeded from the source
// order document.
type JobLine struct {
	shared.BaseEntity
	JobID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo            int             `gorm:"not null"`
	ItemCode          string          `gorm:"type:varchar(50);not null"`
	Batch             string          `gorm:"type:varchar(50);not null;default:''"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UOM               string          `gorm:"type:varchar(20);not null"`
	RequiredStorage   string          `gorm:"type:varchar(255);not null;default:''"` // comma-separated storage-type tags
	PreferredLocation string          `gorm:"type:varchar(50);not null;default:''"`
}

// TableName returns the table name for GORM
func (JobLine) TableName() string {
	return "warehouse_job_lines"
}

// AllocationRow is one planned assignment produced by the allocation
// engine: a quantity bound to a source and/or destination location and a
// handling unit, with per-phase posting flags.
type AllocationRow struct {
	shared.BaseEntity
	JobID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	RowNo            int             `gorm:"not null"`
	LineNo           int             `gorm:"not null"`
	ItemCode         string          `gorm:"type:varchar(50);not null"`
	Batch            string          `gorm:"type:varchar(50);not null;default:''"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UOM              string          `gorm:"type:varchar(20);not null"`
	SourceLocationID *uuid.UUID      `gorm:"type:uuid"`
	DestLocationID   *uuid.UUID      `gorm:"type:uuid"`
	HandlingUnitID   *uuid.UUID      `gorm:"type:uuid"`
	ReservationID    *uuid.UUID      `gorm:"type:uuid"`
	StagePosted      bool            `gorm:"not null;default:false"`
	FinalPosted      bool            `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (AllocationRow) TableName() string {
	return "warehouse_allocation_rows"
}

// PhasePosted reports whether the given phase has been posted for this row
func (r *AllocationRow) PhasePosted(phase ledger.PostingPhase) bool {
	switch phase {
	case ledger.PostingPhaseStage:
		return r.StagePosted
	case ledger.PostingPhaseFinal:
		return r.FinalPosted
	}
	return false
}

// FullyPosted reports whether all of the job type's required phases are posted
func (r *AllocationRow) FullyPosted(jobType JobType) bool {
	for _, phase := range jobType.RequiredPhases() {
		if !r.PhasePosted(phase) {
			return false
		}
	}
	return true
}

// HasAnyPostedPhase reports whether the row has posted at least one phase
func (r *AllocationRow) HasAnyPostedPhase() bool {
	return r.StagePosted || r.FinalPosted
}

// WarehouseJob is the aggregate root driving one unit of physical work
// through allocate, post and complete. Jobs are archived on completion or
// cancellation, never hard-deleted.
type WarehouseJob struct {
	shared.BaseAggregateRoot
	Code              string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Type              JobType         `gorm:"type:varchar(20);not null"`
	Status            JobStatus       `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	SourceOrderRef    string          `gorm:"type:varchar(100);not null"`
	StagingLocationID uuid.UUID       `gorm:"type:uuid;not null"`
	Lines             []JobLine       `gorm:"foreignKey:JobID;references:ID"`
	Rows              []AllocationRow `gorm:"foreignKey:JobID;references:ID"`
	AllocatedAt       *time.Time      `gorm:"type:timestamp"`
	CompletedAt       *time.Time      `gorm:"type:timestamp"`
	CancelledAt       *time.Time      `gorm:"type:timestamp"`
}

// TableName returns the table name for GORM
func (WarehouseJob) TableName() string {
	return "warehouse_jobs"
}

// NewWarehouseJob creates a draft job seeded from a source order document
func NewWarehouseJob(code string, jobType JobType, sourceOrderRef string, stagingLocationID uuid.UUID, lines []JobLine) (*WarehouseJob, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_JOB", "Job code cannot be empty")
	}
	if !jobType.IsValid() {
		return nil, shared.NewDomainError("INVALID_JOB", fmt.Sprintf("Unknown job type %s", jobType))
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_JOB", "Job must have at least one line")
	}
	if stagingLocationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_JOB", "Job must reference a staging location")
	}

	j := &WarehouseJob{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Type:              jobType,
		Status:            JobStatusDraft,
		SourceOrderRef:    sourceOrderRef,
		StagingLocationID: stagingLocationID,
		Lines:             make([]JobLine, 0, len(lines)),
		Rows:              make([]AllocationRow, 0),
	}

	for i := range lines {
		line := lines[i]
		if line.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_JOB", fmt.Sprintf("Line %d quantity must be positive", i+1))
		}
		line.BaseEntity = shared.NewBaseEntity()
		line.JobID = j.ID
		line.LineNo = i + 1
		j.Lines = append(j.Lines, line)
	}

	j.AddDomainEvent(NewJobCreatedEvent(j))

	return j, nil
}

// NewAllocationRow builds a row bound to this job
func (j *WarehouseJob) NewAllocationRow(lineNo int, itemCode, batch string, qty decimal.Decimal, uom string) AllocationRow {
	return AllocationRow{
		BaseEntity: shared.NewBaseEntity(),
		JobID:      j.ID,
		RowNo:      len(j.Rows) + 1,
		LineNo:     lineNo,
		ItemCode:   itemCode,
		Batch:      batch,
		Quantity:   qty,
		UOM:        uom,
	}
}

// MarkAllocated records the engine's plan and moves the job to Allocated.
// Individual lines may have failed to allocate; the job still advances as
// long as at least one row was produced.
func (j *WarehouseJob) MarkAllocated(rows []AllocationRow) error {
	if !j.Status.CanTransitionTo(JobStatusAllocated) {
		return shared.ErrInvalidTransition
	}
	if len(rows) == 0 {
		return shared.NewDomainError("ALLOCATION_FAILED", "Allocation produced no rows")
	}

	now := time.Now()
	j.Rows = rows
	j.Status = JobStatusAllocated
	j.AllocatedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewJobAllocatedEvent(j))

	return nil
}

// FindRow returns the row with the given ID, or nil
func (j *WarehouseJob) FindRow(rowID uuid.UUID) *AllocationRow {
	for idx := range j.Rows {
		if j.Rows[idx].ID == rowID {
			return &j.Rows[idx]
		}
	}
	return nil
}

// MarkRowPosted records a successful phase posting for one row. Posting an
// already posted phase is a no-op so retries stay safe. The first posting
// moves the job from Allocated to PartiallyPosted.
func (j *WarehouseJob) MarkRowPosted(rowID uuid.UUID, phase ledger.PostingPhase) error {
	if j.Status != JobStatusAllocated && j.Status != JobStatusPartiallyPosted {
		return shared.ErrInvalidTransition
	}

	row := j.FindRow(rowID)
	if row == nil {
		return shared.NewDomainError("ROW_NOT_FOUND", fmt.Sprintf("Allocation row %s not found on job %s", rowID, j.Code))
	}
	if row.PhasePosted(phase) {
		return nil
	}
	if phase == ledger.PostingPhaseFinal && len(j.Type.RequiredPhases()) == 2 && !row.StagePosted {
		return shared.NewDomainError("PHASE_ORDER", "Stage phase must post before the final phase")
	}

	now := time.Now()
	switch phase {
	case ledger.PostingPhaseStage:
		row.StagePosted = true
	case ledger.PostingPhaseFinal:
		row.FinalPosted = true
	default:
		return shared.NewDomainError("INVALID_PHASE", fmt.Sprintf("Unknown posting phase %s", phase))
	}
	row.UpdatedAt = now

	if j.Status == JobStatusAllocated {
		j.Status = JobStatusPartiallyPosted
	}
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewJobPhasePostedEvent(j, rowID, phase))

	return nil
}

// Reconciled reports whether fully posted row quantities exactly match the
// requested quantity for every line.
func (j *WarehouseJob) Reconciled() bool {
	// Stocktake lines carry counted quantities while their rows carry the
	// difference against the ledger, so there is no exact match to check.
	if j.Type == JobTypeStocktake {
		return true
	}

	requested := make(map[int]decimal.Decimal)
	for _, line := range j.Lines {
		requested[line.LineNo] = line.Quantity
	}

	posted := make(map[int]decimal.Decimal)
	for idx := range j.Rows {
		row := &j.Rows[idx]
		if row.FullyPosted(j.Type) {
			posted[row.LineNo] = posted[row.LineNo].Add(row.Quantity)
		}
	}

	for lineNo, want := range requested {
		if !posted[lineNo].Equal(want) {
			return false
		}
	}
	return true
}

// Complete moves the job to Completed once every row's required phases are
// posted and posted quantities reconcile exactly against requested
// quantities. On mismatch the job stays where it is.
func (j *WarehouseJob) Complete() error {
	if !j.Status.CanTransitionTo(JobStatusCompleted) {
		return shared.ErrInvalidTransition
	}
	for idx := range j.Rows {
		if !j.Rows[idx].FullyPosted(j.Type) {
			return shared.ErrReconciliationFailed
		}
	}
	if !j.Reconciled() {
		return shared.ErrReconciliationFailed
	}

	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewJobCompletedEvent(j))

	return nil
}

// HasPostedRows reports whether any row has posted any phase
func (j *WarehouseJob) HasPostedRows() bool {
	for idx := range j.Rows {
		if j.Rows[idx].HasAnyPostedPhase() {
			return true
		}
	}
	return false
}

// Cancel moves the job to Cancelled. Only unposted jobs may cancel;
// reversing posted entries is an adjustment, not a cancellation. The
// caller releases the job's capacity reservations.
func (j *WarehouseJob) Cancel() error {
	if !j.Status.CanTransitionTo(JobStatusCancelled) {
		return shared.ErrInvalidTransition
	}
	if j.HasPostedRows() {
		return shared.ErrInvalidTransition
	}

	now := time.Now()
	j.Status = JobStatusCancelled
	j.CancelledAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewJobCancelledEvent(j))

	return nil
}

// UnallocatedLines returns lines with no allocation row covering their
// full requested quantity.
func (j *WarehouseJob) UnallocatedLines() []JobLine {
	allocated := make(map[int]decimal.Decimal)
	for idx := range j.Rows {
		allocated[j.Rows[idx].LineNo] = allocated[j.Rows[idx].LineNo].Add(j.Rows[idx].Quantity)
	}

	missing := make([]JobLine, 0)
	for _, line := range j.Lines {
		if allocated[line.LineNo].LessThan(line.Quantity) {
			missing = append(missing, line)
		}
	}
	return missing
}
