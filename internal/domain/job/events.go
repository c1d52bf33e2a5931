package job

import (
	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeWarehouseJob = "WarehouseJob"

// Event type constants
const (
	EventTypeJobCreated     = "WarehouseJobCreated"
	EventTypeJobAllocated   = "WarehouseJobAllocated"
	EventTypeJobPhasePosted = "WarehouseJobPhasePosted"
	EventTypeJobCompleted   = "WarehouseJobCompleted"
	EventTypeJobCancelled   = "WarehouseJobCancelled"
)

// JobCreatedEvent is raised when a draft job is created from a source order
type JobCreatedEvent struct {
	shared.BaseDomainEvent
	JobID          uuid.UUID `json:"job_id"`
	JobCode        string    `json:"job_code"`
	JobType        JobType   `json:"job_type"`
	SourceOrderRef string    `json:"source_order_ref"`
	LineCount      int       `json:"line_count"`
}

// NewJobCreatedEvent creates a new JobCreatedEvent
func NewJobCreatedEvent(j *WarehouseJob) *JobCreatedEvent {
	return &JobCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobCreated, AggregateTypeWarehouseJob, j.ID),
		JobID:           j.ID,
		JobCode:         j.Code,
		JobType:         j.Type,
		SourceOrderRef:  j.SourceOrderRef,
		LineCount:       len(j.Lines),
	}
}

// EventType returns the event type name
func (e *JobCreatedEvent) EventType() string {
	return EventTypeJobCreated
}

// JobAllocatedEvent is raised when the allocation engine's plan is recorded
type JobAllocatedEvent struct {
	shared.BaseDomainEvent
	JobID            uuid.UUID `json:"job_id"`
	JobCode          string    `json:"job_code"`
	RowCount         int       `json:"row_count"`
	UnallocatedLines int       `json:"unallocated_lines"`
}

// NewJobAllocatedEvent creates a new JobAllocatedEvent
func NewJobAllocatedEvent(j *WarehouseJob) *JobAllocatedEvent {
	return &JobAllocatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeJobAllocated, AggregateTypeWarehouseJob, j.ID),
		JobID:            j.ID,
		JobCode:          j.Code,
		RowCount:         len(j.Rows),
		UnallocatedLines: len(j.UnallocatedLines()),
	}
}

// EventType returns the event type name
func (e *JobAllocatedEvent) EventType() string {
	return EventTypeJobAllocated
}

// JobPhasePostedEvent is raised when one row's phase posting commits
type JobPhasePostedEvent struct {
	shared.BaseDomainEvent
	JobID   uuid.UUID           `json:"job_id"`
	JobCode string              `json:"job_code"`
	JobType JobType             `json:"job_type"`
	RowID   uuid.UUID           `json:"row_id"`
	Phase   ledger.PostingPhase `json:"phase"`
}

// NewJobPhasePostedEvent creates a new JobPhasePostedEvent
func NewJobPhasePostedEvent(j *WarehouseJob, rowID uuid.UUID, phase ledger.PostingPhase) *JobPhasePostedEvent {
	return &JobPhasePostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobPhasePosted, AggregateTypeWarehouseJob, j.ID),
		JobID:           j.ID,
		JobCode:         j.Code,
		JobType:         j.Type,
		RowID:           rowID,
		Phase:           phase,
	}
}

// EventType returns the event type name
func (e *JobPhasePostedEvent) EventType() string {
	return EventTypeJobPhasePosted
}

// JobCompletedEvent is raised when a job reconciles and completes.
// Billing consumes this downstream; the engine never calls into billing.
type JobCompletedEvent struct {
	shared.BaseDomainEvent
	JobID          uuid.UUID `json:"job_id"`
	JobCode        string    `json:"job_code"`
	JobType        JobType   `json:"job_type"`
	SourceOrderRef string    `json:"source_order_ref"`
}

// NewJobCompletedEvent creates a new JobCompletedEvent
func NewJobCompletedEvent(j *WarehouseJob) *JobCompletedEvent {
	return &JobCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobCompleted, AggregateTypeWarehouseJob, j.ID),
		JobID:           j.ID,
		JobCode:         j.Code,
		JobType:         j.Type,
		SourceOrderRef:  j.SourceOrderRef,
	}
}

// EventType returns the event type name
func (e *JobCompletedEvent) EventType() string {
	return EventTypeJobCompleted
}

// JobCancelledEvent is raised when an unposted job is cancelled
type JobCancelledEvent struct {
	shared.BaseDomainEvent
	JobID   uuid.UUID `json:"job_id"`
	JobCode string    `json:"job_code"`
	JobType JobType   `json:"job_type"`
}

// NewJobCancelledEvent creates a new JobCancelledEvent
func NewJobCancelledEvent(j *WarehouseJob) *JobCancelledEvent {
	return &JobCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobCancelled, AggregateTypeWarehouseJob, j.ID),
		JobID:           j.ID,
		JobCode:         j.Code,
		JobType:         j.Type,
	}
}

// EventType returns the event type name
func (e *JobCancelledEvent) EventType() string {
	return EventTypeJobCancelled
}
