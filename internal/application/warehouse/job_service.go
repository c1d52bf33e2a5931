package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/allocation"
	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/shared"
)

// IdempotencyStore guards an operation key across processes. A posting
// that crashes between the ledger append and the row flag update is fenced
// by the key until its TTL lapses.
type IdempotencyStore interface {
	// Begin claims the key; returns false when another process holds it
	Begin(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Clear releases the key so the operation can retry
	Clear(ctx context.Context, key string) error
}

// Config carries the service-level settings for job orchestration
type Config struct {
	Allocation       allocation.Config
	InboundDockCode  string
	OutboundDockCode string
	PostingGuardTTL  time.Duration
}

// JobService drives warehouse jobs through create, allocate, post and
// cancel. All mutations run inside a transaction scope; domain events are
// published after the transaction commits.
type JobService struct {
	cfg            Config
	scope          TransactionScope
	idempotency    IdempotencyStore
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewJobService creates a new JobService
func NewJobService(cfg Config, scope TransactionScope, idempotency IdempotencyStore, logger *zap.Logger) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{
		cfg:         cfg,
		scope:       scope,
		idempotency: idempotency,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *JobService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishEvents drains and publishes the aggregates' pending events.
// Publishing failures are logged, not surfaced; the state change has
// already committed.
func (s *JobService) publishEvents(ctx context.Context, aggregates ...shared.AggregateRoot) {
	if s.eventPublisher == nil {
		return
	}
	for _, agg := range aggregates {
		events := agg.GetDomainEvents()
		if len(events) == 0 {
			continue
		}
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			s.logger.Error("Failed to publish domain events",
				zap.String("aggregate_id", agg.GetID().String()),
				zap.Error(err),
			)
		}
		agg.ClearDomainEvents()
	}
}

// generateJobCode builds a unique, sortable job code
func generateJobCode() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("JOB-%s-%s", time.Now().UTC().Format("20060102150405"), suffix)
}

// CreateJob creates a draft job from a source order document
func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (*JobResponse, error) {
	var created *job.WarehouseJob

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		staging, err := repos.Locations().FindByCode(ctx, req.StagingLocation)
		if err != nil {
			return shared.NewDomainError("STAGING_NOT_FOUND", fmt.Sprintf("Staging location %s not found", req.StagingLocation))
		}
		if !staging.IsActive() {
			return shared.NewDomainError("LOCATION_INACTIVE", fmt.Sprintf("Staging location %s is not active", staging.Code))
		}

		lines := make([]job.JobLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			lines = append(lines, job.JobLine{
				ItemCode:          l.ItemCode,
				Batch:             l.Batch,
				Quantity:          l.Quantity,
				UOM:               l.UOM,
				RequiredStorage:   l.RequiredStorage,
				PreferredLocation: l.PreferredLocation,
			})
		}

		j, err := job.NewWarehouseJob(generateJobCode(), job.JobType(req.Type), req.SourceOrderRef, staging.ID, lines)
		if err != nil {
			return err
		}
		if err := repos.Jobs().Save(ctx, j); err != nil {
			return err
		}
		created = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, created)
	s.logger.Info("Warehouse job created",
		zap.String("job_code", created.Code),
		zap.String("job_type", created.Type.String()),
		zap.Int("lines", len(created.Lines)),
	)

	resp := ToJobResponse(created)
	return &resp, nil
}

// Allocate runs the allocation engine over the job's lines and records the
// plan. Per-line failures are returned alongside the rows; the whole run
// fails (and rolls back its reservations) only when no line allocates.
func (s *JobService) Allocate(ctx context.Context, jobID uuid.UUID) (*AllocateResponse, error) {
	var (
		allocated *job.WarehouseJob
		result    *allocation.Result
	)

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		j, err := repos.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}

		engine, err := allocation.NewEngine(s.cfg.Allocation,
			repos.Locations(), repos.Units(), repos.UnitTypes(), repos.Ledger())
		if err != nil {
			return err
		}

		result, err = engine.Allocate(ctx, j)
		if err != nil {
			return err
		}
		if len(result.Rows) == 0 {
			// zero successful lines aborts the run; the rollback drops
			// any reservations the engine placed
			for _, f := range result.Failures {
				s.logger.Warn("Allocation failed for line",
					zap.String("job_code", j.Code),
					zap.Int("line_no", f.LineNo),
					zap.String("reason", f.Reason),
				)
			}
			return shared.ErrAllocationFailed
		}

		if err := j.MarkAllocated(result.Rows); err != nil {
			return err
		}
		if err := repos.Jobs().SaveWithLock(ctx, j); err != nil {
			return err
		}
		allocated = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, allocated)

	unallocated := make([]JobLineResponse, 0)
	for _, line := range allocated.UnallocatedLines() {
		unallocated = append(unallocated, ToJobLineResponse(&line))
	}
	rows := make([]AllocationRowResponse, 0, len(allocated.Rows))
	for idx := range allocated.Rows {
		rows = append(rows, ToAllocationRowResponse(&allocated.Rows[idx]))
	}

	return &AllocateResponse{
		Job:              ToJobResponse(allocated),
		Rows:             rows,
		UnallocatedLines: unallocated,
		Failures:         result.Failures,
	}, nil
}

// Cancel cancels an unposted job, releasing its capacity reservations and
// retiring handling units the allocation created but never filled.
func (s *JobService) Cancel(ctx context.Context, jobID uuid.UUID) (*JobResponse, error) {
	var cancelled *job.WarehouseJob
	released := make([]shared.AggregateRoot, 0)

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		j, err := repos.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if err := j.Cancel(); err != nil {
			return err
		}

		for idx := range j.Rows {
			row := &j.Rows[idx]
			if row.ReservationID != nil && row.DestLocationID != nil {
				loc, err := repos.Locations().FindByID(ctx, *row.DestLocationID)
				if err != nil {
					return err
				}
				if err := loc.ReleaseReservation(*row.ReservationID); err == nil {
					if err := repos.Locations().SaveWithLock(ctx, loc); err != nil {
						return err
					}
					released = append(released, loc)
				}
			}
			// putaway units were created for this job and hold nothing yet
			if j.Type == job.JobTypePutaway && row.HandlingUnitID != nil {
				unit, err := repos.Units().FindByID(ctx, *row.HandlingUnitID)
				if err != nil {
					return err
				}
				if err := unit.Release(); err == nil {
					if err := repos.Units().SaveWithLock(ctx, unit); err != nil {
						return err
					}
					released = append(released, unit)
				}
			}
		}

		if err := repos.Jobs().SaveWithLock(ctx, j); err != nil {
			return err
		}
		cancelled = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, append([]shared.AggregateRoot{cancelled}, released...)...)
	s.logger.Info("Warehouse job cancelled", zap.String("job_code", cancelled.Code))

	resp := ToJobResponse(cancelled)
	return &resp, nil
}

// GetJob returns a job with its lines and rows
func (s *JobService) GetJob(ctx context.Context, jobID uuid.UUID) (*JobResponse, error) {
	var resp *JobResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		j, err := repos.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		r := ToJobResponse(j)
		resp = &r
		return nil
	})
	return resp, err
}

// GetJobStatus returns the job's current state-machine status
func (s *JobService) GetJobStatus(ctx context.Context, jobID uuid.UUID) (job.JobStatus, error) {
	var status job.JobStatus
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		j, err := repos.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		status = j.Status
		return nil
	})
	return status, err
}

// ListJobs returns jobs matching the filter
func (s *JobService) ListJobs(ctx context.Context, filter shared.Filter) ([]JobResponse, error) {
	var result []JobResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		jobs, err := repos.Jobs().FindAll(ctx, filter)
		if err != nil {
			return err
		}
		result = make([]JobResponse, 0, len(jobs))
		for idx := range jobs {
			result = append(result, ToJobResponse(&jobs[idx]))
		}
		return nil
	})
	return result, err
}

// GetBalance returns the signed ledger sum for an item, optionally
// narrowed to one location and/or batch
func (s *JobService) GetBalance(ctx context.Context, itemCode, locationCode, batch string) (*BalanceResponse, error) {
	var resp *BalanceResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var locationID *uuid.UUID
		if locationCode != "" {
			loc, err := repos.Locations().FindByCode(ctx, locationCode)
			if err != nil {
				return err
			}
			locationID = &loc.ID
		}
		qty, err := repos.Ledger().Balance(ctx, itemCode, locationID, batch)
		if err != nil {
			return err
		}
		resp = &BalanceResponse{
			ItemCode:     itemCode,
			LocationCode: locationCode,
			Batch:        batch,
			Quantity:     qty,
		}
		return nil
	})
	return resp, err
}

// findLine returns the job line backing a row
func findLine(j *job.WarehouseJob, lineNo int) *job.JobLine {
	for idx := range j.Lines {
		if j.Lines[idx].LineNo == lineNo {
			return &j.Lines[idx]
		}
	}
	return nil
}
