package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/handling"
	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/ledger"
	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// footprint is the capacity one handling unit consumes at a location
func footprint(unit *handling.HandlingUnit) location.Capacity {
	return location.Capacity{
		Volume:    unit.Volume,
		Weight:    unit.Weight,
		UnitCount: decimal.NewFromInt(1),
	}
}

// bareFootprint is the capacity demand of stock moving without a handling unit
func bareFootprint() location.Capacity {
	return location.Capacity{UnitCount: decimal.NewFromInt(1)}
}

// PostPhase posts one phase across all of the job's eligible rows. Each
// row posts its balanced OUT/IN pair; a row whose commit-time capacity
// re-check fails is reported as a conflict while the other rows commit.
// Rows already posted for the phase are skipped, so re-invocation after a
// partial failure is safe.
func (s *JobService) PostPhase(ctx context.Context, jobID uuid.UUID, phase ledger.PostingPhase) (*PostPhaseResponse, error) {
	if !phase.IsValid() {
		return nil, shared.NewDomainError("INVALID_PHASE", fmt.Sprintf("Unknown posting phase %s", phase))
	}

	var (
		posted    []uuid.UUID
		conflicts []PostConflict
		updated   *job.WarehouseJob
	)

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		j, err := repos.Jobs().FindByID(ctx, jobID)
		if err != nil {
			return err
		}
		if j.Status != job.JobStatusAllocated && j.Status != job.JobStatusPartiallyPosted {
			return shared.ErrInvalidTransition
		}
		if !phaseRequired(j.Type, phase) {
			return shared.NewDomainError("INVALID_PHASE", fmt.Sprintf("Job type %s does not post phase %s", j.Type, phase))
		}

		posted = make([]uuid.UUID, 0)
		conflicts = make([]PostConflict, 0)

		for idx := range j.Rows {
			row := &j.Rows[idx]
			if row.PhasePosted(phase) {
				continue
			}
			if phase == ledger.PostingPhaseFinal && len(j.Type.RequiredPhases()) == 2 && !row.StagePosted {
				conflicts = append(conflicts, PostConflict{
					RowID: row.ID, Code: "PHASE_ORDER",
					Reason: "Stage phase has not posted for this row",
				})
				continue
			}

			key := fmt.Sprintf("posting:%s:%s:%s", j.ID, row.ID, phase)
			if s.idempotency != nil {
				ok, err := s.idempotency.Begin(ctx, key, s.cfg.PostingGuardTTL)
				if err != nil {
					return err
				}
				if !ok {
					conflicts = append(conflicts, PostConflict{
						RowID: row.ID, Code: "POSTING_IN_PROGRESS",
						Reason: "Another process is posting this row",
					})
					continue
				}
			}

			if err := s.postRow(ctx, repos, j, row, phase); err != nil {
				if s.idempotency != nil {
					_ = s.idempotency.Clear(ctx, key)
				}
				conflicts = append(conflicts, PostConflict{
					RowID: row.ID, Code: errorCode(err), Reason: err.Error(),
				})
				continue
			}

			if err := j.MarkRowPosted(row.ID, phase); err != nil {
				return err
			}
			posted = append(posted, row.ID)
		}

		// nothing posted means nothing changed; re-posting a finished
		// phase is a no-op
		if len(posted) > 0 {
			// completion is opportunistic; a reconciliation gap just
			// leaves the job partially posted
			if err := j.Complete(); err != nil && !errors.Is(err, shared.ErrReconciliationFailed) && !errors.Is(err, shared.ErrInvalidTransition) {
				return err
			}
			if err := repos.Jobs().SaveWithLock(ctx, j); err != nil {
				return err
			}
		}
		updated = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, updated)
	s.logger.Info("Posted job phase",
		zap.String("job_code", updated.Code),
		zap.String("phase", phase.String()),
		zap.Int("posted_rows", len(posted)),
		zap.Int("conflicts", len(conflicts)),
	)

	return &PostPhaseResponse{
		Job:        ToJobResponse(updated),
		PostedRows: posted,
		Conflicts:  conflicts,
	}, nil
}

func phaseRequired(jobType job.JobType, phase ledger.PostingPhase) bool {
	for _, p := range jobType.RequiredPhases() {
		if p == phase {
			return true
		}
	}
	return false
}

func errorCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "POSTING_FAILED"
}

// postRow posts one row's movement for the phase: the capacity re-check,
// the balanced ledger append and the handling unit transition, in that
// order so a conflict never leaves a ledger entry behind.
func (s *JobService) postRow(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow, phase ledger.PostingPhase) error {
	switch j.Type {
	case job.JobTypePutaway:
		if phase == ledger.PostingPhaseStage {
			return s.postInboundStage(ctx, repos, j, row)
		}
		return s.postInboundFinal(ctx, repos, j, row)
	case job.JobTypePick:
		if phase == ledger.PostingPhaseStage {
			return s.postOutboundStage(ctx, repos, j, row)
		}
		return s.postOutboundFinal(ctx, repos, j, row)
	case job.JobTypeMove, job.JobTypeVAS:
		if phase == ledger.PostingPhaseStage {
			return s.postOutboundStage(ctx, repos, j, row)
		}
		return s.postInboundFinal(ctx, repos, j, row)
	case job.JobTypeStocktake:
		return s.postAdjustment(ctx, repos, j, row)
	}
	return shared.NewDomainError("INVALID_JOB", fmt.Sprintf("Cannot post job type %s", j.Type))
}

// postInboundStage moves the row's quantity from the receiving dock into staging
func (s *JobService) postInboundStage(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow) error {
	dock, err := repos.Locations().FindByCode(ctx, s.cfg.InboundDockCode)
	if err != nil {
		return shared.NewDomainError("DOCK_NOT_FOUND", fmt.Sprintf("Inbound dock %s not found", s.cfg.InboundDockCode))
	}

	movement, err := ledger.NewMovement(ledger.MovementSpec{
		ItemCode:         row.ItemCode,
		Batch:            row.Batch,
		UOM:              row.UOM,
		Quantity:         row.Quantity,
		FromLocationID:   dock.ID,
		ToLocationID:     j.StagingLocationID,
		ToHandlingUnitID: row.HandlingUnitID,
		JobID:            j.Code,
		RowID:            row.ID.String(),
		Phase:            ledger.PostingPhaseStage,
	})
	if err != nil {
		return err
	}
	return repos.Ledger().Append(ctx, movement.Entries())
}

// postInboundFinal moves the row's quantity from staging into its reserved
// destination, converting the soft hold into occupancy. The capacity
// re-check runs here because concurrent jobs may have consumed headroom
// since allocation; on conflict the row is re-allocated to an alternate
// destination a bounded number of times.
func (s *JobService) postInboundFinal(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow) error {
	if row.DestLocationID == nil || row.ReservationID == nil {
		return shared.NewDomainError("ROW_INCOMPLETE", "Row has no reserved destination")
	}

	for attempt := 0; ; attempt++ {
		dest, err := repos.Locations().FindByID(ctx, *row.DestLocationID)
		if err != nil {
			return err
		}

		err = dest.ConfirmReservation(*row.ReservationID)
		if err == nil {
			if err := repos.Locations().SaveWithLock(ctx, dest); err != nil {
				if errors.Is(err, shared.ErrConcurrencyConflict) && attempt < s.cfg.Allocation.MaxCapacityRetries {
					continue
				}
				return err
			}

			movement, err := ledger.NewMovement(ledger.MovementSpec{
				ItemCode:           row.ItemCode,
				Batch:              row.Batch,
				UOM:                row.UOM,
				Quantity:           row.Quantity,
				FromLocationID:     j.StagingLocationID,
				ToLocationID:       dest.ID,
				FromHandlingUnitID: row.HandlingUnitID,
				ToHandlingUnitID:   row.HandlingUnitID,
				JobID:              j.Code,
				RowID:              row.ID.String(),
				Phase:              ledger.PostingPhaseFinal,
			})
			if err != nil {
				return err
			}
			if err := repos.Ledger().Append(ctx, movement.Entries()); err != nil {
				return err
			}
			return s.settleUnitArrival(ctx, repos, j, row, dest.ID)
		}

		if !errors.Is(err, shared.ErrCapacityConflict) {
			return err
		}
		if attempt >= s.cfg.Allocation.MaxCapacityRetries {
			return shared.ErrCapacityConflict
		}
		if err := s.reallocateRow(ctx, repos, j, row); err != nil {
			return err
		}
	}
}

// settleUnitArrival finishes the handling unit's transition at the destination
func (s *JobService) settleUnitArrival(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow, destID uuid.UUID) error {
	if row.HandlingUnitID == nil {
		return nil
	}
	unit, err := repos.Units().FindByID(ctx, *row.HandlingUnitID)
	if err != nil {
		return err
	}
	// moved units travel in transit; putaway units were anchored at allocation
	if unit.Status == handling.HandlingUnitStatusInTransit {
		if err := unit.MoveTo(destID); err != nil {
			return err
		}
		return repos.Units().SaveWithLock(ctx, unit)
	}
	return nil
}

// postOutboundStage moves the row's quantity from its source location into
// staging and frees the source slot when the lot is drained.
func (s *JobService) postOutboundStage(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow) error {
	if row.SourceLocationID == nil {
		return shared.NewDomainError("ROW_INCOMPLETE", "Row has no source location")
	}

	// allocation plans against a snapshot of the ledger; the source tuple
	// must still cover the row at commit time or a concurrent pick over
	// the same lot would drive the balance negative
	available, err := repos.Ledger().Balance(ctx, row.ItemCode, row.SourceLocationID, row.Batch)
	if err != nil {
		return err
	}
	if row.HandlingUnitID != nil {
		unitBalance, err := repos.Ledger().BalanceByUnit(ctx, *row.HandlingUnitID)
		if err != nil {
			return err
		}
		available = decimal.Min(available, unitBalance)
	}
	if available.LessThan(row.Quantity) {
		return shared.ErrInsufficientStock
	}

	// picked goods come off the unit at the source; moved goods stay on it
	var stagedUnitID *uuid.UUID
	if j.Type == job.JobTypeMove || j.Type == job.JobTypeVAS {
		stagedUnitID = row.HandlingUnitID
	}

	movement, err := ledger.NewMovement(ledger.MovementSpec{
		ItemCode:           row.ItemCode,
		Batch:              row.Batch,
		UOM:                row.UOM,
		Quantity:           row.Quantity,
		FromLocationID:     *row.SourceLocationID,
		ToLocationID:       j.StagingLocationID,
		FromHandlingUnitID: row.HandlingUnitID,
		ToHandlingUnitID:   stagedUnitID,
		JobID:              j.Code,
		RowID:              row.ID.String(),
		Phase:              ledger.PostingPhaseStage,
	})
	if err != nil {
		return err
	}
	if err := repos.Ledger().Append(ctx, movement.Entries()); err != nil {
		return err
	}

	return s.settleSourceDeparture(ctx, repos, j, row)
}

// settleSourceDeparture frees source capacity once the moved stock left.
// With a handling unit the slot frees when the unit's balance hits zero;
// bare stock frees its unit count when the tuple's balance hits zero.
func (s *JobService) settleSourceDeparture(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow) error {
	src, err := repos.Locations().FindByID(ctx, *row.SourceLocationID)
	if err != nil {
		return err
	}

	if row.HandlingUnitID != nil {
		remaining, err := repos.Ledger().BalanceByUnit(ctx, *row.HandlingUnitID)
		if err != nil {
			return err
		}
		unit, err := repos.Units().FindByID(ctx, *row.HandlingUnitID)
		if err != nil {
			return err
		}

		switch j.Type {
		case job.JobTypeMove, job.JobTypeVAS:
			// the unit travels with the goods to its new destination
			if unit.Status == handling.HandlingUnitStatusAssigned {
				if err := unit.MarkInTransit(); err != nil {
					return err
				}
				if err := repos.Units().SaveWithLock(ctx, unit); err != nil {
					return err
				}
			}
			if err := src.ApplyOutbound(footprint(unit)); err != nil {
				return err
			}
			return repos.Locations().SaveWithLock(ctx, src)
		default:
			// picks strip goods off the unit; the unit stays behind and
			// retires once empty
			if remaining.IsZero() {
				if err := unit.Release(); err != nil {
					return err
				}
				if err := repos.Units().SaveWithLock(ctx, unit); err != nil {
					return err
				}
				if err := src.ApplyOutbound(footprint(unit)); err != nil {
					return err
				}
				return repos.Locations().SaveWithLock(ctx, src)
			}
			return nil
		}
	}

	remaining, err := repos.Ledger().Balance(ctx, row.ItemCode, row.SourceLocationID, row.Batch)
	if err != nil {
		return err
	}
	if remaining.IsZero() {
		if err := src.ApplyOutbound(bareFootprint()); err != nil {
			return err
		}
		return repos.Locations().SaveWithLock(ctx, src)
	}
	return nil
}

// postOutboundFinal moves the row's quantity from staging to the outbound dock
func (s *JobService) postOutboundFinal(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow) error {
	dock, err := repos.Locations().FindByCode(ctx, s.cfg.OutboundDockCode)
	if err != nil {
		return shared.NewDomainError("DOCK_NOT_FOUND", fmt.Sprintf("Outbound dock %s not found", s.cfg.OutboundDockCode))
	}

	movement, err := ledger.NewMovement(ledger.MovementSpec{
		ItemCode:       row.ItemCode,
		Batch:          row.Batch,
		UOM:            row.UOM,
		Quantity:       row.Quantity,
		FromLocationID: j.StagingLocationID,
		ToLocationID:   dock.ID,
		JobID:          j.Code,
		RowID:          row.ID.String(),
		Phase:          ledger.PostingPhaseFinal,
	})
	if err != nil {
		return err
	}
	return repos.Ledger().Append(ctx, movement.Entries())
}

// postAdjustment posts a single-phase stocktake difference. Gains come in
// from staging, losses go out to staging. Occupancy follows the correction:
// a gain that surfaces a new bare lot books its slot, a loss that drains
// the tuple frees it.
func (s *JobService) postAdjustment(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow) error {
	spec := ledger.MovementSpec{
		ItemCode: row.ItemCode,
		Batch:    row.Batch,
		UOM:      row.UOM,
		Quantity: row.Quantity,
		JobID:    j.Code,
		RowID:    row.ID.String(),
		Phase:    ledger.PostingPhaseFinal,
	}
	switch {
	case row.DestLocationID != nil:
		spec.FromLocationID = j.StagingLocationID
		spec.ToLocationID = *row.DestLocationID
	case row.SourceLocationID != nil:
		spec.FromLocationID = *row.SourceLocationID
		spec.ToLocationID = j.StagingLocationID
	default:
		return shared.NewDomainError("ROW_INCOMPLETE", "Adjustment row names no location")
	}

	var newLot bool
	if row.DestLocationID != nil {
		before, err := repos.Ledger().Balance(ctx, row.ItemCode, row.DestLocationID, row.Batch)
		if err != nil {
			return err
		}
		newLot = before.IsZero()
	}

	movement, err := ledger.NewMovement(spec)
	if err != nil {
		return err
	}
	if err := repos.Ledger().Append(ctx, movement.Entries()); err != nil {
		return err
	}

	if row.DestLocationID != nil {
		if !newLot {
			return nil
		}
		dest, err := repos.Locations().FindByID(ctx, *row.DestLocationID)
		if err != nil {
			return err
		}
		if err := dest.ApplyInbound(bareFootprint()); err != nil {
			return err
		}
		return repos.Locations().SaveWithLock(ctx, dest)
	}
	return s.settleSourceDeparture(ctx, repos, j, row)
}

// reallocateRow finds an alternate destination for a row whose reserved
// location lost its headroom, releasing the stale hold and re-anchoring
// the row's handling unit.
func (s *JobService) reallocateRow(ctx context.Context, repos TransactionalRepositories, j *job.WarehouseJob, row *job.AllocationRow) error {
	line := findLine(j, row.LineNo)
	if line == nil {
		return shared.NewDomainError("ROW_INCOMPLETE", "Row references a missing line")
	}

	demand := bareFootprint()
	var unit *handling.HandlingUnit
	if row.HandlingUnitID != nil {
		var err error
		unit, err = repos.Units().FindByID(ctx, *row.HandlingUnitID)
		if err != nil {
			return err
		}
		demand = footprint(unit)
	}

	required := location.ParseStorageTypes(line.RequiredStorage)
	candidates, err := repos.Locations().FindCandidates(ctx, required)
	if err != nil {
		return err
	}

	oldDestID := *row.DestLocationID
	for idx := range candidates {
		cand := &candidates[idx]
		if cand.ID == oldDestID || cand.ID == j.StagingLocationID {
			continue
		}
		if !cand.CapacityAvailable(demand) {
			continue
		}

		res, err := cand.Reserve(demand, j.Code, row.ID.String(), time.Now().Add(s.cfg.Allocation.ReservationTTL))
		if err != nil {
			continue
		}
		if err := repos.Locations().SaveWithLock(ctx, cand); err != nil {
			continue
		}

		// drop the stale hold at the old destination
		oldDest, err := repos.Locations().FindByID(ctx, oldDestID)
		if err == nil && row.ReservationID != nil {
			if relErr := oldDest.ReleaseReservation(*row.ReservationID); relErr == nil {
				if err := repos.Locations().SaveWithLock(ctx, oldDest); err != nil {
					return err
				}
			}
		}

		if unit != nil {
			if err := unit.Unanchor(); err != nil {
				return err
			}
			if err := unit.AssignTo(cand.ID); err != nil {
				return err
			}
			if err := repos.Units().SaveWithLock(ctx, unit); err != nil {
				return err
			}
		}

		row.DestLocationID = &cand.ID
		row.ReservationID = &res.ID
		s.logger.Warn("Row re-allocated after capacity conflict",
			zap.String("job_code", j.Code),
			zap.String("row_id", row.ID.String()),
			zap.String("new_destination", cand.Code),
		)
		return nil
	}

	return shared.ErrCapacityConflict
}
