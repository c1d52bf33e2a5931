package warehouse

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/job"
	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// JobMetricsRecorder records warehouse business metrics. The telemetry
// BusinessMetrics type satisfies this interface.
type JobMetricsRecorder interface {
	RecordJobCreated(ctx context.Context, jobType string)
	RecordJobPosted(ctx context.Context, jobType, phase string)
	RecordJobCancelled(ctx context.Context, jobType string)
	RecordLocationOccupancy(ctx context.Context, locationID uuid.UUID, quantity float64)
}

// MetricsEventHandler subscribes to job lifecycle and occupancy events and
// forwards them to the metrics recorder, keeping metric emission out of the
// service write paths.
type MetricsEventHandler struct {
	recorder JobMetricsRecorder
	logger   *zap.Logger
}

// NewMetricsEventHandler creates a new handler that records business metrics
// from domain events
func NewMetricsEventHandler(recorder JobMetricsRecorder, logger *zap.Logger) *MetricsEventHandler {
	return &MetricsEventHandler{
		recorder: recorder,
		logger:   logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *MetricsEventHandler) EventTypes() []string {
	return []string{
		job.EventTypeJobCreated,
		job.EventTypeJobPhasePosted,
		job.EventTypeJobCancelled,
		location.EventTypeOccupancyRebuilt,
	}
}

// Handle records the metric matching the event type
func (h *MetricsEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *job.JobCreatedEvent:
		h.recorder.RecordJobCreated(ctx, string(e.JobType))
	case *job.JobPhasePostedEvent:
		h.recorder.RecordJobPosted(ctx, string(e.JobType), string(e.Phase))
	case *job.JobCancelledEvent:
		h.recorder.RecordJobCancelled(ctx, string(e.JobType))
	case *location.OccupancyRebuiltEvent:
		h.recorder.RecordLocationOccupancy(ctx, e.LocationID, e.Occupied.UnitCount.InexactFloat64())
	default:
		h.logger.Debug("ignoring event without a metric mapping",
			zap.String("event_type", event.EventType()),
		)
	}
	return nil
}

// Ensure MetricsEventHandler implements shared.EventHandler
var _ shared.EventHandler = (*MetricsEventHandler)(nil)
