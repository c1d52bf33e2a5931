package warehouse

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// ReservationExpirationService releases capacity reservations whose hold
// went stale before posting confirmed or released them
type ReservationExpirationService struct {
	reservationRepo location.CapacityReservationRepository
	locationRepo    location.StorageLocationRepository
	eventPublisher  shared.EventPublisher
	logger          *zap.Logger
}

// NewReservationExpirationService creates a new ReservationExpirationService
func NewReservationExpirationService(
	reservationRepo location.CapacityReservationRepository,
	locationRepo location.StorageLocationRepository,
	logger *zap.Logger,
) *ReservationExpirationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationExpirationService{
		reservationRepo: reservationRepo,
		locationRepo:    locationRepo,
		logger:          logger,
	}
}

// SetEventPublisher sets the publisher for expiration events
// This is useful when the publisher is not available at construction time
func (s *ReservationExpirationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// ExpiredReservationStats contains statistics about expired reservation processing
type ExpiredReservationStats struct {
	TotalExpired    int       `json:"total_expired"`
	SuccessReleased int       `json:"success_released"`
	FailedReleases  int       `json:"failed_releases"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// ReleaseExpired finds and releases all expired reservations, returning the
// held capacity to each location's headroom and publishing an event per
// released hold.
func (s *ReservationExpirationService) ReleaseExpired(ctx context.Context) (*ExpiredReservationStats, error) {
	stats := &ExpiredReservationStats{
		ProcessedAt: time.Now(),
	}

	expired, err := s.reservationRepo.FindExpired(ctx)
	if err != nil {
		s.logger.Error("Failed to find expired reservations", zap.Error(err))
		return nil, err
	}

	stats.TotalExpired = len(expired)
	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired capacity reservations found")
		return stats, nil
	}

	s.logger.Info("Found expired capacity reservations",
		zap.Int("count", stats.TotalExpired),
	)

	for idx := range expired {
		if err := s.releaseReservation(ctx, &expired[idx]); err != nil {
			s.logger.Error("Failed to release expired reservation",
				zap.String("reservation_id", expired[idx].ID.String()),
				zap.String("job_id", expired[idx].JobID),
				zap.Error(err),
			)
			stats.FailedReleases++
			continue
		}
		stats.SuccessReleased++
	}

	s.logger.Info("Completed expired reservation release",
		zap.Int("total", stats.TotalExpired),
		zap.Int("released", stats.SuccessReleased),
		zap.Int("failed", stats.FailedReleases),
	)

	return stats, nil
}

// releaseReservation releases one expired hold through its owning location
// so the headroom bookkeeping stays on the aggregate
func (s *ReservationExpirationService) releaseReservation(ctx context.Context, res *location.CapacityReservation) error {
	loc, err := s.locationRepo.FindByID(ctx, res.LocationID)
	if err != nil {
		return err
	}

	if err := loc.ReleaseReservation(res.ID); err != nil {
		// another process settled it between the query and now
		s.logger.Debug("Reservation already settled",
			zap.String("reservation_id", res.ID.String()),
		)
		return nil
	}

	if err := s.locationRepo.SaveWithLock(ctx, loc); err != nil {
		return err
	}

	if s.eventPublisher != nil {
		event := location.NewReservationExpiredEvent(loc.ID, res)
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish reservation expired event",
				zap.String("reservation_id", res.ID.String()),
				zap.Error(err),
			)
			// the hold is already released; the event is best effort
		}
	}

	s.logger.Debug("Released expired capacity reservation",
		zap.String("reservation_id", res.ID.String()),
		zap.String("location_code", loc.Code),
		zap.String("job_id", res.JobID),
	)

	return nil
}

// GetExpiredCount returns the count of currently expired but unsettled reservations
func (s *ReservationExpirationService) GetExpiredCount(ctx context.Context) (int, error) {
	expired, err := s.reservationRepo.FindExpired(ctx)
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}
