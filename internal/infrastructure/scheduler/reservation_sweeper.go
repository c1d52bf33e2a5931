package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/application/warehouse"
)

// ExpiredReservationReleaser releases expired capacity reservations.
// Implemented by warehouse.ReservationExpirationService.
type ExpiredReservationReleaser interface {
	ReleaseExpired(ctx context.Context) (*warehouse.ExpiredReservationStats, error)
}

// ReservationSweeperConfig holds configuration for the reservation sweeper
type ReservationSweeperConfig struct {
	// Enabled determines if the sweeper is active
	Enabled bool

	// CheckInterval is how often expired reservations are swept
	CheckInterval time.Duration

	// SweepTimeout is the maximum time for one sweep run
	SweepTimeout time.Duration
}

// DefaultReservationSweeperConfig returns default sweeper configuration
func DefaultReservationSweeperConfig() ReservationSweeperConfig {
	return ReservationSweeperConfig{
		Enabled:       true,
		CheckInterval: 5 * time.Minute,
		SweepTimeout:  time.Minute,
	}
}

// ReservationSweeper periodically releases expired capacity reservations
// so abandoned soft holds do not starve allocation. Capacity held by an
// expired reservation flows back to the location on the next sweep.
type ReservationSweeper struct {
	config  ReservationSweeperConfig
	service ExpiredReservationReleaser
	logger  *zap.Logger

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

// NewReservationSweeper creates a new reservation sweeper
func NewReservationSweeper(
	config ReservationSweeperConfig,
	service ExpiredReservationReleaser,
	logger *zap.Logger,
) *ReservationSweeper {
	return &ReservationSweeper{
		config:  config,
		service: service,
		logger:  logger,
	}
}

// Start starts the sweeper
func (s *ReservationSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("reservation sweeper is disabled")
		return nil
	}
	if s.config.CheckInterval <= 0 {
		return fmt.Errorf("invalid sweep interval %s", s.config.CheckInterval)
	}

	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.config.CheckInterval)
	if _, err := s.cron.AddFunc(spec, func() { s.runSweep(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule reservation sweep: %w", err)
	}
	s.cron.Start()
	s.isRunning = true

	s.logger.Info("reservation sweeper started",
		zap.Duration("check_interval", s.config.CheckInterval),
	)
	return nil
}

// Stop stops the sweeper and waits for an in-flight sweep to finish
func (s *ReservationSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("reservation sweeper stopped")
	return nil
}

// runSweep executes one sweep of expired reservations
func (s *ReservationSweeper) runSweep(ctx context.Context) {
	sweepCtx := ctx
	if s.config.SweepTimeout > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, s.config.SweepTimeout)
		defer cancel()
	}

	stats, err := s.service.ReleaseExpired(sweepCtx)
	if err != nil {
		s.logger.Error("reservation sweep failed", zap.Error(err))
		return
	}

	if stats.TotalExpired > 0 {
		s.logger.Info("reservation sweep released expired holds",
			zap.Int("total_expired", stats.TotalExpired),
			zap.Int("released", stats.SuccessReleased),
			zap.Int("failed", stats.FailedReleases),
		)
	}
}
