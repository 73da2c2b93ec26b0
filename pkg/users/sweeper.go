package users

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/verdict/pkg/observability"
)

// CodeSweeper periodically clears confirmation codes older than the TTL, so unused
// codes do not linger in storage after they can no longer be exchanged.
type CodeSweeper struct {
	store   *Store
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
	cron    *cron.Cron
	now     func() time.Time
}

// NewCodeSweeper creates a sweeper. metrics may be nil.
func NewCodeSweeper(store *Store, ttl time.Duration, metrics *observability.Metrics, logger *observability.Logger) *CodeSweeper {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &CodeSweeper{
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		now:     time.Now,
	}
}

// Sweep clears every expired code once
func (s *CodeSweeper) Sweep(ctx context.Context) (int64, error) {
	cleared, err := s.store.ClearExpiredCodes(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	s.metrics.CodesExpired.Add(float64(cleared))
	return cleared, nil
}

// Start schedules Sweep with a cron expression (descriptors like "@every 10m" work too)
func (s *CodeSweeper) Start(schedule string) error {
	if s.ttl <= 0 {
		return fmt.Errorf("code sweeper needs a positive TTL, got %s", s.ttl)
	}

	_, err := s.cron.AddFunc(schedule, func() {
		cleared, err := s.Sweep(context.Background())
		if err != nil {
			s.logger.WithError(err).Error("confirmation code sweep failed")
			return
		}
		if cleared > 0 {
			s.logger.WithField("cleared", cleared).Info("expired confirmation codes cleared")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", schedule).Info("confirmation code sweeper started")
	return nil
}

// Stop halts scheduling; the returned context is done once a running sweep finishes
func (s *CodeSweeper) Stop() context.Context {
	return s.cron.Stop()
}
