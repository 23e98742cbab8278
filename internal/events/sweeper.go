package events

import (
	"context"
	"time"

	"github.com/pabraksas/pay-connector/internal/domain/event"
	"github.com/pabraksas/pay-connector/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Sweeper retries recorded-but-unemitted events once their
// do-not-retry-before deadline has passed. Records already marked emitted
// are never re-sent; duplicates can still occur across crashes, which is
// the at-least-once contract consumers sign up for.
type Sweeper struct {
	repo      event.Repository
	bus       EventBus
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewSweeper(repo event.Repository, bus EventBus, interval time.Duration, batchSize int, logger zerolog.Logger, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{
		repo:      repo,
		bus:       bus,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run polls until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := s.SweepOnce(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Emitted-event sweep failed")
		}
	}
}

// SweepOnce re-emits one batch of retryable unemitted events.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	records, err := s.repo.FindUnemitted(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return err
	}
	s.metrics.SweeperBacklog.Set(float64(len(records)))

	for _, rec := range records {
		e := event.Event{
			ResourceType:       rec.ResourceType,
			ResourceExternalID: rec.ResourceExternalID,
			EventType:          rec.EventType,
			Timestamp:          rec.EventDate,
		}
		if err := s.bus.Publish(ctx, e); err != nil {
			s.logger.Warn().
				Err(err).
				Str("event_type", rec.EventType).
				Str("resource_external_id", rec.ResourceExternalID).
				Msg("Re-emission failed, leaving for next sweep")
			continue
		}
		if err := s.repo.MarkEmitted(ctx, rec.ResourceType, rec.ResourceExternalID, rec.EventType); err != nil {
			return err
		}
		s.metrics.EventsTotal.WithLabelValues(rec.EventType, "swept").Inc()
	}
	return nil
}
