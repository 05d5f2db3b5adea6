package fulfillment

import (
	"context"
	"time"

	"leasepack/pkg/domain"
)

// SweepStale demotes orders stuck in processing past StaleAfter to failed so a
// replay can claim them again.
func (s *Service) SweepStale(ctx context.Context) ([]domain.OrderID, error) {
	if s.cfg.StaleAfter <= 0 {
		return nil, nil
	}
	now := s.now()
	ids, err := s.orders.DemoteStale(ctx, now.Add(-s.cfg.StaleAfter), staleReason, now)
	if err != nil {
		return nil, translateOrderErr(err, "demote stale orders")
	}
	s.metrics.AddStaleDemoted(len(ids))
	for _, id := range ids {
		s.logger.WarnContext(ctx, "stale order demoted",
			"order_id", id,
			"stale_after", s.cfg.StaleAfter,
		)
	}
	return ids, nil
}

// RunSweeper calls SweepStale every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "stale sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "stale sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepStale(ctx); err != nil {
				s.logger.ErrorContext(ctx, "stale sweep failed", "error", err)
			}
		}
	}
}
