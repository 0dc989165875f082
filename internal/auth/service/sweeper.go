package service

import (
	"context"
	"time"

	"adminguard/pkg/requestcontext"
)

// SweepResult summarizes one sweeper pass.
type SweepResult struct {
	Deleted int
	Evicted int
}

// Sweep deletes records that ended more than the retention grace ago and re-enforces
// the per-user cap for every user that still has sessions.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveSweep(time.Since(start))
	}()

	var result SweepResult
	cutoff := requestcontext.Now(ctx).Add(-s.retention)
	deleted, err := s.sessions.DeleteReapable(ctx, cutoff)
	result.Deleted = deleted
	if err != nil {
		return result, err
	}
	s.metrics.AddDeleted(deleted)

	if s.maxPerUser == 0 {
		return result, nil
	}
	users, err := s.sessions.UserIDs(ctx)
	if err != nil {
		return result, err
	}
	for _, userID := range users {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		evicted, err := s.enforceCap(ctx, userID, nil)
		result.Evicted += evicted
		if err != nil {
			s.logger.WarnContext(ctx, "sweeper failed to enforce session cap",
				"error", err,
				"user_id", userID.String(),
			)
		}
	}
	return result, nil
}

// Run sweeps on every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "session sweeper started", "interval", s.sweepInterval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "session sweeper stopped")
			return nil
		case <-ticker.C:
			result, err := s.Sweep(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
				continue
			}
			if result.Deleted > 0 || result.Evicted > 0 {
				s.logger.InfoContext(ctx, "session sweep completed",
					"deleted", result.Deleted,
					"evicted", result.Evicted,
				)
			}
		}
	}
}
