package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartSnapshotJob flushes every interval in the background until ctx
// ends.
func (s *MetricsService) StartSnapshotJob(ctx context.Context, interval time.Duration) {
	go func() { _ = s.RunSnapshotJob(ctx, interval) }()
}

// RunSnapshotJob is the blocking form of StartSnapshotJob. A final flush
// runs on shutdown so drained samples are not left only in the journal.
func (s *MetricsService) RunSnapshotJob(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := s.Flush(context.Background()); err != nil {
				s.log.Warn("final flush failed", zap.Error(err))
			}
			return nil
		case <-t.C:
			if _, err := s.Flush(ctx); err != nil {
				s.log.Warn("snapshot flush failed", zap.Error(err))
			}
		}
	}
}
