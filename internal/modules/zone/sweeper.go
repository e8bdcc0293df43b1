package zone

import (
	"context"
	"time"

	"coworking/internal/pkg/timeutil"
	"coworking/internal/repository"

	"go.uber.org/zap"
)

const DefaultSweepInterval = time.Minute

// Sweeper reopens zones whose closure has expired, so that they come back
// even when nobody lists zones.
type Sweeper struct {
	store *repository.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewSweeper(store *repository.Store, log *zap.Logger) *Sweeper {
	return &Sweeper{store: store, log: log, now: time.Now}
}

// Sweep runs one reactivation pass and returns the number of reopened zones.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	started := time.Now()

	n, err := s.store.Zones.ReactivateExpired(ctx, timeutil.Normalize(s.now()))
	if err != nil {
		s.log.Error("zone sweep failed", zap.Error(err))
		return 0, err
	}

	s.log.Debug("zone sweep completed", zap.Int64("reactivated", n), zap.Duration("took", time.Since(started)))
	if n > 0 {
		s.log.Info("zones reactivated", zap.Int64("count", n))
	}
	return n, nil
}

// Schedule runs Sweep every interval until ctx is done or the returned
// channel is closed.
func (s *Sweeper) Schedule(ctx context.Context, interval time.Duration) chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = s.Sweep(ctx)
			case <-stopCh:
				s.log.Info("zone sweeper stopped")
				return
			case <-ctx.Done():
				s.log.Info("zone sweeper stopped", zap.Error(ctx.Err()))
				return
			}
		}
	}()

	s.log.Info("zone sweeper started", zap.Duration("interval", interval))
	return stopCh
}
