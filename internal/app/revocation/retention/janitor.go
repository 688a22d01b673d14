// Package retention trims revocations older than the configured period from
// backends that cannot expire entries on their own.
package retention

import (
	"context"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/repo"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/metrics"
	"go.uber.org/zap"
)

type Janitor struct {
	purger   repo.Purger
	clock    clock.Clock
	period   time.Duration
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewJanitor(
	purger repo.Purger,
	clk clock.Clock,
	period, interval time.Duration,
	log *zap.Logger,
	m *metrics.Metrics,
) *Janitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		purger: purger, clock: clk, period: period, interval: interval, log: log, metrics: m,
	}
}

// Enabled reports whether the janitor has anything to do. A zero period keeps
// revocations forever.
func (j *Janitor) Enabled() bool {
	return j.purger != nil && j.period > 0
}

// Run purges once immediately and then on every tick until ctx is done.
// Purge failures are logged and retried on the next tick.
func (j *Janitor) Run(ctx context.Context) error {
	if !j.Enabled() {
		j.log.Info("retention disabled")
		return nil
	}

	j.log.Info("retention janitor started",
		zap.Duration("period", j.period),
		zap.Duration("interval", j.interval),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		_, _ = j.PurgeOnce(ctx)
		select {
		case <-ctx.Done():
			j.log.Info("retention janitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PurgeOnce removes every record revoked before now - period.
func (j *Janitor) PurgeOnce(ctx context.Context) (int64, error) {
	if !j.Enabled() {
		return 0, nil
	}
	cutoff := j.clock.Now() - int64(j.period/time.Second)
	n, err := j.purger.PurgeBefore(ctx, cutoff)
	if err != nil {
		j.metrics.ObserveStoreError("purge")
		j.log.Warn("retention purge failed", zap.Int64("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	if n > 0 {
		j.log.Info("expired revocations purged", zap.Int64("cutoff", cutoff), zap.Int64("count", n))
	}
	return n, nil
}
