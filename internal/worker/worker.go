package worker

import (
	"context"
	"errors"
	"time"

	"stock-service/internal/service"
	"stock-service/internal/util"

	"go.uber.org/zap"
)

type syncRefresher interface {
	Refresh(ctx context.Context, force bool) error
	FlushDeferred(ctx context.Context) bool
	NextSyncAt() (time.Time, bool)
}

// SyncPoller drives periodic snapshot refreshes. It sleeps until the
// server-declared next sync when one is known, falls back to a fixed
// interval otherwise, and retries soon when the ERP reports a sync still
// in flight.
type SyncPoller struct {
	sync          syncRefresher
	interval      time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewSyncPoller creates the poller. interval is the fallback cadence when
// the ERP gives no next-sync hint.
func NewSyncPoller(sync syncRefresher, interval time.Duration) *SyncPoller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SyncPoller{
		sync:          sync,
		interval:      interval,
		retryInterval: 30 * time.Second,
		logger:        util.GetLogger(),
	}
}

// Start runs the poll loop until ctx is cancelled. The first refresh happens
// immediately.
func (p *SyncPoller) Start(ctx context.Context) {
	p.logger.Info("Starting sync poller", zap.Duration("fallback_interval", p.interval))

	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stopping sync poller")
			return
		case <-time.After(wait):
		}

		wait = p.pollOnce(ctx)
	}
}

// pollOnce runs one refresh and returns how long to sleep before the next.
func (p *SyncPoller) pollOnce(ctx context.Context) time.Duration {
	err := p.sync.Refresh(ctx, false)
	if errors.Is(err, service.ErrSyncInProgress) {
		p.logger.Info("ERP sync still in progress, retrying shortly",
			zap.Duration("retry_in", p.retryInterval))
		return p.retryInterval
	}
	if err != nil {
		p.logger.Warn("Snapshot refresh failed", zap.Error(err))
		return p.retryInterval
	}

	// A deferred snapshot may have unblocked between polls.
	if p.sync.FlushDeferred(ctx) {
		p.logger.Info("Applied deferred snapshot")
	}

	if next, ok := p.sync.NextSyncAt(); ok {
		until := time.Until(next)
		if until > 0 {
			return until
		}
	}
	return p.interval
}
