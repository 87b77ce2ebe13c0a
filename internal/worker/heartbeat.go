package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"coursecast/internal/catalog"
	"coursecast/internal/logging"
	"coursecast/internal/metrics"
	"coursecast/internal/queue"
)

// HeartbeatMonitor keeps running jobs alive and fails jobs whose worker
// stopped reporting.
type HeartbeatMonitor struct {
	jobs              *queue.Store
	assets            *catalog.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	now               func() time.Time
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(jobs *queue.Store, assets *catalog.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		jobs:              jobs,
		assets:            assets,
		logger:            logging.NewComponentLogger(logger, "heartbeat"),
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
		now:               time.Now,
	}
}

// ReclaimStale fails running jobs whose heartbeat is older than the timeout
// and moves their assets from processing to failed.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) (int, error) {
	if h.heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := h.now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.jobs.ReclaimStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, job := range reclaimed {
		err := h.assets.MarkFailed(ctx, job.AssetID, queue.HeartbeatLostReason)
		switch {
		case err == nil:
		case errors.Is(err, catalog.ErrInvalidTransition):
			// The worker died before claiming the asset; it is still pending
			// and the next bulk run picks it up.
			h.logger.Debug("reclaimed job left asset untouched",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Int64(logging.FieldAssetID, job.AssetID),
			)
		default:
			h.logger.Warn("failed to release asset of stale job",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Int64(logging.FieldAssetID, job.AssetID),
				logging.String(logging.FieldEventType, "heartbeat_release_failed"),
				logging.String(logging.FieldErrorHint, "reset the asset with coursecast hls encode --force"),
				logging.Error(err),
			)
		}
	}
	if len(reclaimed) > 0 {
		metrics.JobsReclaimedTotal.Add(float64(len(reclaimed)))
		h.logger.Info("reclaimed stale jobs",
			logging.String(logging.FieldEventType, "heartbeat_reclaimed"),
			logging.Int("count", len(reclaimed)),
		)
	}
	return len(reclaimed), nil
}

// StartLoop runs a heartbeat updater for a specific job until context cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.jobs.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
