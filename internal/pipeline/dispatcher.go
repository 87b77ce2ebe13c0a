package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"coursecast/internal/catalog"
	"coursecast/internal/logging"
	"coursecast/internal/metrics"
	"coursecast/internal/queue"
	"coursecast/internal/services"
)

// Dispatch reports what a conversion request did.
type Dispatch struct {
	AssetID   int64
	JobID     int64
	RequestID string
	// Skipped is set when the asset did not need encoding and nothing changed.
	Skipped bool
	Reason  string
	// Reused is set when the asset already had a queued job.
	Reused bool
}

// Dispatcher moves assets to pending and enqueues their conversion jobs.
type Dispatcher struct {
	assets *catalog.Store
	jobs   *queue.Store
	logger *slog.Logger
	newID  func() string
}

// NewDispatcher builds a dispatcher over the catalog and job queue.
func NewDispatcher(assets *catalog.Store, jobs *queue.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		assets: assets,
		jobs:   jobs,
		logger: logging.NewComponentLogger(logger, "dispatch"),
		newID:  func() string { return uuid.NewString() },
	}
}

// RequestConversion schedules a conversion for assetID. Assets that do not
// need encoding are reported as skipped unless force is set; force resets a
// completed or failed asset to pending before the job is enqueued.
func (d *Dispatcher) RequestConversion(ctx context.Context, assetID int64, force bool) (Dispatch, error) {
	result, err := d.request(ctx, assetID, force)
	switch {
	case err != nil:
		metrics.DispatchTotal.WithLabelValues("single", "error").Inc()
	case result.Skipped:
		metrics.DispatchTotal.WithLabelValues("single", "skipped").Inc()
	default:
		metrics.DispatchTotal.WithLabelValues("single", "queued").Inc()
	}
	return result, err
}

func (d *Dispatcher) request(ctx context.Context, assetID int64, force bool) (Dispatch, error) {
	asset, err := d.assets.GetByID(ctx, assetID)
	if err != nil {
		return Dispatch{AssetID: assetID}, err
	}
	if asset == nil {
		return Dispatch{AssetID: assetID}, services.Wrap(services.ErrNotFound, "dispatch", "load asset", fmt.Sprintf("video asset %d does not exist", assetID), nil)
	}
	if reason := asset.IneligibleReason(); reason != "" {
		return Dispatch{AssetID: assetID}, services.Wrap(services.ErrIneligibleAsset, "dispatch", "check eligibility", reason, nil)
	}
	return d.dispatch(ctx, asset, force)
}

// dispatch assumes asset is eligible.
func (d *Dispatcher) dispatch(ctx context.Context, asset *catalog.VideoAsset, force bool) (Dispatch, error) {
	result := Dispatch{AssetID: asset.ID}
	if !asset.NeedsEncoding(force) {
		result.Skipped = true
		result.Reason = fmt.Sprintf("asset is %s and does not need encoding", asset.HLSStatus.Label())
		return result, nil
	}

	requestID := d.newID()
	ctx = services.WithRequestID(services.WithAssetID(ctx, asset.ID), requestID)
	logger := logging.WithContext(ctx, d.logger)

	// Pending must be durable before a worker can see the job.
	if err := d.assets.MarkPending(ctx, asset.ID, force); err != nil {
		return result, err
	}
	job, created, err := d.jobs.Enqueue(ctx, asset.ID, requestID, force)
	if err != nil {
		return result, err
	}
	result.JobID = job.ID
	result.RequestID = job.RequestID
	result.Reused = !created
	logger.Info("conversion dispatched",
		logging.String(logging.FieldEventType, "conversion_dispatched"),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Bool("force", force),
		logging.Bool("reused_job", result.Reused),
	)
	return result, nil
}
