package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"coursecast/internal/catalog"
	"coursecast/internal/logging"
	"coursecast/internal/metrics"
)

// DefaultLimit caps a bulk run when no limit is given.
const DefaultLimit = 50

// BulkOptions controls a bulk conversion run.
type BulkOptions struct {
	Limit int
	Force bool
}

// BulkReport counts the outcome of a bulk run.
type BulkReport struct {
	Selected int
	Queued   int
	Skipped  int
}

// Orchestrator schedules conversions for existing catalog assets in batches.
type Orchestrator struct {
	assets     *catalog.Store
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewOrchestrator builds an orchestrator that dispatches through dispatcher.
func NewOrchestrator(assets *catalog.Store, dispatcher *Dispatcher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		assets:     assets,
		dispatcher: dispatcher,
		logger:     logging.NewComponentLogger(logger, "bulk"),
	}
}

// Run selects up to opts.Limit file assets that need encoding, ordered by id,
// and queues each one whose extension is allowed. Failures on one asset are
// logged and counted as skipped; the batch continues.
func (o *Orchestrator) Run(ctx context.Context, opts BulkOptions) (BulkReport, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 {
		return BulkReport{}, fmt.Errorf("bulk limit must be positive, got %d", limit)
	}
	metrics.BulkRunsTotal.Inc()

	candidates, err := o.assets.SelectForConversion(ctx, limit, opts.Force)
	if err != nil {
		return BulkReport{}, err
	}
	report := BulkReport{Selected: len(candidates)}
	for _, asset := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !catalog.IsVideoExtension(asset.SourceExtension) {
			report.Skipped++
			metrics.DispatchTotal.WithLabelValues("bulk", "skipped").Inc()
			o.logger.Debug("bulk candidate skipped",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.String("extension", asset.SourceExtension),
			)
			continue
		}
		if reason := asset.IneligibleReason(); reason != "" {
			report.Skipped++
			metrics.DispatchTotal.WithLabelValues("bulk", "skipped").Inc()
			continue
		}
		dispatch, err := o.dispatcher.dispatch(ctx, asset, opts.Force)
		if err != nil {
			report.Skipped++
			metrics.DispatchTotal.WithLabelValues("bulk", "error").Inc()
			logging.WarnWithContext(o.logger, "bulk dispatch failed", "bulk_dispatch_failed",
				logging.Int64(logging.FieldAssetID, asset.ID),
				logging.String(logging.FieldErrorHint, "retry with coursecast hls encode"),
				logging.String(logging.FieldImpact, "asset was not queued in this run"),
				logging.Error(err),
			)
			continue
		}
		if dispatch.Skipped {
			report.Skipped++
			metrics.DispatchTotal.WithLabelValues("bulk", "skipped").Inc()
			continue
		}
		report.Queued++
		metrics.DispatchTotal.WithLabelValues("bulk", "queued").Inc()
	}

	o.logger.Info("bulk conversion run finished",
		logging.String(logging.FieldEventType, "bulk_run_finished"),
		logging.Int("limit", limit),
		logging.Bool("force", opts.Force),
		logging.Int("selected", report.Selected),
		logging.Int("queued", report.Queued),
		logging.Int("skipped", report.Skipped),
	)
	return report, nil
}
