package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"coursecast/internal/catalog"
	"coursecast/internal/config"
	"coursecast/internal/logging"
	"coursecast/internal/pipeline"
	"coursecast/internal/queue"
	"coursecast/internal/services"
	"coursecast/internal/testsupport"
)

type env struct {
	cfg          *config.Config
	assets       *catalog.Store
	jobs         *queue.Store
	dispatcher   *pipeline.Dispatcher
	orchestrator *pipeline.Orchestrator
}

func newEnv(t *testing.T) env {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	assets := catalog.NewStore(db)
	jobs := queue.NewStore(db)
	dispatcher := pipeline.NewDispatcher(assets, jobs, logging.NewNop())
	return env{
		cfg:          cfg,
		assets:       assets,
		jobs:         jobs,
		dispatcher:   dispatcher,
		orchestrator: pipeline.NewOrchestrator(assets, dispatcher, logging.NewNop()),
	}
}

func (e env) status(t *testing.T, id int64) *catalog.VideoAsset {
	t.Helper()
	asset, err := e.assets.GetByID(context.Background(), id)
	if err != nil || asset == nil {
		t.Fatalf("GetByID: asset=%v err=%v", asset, err)
	}
	return asset
}

func TestRequestConversionQueuesNewAsset(t *testing.T) {
	e := newEnv(t)
	asset := testsupport.AddFileAsset(t, e.cfg, e.assets, "lecture.mp4")

	dispatch, err := e.dispatcher.RequestConversion(context.Background(), asset.ID, false)
	if err != nil {
		t.Fatalf("RequestConversion: %v", err)
	}
	if dispatch.Skipped || dispatch.JobID == 0 || dispatch.RequestID == "" {
		t.Fatalf("unexpected dispatch: %+v", dispatch)
	}
	if got := e.status(t, asset.ID).HLSStatus; got != catalog.StatusPending {
		t.Fatalf("expected pending, got %s", got)
	}
	job, err := e.jobs.ActiveForAsset(context.Background(), asset.ID)
	if err != nil || job == nil || job.RequestID != dispatch.RequestID {
		t.Fatalf("expected queued job with request id, got %+v err=%v", job, err)
	}
}

func TestRequestConversionErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.dispatcher.RequestConversion(ctx, 999, false); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	external := testsupport.AddExternalAsset(t, e.assets, "https://video.example.com/watch?v=1")
	if _, err := e.dispatcher.RequestConversion(ctx, external.ID, false); !errors.Is(err, services.ErrIneligibleAsset) {
		t.Fatalf("expected ErrIneligibleAsset for external asset, got %v", err)
	}
	pdf := testsupport.AddFileAsset(t, e.cfg, e.assets, "slides.pdf")
	if _, err := e.dispatcher.RequestConversion(ctx, pdf.ID, true); !errors.Is(err, services.ErrIneligibleAsset) {
		t.Fatalf("expected ErrIneligibleAsset for pdf, got %v", err)
	}
	if got := e.status(t, pdf.ID).HLSStatus; got != catalog.StatusNone {
		t.Fatalf("ineligible asset must stay untouched, got %s", got)
	}
}

func TestRequestConversionSkipsFinishedAssetsWithoutForce(t *testing.T) {
	for _, status := range []catalog.HLSStatus{catalog.StatusCompleted, catalog.StatusFailed, catalog.StatusProcessing} {
		t.Run(string(status), func(t *testing.T) {
			e := newEnv(t)
			asset := testsupport.AddFileAsset(t, e.cfg, e.assets, "lecture.mp4")
			before := testsupport.DriveToStatus(t, e.assets, asset.ID, status)

			dispatch, err := e.dispatcher.RequestConversion(context.Background(), asset.ID, false)
			if err != nil {
				t.Fatalf("RequestConversion: %v", err)
			}
			if !dispatch.Skipped || dispatch.Reason == "" {
				t.Fatalf("expected skipped dispatch, got %+v", dispatch)
			}
			after := e.status(t, asset.ID)
			if after.HLSStatus != before.HLSStatus || after.HLSManifestPath != before.HLSManifestPath || after.HLSErrorMessage != before.HLSErrorMessage {
				t.Fatalf("skipped dispatch changed state: %+v -> %+v", before, after)
			}
			if job, _ := e.jobs.ActiveForAsset(context.Background(), asset.ID); job != nil {
				t.Fatalf("no job expected, got %+v", job)
			}
		})
	}
}

func TestForcedRequestClearsOutputsBeforeQueueing(t *testing.T) {
	for _, status := range []catalog.HLSStatus{catalog.StatusCompleted, catalog.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			e := newEnv(t)
			asset := testsupport.AddFileAsset(t, e.cfg, e.assets, "lecture.mp4")
			testsupport.DriveToStatus(t, e.assets, asset.ID, status)

			dispatch, err := e.dispatcher.RequestConversion(context.Background(), asset.ID, true)
			if err != nil || dispatch.Skipped {
				t.Fatalf("expected forced dispatch, got %+v err=%v", dispatch, err)
			}
			after := e.status(t, asset.ID)
			if after.HLSStatus != catalog.StatusPending {
				t.Fatalf("expected pending, got %s", after.HLSStatus)
			}
			if after.HLSManifestPath != "" || after.HLSErrorMessage != "" || after.HLSEncodedAt != nil {
				t.Fatalf("forced reset must clear outputs: %+v", after)
			}
			job, _ := e.jobs.GetByID(context.Background(), dispatch.JobID)
			if job == nil || !job.Force {
				t.Fatalf("expected forced job, got %+v", job)
			}
		})
	}
}

func TestRequestConversionReusesActiveJob(t *testing.T) {
	e := newEnv(t)
	asset := testsupport.AddFileAsset(t, e.cfg, e.assets, "lecture.mp4")
	first, err := e.dispatcher.RequestConversion(context.Background(), asset.ID, false)
	if err != nil {
		t.Fatalf("first RequestConversion: %v", err)
	}
	second, err := e.dispatcher.RequestConversion(context.Background(), asset.ID, false)
	if err != nil {
		t.Fatalf("second RequestConversion: %v", err)
	}
	if !second.Reused || second.JobID != first.JobID {
		t.Fatalf("expected reuse of job %d, got %+v", first.JobID, second)
	}
	health, _ := e.jobs.Health(context.Background())
	if health.Total != 1 {
		t.Fatalf("expected a single job, got %+v", health)
	}
}

func TestForcedRequestWhileJobFinishesQueuesFreshJob(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	asset := testsupport.AddFileAsset(t, e.cfg, e.assets, "lecture.mp4")
	if _, err := e.dispatcher.RequestConversion(ctx, asset.ID, false); err != nil {
		t.Fatalf("RequestConversion: %v", err)
	}
	running, err := e.jobs.Claim(ctx, "worker-1")
	if err != nil || running == nil {
		t.Fatalf("Claim: job=%v err=%v", running, err)
	}
	if claimed, err := e.assets.ClaimProcessing(ctx, asset.ID); err != nil || !claimed {
		t.Fatalf("ClaimProcessing: claimed=%v err=%v", claimed, err)
	}
	if err := e.assets.MarkCompleted(ctx, asset.ID, "hls/1/playlist.m3u8", time.Now()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	// The worker has recorded the asset but not yet finished its job.
	forced, err := e.dispatcher.RequestConversion(ctx, asset.ID, true)
	if err != nil {
		t.Fatalf("forced RequestConversion: %v", err)
	}
	if forced.Reused || forced.JobID == running.ID {
		t.Fatalf("forced request must not attach to the running job: %+v", forced)
	}
	if err := e.jobs.Finish(ctx, running.ID, queue.StatusDone, ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if got := e.status(t, asset.ID).HLSStatus; got != catalog.StatusPending {
		t.Fatalf("expected pending, got %s", got)
	}
	next, err := e.jobs.Claim(ctx, "worker-1")
	if err != nil || next == nil || next.ID != forced.JobID {
		t.Fatalf("expected forced job %d to be claimable, got %+v err=%v", forced.JobID, next, err)
	}
	if claimed, err := e.assets.ClaimProcessing(ctx, asset.ID); err != nil || !claimed {
		t.Fatalf("forced job could not claim the asset: claimed=%v err=%v", claimed, err)
	}
}

func TestBulkRespectsLimitAndOrder(t *testing.T) {
	e := newEnv(t)
	var ids []int64
	for i := 0; i < 5; i++ {
		asset := testsupport.AddFileAsset(t, e.cfg, e.assets, fmt.Sprintf("lecture-%02d.mp4", i))
		ids = append(ids, asset.ID)
	}

	report, err := e.orchestrator.Run(context.Background(), pipeline.BulkOptions{Limit: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Queued != 3 || report.Skipped != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for i, id := range ids {
		want := catalog.StatusNone
		if i < 3 {
			want = catalog.StatusPending
		}
		if got := e.status(t, id).HLSStatus; got != want {
			t.Fatalf("asset %d: expected %q, got %q", id, want, got)
		}
	}
}

func TestBulkSkipsDisallowedExtensions(t *testing.T) {
	e := newEnv(t)
	mp4 := testsupport.AddFileAsset(t, e.cfg, e.assets, "a.mp4")
	pdf := testsupport.AddFileAsset(t, e.cfg, e.assets, "b.pdf")
	mkv := testsupport.AddFileAsset(t, e.cfg, e.assets, "c.MKV")
	testsupport.AddExternalAsset(t, e.assets, "https://video.example.com/d")

	report, err := e.orchestrator.Run(context.Background(), pipeline.BulkOptions{Limit: 50})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Queued != 2 || report.Skipped != 1 {
		t.Fatalf("expected 2 queued and 1 skipped, got %+v", report)
	}
	if e.status(t, pdf.ID).HLSStatus != catalog.StatusNone {
		t.Fatal("pdf must stay untouched")
	}
	for _, id := range []int64{mp4.ID, mkv.ID} {
		if e.status(t, id).HLSStatus != catalog.StatusPending {
			t.Fatalf("asset %d should be pending", id)
		}
	}
}

func TestBulkForceIncludesFailed(t *testing.T) {
	e := newEnv(t)
	failed := testsupport.AddFileAsset(t, e.cfg, e.assets, "failed.mp4")
	testsupport.DriveToStatus(t, e.assets, failed.ID, catalog.StatusFailed)
	done := testsupport.AddFileAsset(t, e.cfg, e.assets, "done.mp4")
	testsupport.DriveToStatus(t, e.assets, done.ID, catalog.StatusCompleted)

	report, err := e.orchestrator.Run(context.Background(), pipeline.BulkOptions{Limit: 10})
	if err != nil || report.Queued != 0 {
		t.Fatalf("expected nothing eligible without force, got %+v err=%v", report, err)
	}

	report, err = e.orchestrator.Run(context.Background(), pipeline.BulkOptions{Limit: 10, Force: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Queued != 1 {
		t.Fatalf("expected failed asset queued, got %+v", report)
	}
	after := e.status(t, failed.ID)
	if after.HLSStatus != catalog.StatusPending || after.HLSErrorMessage != "" {
		t.Fatalf("expected pending with cleared error, got %+v", after)
	}
	if e.status(t, done.ID).HLSStatus != catalog.StatusCompleted {
		t.Fatal("completed asset must not be touched by bulk runs")
	}
}

func TestBulkCountsAlreadyQueuedAssets(t *testing.T) {
	e := newEnv(t)
	asset := testsupport.AddFileAsset(t, e.cfg, e.assets, "lecture.mp4")
	if _, err := e.orchestrator.Run(context.Background(), pipeline.BulkOptions{Limit: 5}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	report, err := e.orchestrator.Run(context.Background(), pipeline.BulkOptions{Limit: 5})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Queued != 1 {
		t.Fatalf("expected pending asset counted as queued, got %+v", report)
	}
	health, _ := e.jobs.Health(context.Background())
	if health.Queued != 1 {
		t.Fatalf("expected one queued job for asset %d, got %+v", asset.ID, health)
	}
}

func TestBulkRejectsNegativeLimitAndDefaults(t *testing.T) {
	e := newEnv(t)
	if _, err := e.orchestrator.Run(context.Background(), pipeline.BulkOptions{Limit: -1}); err == nil {
		t.Fatal("expected error for negative limit")
	}
	for i := 0; i < pipeline.DefaultLimit+2; i++ {
		if _, err := e.assets.Insert(context.Background(), catalog.NewAsset{Kind: catalog.KindFile, SourcePath: fmt.Sprintf("v%03d.mp4", i)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	report, err := e.orchestrator.Run(context.Background(), pipeline.BulkOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Queued != pipeline.DefaultLimit {
		t.Fatalf("expected default limit %d, got %+v", pipeline.DefaultLimit, report)
	}
}

func TestBulkEmptyCatalog(t *testing.T) {
	e := newEnv(t)
	report, err := e.orchestrator.Run(context.Background(), pipeline.BulkOptions{Limit: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (pipeline.BulkReport{}) {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
