package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"coursecast/internal/catalog"
	"coursecast/internal/queue"
	"coursecast/internal/testsupport"
)

type fixture struct {
	jobs   *queue.Store
	assets *catalog.Store
	add    func(name string) *catalog.VideoAsset
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	assets := catalog.NewStore(db)
	return fixture{
		jobs:   queue.NewStore(db),
		assets: assets,
		add: func(name string) *catalog.VideoAsset {
			return testsupport.AddFileAsset(t, cfg, assets, name)
		},
	}
}

func TestEnqueueIsIdempotentPerAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.add("lecture.mp4")

	first, created, err := f.jobs.Enqueue(ctx, asset.ID, "req-1", false)
	if err != nil || !created {
		t.Fatalf("first Enqueue: created=%v err=%v", created, err)
	}
	if first.Status != queue.StatusQueued || first.RequestID != "req-1" {
		t.Fatalf("unexpected job: %#v", first)
	}

	second, created, err := f.jobs.Enqueue(ctx, asset.ID, "req-2", true)
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if created {
		t.Fatal("expected duplicate enqueue to reuse the active job")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same job id, got %d and %d", first.ID, second.ID)
	}

	claimed, err := f.jobs.Claim(ctx, "worker-1")
	if err != nil || claimed == nil {
		t.Fatalf("Claim: job=%v err=%v", claimed, err)
	}
	next, created, err := f.jobs.Enqueue(ctx, asset.ID, "req-3", true)
	if err != nil || !created {
		t.Fatalf("expected a running job to leave room for a queued one: created=%v err=%v", created, err)
	}
	if next.ID == first.ID || next.Status != queue.StatusQueued {
		t.Fatalf("expected a fresh queued job, got %#v", next)
	}
	if again, created, _ := f.jobs.Enqueue(ctx, asset.ID, "req-4", false); created || again.ID != next.ID {
		t.Fatalf("expected the queued job to absorb the request, got %#v created=%v", again, created)
	}

	active, err := f.jobs.ActiveForAsset(ctx, asset.ID)
	if err != nil || active == nil || active.ID != next.ID {
		t.Fatalf("expected newest active job %d, got %#v err=%v", next.ID, active, err)
	}
	if err := f.jobs.Finish(ctx, claimed.ID, queue.StatusDone, ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if still, _ := f.jobs.GetByID(ctx, next.ID); still.Status != queue.StatusQueued {
		t.Fatalf("finishing the running job must not touch the queued one, got %s", still.Status)
	}
}

func TestEnqueueRejectsUnknownAsset(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.jobs.Enqueue(context.Background(), 4242, "req", false); err == nil {
		t.Fatal("expected foreign key failure for unknown asset")
	}
	if _, _, err := f.jobs.Enqueue(context.Background(), 1, "", false); err == nil {
		t.Fatal("expected error for empty request id")
	}
}

func TestClaimOrderAndExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []int64
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"} {
		asset := f.add(name)
		job, _, err := f.jobs.Enqueue(ctx, asset.ID, "req-"+name, false)
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		ids = append(ids, job.ID)
	}

	first, err := f.jobs.Claim(ctx, "w0")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if first.ID != ids[0] || first.Status != queue.StatusRunning || first.WorkerID != "w0" {
		t.Fatalf("expected oldest job claimed by w0, got %#v", first)
	}
	if first.StartedAt == nil || first.LastHeartbeat == nil {
		t.Fatal("expected started_at and heartbeat on claim")
	}

	var (
		mu      sync.Mutex
		claimed = map[int64]int{}
		wg      sync.WaitGroup
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := f.jobs.Claim(ctx, "racer")
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if job == nil {
				return
			}
			mu.Lock()
			claimed[job.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(claimed) != 3 {
		t.Fatalf("expected remaining 3 jobs claimed, got %v", claimed)
	}
	for id, count := range claimed {
		if count != 1 {
			t.Fatalf("job %d claimed %d times", id, count)
		}
	}

	empty, err := f.jobs.Claim(ctx, "w0")
	if err != nil || empty != nil {
		t.Fatalf("expected empty queue, got job=%v err=%v", empty, err)
	}
}

func TestFinishRequiresRunningAndTerminalStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.add("a.mp4")
	job, _, _ := f.jobs.Enqueue(ctx, asset.ID, "req", false)

	if err := f.jobs.Finish(ctx, job.ID, queue.StatusDone, ""); err == nil {
		t.Fatal("expected finishing a queued job to fail")
	}
	if _, err := f.jobs.Claim(ctx, "w"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := f.jobs.Finish(ctx, job.ID, queue.StatusRunning, ""); err == nil {
		t.Fatal("expected non-terminal status to be rejected")
	}
	if err := f.jobs.Finish(ctx, job.ID, queue.StatusFailed, "exit status 1"); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	stored, _ := f.jobs.GetByID(ctx, job.ID)
	if stored.Status != queue.StatusFailed || stored.ErrorMessage != "exit status 1" || stored.FinishedAt == nil {
		t.Fatalf("unexpected finished job: %#v", stored)
	}
}

func TestReclaimStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := f.add("stale.mp4")
	fresh := f.add("fresh.mp4")
	staleJob, _, _ := f.jobs.Enqueue(ctx, stale.ID, "req-stale", false)
	if _, err := f.jobs.Claim(ctx, "w-stale"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	// A cutoff in the future makes the first job's heartbeat stale.
	cutoff := time.Now().Add(time.Minute)
	freshJob, _, _ := f.jobs.Enqueue(ctx, fresh.ID, "req-fresh", false)

	reclaimed, err := f.jobs.ReclaimStale(ctx, cutoff)
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != staleJob.ID {
		t.Fatalf("expected only the running job reclaimed, got %#v", reclaimed)
	}
	if reclaimed[0].Status != queue.StatusFailed || reclaimed[0].ErrorMessage != queue.HeartbeatLostReason {
		t.Fatalf("unexpected reclaimed job: %#v", reclaimed[0])
	}
	queued, _ := f.jobs.GetByID(ctx, freshJob.ID)
	if queued.Status != queue.StatusQueued {
		t.Fatalf("queued job should be untouched, got %s", queued.Status)
	}

	none, err := f.jobs.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil || len(none) != 0 {
		t.Fatalf("expected nothing to reclaim, got %v err=%v", none, err)
	}
}

func TestHeartbeatAndHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add("a.mp4")
	b := f.add("b.mp4")
	jobA, _, _ := f.jobs.Enqueue(ctx, a.ID, "req-a", false)
	if _, _, err := f.jobs.Enqueue(ctx, b.ID, "req-b", false); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, _ := f.jobs.Claim(ctx, "w")
	before := *claimed.LastHeartbeat
	time.Sleep(5 * time.Millisecond)
	if err := f.jobs.UpdateHeartbeat(ctx, jobA.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}
	updated, _ := f.jobs.GetByID(ctx, jobA.ID)
	if !updated.LastHeartbeat.After(before) {
		t.Fatalf("expected heartbeat to advance: %v -> %v", before, updated.LastHeartbeat)
	}

	health, err := f.jobs.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Queued != 1 || health.Running != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	if err := f.jobs.Finish(ctx, jobA.ID, queue.StatusDone, ""); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	removed, err := f.jobs.ClearFinished(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("ClearFinished: removed=%d err=%v", removed, err)
	}
	recent, err := f.jobs.Recent(ctx, 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Recent: %v err=%v", recent, err)
	}
}
