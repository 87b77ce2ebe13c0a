package main

import (
	"context"
	"strconv"
	"testing"

	"coursecast/internal/catalog"
	"coursecast/internal/queue"
	"coursecast/internal/testsupport"
)

func TestCapabilityUnavailableListsRequirements(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithSubprocessDisabled())

	out, err := env.run(t, "", "hls", "capability")
	requireExitCode(t, err, 1)
	requireContains(t, out, "Available:")
	requireContains(t, out, "[ERROR] no")
	requireContains(t, out, "Subprocess available:")
	requireContains(t, out, "Subprocess execution is disabled")
	requireContains(t, out, "Transcoder binary")
	requireContains(t, out, "Remediation:")
	requireContains(t, out, "allow_subprocess = true")
}

func TestCapabilityCacheRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithFakeTranscoder())

	out, err := env.run(t, "", "hls", "capability", "--clear-cache")
	if err != nil {
		t.Fatalf("hls capability --clear-cache: %v\n%s", err, out)
	}
	requireContains(t, out, "Capability cache cleared")
	requireContains(t, out, "[OK] yes")
	requireContains(t, out, "ffmpeg version")
	requireContains(t, out, "[INFO] no")

	out, err = env.run(t, "", "hls", "capability")
	if err != nil {
		t.Fatalf("hls capability: %v\n%s", err, out)
	}
	requireContains(t, out, "Cached:")
	requireContains(t, out, "[INFO] yes")
}

func TestSummaryShowsCountsAndGuidance(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	testsupport.AddFileAsset(t, env.cfg, store, "intro.mp4")
	failed := testsupport.AddFileAsset(t, env.cfg, store, "week1.mp4")
	testsupport.DriveToStatus(t, store, failed.ID, catalog.StatusFailed)
	testsupport.AddExternalAsset(t, store, "https://videos.example.com/guest-talk")

	out, err := env.run(t, "", "hls", "summary")
	if err != nil {
		t.Fatalf("hls summary: %v", err)
	}
	for _, label := range []string{"Total", "Not started", "Pending", "Processing", "Completed", "Failed"} {
		requireContains(t, out, label)
	}
	requireContains(t, out, "1 video(s) still need HLS conversion")
	requireContains(t, out, "1 video(s) failed conversion")
}

func TestSummaryWithoutAssets(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "", "hls", "summary")
	if err != nil {
		t.Fatalf("hls summary: %v", err)
	}
	requireContains(t, out, "Total")
	if containsAny(out, "still need", "failed conversion") {
		t.Fatalf("expected no guidance for an empty catalog, got %q", out)
	}
}

func TestConvertQueuesAllowedExtensions(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	testsupport.AddFileAsset(t, env.cfg, store, "a.mp4")
	testsupport.AddFileAsset(t, env.cfg, store, "b.MOV")
	testsupport.AddFileAsset(t, env.cfg, store, "slides.pdf")

	out, err := env.run(t, "", "hls", "convert")
	if err != nil {
		t.Fatalf("hls convert: %v", err)
	}
	requireContains(t, out, "Queued: 2")
	requireContains(t, out, "Skipped: 1")

	summary, err := store.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Pending != 2 || summary.NotStarted != 1 {
		t.Fatalf("unexpected summary after convert: %+v", summary)
	}
}

func TestConvertHonorsLimit(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		testsupport.AddFileAsset(t, env.cfg, store, name)
	}

	out, err := env.run(t, "", "hls", "convert", "--limit", "2")
	if err != nil {
		t.Fatalf("hls convert: %v", err)
	}
	requireContains(t, out, "Queued: 2")
	requireContains(t, out, "Skipped: 0")
}

func TestConvertNothingEligible(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	done := testsupport.AddFileAsset(t, env.cfg, store, "done.mp4")
	testsupport.DriveToStatus(t, store, done.ID, catalog.StatusCompleted)

	out, err := env.run(t, "", "hls", "convert")
	if err != nil {
		t.Fatalf("hls convert: %v", err)
	}
	requireContains(t, out, "No videos need HLS conversion.")
}

func TestEncodeFailedAssetWithoutForceIsNoop(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	asset := testsupport.AddFileAsset(t, env.cfg, store, "lecture.mp4")
	before := testsupport.DriveToStatus(t, store, asset.ID, catalog.StatusFailed)

	out, err := env.run(t, "", "hls", "encode", strconv.FormatInt(asset.ID, 10))
	if err != nil {
		t.Fatalf("hls encode: %v", err)
	}
	requireContains(t, out, "does not need encoding")

	after, _ := store.GetByID(context.Background(), asset.ID)
	if after.HLSStatus != catalog.StatusFailed || after.HLSErrorMessage != before.HLSErrorMessage {
		t.Fatalf("expected asset untouched, got %+v", after)
	}
}

func TestEncodeForcePromptsBeforeReset(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	asset := testsupport.AddFileAsset(t, env.cfg, store, "lecture.mp4")
	testsupport.DriveToStatus(t, store, asset.ID, catalog.StatusFailed)
	id := strconv.FormatInt(asset.ID, 10)

	out, err := env.run(t, "n\n", "hls", "encode", id, "--force")
	if err != nil {
		t.Fatalf("hls encode (declined): %v", err)
	}
	requireContains(t, out, "[y/N]")
	requireContains(t, out, "Aborted.")
	if current, _ := store.GetByID(context.Background(), asset.ID); current.HLSStatus != catalog.StatusFailed {
		t.Fatalf("declined prompt changed status to %s", current.HLSStatus)
	}

	out, err = env.run(t, "yes\n", "hls", "encode", id, "--force")
	if err != nil {
		t.Fatalf("hls encode (confirmed): %v", err)
	}
	requireContains(t, out, "Queued video asset "+id)
	current, _ := store.GetByID(context.Background(), asset.ID)
	if current.HLSStatus != catalog.StatusPending || current.HLSErrorMessage != "" || current.HLSManifestPath != "" {
		t.Fatalf("expected reset pending asset, got %+v", current)
	}
}

func TestEncodeYesSkipsPrompt(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	asset := testsupport.AddFileAsset(t, env.cfg, store, "lecture.mp4")

	out, err := env.run(t, "", "hls", "encode", strconv.FormatInt(asset.ID, 10), "--yes")
	if err != nil {
		t.Fatalf("hls encode --yes: %v", err)
	}
	if containsAny(out, "[y/N]") {
		t.Fatalf("expected no prompt, got %q", out)
	}
	requireContains(t, out, "Queued video asset")
}

func TestEncodeCheckIsReadOnly(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	asset := testsupport.AddFileAsset(t, env.cfg, store, "lecture.mp4")
	testsupport.DriveToStatus(t, store, asset.ID, catalog.StatusCompleted)

	out, err := env.run(t, "", "hls", "encode", strconv.FormatInt(asset.ID, 10), "--check")
	if err != nil {
		t.Fatalf("hls encode --check: %v", err)
	}
	for _, label := range []string{"Title", "Type", "File", "Status", "Manifest", "Error", "Encoded at", "Has HLS", "Needs HLS"} {
		requireContains(t, out, label)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "playlist.m3u8")

	current, _ := store.GetByID(context.Background(), asset.ID)
	if current.HLSStatus != catalog.StatusCompleted {
		t.Fatalf("--check changed status to %s", current.HLSStatus)
	}
}

func TestEncodeRejectsNonFileAssets(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	external := testsupport.AddExternalAsset(t, store, "https://videos.example.com/talk")

	out, err := env.run(t, "", "hls", "encode", strconv.FormatInt(external.ID, 10), "--yes")
	requireExitCode(t, err, 1)
	requireContains(t, out, "not an uploaded file")

	out, err = env.run(t, "", "hls", "encode", "9999", "--check")
	requireExitCode(t, err, 1)
	requireContains(t, out, "not found")

	if _, err := env.run(t, "", "hls", "encode", "abc"); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}

func TestEncodeRejectsDisallowedExtension(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	asset := testsupport.AddFileAsset(t, env.cfg, store, "slides.pdf")

	out, err := env.run(t, "", "hls", "encode", strconv.FormatInt(asset.ID, 10), "--yes")
	requireExitCode(t, err, 1)
	requireContains(t, out, "cannot be converted")
}

func TestConvertRejectsNonPositiveLimit(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	asset := testsupport.AddFileAsset(t, env.cfg, store, "a.mp4")

	for _, limit := range []string{"0", "-3"} {
		out, err := env.run(t, "", "hls", "convert", "--limit="+limit)
		if err != nil {
			t.Fatalf("hls convert --limit %s: %v", limit, err)
		}
		requireContains(t, out, "--limit must be a positive number")
	}
	if current, _ := store.GetByID(context.Background(), asset.ID); current.HLSStatus != catalog.StatusNone {
		t.Fatalf("rejected limit must not queue anything, got %s", current.HLSStatus)
	}
}

func TestEncodeCheckShowsActiveJob(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	asset := testsupport.AddFileAsset(t, env.cfg, store, "lecture.mp4")
	id := strconv.FormatInt(asset.ID, 10)

	if _, err := env.run(t, "", "hls", "encode", id, "--yes"); err != nil {
		t.Fatalf("hls encode --yes: %v", err)
	}
	out, err := env.run(t, "", "hls", "encode", id, "--check")
	if err != nil {
		t.Fatalf("hls encode --check: %v", err)
	}
	requireContains(t, out, "Active job")
	requireContains(t, out, "(queued)")
}

func TestJobsListsAndClearsFinished(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.store(t)
	jobs := queue.NewStore(testsupport.MustOpenDB(t, env.cfg))
	testsupport.AddFileAsset(t, env.cfg, store, "a.mp4")
	testsupport.AddFileAsset(t, env.cfg, store, "b.mp4")

	out, err := env.run(t, "", "hls", "jobs")
	if err != nil {
		t.Fatalf("hls jobs: %v", err)
	}
	requireContains(t, out, "No conversion jobs recorded.")

	if _, err := env.run(t, "", "hls", "convert"); err != nil {
		t.Fatalf("hls convert: %v", err)
	}
	claimed, err := jobs.Claim(context.Background(), "worker-1")
	if err != nil || claimed == nil {
		t.Fatalf("Claim: job=%v err=%v", claimed, err)
	}
	if err := jobs.Finish(context.Background(), claimed.ID, queue.StatusFailed, "transcoder exited with status 1"); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	out, err = env.run(t, "", "hls", "jobs")
	if err != nil {
		t.Fatalf("hls jobs: %v", err)
	}
	requireContains(t, out, "Conversion jobs")
	requireContains(t, out, "queued")
	requireContains(t, out, "transcoder exited with status 1")

	out, err = env.run(t, "", "hls", "jobs", "--clear-finished")
	if err != nil {
		t.Fatalf("hls jobs --clear-finished: %v", err)
	}
	requireContains(t, out, "Removed 1 finished job(s).")
	if containsAny(out, "transcoder exited") {
		t.Fatalf("expected finished job to be cleared, got %q", out)
	}
	requireContains(t, out, "queued")
}
