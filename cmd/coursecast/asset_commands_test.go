package main

import (
	"context"
	"path/filepath"
	"testing"

	"coursecast/internal/catalog"
	"coursecast/internal/testsupport"
)

func TestAssetAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "week1", "intro.mp4"), 1024)
	outside := filepath.Join(env.baseDir, "elsewhere", "talk.webm")
	testsupport.WriteFile(t, outside, 1024)

	out, err := env.run(t, "", "asset", "add", "week1/intro.mp4", "--title", "Week 1 intro")
	if err != nil {
		t.Fatalf("asset add: %v", err)
	}
	requireContains(t, out, "Registered video asset 1 (Week 1 intro)")

	absInside := filepath.Join(env.cfg.Paths.SourceDir, "week1", "intro.mp4")
	if _, err := env.run(t, "", "asset", "add", absInside); err != nil {
		t.Fatalf("asset add absolute: %v", err)
	}
	if _, err := env.run(t, "", "asset", "add", outside); err != nil {
		t.Fatalf("asset add outside: %v", err)
	}
	if _, err := env.run(t, "", "asset", "add-external", "https://videos.example.com/guest"); err != nil {
		t.Fatalf("asset add-external: %v", err)
	}

	assets, err := env.store(t).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(assets) != 4 {
		t.Fatalf("expected 4 assets, got %d", len(assets))
	}
	if assets[0].SourcePath != "week1/intro.mp4" || assets[1].SourcePath != "week1/intro.mp4" {
		t.Fatalf("expected upload-relative paths, got %q and %q", assets[0].SourcePath, assets[1].SourcePath)
	}
	if assets[2].SourcePath != outside {
		t.Fatalf("expected absolute path outside the upload dir, got %q", assets[2].SourcePath)
	}
	if assets[3].Kind != catalog.KindExternal {
		t.Fatalf("expected external asset, got %s", assets[3].Kind)
	}

	out, err = env.run(t, "", "asset", "list")
	if err != nil {
		t.Fatalf("asset list: %v", err)
	}
	requireContains(t, out, "Week 1 intro")
	requireContains(t, out, "https://videos.example.com/guest")
	requireContains(t, out, "None")
}

func TestAssetAddValidation(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := env.run(t, "", "asset", "add", "missing.mp4"); err == nil {
		t.Fatal("expected missing file to fail")
	}
	if _, err := env.run(t, "", "asset", "add-external", "not a url"); err == nil {
		t.Fatal("expected invalid url to fail")
	}

	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.SourceDir, "notes.txt"), 16)
	out, err := env.run(t, "", "asset", "add", "notes.txt")
	if err != nil {
		t.Fatalf("asset add: %v", err)
	}
	requireContains(t, out, "is not converted to HLS")

	out, err = env.run(t, "", "asset", "list")
	if err != nil {
		t.Fatalf("asset list: %v", err)
	}
	requireContains(t, out, "notes")
}

func TestAssetListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "", "asset", "list")
	if err != nil {
		t.Fatalf("asset list: %v", err)
	}
	requireContains(t, out, "No video assets registered.")
}
