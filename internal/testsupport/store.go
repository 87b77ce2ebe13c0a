package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"coursecast/internal/catalog"
	"coursecast/internal/config"
	"coursecast/internal/database"
)

// MustOpenDB opens the database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *database.DB {
	t.Helper()

	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// AddFileAsset registers a file-kind asset whose source lives under the
// configured upload directory. The source file itself is written too.
func AddFileAsset(t testing.TB, cfg *config.Config, store *catalog.Store, name string) *catalog.VideoAsset {
	t.Helper()

	WriteFile(t, filepath.Join(cfg.Paths.SourceDir, name), 2048)
	asset, err := store.Insert(context.Background(), catalog.NewAsset{Kind: catalog.KindFile, SourcePath: name})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return asset
}

// AddExternalAsset registers an externally hosted asset.
func AddExternalAsset(t testing.TB, store *catalog.Store, url string) *catalog.VideoAsset {
	t.Helper()

	asset, err := store.Insert(context.Background(), catalog.NewAsset{Kind: catalog.KindExternal, ExternalURL: url})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return asset
}

// DriveToStatus walks an asset through legal transitions until it reaches
// status and returns the refreshed record.
func DriveToStatus(t testing.TB, store *catalog.Store, id int64, status catalog.HLSStatus) *catalog.VideoAsset {
	t.Helper()

	ctx := context.Background()
	if status != catalog.StatusNone {
		if err := store.MarkPending(ctx, id, true); err != nil {
			t.Fatalf("MarkPending: %v", err)
		}
	}
	if status == catalog.StatusProcessing || status == catalog.StatusCompleted || status == catalog.StatusFailed {
		claimed, err := store.ClaimProcessing(ctx, id)
		if err != nil || !claimed {
			t.Fatalf("ClaimProcessing: claimed=%v err=%v", claimed, err)
		}
	}
	switch status {
	case catalog.StatusCompleted:
		if err := store.MarkCompleted(ctx, id, filepath.Join("hls", "test", "playlist.m3u8"), time.Now()); err != nil {
			t.Fatalf("MarkCompleted: %v", err)
		}
	case catalog.StatusFailed:
		if err := store.MarkFailed(ctx, id, "transcoder exited with status 1"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}
	asset, err := store.GetByID(ctx, id)
	if err != nil || asset == nil {
		t.Fatalf("GetByID: asset=%v err=%v", asset, err)
	}
	return asset
}
