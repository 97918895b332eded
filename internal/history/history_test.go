package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"squash/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAddAndListNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []history.Entry{
		{JobID: "a", InputPath: "/in/a.mkv", OutputPath: "/out/a.mp4", PresetID: "balanced", OriginalSize: 1000, CompressedSize: 400, CompressionRatio: 0.4, Duration: 1500 * time.Millisecond, Success: true, CompletedAt: base},
		{JobID: "b", InputPath: "/in/b.mkv", OutputPath: "/out/b.mp4", PresetID: "small", OriginalSize: 2000, Error: "cancelled", CompletedAt: base.Add(time.Minute)},
		{JobID: "c", InputPath: "/in/c.mkv", OutputPath: "/out/c.mp4", PresetID: "share-2pass", OriginalSize: 3000, CompressedSize: 1000, CompressionRatio: 1.0 / 3, Success: true, TargetSize: 1024, CompletedAt: base.Add(2 * time.Minute)},
	}
	for _, entry := range entries {
		if err := store.AddItem(ctx, entry); err != nil {
			t.Fatalf("AddItem %s: %v", entry.JobID, err)
		}
	}

	got, err := store.List(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].JobID != "c" || got[2].JobID != "a" {
		t.Fatalf("unexpected order: %s, %s, %s", got[0].JobID, got[1].JobID, got[2].JobID)
	}
	if got[0].TargetSize != 1024 {
		t.Fatalf("target size not persisted: %d", got[0].TargetSize)
	}
	if got[1].Success || got[1].Error != "cancelled" {
		t.Fatalf("failure entry mismatch: %+v", got[1])
	}
	if got[2].Duration != 1500*time.Millisecond || got[2].CompressionRatio != 0.4 {
		t.Fatalf("success entry mismatch: %+v", got[2])
	}
	if !got[2].CompletedAt.Equal(base) {
		t.Fatalf("completed_at = %v, want %v", got[2].CompletedAt, base)
	}
}

func TestListFiltersAndLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for i, ok := range []bool{true, false, true, true} {
		entry := history.Entry{JobID: string(rune('a' + i)), Success: ok, CompletedAt: time.Unix(int64(1000+i), 0)}
		if !ok {
			entry.Error = "ffmpeg exited with code 1"
		}
		if err := store.AddItem(ctx, entry); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}

	failed, err := store.List(ctx, history.Filter{FailedOnly: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].JobID != "b" {
		t.Fatalf("unexpected failed entries: %+v", failed)
	}

	limited, err := store.List(ctx, history.Filter{Limit: 2, SuccessOnly: true})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 2 || limited[0].JobID != "d" {
		t.Fatalf("unexpected limited entries: %+v", limited)
	}
}

func TestStatsAndClear(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	_ = store.AddItem(ctx, history.Entry{JobID: "ok", OriginalSize: 1000, CompressedSize: 250, Success: true})
	_ = store.AddItem(ctx, history.Entry{JobID: "bad", OriginalSize: 500, Error: "boom"})

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.OriginalSize != 1000 || stats.CompressedSize != 250 {
		t.Fatalf("unexpected sizes: %+v", stats)
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	left, _ := store.List(ctx, history.Filter{})
	if len(left) != 0 {
		t.Fatalf("expected empty history, got %d", len(left))
	}
}

func TestAddItemRequiresJobID(t *testing.T) {
	store := openStore(t)
	if err := store.AddItem(context.Background(), history.Entry{}); err == nil {
		t.Fatal("expected error for missing job id")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.AddItem(context.Background(), history.Entry{JobID: "persist", Success: true}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	_ = store.Close()

	reopened, err := history.Open(path)
	if err != nil {
		if errors.Is(err, history.ErrSchemaMismatch) {
			t.Fatalf("unexpected schema mismatch on reopen: %v", err)
		}
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.List(context.Background(), history.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "persist" {
		t.Fatalf("unexpected entries after reopen: %+v", got)
	}
}
