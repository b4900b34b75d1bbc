package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nahharris/patch-hub/internal/log"
	"github.com/nahharris/patch-hub/internal/loreapi"
)

// unreachableURL fails fast at connect time without touching the network.
const unreachableURL = "http://127.0.0.1:1"

func startTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()

	a, err := Start(context.Background(), Options{
		ConfigPath: filepath.Join(dir, "config.toml"),
		CacheDir:   filepath.Join(dir, "cache"),
		BaseURL:    unreachableURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a
}

func TestListsWithNoCacheAndDeadUpstreamFails(t *testing.T) {
	a := startTestApp(t)

	_, err := a.Lists(context.Background(), 0, 10)
	if err == nil {
		t.Fatal("Lists succeeded with no cache and a dead upstream")
	}
	if !errors.Is(err, loreapi.ErrTransport) {
		t.Fatalf("err = %v, want a transport error", err)
	}
}

func TestListsServedFromCacheWhenUpstreamDead(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	snapshot := "head_last_update: 2024-01-01T00:00:00Z\n" +
		"items:\n" +
		"- name: amd-gfx\n" +
		"  description: AMD graphics\n" +
		"  last_update: 2024-01-01T00:00:00Z\n" +
		"- name: linux-kernel\n" +
		"  description: LKML\n" +
		"  last_update: 2024-01-01T00:00:00Z\n"
	if err := os.WriteFile(filepath.Join(cacheDir, "mailing_lists.yaml"), []byte(snapshot), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := Start(context.Background(), Options{
		ConfigPath: filepath.Join(dir, "config.toml"),
		CacheDir:   cacheDir,
		BaseURL:    unreachableURL,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Shutdown(context.Background())

	items, err := a.Lists(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("Lists: %v (want cached fallback)", err)
	}
	if len(items) != 2 || items[0].Name != "amd-gfx" {
		t.Fatalf("items = %+v, want cached amd-gfx first", items)
	}
}

func TestPatchPropagatesUpstreamError(t *testing.T) {
	a := startTestApp(t)

	_, err := a.Patch(context.Background(), "amd-gfx", "mid1", false)
	if err == nil {
		t.Fatal("Patch succeeded with a dead upstream")
	}
	if !errors.Is(err, loreapi.ErrTransport) {
		t.Fatalf("err = %v, want a transport error", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	a := startTestApp(t)

	a.Shutdown(context.Background())
	a.Shutdown(context.Background())
}

func TestCacheStatusReportsDir(t *testing.T) {
	a := startTestApp(t)

	dir, status := a.CacheStatus()
	if dir == "" || status == "" {
		t.Fatalf("CacheStatus = %q, %q, want non-empty", dir, status)
	}
}

func TestLogsRecordCommands(t *testing.T) {
	a := startTestApp(t)
	ctx := context.Background()

	_, _ = a.Lists(ctx, 0, 10)

	records, err := a.Log().GetLast(ctx, 10)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("no log records after a command")
	}
	for i := 1; i < len(records); i++ {
		if records[i].Seq <= records[i-1].Seq {
			t.Fatalf("sequence numbers not monotonic: %d then %d", records[i-1].Seq, records[i].Seq)
		}
	}
}

func TestSetLogLevelPropagatesToLogActor(t *testing.T) {
	a := startTestApp(t)
	ctx := context.Background()

	if err := a.SetLogLevel(ctx, log.LevelError); err != nil {
		t.Fatalf("SetLogLevel: %v", err)
	}

	// Lists emits an Info record for the dispatch and Warn/Error records
	// for the dead upstream; after raising the threshold only Error-level
	// records may appear.
	before, err := a.Log().GetLast(ctx, 0)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	_, _ = a.Lists(ctx, 0, 10)
	after, err := a.Log().GetLast(ctx, 0)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	for _, r := range after[len(before):] {
		if r.Level < log.LevelError {
			t.Fatalf("record below Error after SetLogLevel(Error): %+v", r)
		}
	}

	// The new level is persisted to the config file.
	path, err := a.ConfigPath(ctx)
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), `log_level = "Error"`) {
		t.Fatalf("config file %q does not record the new level", data)
	}
}
