package log

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLiveLogBelowThresholdDiscarded(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	h, join := Spawn(ctx, dir, LevelWarn, 0, 10)
	defer func() { Close(h); <-join }()

	if err := h.Log(ctx, LevelInfo, "ignored"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := h.Log(ctx, LevelError, "kept"); err != nil {
		t.Fatalf("Log: %v", err)
	}

	recs, err := h.GetLast(ctx, 10)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if len(recs) != 1 || recs[0].Message != "kept" {
		t.Fatalf("GetLast = %+v, want only the Error record", recs)
	}
}

func TestLiveGetLastBoundedAndOrdered(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	h, join := Spawn(ctx, dir, LevelDebug, 0, 3)
	defer func() { Close(h); <-join }()

	for i := 0; i < 5; i++ {
		if err := h.Log(ctx, LevelInfo, string(rune('a'+i))); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	recs, err := h.GetLast(ctx, 10)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("GetLast len = %d, want 3 (ring capacity)", len(recs))
	}
	want := []string{"c", "d", "e"}
	for i, r := range recs {
		if r.Message != want[i] {
			t.Fatalf("GetLast[%d] = %q, want %q", i, r.Message, want[i])
		}
	}
	if recs[0].Seq >= recs[1].Seq || recs[1].Seq >= recs[2].Seq {
		t.Fatalf("sequence numbers not monotonic: %+v", recs)
	}
}

func TestLiveCollectGarbageDeletesOldFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stale := filepath.Join(dir, "patch-hub-20000101-000000.log")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}

	h, join := Spawn(ctx, dir, LevelInfo, 1, 10)
	defer func() { Close(h); <-join }()

	if err := h.CollectGarbage(ctx); err != nil {
		t.Fatalf("CollectGarbage: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale log file still present after CollectGarbage: %v", err)
	}
}

func TestLiveFlush(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	h, join := Spawn(ctx, dir, LevelInfo, 0, 10)
	defer func() { <-join }()

	if err := h.Log(ctx, LevelInfo, "flushed-record"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := h.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// After Flush returns, the record must be on disk in the session file.
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ReadDir = %v, %v, want exactly the session log file", entries, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "flushed-record") {
		t.Fatalf("log file %q does not contain the flushed record", entries[0].Name())
	}
	Close(h)
}

func TestMockNoopWritesStillBuffered(t *testing.T) {
	ctx := context.Background()
	h := Mock()

	if err := h.Log(ctx, LevelInfo, "m1"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := h.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	recs, err := h.GetLast(ctx, 5)
	if err != nil || len(recs) != 1 || recs[0].Message != "m1" {
		t.Fatalf("GetLast = %+v, %v", recs, err)
	}
}

func TestLiveLogTraceCarriesCorrelationID(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	h, join := Spawn(ctx, dir, LevelInfo, 0, 10)
	defer func() { Close(h); <-join }()

	trace := NewTrace()
	if trace == "" {
		t.Fatal("NewTrace() returned empty string")
	}
	if err := h.LogTrace(ctx, LevelInfo, trace, "dispatching lists"); err != nil {
		t.Fatalf("LogTrace: %v", err)
	}

	recs, err := h.GetLast(ctx, 1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("GetLast = %+v, %v", recs, err)
	}
	if recs[0].Trace != trace {
		t.Fatalf("GetLast[0].Trace = %q, want %q", recs[0].Trace, trace)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if ParseLevel("bogus") != LevelInfo {
		t.Fatal("ParseLevel(bogus) != LevelInfo")
	}
	if ParseLevel("Debug") != LevelDebug {
		t.Fatal("ParseLevel(Debug) != LevelDebug")
	}
}

func TestSetLevelTakesEffect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	h, join := Spawn(ctx, dir, LevelInfo, 0, 10)
	defer func() { Close(h); <-join }()

	if err := h.SetLevel(ctx, LevelWarn); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if err := h.Log(ctx, LevelInfo, "now-below-threshold"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := h.Log(ctx, LevelWarn, "kept"); err != nil {
		t.Fatalf("Log: %v", err)
	}

	recs, err := h.GetLast(ctx, 10)
	if err != nil {
		t.Fatalf("GetLast: %v", err)
	}
	if len(recs) != 1 || recs[0].Message != "kept" {
		t.Fatalf("GetLast = %+v, want only the Warn record after SetLevel", recs)
	}

	// Lowering the threshold re-admits finer records.
	if err := h.SetLevel(ctx, LevelDebug); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if err := h.Log(ctx, LevelDebug, "fine-grained"); err != nil {
		t.Fatalf("Log: %v", err)
	}
	recs, _ = h.GetLast(ctx, 10)
	if len(recs) != 2 || recs[1].Message != "fine-grained" {
		t.Fatalf("GetLast = %+v, want the Debug record admitted", recs)
	}
}
