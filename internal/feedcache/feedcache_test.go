package feedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nahharris/patch-hub/internal/fs"
	"github.com/nahharris/patch-hub/internal/loreapi"
	"github.com/nahharris/patch-hub/internal/model"
)

func mkPatch(id string, t time.Time) model.PatchMeta {
	return model.PatchMeta{MessageID: id, Title: id, Author: "a", Version: 1, PatchesCount: 1, LastUpdate: t}
}

func TestColdRefreshFetchesUntilEmptyPage(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)

	api := loreapi.Mock()
	api.ProgramFeedPage("l", 0, []model.PatchMeta{mkPatch("m3", t0), mkPatch("m2", t0)})
	api.ProgramFeedPage("l", 1, []model.PatchMeta{mkPatch("m1", t0)})
	api.ProgramFeedPage("l", 2, nil)

	fsHandle := fs.Mock(nil)
	h, join := Spawn(ctx, fsHandle, api, "feed", nil)
	defer func() { Close(h); <-join }()

	if err := h.Refresh(ctx, "l"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	n, err := h.Len(ctx, "l")
	if err != nil || n != 3 {
		t.Fatalf("Len = %d, %v, want 3", n, err)
	}
	first, _, _ := h.Get(ctx, "l", 0)
	if first.MessageID != "m3" {
		t.Fatalf("Get(0).MessageID = %q, want m3 (newest first)", first.MessageID)
	}
}

func TestIncrementalRefreshStopsAtJoinPoint(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)
	t1 := t0.Add(time.Minute)

	api := loreapi.Mock()
	api.ProgramFeedPage("l", 0, []model.PatchMeta{mkPatch("m2", t0)})
	api.ProgramFeedPage("l", 1, nil)

	fsHandle := fs.Mock(nil)
	h, join := Spawn(ctx, fsHandle, api, "feed", nil)
	defer func() { Close(h); <-join }()

	if err := h.Refresh(ctx, "l"); err != nil {
		t.Fatalf("Refresh 1: %v", err)
	}

	// Now simulate two new patches landing ahead of the known m2: page 0
	// contains m4,m3,m2 (m2 is the known join point). Program page 1 with
	// data that must NOT be fetched since the join point is on page 0.
	api.ProgramFeedPage("l", 0, []model.PatchMeta{mkPatch("m4", t1), mkPatch("m3", t1), mkPatch("m2", t0)})
	api.ProgramFeedPage("l", 1, []model.PatchMeta{mkPatch("should-not-be-seen", t1)})

	if err := h.Refresh(ctx, "l"); err != nil {
		t.Fatalf("Refresh 2: %v", err)
	}
	n, err := h.Len(ctx, "l")
	if err != nil || n != 3 {
		t.Fatalf("Len after incremental refresh = %d, %v, want 3 (m4,m3,m2)", n, err)
	}
	items, err := h.GetSlice(ctx, "l", 0, 3)
	if err != nil {
		t.Fatalf("GetSlice: %v", err)
	}
	want := []string{"m4", "m3", "m2"}
	for i, w := range want {
		if items[i].MessageID != w {
			t.Fatalf("items[%d] = %q, want %q", i, items[i].MessageID, w)
		}
	}
}

func TestRefreshFreshWhenHeadUnchanged(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)

	api := loreapi.Mock()
	api.ProgramFeedPage("l", 0, []model.PatchMeta{mkPatch("m1", t0)})
	api.ProgramFeedPage("l", 1, nil)

	fsHandle := fs.Mock(nil)
	h, join := Spawn(ctx, fsHandle, api, "feed", nil)
	defer func() { Close(h); <-join }()

	if err := h.Refresh(ctx, "l"); err != nil {
		t.Fatalf("Refresh 1: %v", err)
	}

	// Page 0 head unchanged (m1 still first) => refresh must not touch
	// page 1, even though it's now programmed with unexpected content.
	api.ProgramFeedPage("l", 1, []model.PatchMeta{mkPatch("should-not-be-fetched", t0)})
	if err := h.Refresh(ctx, "l"); err != nil {
		t.Fatalf("Refresh 2: %v", err)
	}
	n, _ := h.Len(ctx, "l")
	if n != 1 {
		t.Fatalf("Len after fresh refresh = %d, want 1", n)
	}
}

func TestInvalidateRemovesPersistedFile(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)

	api := loreapi.Mock()
	api.ProgramFeedPage("weird/list name", 0, []model.PatchMeta{mkPatch("m1", t0)})
	api.ProgramFeedPage("weird/list name", 1, nil)

	fsHandle := fs.Mock(nil)
	h, join := Spawn(ctx, fsHandle, api, "feed", nil)
	defer func() { Close(h); <-join }()

	if err := h.Refresh(ctx, "weird/list name"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := fsHandle.ReadFile(ctx, "feed/weird_list name.yaml"); err != nil {
		t.Fatalf("expected sanitised path to exist: %v", err)
	}
	if err := h.Invalidate(ctx, "weird/list name"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := fsHandle.ReadFile(ctx, "feed/weird_list name.yaml"); err == nil {
		t.Fatal("file still present after Invalidate")
	}
}

func TestMockPerListIsolation(t *testing.T) {
	ctx := context.Background()
	h := Mock(map[string][]model.PatchMeta{
		"a": {mkPatch("1", time.Time{})},
		"b": {mkPatch("2", time.Time{}), mkPatch("3", time.Time{})},
	})

	na, _ := h.Len(ctx, "a")
	nb, _ := h.Len(ctx, "b")
	if na != 1 || nb != 2 {
		t.Fatalf("Len(a)=%d Len(b)=%d, want 1,2", na, nb)
	}
}

func TestRefreshReusesPersistedSnapshot(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)

	api := loreapi.Mock()
	api.ProgramFeedPage("l", 0, []model.PatchMeta{mkPatch("m1", t0)})
	api.ProgramFeedPage("l", 1, nil)

	fsHandle := fs.Mock(nil)
	h1, join1 := Spawn(ctx, fsHandle, api, "feed", nil)
	if err := h1.Refresh(ctx, "l"); err != nil {
		t.Fatalf("Refresh 1: %v", err)
	}
	Close(h1)
	<-join1

	// A second actor over the same backing store must pick up the persisted
	// snapshot, so an unchanged head costs one request: page 1 is poisoned
	// and must never be fetched.
	api.ProgramFeedPage("l", 1, []model.PatchMeta{mkPatch("should-not-be-fetched", t0)})
	h2, join2 := Spawn(ctx, fsHandle, api, "feed", nil)
	defer func() { Close(h2); <-join2 }()

	if err := h2.Refresh(ctx, "l"); err != nil {
		t.Fatalf("Refresh 2: %v", err)
	}
	n, err := h2.Len(ctx, "l")
	if err != nil || n != 1 {
		t.Fatalf("Len = %d, %v, want 1 (warm snapshot, unchanged head)", n, err)
	}
}

func TestIsAvailableDoesNotFetch(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)

	// Any upstream call is a test failure.
	api := loreapi.Mock()
	api.ProgramError("feed", errors.New("is_available must not fetch"))

	// Cold cache: no disk state, nothing available, still no fetch.
	cold, coldJoin := Spawn(ctx, fs.Mock(nil), api, "feed", nil)
	ok, err := cold.IsAvailable(ctx, "l", 0)
	if err != nil {
		t.Fatalf("IsAvailable (cold): %v", err)
	}
	if ok {
		t.Fatal("IsAvailable(0) = true on empty cache")
	}
	Close(cold)
	<-coldJoin

	// Warm cache: the persisted per-list file alone answers the query.
	ts := t0.UTC().Format("2006-01-02T15:04:05Z")
	feedFile := "head_last_update: " + ts + "\n" +
		"items:\n" +
		"- message_id: m1\n" +
		"  title: fix\n" +
		"  author: a\n" +
		"  version: 1\n" +
		"  patches_count: 1\n" +
		"  last_update: " + ts + "\n" +
		"  list: l\n"
	warm, warmJoin := Spawn(ctx, fs.Mock(map[string][]byte{"feed/l.yaml": []byte(feedFile)}), api, "feed", nil)
	defer func() { Close(warm); <-warmJoin }()

	ok, err = warm.IsAvailable(ctx, "l", 0)
	if err != nil || !ok {
		t.Fatalf("IsAvailable (warm) = %v, %v, want true from disk alone", ok, err)
	}
	ok, err = warm.IsAvailable(ctx, "l", 1)
	if err != nil || ok {
		t.Fatalf("IsAvailable(1) (warm) = %v, %v, want false", ok, err)
	}
}

func TestColdIsAvailableDoesNotSuppressLoadOnFirstUse(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now().Truncate(time.Second)

	api := loreapi.Mock()
	api.ProgramFeedPage("l", 0, []model.PatchMeta{mkPatch("m1", t0)})
	api.ProgramFeedPage("l", 1, nil)

	h, join := Spawn(ctx, fs.Mock(nil), api, "feed", nil)
	defer func() { Close(h); <-join }()

	if ok, err := h.IsAvailable(ctx, "l", 0); err != nil || ok {
		t.Fatalf("IsAvailable (cold) = %v, %v, want false", ok, err)
	}
	// The availability probe must not have consumed the list's one-time
	// refresh: the first real read still populates.
	n, err := h.Len(ctx, "l")
	if err != nil || n != 1 {
		t.Fatalf("Len after cold IsAvailable = %d, %v, want 1 via implicit refresh", n, err)
	}
}
