package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nahharris/patch-hub/internal/feedcache"
	"github.com/nahharris/patch-hub/internal/mailinglistcache"
	"github.com/nahharris/patch-hub/internal/model"
	"github.com/nahharris/patch-hub/internal/patchcache"
)

func testModel(t *testing.T) Model {
	t.Helper()
	t0 := time.Now().Truncate(time.Second)

	mlc := mailinglistcache.Mock([]model.MailingList{
		{Name: "amd-gfx", Description: "AMD graphics", LastUpdate: t0},
		{Name: "linux-kernel", Description: "LKML", LastUpdate: t0},
	})
	feeds := feedcache.Mock(map[string][]model.PatchMeta{
		"amd-gfx": {
			{MessageID: "m1", Title: "fix hangs", Author: "dev", Version: 2, PatchesCount: 1, LastUpdate: t0, List: "amd-gfx"},
		},
	})
	patches := patchcache.Mock(map[string]map[string][]byte{
		"amd-gfx": {"m1": []byte("From: dev\n\nfix hangs\n")},
	})

	return NewModel(context.Background(), mlc, feeds, patches, nil, NewRenderer())
}

// step feeds msg into Update and synchronously runs any returned command,
// feeding its resulting message back in, until the command chain drains.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	for msg != nil {
		next, cmd := m.Update(msg)
		m = next.(Model)
		if cmd == nil {
			return m
		}
		msg = cmd()
		if _, quit := msg.(tea.QuitMsg); quit {
			return m
		}
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestInitLoadsLists(t *testing.T) {
	m := testModel(t)
	m = step(t, m, m.Init()())

	if m.screen != screenLists {
		t.Fatalf("screen = %d, want lists", m.screen)
	}
	if len(m.lists) != 2 || m.lists[0].Name != "amd-gfx" {
		t.Fatalf("lists = %+v, want amd-gfx first", m.lists)
	}
}

func TestDescendListsFeedPatchAndAscend(t *testing.T) {
	m := testModel(t)
	m = step(t, m, m.Init()())

	m = step(t, m, key("enter"))
	if m.screen != screenFeed || m.feedList != "amd-gfx" {
		t.Fatalf("after enter: screen=%d feedList=%q, want feed of amd-gfx", m.screen, m.feedList)
	}
	if len(m.feed) != 1 {
		t.Fatalf("feed = %+v, want one patch", m.feed)
	}

	m = step(t, m, key("enter"))
	if m.screen != screenPatch || m.patchMessageID != "m1" {
		t.Fatalf("after second enter: screen=%d id=%q, want patch m1", m.screen, m.patchMessageID)
	}

	m = step(t, m, key("esc"))
	if m.screen != screenFeed {
		t.Fatalf("esc from patch: screen=%d, want feed", m.screen)
	}
	m = step(t, m, key("esc"))
	if m.screen != screenLists {
		t.Fatalf("esc from feed: screen=%d, want lists", m.screen)
	}
}

func TestEscFromListsQuits(t *testing.T) {
	m := testModel(t)
	m = step(t, m, m.Init()())

	next, cmd := m.Update(key("esc"))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("esc on lists returned no command, want quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("esc on lists did not quit")
	}
}

func TestSelectionMovesAndClamps(t *testing.T) {
	m := testModel(t)
	m = step(t, m, m.Init()())

	m = step(t, m, key("down"))
	if m.listsSelected != 1 {
		t.Fatalf("selected = %d after down, want 1", m.listsSelected)
	}
	m = step(t, m, key("down"))
	if m.listsSelected != 1 {
		t.Fatalf("selected = %d after down at end, want clamped to 1", m.listsSelected)
	}
	m = step(t, m, key("up"))
	m = step(t, m, key("up"))
	if m.listsSelected != 0 {
		t.Fatalf("selected = %d after ups, want clamped to 0", m.listsSelected)
	}
}

func TestLoadErrorShowsErrorScreen(t *testing.T) {
	m := testModel(t)
	m = step(t, m, listsLoadedMsg{err: errors.New("boom")})

	if m.screen != screenError {
		t.Fatalf("screen = %d, want error", m.screen)
	}
	if view := m.View(); view == "" {
		t.Fatal("error view is empty")
	}
}

func TestErrorScreenInvalidateRecovers(t *testing.T) {
	m := testModel(t)
	m = step(t, m, m.Init()())
	m = step(t, m, listsLoadedMsg{err: errors.New("boom")})

	m = step(t, m, key("i"))
	if m.screen != screenLists {
		t.Fatalf("screen = %d after invalidate, want lists", m.screen)
	}
	if m.err != nil {
		t.Fatalf("err = %v after invalidate, want cleared", m.err)
	}
}

func TestViewsRenderSelectedRow(t *testing.T) {
	m := testModel(t)
	m = step(t, m, m.Init()())

	view := m.View()
	if view == "" {
		t.Fatal("lists view is empty")
	}

	m = step(t, m, key("enter"))
	if view := m.View(); view == "" {
		t.Fatal("feed view is empty")
	}

	m = step(t, m, key("enter"))
	if view := m.View(); view == "" {
		t.Fatal("patch view is empty")
	}
}
