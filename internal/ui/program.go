// program.go is the Bubble Tea model driving the `tui` command: the
// Lists, Feed, and Patch screens plus an error screen offering cache
// invalidation as the recovery action. Standard Elm-architecture shape:
// Init kicks off the first load, Update folds messages, View renders.
package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/nahharris/patch-hub/internal/constants"
	"github.com/nahharris/patch-hub/internal/eventbus"
	"github.com/nahharris/patch-hub/internal/feedcache"
	"github.com/nahharris/patch-hub/internal/mailinglistcache"
	"github.com/nahharris/patch-hub/internal/model"
	"github.com/nahharris/patch-hub/internal/patchcache"
	"github.com/nahharris/patch-hub/internal/tui"
)

// screen identifies which view is active. Enter descends
// Lists > Feed > Patch; Esc ascends.
type screen int

const (
	screenLists screen = iota
	screenFeed
	screenPatch
	screenError
)

// Model is the TUI's Bubble Tea state. It holds handles to the three
// caches directly; no separate mailbox is needed, since Bubble Tea's own
// event loop already serialises Update calls onto one goroutine, the same
// single-owner discipline the other actors get from their mailboxes.
type Model struct {
	ctx context.Context

	mailingLists mailinglistcache.Handle
	feeds        feedcache.Handle
	patches      patchcache.Handle
	bus          *eventbus.Bus
	renderer     Renderer

	screen screen
	err    error

	width, height int

	// Lists screen.
	lists         []model.MailingList
	listsSelected int
	listsPage     paginator.Model

	// Feed screen.
	feedList      string
	feed          []model.PatchMeta
	feedSelected  int
	feedPage      paginator.Model

	// Patch screen.
	patchMessageID string
	patchViewport  viewport.Model
	htmlMode       bool

	busEvents <-chan eventbus.Event
	unsub     func()
}

// NewModel constructs the initial Ui model. bus may be nil (no lifecycle
// event fan-out, e.g. in tests that only exercise Update directly).
func NewModel(ctx context.Context, mlc mailinglistcache.Handle, fc feedcache.Handle, pc patchcache.Handle, bus *eventbus.Bus, renderer Renderer) Model {
	lp := paginator.New()
	lp.PerPage = constants.PageSize
	fp := paginator.New()
	fp.PerPage = constants.PageSize

	m := Model{
		ctx:          ctx,
		mailingLists: mlc,
		feeds:        fc,
		patches:      pc,
		bus:          bus,
		renderer:     renderer,
		screen:       screenLists,
		listsPage:    lp,
		feedPage:     fp,
		patchViewport: viewport.New(80, 20),
	}
	if bus != nil {
		m.busEvents, m.unsub = bus.Subscribe()
	}
	return m
}

// Messages produced by async cache loads.
type listsLoadedMsg struct {
	items []model.MailingList
	total int
	err   error
}

type feedLoadedMsg struct {
	items []model.PatchMeta
	total int
	err   error
}

type patchLoadedMsg struct {
	body []byte
	err  error
}

type busEventMsg struct{ event eventbus.Event }

func (m Model) Init() tea.Cmd {
	return m.loadListsCmd(0)
}

func (m Model) loadListsCmd(page int) tea.Cmd {
	return func() tea.Msg {
		start, end := constants.PageBounds(page, constants.PageSize)
		total, err := m.mailingLists.Len(m.ctx)
		if err != nil {
			return listsLoadedMsg{err: err}
		}
		items, err := m.mailingLists.GetSlice(m.ctx, start, end)
		if err != nil {
			return listsLoadedMsg{err: err}
		}
		return listsLoadedMsg{items: items, total: total}
	}
}

func (m Model) loadFeedCmd(list string, page int) tea.Cmd {
	return func() tea.Msg {
		start, end := constants.PageBounds(page, constants.PageSize)
		total, err := m.feeds.Len(m.ctx, list)
		if err != nil {
			return feedLoadedMsg{err: err}
		}
		items, err := m.feeds.GetSlice(m.ctx, list, start, end)
		if err != nil {
			return feedLoadedMsg{err: err}
		}
		return feedLoadedMsg{items: items, total: total}
	}
}

func (m Model) loadPatchCmd(list, messageID string) tea.Cmd {
	return func() tea.Msg {
		body, err := m.patches.Get(m.ctx, list, messageID)
		return patchLoadedMsg{body: body, err: err}
	}
}

// waitForBusEventCmd turns the next lifecycle event into a tea.Msg, so
// the TUI can react to a cache invalidation that happened out of band.
func (m Model) waitForBusEventCmd() tea.Cmd {
	if m.busEvents == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-m.busEvents
		if !ok {
			return nil
		}
		return busEventMsg{event: event}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.patchViewport.Width = msg.Width
		m.patchViewport.Height = msg.Height - 4
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case listsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.screen = screenError
			return m, nil
		}
		m.lists = msg.items
		m.listsPage.SetTotalPages(msg.total)
		if m.listsSelected >= len(m.lists) {
			m.listsSelected = 0
		}
		return m, nil

	case feedLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.screen = screenError
			return m, nil
		}
		m.feed = msg.items
		m.feedPage.SetTotalPages(msg.total)
		if m.feedSelected >= len(m.feed) {
			m.feedSelected = 0
		}
		return m, nil

	case patchLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.screen = screenError
			return m, nil
		}
		m.patchViewport.SetContent(m.renderBody(msg.body))
		m.patchViewport.GotoTop()
		return m, m.waitForBusEventCmd()

	case busEventMsg:
		cmd := m.waitForBusEventCmd()
		if msg.event.Type == eventbus.EventCacheInvalidated {
			return m, tea.Batch(cmd, m.reloadCurrentScreenCmd())
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) renderBody(body []byte) string {
	if m.htmlMode && m.renderer != nil {
		return m.renderer.Render(body)
	}
	return string(body)
}

func (m Model) reloadCurrentScreenCmd() tea.Cmd {
	switch m.screen {
	case screenLists:
		return m.loadListsCmd(m.listsPage.Page)
	case screenFeed:
		return m.loadFeedCmd(m.feedList, m.feedPage.Page)
	case screenPatch:
		return m.loadPatchCmd(m.feedList, m.patchMessageID)
	default:
		return nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.screen == screenError {
		switch msg.String() {
		case "i":
			return m.invalidateCurrent()
		case "esc", "q":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		return m.moveSelection(-1), nil
	case "down", "j":
		return m.moveSelection(1), nil

	case "left", "h":
		return m.changePage(-1)
	case "right", "l":
		return m.changePage(1)

	case "enter":
		return m.descend()

	case "esc":
		return m.ascend()

	case "v":
		if m.screen == screenPatch {
			m.htmlMode = !m.htmlMode
			return m, m.loadPatchCmd(m.feedList, m.patchMessageID)
		}
	}
	return m, nil
}

func (m Model) moveSelection(delta int) Model {
	switch m.screen {
	case screenLists:
		n := len(m.lists)
		if n == 0 {
			return m
		}
		m.listsSelected = clamp(m.listsSelected+delta, 0, n-1)
	case screenFeed:
		n := len(m.feed)
		if n == 0 {
			return m
		}
		m.feedSelected = clamp(m.feedSelected+delta, 0, n-1)
	case screenPatch:
		if delta > 0 {
			m.patchViewport.LineDown(1)
		} else {
			m.patchViewport.LineUp(1)
		}
	}
	return m
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m Model) changePage(delta int) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenLists:
		if delta > 0 {
			m.listsPage.NextPage()
		} else {
			m.listsPage.PrevPage()
		}
		m.listsSelected = 0
		return m, m.loadListsCmd(m.listsPage.Page)
	case screenFeed:
		if delta > 0 {
			m.feedPage.NextPage()
		} else {
			m.feedPage.PrevPage()
		}
		m.feedSelected = 0
		return m, m.loadFeedCmd(m.feedList, m.feedPage.Page)
	}
	return m, nil
}

func (m Model) descend() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenLists:
		if m.listsSelected >= len(m.lists) {
			return m, nil
		}
		m.feedList = m.lists[m.listsSelected].Name
		m.screen = screenFeed
		m.feedPage.Page = 0
		m.feedSelected = 0
		return m, m.loadFeedCmd(m.feedList, 0)
	case screenFeed:
		if m.feedSelected >= len(m.feed) {
			return m, nil
		}
		m.patchMessageID = m.feed[m.feedSelected].MessageID
		m.screen = screenPatch
		return m, m.loadPatchCmd(m.feedList, m.patchMessageID)
	}
	return m, nil
}

func (m Model) ascend() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenPatch:
		m.screen = screenFeed
		return m, nil
	case screenFeed:
		m.screen = screenLists
		return m, nil
	case screenLists:
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) invalidateCurrent() (tea.Model, tea.Cmd) {
	m.err = nil
	switch m.screen {
	case screenFeed, screenPatch:
		if err := m.feeds.Invalidate(m.ctx, m.feedList); err != nil {
			m.err = err
			m.screen = screenError
			return m, nil
		}
		if m.bus != nil {
			m.bus.PublishCacheInvalidated(m.feedList)
		}
		m.screen = screenFeed
		return m, m.loadFeedCmd(m.feedList, 0)
	default:
		if err := m.mailingLists.Invalidate(m.ctx); err != nil {
			m.err = err
			m.screen = screenError
			return m, nil
		}
		if m.bus != nil {
			m.bus.PublishCacheInvalidated("")
		}
		m.screen = screenLists
		return m, m.loadListsCmd(0)
	}
}

func (m Model) View() string {
	switch m.screen {
	case screenLists:
		return m.viewLists()
	case screenFeed:
		return m.viewFeed()
	case screenPatch:
		return m.viewPatch()
	case screenError:
		return m.viewError()
	default:
		return ""
	}
}

func (m Model) viewLists() string {
	var b strings.Builder
	b.WriteString(tui.TitleStyle.Render("Mailing Lists"))
	b.WriteString("\n")
	for i, l := range m.lists {
		row := fmt.Sprintf("%-30s %s", TruncateColumn(l.Name, 30), TruncateColumn(l.Description, 60))
		if i == m.listsSelected {
			b.WriteString(tui.SelectedRowStyle.Render(row))
		} else {
			b.WriteString(tui.RowStyle.Render(row))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.listsPage.View())
	b.WriteString("\n")
	b.WriteString(tui.HelpStyle.Render("↑/↓ select · ←/→ page · enter open · esc quit"))
	return b.String()
}

func (m Model) viewFeed() string {
	var b strings.Builder
	b.WriteString(tui.TitleStyle.Render("Feed: " + m.feedList))
	b.WriteString("\n")
	for i, p := range m.feed {
		row := fmt.Sprintf("v%-3d %-50s %s", p.Version, TruncateColumn(p.Title, 50), TruncateColumn(p.Author, 30))
		if i == m.feedSelected {
			b.WriteString(tui.SelectedRowStyle.Render(row))
		} else {
			b.WriteString(tui.RowStyle.Render(row))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.feedPage.View())
	b.WriteString("\n")
	b.WriteString(tui.HelpStyle.Render("↑/↓ select · ←/→ page · enter open · esc back"))
	return b.String()
}

func (m Model) viewPatch() string {
	var b strings.Builder
	b.WriteString(tui.TitleStyle.Render("Patch: " + m.patchMessageID))
	b.WriteString("\n")
	b.WriteString(m.patchViewport.View())
	b.WriteString("\n")
	b.WriteString(tui.HelpStyle.Render("↑/↓ scroll · v toggle render · esc back"))
	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder
	b.WriteString(tui.ErrorStyle.Render("Error: " + m.err.Error()))
	b.WriteString("\n")
	b.WriteString(tui.HelpStyle.Render("i invalidate cache · esc quit"))
	return b.String()
}
