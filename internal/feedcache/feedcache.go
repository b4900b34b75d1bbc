// Package feedcache holds the per-list caches of patch metadata with
// smart incremental refresh: a refresh fetches only as many pages as
// needed to reach the newest already-known message_id, instead of
// re-downloading the whole feed every time.
package feedcache

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/nahharris/patch-hub/internal/actor"
	"github.com/nahharris/patch-hub/internal/fs"
	"github.com/nahharris/patch-hub/internal/model"
)

// Handle is the operation surface of the FeedCache actor.
type Handle interface {
	Len(ctx context.Context, list string) (int, error)
	Get(ctx context.Context, list string, index int) (model.PatchMeta, bool, error)
	GetSlice(ctx context.Context, list string, start, end int) ([]model.PatchMeta, error)
	Refresh(ctx context.Context, list string) error
	Invalidate(ctx context.Context, list string) error
	IsAvailable(ctx context.Context, list string, index int) (bool, error)
}

// LoreApi is the subset of loreapi.Handle this cache needs.
type LoreApi interface {
	GetPatchFeedPage(ctx context.Context, list string, page int) ([]model.PatchMeta, error)
}

type opKind int

const (
	opLen opKind = iota
	opGet
	opGetSlice
	opRefresh
	opInvalidate
	opIsAvailable
)

type request struct {
	op         opKind
	list       string
	index      int
	start, end int
	reply      chan response
}

type response struct {
	n     int
	item  model.PatchMeta
	found bool
	items []model.PatchMeta
	ok    bool
	err   error
}

type listState struct {
	loaded bool
	items  []model.PatchMeta
	head   time.Time
}

type live struct {
	mbox *actor.Mailbox[request]

	fs      fs.Handle
	api     LoreApi
	feedDir string
	warn    func(string)

	state map[string]*listState
}

// Spawn starts the FeedCache actor. feedDir is <cache_dir>/feed.
func Spawn(ctx context.Context, fsHandle fs.Handle, api LoreApi, feedDir string, warn func(string)) (Handle, actor.Join) {
	l := &live{
		mbox:    actor.NewMailbox[request](32),
		fs:      fsHandle,
		api:     api,
		feedDir: feedDir,
		warn:    warn,
		state:   make(map[string]*listState),
	}
	join := make(chan struct{})
	go func() {
		defer close(join)
		l.mbox.Run(ctx, l.apply)
	}()
	return l, join
}

// Close stops the FeedCache actor.
func Close(h Handle) {
	if l, ok := h.(*live); ok {
		l.mbox.Close()
	}
}

func (l *live) apply(req request) {
	var resp response
	st := l.stateFor(req.list)

	switch req.op {
	case opLen:
		l.ensureLoaded(req.list, st)
		resp.n = len(st.items)
	case opGet:
		l.ensureLoaded(req.list, st)
		if req.index >= 0 && req.index < len(st.items) {
			resp.item = st.items[req.index]
			resp.found = true
		}
	case opGetSlice:
		l.ensureLoaded(req.list, st)
		resp.items = sliceClamped(st.items, req.start, req.end)
	case opRefresh:
		l.loadQuiet(req.list, st)
		resp.err = l.refresh(req.list, st)
		if resp.err == nil {
			st.loaded = true
		}
	case opInvalidate:
		resp.err = l.invalidate(req.list, st)
	case opIsAvailable:
		// Availability is answered from memory and disk only; unlike the
		// read operations it must never trigger an upstream fetch.
		l.loadQuiet(req.list, st)
		resp.ok = req.index >= 0 && req.index < len(st.items)
	}
	req.reply <- resp
}

func (l *live) stateFor(list string) *listState {
	st, ok := l.state[list]
	if !ok {
		st = &listState{}
		l.state[list] = st
	}
	return st
}

func sliceClamped[T any](items []T, start, end int) []T {
	if start < 0 {
		start = 0
	}
	if end > len(items) {
		end = len(items)
	}
	if start >= end {
		return nil
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// sanitiseListName replaces path separators and control characters with
// '_'. Collisions between distinct names that
// sanitise identically are a declared non-goal.
var controlOrSep = regexp.MustCompile(`[/\\\x00-\x1f\x7f]`)

func sanitiseListName(name string) string {
	return controlOrSep.ReplaceAllString(name, "_")
}

func (l *live) pathFor(list string) string {
	return fmt.Sprintf("%s/%s.yaml", l.feedDir, sanitiseListName(list))
}

func (l *live) ensureLoaded(list string, st *listState) {
	if st.loaded {
		return
	}
	st.loaded = true
	if !l.loadFromDisk(list, st) {
		l.refreshInline(list, st)
	}
}

// loadQuiet performs the same first-use disk load but never fetches:
// refresh uses it so a warm feed's head message id is in place for the
// freshness check, and IsAvailable uses it to answer from disk alone. A
// failed disk load leaves the list marked cold so the next read operation
// still gets its load-on-first-use refresh.
func (l *live) loadQuiet(list string, st *listState) {
	if st.loaded {
		return
	}
	if l.loadFromDisk(list, st) {
		st.loaded = true
	}
}

func (l *live) loadFromDisk(list string, st *listState) bool {
	ctx := context.Background()
	data, err := l.fs.ReadFile(ctx, l.pathFor(list))
	if err != nil {
		return false
	}

	// A zero-byte file decodes as an empty feed; treat it as corruption
	// (delete and refetch) rather than a list with no patches.
	var file model.FeedFile
	if err := yaml.Unmarshal(data, &file); err != nil || len(file.Items) == 0 {
		_ = l.fs.RemoveFile(ctx, l.pathFor(list))
		return false
	}

	st.items = file.Items
	st.head = file.HeadLastUpdate
	return true
}

func (l *live) refreshInline(list string, st *listState) {
	if err := l.refresh(list, st); err != nil && l.warn != nil {
		l.warn(fmt.Sprintf("feedcache: refresh(%s) after cold load failed: %v", list, err))
	}
}

// refresh is the smart incremental refresh: fetch newest-first pages and
// stop at the first already-known message id.
func (l *live) refresh(list string, st *listState) error {
	ctx := context.Background()

	page0, err := l.api.GetPatchFeedPage(ctx, list, 0)
	if err != nil {
		return err
	}
	if len(page0) == 0 {
		return nil
	}
	if len(st.items) > 0 && st.items[0].MessageID == page0[0].MessageID {
		return nil
	}

	known := make(map[string]bool, len(st.items))
	for _, m := range st.items {
		known[m.MessageID] = true
	}

	var fresh []model.PatchMeta
	page := 0
	items := page0
	for {
		if len(items) == 0 {
			// Cold cache (known empty): stop only on an empty page.
			break
		}

		stop := false
		for _, m := range items {
			if known[m.MessageID] {
				stop = true
				break
			}
			fresh = append(fresh, m)
		}
		if stop {
			break
		}

		page++
		items, err = l.api.GetPatchFeedPage(ctx, list, page)
		if err != nil {
			return err
		}
	}

	st.items = append(fresh, st.items...)
	if len(st.items) > 0 {
		st.head = st.items[0].LastUpdate
	}

	return l.persist(list, st)
}

func (l *live) persist(list string, st *listState) error {
	file := model.FeedFile{HeadLastUpdate: st.head, Items: st.items}
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("feedcache: marshal(%s): %w", list, err)
	}
	if err := l.fs.WriteFileAtomic(context.Background(), l.pathFor(list), data); err != nil {
		if l.warn != nil {
			l.warn(fmt.Sprintf("feedcache: persist(%s) failed: %v", list, err))
		}
	}
	return nil
}

func (l *live) invalidate(list string, st *listState) error {
	st.items = nil
	st.head = time.Time{}
	st.loaded = true
	return l.fs.RemoveFile(context.Background(), l.pathFor(list))
}

func (l *live) do(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)
	if err := l.mbox.Send(ctx, req); err != nil {
		return response{}, err
	}
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

func (l *live) Len(ctx context.Context, list string) (int, error) {
	resp, err := l.do(ctx, request{op: opLen, list: list})
	return resp.n, err
}

func (l *live) Get(ctx context.Context, list string, index int) (model.PatchMeta, bool, error) {
	resp, err := l.do(ctx, request{op: opGet, list: list, index: index})
	return resp.item, resp.found, err
}

func (l *live) GetSlice(ctx context.Context, list string, start, end int) ([]model.PatchMeta, error) {
	resp, err := l.do(ctx, request{op: opGetSlice, list: list, start: start, end: end})
	return resp.items, err
}

func (l *live) Refresh(ctx context.Context, list string) error {
	resp, err := l.do(ctx, request{op: opRefresh, list: list})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) Invalidate(ctx context.Context, list string) error {
	resp, err := l.do(ctx, request{op: opInvalidate, list: list})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) IsAvailable(ctx context.Context, list string, index int) (bool, error) {
	resp, err := l.do(ctx, request{op: opIsAvailable, list: list, index: index})
	return resp.ok, err
}

// mock is an in-memory Handle keyed by list, seeded directly with items.
type mock struct {
	state map[string][]model.PatchMeta
}

// Mock returns a FeedCache handle pre-populated per list.
func Mock(seed map[string][]model.PatchMeta) Handle {
	state := make(map[string][]model.PatchMeta, len(seed))
	for k, v := range seed {
		state[k] = v
	}
	return &mock{state: state}
}

func (m *mock) Len(_ context.Context, list string) (int, error) { return len(m.state[list]), nil }

func (m *mock) Get(_ context.Context, list string, index int) (model.PatchMeta, bool, error) {
	items := m.state[list]
	if index < 0 || index >= len(items) {
		return model.PatchMeta{}, false, nil
	}
	return items[index], true, nil
}

func (m *mock) GetSlice(_ context.Context, list string, start, end int) ([]model.PatchMeta, error) {
	return sliceClamped(m.state[list], start, end), nil
}

func (m *mock) Refresh(_ context.Context, _ string) error { return nil }

func (m *mock) Invalidate(_ context.Context, list string) error {
	delete(m.state, list)
	return nil
}

func (m *mock) IsAvailable(_ context.Context, list string, index int) (bool, error) {
	items := m.state[list]
	return index >= 0 && index < len(items), nil
}
