// Package mailinglistcache maintains the full, alphabetically-sorted
// snapshot of every mailing list on the upstream archive, persisted at
// <cache_dir>/mailing_lists.yaml.
package mailinglistcache

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/nahharris/patch-hub/internal/actor"
	"github.com/nahharris/patch-hub/internal/fs"
	"github.com/nahharris/patch-hub/internal/model"
)

// Handle is the operation surface of the MailingListCache actor.
type Handle interface {
	Len(ctx context.Context) (int, error)
	Get(ctx context.Context, index int) (model.MailingList, bool, error)
	GetSlice(ctx context.Context, start, end int) ([]model.MailingList, error)
	Refresh(ctx context.Context) error
	Invalidate(ctx context.Context) error
	IsAvailable(ctx context.Context, index int) (bool, error)
}

// LoreApi is the subset of loreapi.Handle this cache needs.
type LoreApi interface {
	GetAvailableListsPage(ctx context.Context, page int) ([]model.MailingList, error)
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
	index      int
	start, end int
	reply      chan response
}

type response struct {
	n       int
	item    model.MailingList
	found   bool
	items   []model.MailingList
	ok      bool
	err     error
}

type live struct {
	mbox *actor.Mailbox[request]

	fs   fs.Handle
	api  LoreApi
	path string

	loaded bool
	items  []model.MailingList
	head   time.Time

	warn func(msg string)
}

// Spawn starts the MailingListCache actor. warn, if non-nil, is called with
// a message when a refresh fails and previous state is retained (App
// failure policy); App wires this to Log.
func Spawn(ctx context.Context, fsHandle fs.Handle, api LoreApi, path string, warn func(string)) (Handle, actor.Join) {
	l := &live{mbox: actor.NewMailbox[request](32), fs: fsHandle, api: api, path: path, warn: warn}
	join := make(chan struct{})
	go func() {
		defer close(join)
		l.mbox.Run(ctx, l.apply)
	}()
	return l, join
}

// Close stops the MailingListCache actor.
func Close(h Handle) {
	if l, ok := h.(*live); ok {
		l.mbox.Close()
	}
}

func (l *live) apply(req request) {
	var resp response
	switch req.op {
	case opLen:
		l.ensureLoaded()
		resp.n = len(l.items)
	case opGet:
		l.ensureLoaded()
		if req.index >= 0 && req.index < len(l.items) {
			resp.item = l.items[req.index]
			resp.found = true
		}
	case opGetSlice:
		l.ensureLoaded()
		resp.items = sliceClamped(l.items, req.start, req.end)
	case opRefresh:
		l.loadQuiet()
		resp.err = l.refresh()
		if resp.err == nil {
			l.loaded = true
		}
	case opInvalidate:
		resp.err = l.invalidate()
	case opIsAvailable:
		// Availability is answered from memory and disk only; unlike the
		// read operations it must never trigger an upstream fetch.
		l.loadQuiet()
		resp.ok = req.index >= 0 && req.index < len(l.items)
	}
	req.reply <- resp
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

// ensureLoaded attempts a disk load the first time state is read, per
// the load-on-first-use rule: state is read from disk on the first
// operation that needs it, not at spawn.
func (l *live) ensureLoaded() {
	if l.loaded {
		return
	}
	l.loaded = true
	if !l.loadFromDisk() {
		l.triggerBackgroundRefresh()
	}
}

// loadQuiet performs the same first-use disk load but never fetches:
// refresh uses it so a warm snapshot's head timestamp is in place for the
// freshness check, and IsAvailable uses it to answer from disk alone. A
// failed disk load leaves the cache marked cold so the next read operation
// still gets its load-on-first-use refresh.
func (l *live) loadQuiet() {
	if l.loaded {
		return
	}
	if l.loadFromDisk() {
		l.loaded = true
	}
}

func (l *live) loadFromDisk() bool {
	ctx := context.Background()
	data, err := l.fs.ReadFile(ctx, l.path)
	if err != nil {
		return false
	}

	// A zero-byte file decodes as an empty snapshot; treat it as corruption
	// (delete and refetch) rather than an empty archive.
	var file model.ListsFile
	if err := yaml.Unmarshal(data, &file); err != nil || len(file.Items) == 0 {
		_ = l.fs.RemoveFile(ctx, l.path)
		return false
	}

	l.items = file.Items
	l.head = file.HeadLastUpdate
	return true
}

// triggerBackgroundRefresh runs refresh synchronously; the actor already
// processes messages sequentially so there is no separate background task
// to spawn; the caller that triggered load-on-first-use simply pays the
// cost of the first refresh inline.
func (l *live) triggerBackgroundRefresh() {
	if err := l.refresh(); err != nil && l.warn != nil {
		l.warn(fmt.Sprintf("mailinglistcache: refresh after cold load failed: %v", err))
	}
}

// refresh repopulates the snapshot: page 0 decides freshness via the head
// timestamp; a stale cache refetches every page, sorts, and persists.
func (l *live) refresh() error {
	ctx := context.Background()

	page0, err := l.api.GetAvailableListsPage(ctx, 0)
	if err != nil {
		return err
	}
	if len(page0) == 0 {
		return nil
	}
	if len(l.items) > 0 && l.head.Equal(page0[0].LastUpdate) {
		return nil
	}

	all := append([]model.MailingList{}, page0...)
	for page := 1; ; page++ {
		next, err := l.api.GetAvailableListsPage(ctx, page)
		if err != nil {
			return err
		}
		if len(next) == 0 {
			break
		}
		all = append(all, next...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	l.items = all
	if len(all) > 0 {
		l.head = all[0].LastUpdate
	}

	return l.persist()
}

func (l *live) persist() error {
	file := model.ListsFile{HeadLastUpdate: l.head, Items: l.items}
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("mailinglistcache: marshal: %w", err)
	}
	if err := l.fs.WriteFileAtomic(context.Background(), l.path, data); err != nil {
		if l.warn != nil {
			l.warn(fmt.Sprintf("mailinglistcache: persist failed: %v", err))
		}
		return nil
	}
	return nil
}

func (l *live) invalidate() error {
	l.items = nil
	l.head = time.Time{}
	l.loaded = true
	return l.fs.RemoveFile(context.Background(), l.path)
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

func (l *live) Len(ctx context.Context) (int, error) {
	resp, err := l.do(ctx, request{op: opLen})
	return resp.n, err
}

func (l *live) Get(ctx context.Context, index int) (model.MailingList, bool, error) {
	resp, err := l.do(ctx, request{op: opGet, index: index})
	return resp.item, resp.found, err
}

func (l *live) GetSlice(ctx context.Context, start, end int) ([]model.MailingList, error) {
	resp, err := l.do(ctx, request{op: opGetSlice, start: start, end: end})
	return resp.items, err
}

func (l *live) Refresh(ctx context.Context) error {
	resp, err := l.do(ctx, request{op: opRefresh})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) Invalidate(ctx context.Context) error {
	resp, err := l.do(ctx, request{op: opInvalidate})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) IsAvailable(ctx context.Context, index int) (bool, error) {
	resp, err := l.do(ctx, request{op: opIsAvailable, index: index})
	return resp.ok, err
}

// mock is an in-memory Handle seeded directly with items, bypassing
// LoreApi/Fs entirely.
type mock struct {
	items []model.MailingList
}

// Mock returns a MailingListCache handle pre-populated with items (assumed
// already sorted, matching how tests construct fixtures).
func Mock(items []model.MailingList) Handle {
	return &mock{items: items}
}

func (m *mock) Len(_ context.Context) (int, error) { return len(m.items), nil }

func (m *mock) Get(_ context.Context, index int) (model.MailingList, bool, error) {
	if index < 0 || index >= len(m.items) {
		return model.MailingList{}, false, nil
	}
	return m.items[index], true, nil
}

func (m *mock) GetSlice(_ context.Context, start, end int) ([]model.MailingList, error) {
	return sliceClamped(m.items, start, end), nil
}

func (m *mock) Refresh(_ context.Context) error { return nil }

func (m *mock) Invalidate(_ context.Context) error {
	m.items = nil
	return nil
}

func (m *mock) IsAvailable(_ context.Context, index int) (bool, error) {
	return index >= 0 && index < len(m.items), nil
}
