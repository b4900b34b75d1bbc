// Package patchcache is a permanent, per-patch body cache with a bounded
// in-memory tier. Once a patch body is observed it never changes, so the
// memory tier is a plain LRU rather than anything needing
// invalidation-on-write.
package patchcache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nahharris/patch-hub/internal/actor"
	"github.com/nahharris/patch-hub/internal/fs"
)

// LoreApi is the subset of loreapi.Handle this cache needs.
type LoreApi interface {
	GetRawPatch(ctx context.Context, list, messageID string) ([]byte, error)
}

// Handle is the operation surface of the PatchCache actor.
type Handle interface {
	Get(ctx context.Context, list, messageID string) ([]byte, error)
	Invalidate(ctx context.Context, list, messageID string) error
	IsAvailable(ctx context.Context, list, messageID string) (bool, error)
}

type key struct{ list, messageID string }

type opKind int

const (
	opGet opKind = iota
	opInvalidate
	opIsAvailable
)

type request struct {
	op    opKind
	key   key
	reply chan response
}

type response struct {
	body []byte
	ok   bool
	err  error
}

type live struct {
	mbox *actor.Mailbox[request]

	fs      fs.Handle
	api     LoreApi
	baseDir string

	lru *lru.Cache[key, []byte]
}

// Spawn starts the PatchCache actor. baseDir is <cache_dir>/patch;
// capacity is the LRU memory tier size.
func Spawn(ctx context.Context, fsHandle fs.Handle, api LoreApi, baseDir string, capacity int) (Handle, actor.Join) {
	if capacity < 1 {
		capacity = 50
	}
	cache, _ := lru.New[key, []byte](capacity)

	l := &live{
		mbox:    actor.NewMailbox[request](32),
		fs:      fsHandle,
		api:     api,
		baseDir: baseDir,
		lru:     cache,
	}
	join := make(chan struct{})
	go func() {
		defer close(join)
		l.mbox.Run(ctx, l.apply)
	}()
	return l, join
}

// Close stops the PatchCache actor.
func Close(h Handle) {
	if l, ok := h.(*live); ok {
		l.mbox.Close()
	}
}

func (l *live) apply(req request) {
	var resp response
	switch req.op {
	case opGet:
		resp.body, resp.err = l.get(req.key)
	case opInvalidate:
		resp.err = l.invalidate(req.key)
	case opIsAvailable:
		resp.ok = l.isAvailable(req.key)
	}
	req.reply <- resp
}

func (l *live) pathFor(k key) string {
	return fmt.Sprintf("%s/%s/%s.mbox", l.baseDir, k.list, k.messageID)
}

// get checks the LRU, then disk, then fetches from upstream, admitting
// whatever it found to the tiers above.
func (l *live) get(k key) ([]byte, error) {
	if body, ok := l.lru.Get(k); ok {
		return body, nil
	}

	ctx := context.Background()
	path := l.pathFor(k)

	if body, err := l.fs.ReadFile(ctx, path); err == nil {
		l.lru.Add(k, body)
		return body, nil
	}

	body, err := l.api.GetRawPatch(ctx, k.list, k.messageID)
	if err != nil {
		return nil, err
	}
	if err := l.fs.WriteFile(ctx, path, body); err != nil {
		// The write error is dropped without being logged or returned;
		// in-memory state still serves the value for this process's
		// lifetime.
		l.lru.Add(k, body)
		return body, nil
	}
	l.lru.Add(k, body)
	return body, nil
}

func (l *live) invalidate(k key) error {
	l.lru.Remove(k)
	return l.fs.RemoveFile(context.Background(), l.pathFor(k))
}

func (l *live) isAvailable(k key) bool {
	if l.lru.Contains(k) {
		return true
	}
	_, err := l.fs.ReadFile(context.Background(), l.pathFor(k))
	return err == nil
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

func (l *live) Get(ctx context.Context, list, messageID string) ([]byte, error) {
	resp, err := l.do(ctx, request{op: opGet, key: key{list, messageID}})
	if err != nil {
		return nil, err
	}
	return resp.body, resp.err
}

func (l *live) Invalidate(ctx context.Context, list, messageID string) error {
	resp, err := l.do(ctx, request{op: opInvalidate, key: key{list, messageID}})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) IsAvailable(ctx context.Context, list, messageID string) (bool, error) {
	resp, err := l.do(ctx, request{op: opIsAvailable, key: key{list, messageID}})
	return resp.ok, err
}

// mock is an in-memory Handle: a plain map, no LRU eviction; tests rarely
// need to exercise eviction pressure through the Handle interface itself.
type mock struct {
	bodies map[key][]byte
}

// Mock returns a PatchCache handle pre-populated with bodies.
func Mock(seed map[string]map[string][]byte) Handle {
	bodies := make(map[key][]byte)
	for list, byID := range seed {
		for id, body := range byID {
			bodies[key{list, id}] = body
		}
	}
	return &mock{bodies: bodies}
}

func (m *mock) Get(_ context.Context, list, messageID string) ([]byte, error) {
	body, ok := m.bodies[key{list, messageID}]
	if !ok {
		return nil, fmt.Errorf("patchcache: mock has no body for %s/%s", list, messageID)
	}
	return body, nil
}

func (m *mock) Invalidate(_ context.Context, list, messageID string) error {
	delete(m.bodies, key{list, messageID})
	return nil
}

func (m *mock) IsAvailable(_ context.Context, list, messageID string) (bool, error) {
	_, ok := m.bodies[key{list, messageID}]
	return ok, nil
}
