// Package transport is the HTTP actor: a thin, single-owner wrapper
// around an *http.Client. It carries no retry policy of its own (that
// belongs to a higher layer), so every operation either returns a
// concrete Response or a transport error.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nahharris/patch-hub/internal/actor"
)

// Response is the result of a successful round trip.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Handle is the operation surface of the Net actor.
type Handle interface {
	Get(ctx context.Context, url string, headers http.Header) (Response, error)
	Post(ctx context.Context, url string, headers http.Header, body []byte) (Response, error)
	Put(ctx context.Context, url string, headers http.Header, body []byte) (Response, error)
	Patch(ctx context.Context, url string, headers http.Header, body []byte) (Response, error)
	Delete(ctx context.Context, url string, headers http.Header) (Response, error)
}

type request struct {
	method  string
	url     string
	headers http.Header
	body    []byte
	reply   chan result
}

type result struct {
	resp Response
	err  error
}

// live issues real requests through client, serialised through a mailbox so
// a single Net actor can be reasoned about as one sequential timeline even
// though *http.Client itself is safe for concurrent use.
type live struct {
	client *http.Client
	mbox   *actor.Mailbox[request]
}

// Spawn starts the Net actor. A nil client defaults to a new http.Client
// with a conservative 30-second timeout, since upstream (lore.kernel.org-style) hosts
// are outside our control.
func Spawn(ctx context.Context, client *http.Client) (Handle, actor.Join) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	l := &live{client: client, mbox: actor.NewMailbox[request](32)}

	join := make(chan struct{})
	go func() {
		defer close(join)
		l.mbox.Run(ctx, l.apply)
	}()
	return l, join
}

// Close stops the Net actor.
func Close(h Handle) {
	if l, ok := h.(*live); ok {
		l.mbox.Close()
	}
}

func (l *live) apply(req request) {
	resp, err := l.roundTrip(req)
	req.reply <- result{resp: resp, err: err}
}

func (l *live) roundTrip(req request) (Response, error) {
	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequest(req.method, req.url, bodyReader)
	if err != nil {
		return Response{}, fmt.Errorf("transport: build request: %w", err)
	}
	for k, vs := range req.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("transport: %s %s: %w", req.method, req.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("transport: read body: %w", err)
	}

	return Response{Status: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

func (l *live) do(ctx context.Context, req request) (Response, error) {
	req.reply = make(chan result, 1)
	if err := l.mbox.Send(ctx, req); err != nil {
		return Response{}, err
	}
	select {
	case r := <-req.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (l *live) Get(ctx context.Context, url string, headers http.Header) (Response, error) {
	return l.do(ctx, request{method: http.MethodGet, url: url, headers: headers})
}

func (l *live) Post(ctx context.Context, url string, headers http.Header, body []byte) (Response, error) {
	return l.do(ctx, request{method: http.MethodPost, url: url, headers: headers, body: body})
}

func (l *live) Put(ctx context.Context, url string, headers http.Header, body []byte) (Response, error) {
	return l.do(ctx, request{method: http.MethodPut, url: url, headers: headers, body: body})
}

func (l *live) Patch(ctx context.Context, url string, headers http.Header, body []byte) (Response, error) {
	return l.do(ctx, request{method: http.MethodPatch, url: url, headers: headers, body: body})
}

func (l *live) Delete(ctx context.Context, url string, headers http.Header) (Response, error) {
	return l.do(ctx, request{method: http.MethodDelete, url: url, headers: headers})
}

// mock serves responses from a programmable method+url table, so LoreApi
// tests never touch the network.
type mock struct {
	mu    sync.Mutex
	table map[string]Response
	err   map[string]error
}

// Mock returns a Net handle with no registered responses; use Program to
// populate it before exercising a caller.
func Mock() *MockHandle {
	return &MockHandle{mock: &mock{table: make(map[string]Response), err: make(map[string]error)}}
}

// MockHandle is the concrete mock type, exposing Program in addition to
// Handle so tests can configure it without a type assertion.
type MockHandle struct{ *mock }

func key(method, url string) string { return method + " " + url }

// Program registers the response (or error) returned for method+url.
func (m *MockHandle) Program(method, url string, resp Response, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table[key(method, url)] = resp
	m.err[key(method, url)] = err
}

func (m *mock) lookup(method, url string) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(method, url)
	if err, ok := m.err[k]; ok && err != nil {
		return Response{}, err
	}
	if resp, ok := m.table[k]; ok {
		return resp, nil
	}
	return Response{}, fmt.Errorf("transport: mock has no response for %s", k)
}

func (m *mock) Get(_ context.Context, url string, _ http.Header) (Response, error) {
	return m.lookup(http.MethodGet, url)
}

func (m *mock) Post(_ context.Context, url string, _ http.Header, _ []byte) (Response, error) {
	return m.lookup(http.MethodPost, url)
}

func (m *mock) Put(_ context.Context, url string, _ http.Header, _ []byte) (Response, error) {
	return m.lookup(http.MethodPut, url)
}

func (m *mock) Patch(_ context.Context, url string, _ http.Header, _ []byte) (Response, error) {
	return m.lookup(http.MethodPatch, url)
}

func (m *mock) Delete(_ context.Context, url string, _ http.Header) (Response, error) {
	return m.lookup(http.MethodDelete, url)
}
