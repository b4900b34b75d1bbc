package loreapi

import (
	"context"
	"fmt"
	"sync"

	"github.com/nahharris/patch-hub/internal/model"
)

// MockHandle is a programmable per-argument table Handle.
type MockHandle struct {
	mu          sync.Mutex
	listsPages  map[int][]model.MailingList
	feedPages   map[string]map[int][]model.PatchMeta
	rawPatches  map[string][]byte
	errors      map[string]error
}

// Mock returns an empty programmable LoreApi handle.
func Mock() *MockHandle {
	return &MockHandle{
		listsPages: make(map[int][]model.MailingList),
		feedPages:  make(map[string]map[int][]model.PatchMeta),
		rawPatches: make(map[string][]byte),
		errors:     make(map[string]error),
	}
}

// ProgramListsPage registers the response for GetAvailableListsPage(page).
func (m *MockHandle) ProgramListsPage(page int, items []model.MailingList) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listsPages[page] = items
}

// ProgramFeedPage registers the response for GetPatchFeedPage(list, page).
func (m *MockHandle) ProgramFeedPage(list string, page int, items []model.PatchMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feedPages[list] == nil {
		m.feedPages[list] = make(map[int][]model.PatchMeta)
	}
	m.feedPages[list][page] = items
}

// ProgramRawPatch registers the response for GetRawPatch(list, messageID).
func (m *MockHandle) ProgramRawPatch(list, messageID string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawPatches[rawKey(list, messageID)] = body
}

// ProgramError forces op (one of "lists", "feed", "raw") to fail.
func (m *MockHandle) ProgramError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op] = err
}

func rawKey(list, messageID string) string { return list + "/" + messageID }

func (m *MockHandle) GetAvailableListsPage(_ context.Context, page int) ([]model.MailingList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["lists"]; err != nil {
		return nil, err
	}
	return m.listsPages[page], nil
}

func (m *MockHandle) GetPatchFeedPage(_ context.Context, list string, page int) ([]model.PatchMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["feed"]; err != nil {
		return nil, err
	}
	return m.feedPages[list][page], nil
}

func (m *MockHandle) GetRawPatch(_ context.Context, list, messageID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["raw"]; err != nil {
		return nil, err
	}
	body, ok := m.rawPatches[rawKey(list, messageID)]
	if !ok {
		return nil, fmt.Errorf("loreapi: mock has no raw patch for %s/%s", list, messageID)
	}
	return body, nil
}
