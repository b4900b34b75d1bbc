// Package loreapi provides typed wrappers over the Net handle that
// translate the upstream archive's paginated JSON payloads into
// model.MailingList / model.PatchMeta. It caches no state of its own; the
// three cache actors own validity and persistence.
//
// Upstream payloads are decoded with json-iterator's drop-in encoding/json
// replacement, since the archive's JSON is untrusted and partially
// undocumented: unknown fields and minor shape drift must not break the
// decode.
package loreapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/nahharris/patch-hub/internal/model"
	"github.com/nahharris/patch-hub/internal/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrTransport tags failures to reach the upstream at all (connection,
// non-200 status). Callers decide whether to retry; this layer never does.
var ErrTransport = errors.New("loreapi: transport failure")

// ErrParse tags a malformed upstream payload. The CLI surfaces it to the
// user. The caches do not check for it: a refresh that fails with ErrParse
// is handled like any other refresh error and does not invalidate the cache.
var ErrParse = errors.New("loreapi: malformed upstream payload")

// Handle is the operation surface of the LoreApi actor.
type Handle interface {
	GetAvailableListsPage(ctx context.Context, page int) ([]model.MailingList, error)
	GetPatchFeedPage(ctx context.Context, list string, page int) ([]model.PatchMeta, error)
	GetRawPatch(ctx context.Context, list, messageID string) ([]byte, error)
}

// live is a pure translation layer: every call issues one Net request and
// decodes the response. No mailbox of its own is needed since it holds no
// mutable state to serialise.
type live struct {
	net     transport.Handle
	baseURL string
}

// New returns a LoreApi handle that issues requests against baseURL via
// net. baseURL has no trailing slash.
func New(net transport.Handle, baseURL string) Handle {
	return &live{net: net, baseURL: baseURL}
}

type listsPageResponse struct {
	Lists []listEntry `json:"lists"`
}

type listEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LastUpdate  string `json:"last_update"`
}

type feedPageResponse struct {
	Patches []patchEntry `json:"patches"`
}

type patchEntry struct {
	MessageID    string `json:"message_id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Version      int    `json:"version"`
	PatchesCount int    `json:"patches_count"`
	LastUpdate   string `json:"last_update"`
}

func (l *live) GetAvailableListsPage(ctx context.Context, page int) ([]model.MailingList, error) {
	url := fmt.Sprintf("%s/lists?page=%d", l.baseURL, page)
	resp, err := l.net.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("get_available_lists_page: %w: %w", ErrTransport, err)
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("get_available_lists_page: %w: upstream status %d", ErrTransport, resp.Status)
	}
	if len(resp.Body) == 0 {
		return nil, nil
	}

	var payload listsPageResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("%w: lists page: %v", ErrParse, err)
	}

	out := make([]model.MailingList, 0, len(payload.Lists))
	for _, e := range payload.Lists {
		ts, err := parseTime(e.LastUpdate)
		if err != nil {
			return nil, fmt.Errorf("%w: last_update for %q: %v", ErrParse, e.Name, err)
		}
		out = append(out, model.MailingList{Name: e.Name, Description: e.Description, LastUpdate: ts})
	}
	return out, nil
}

func (l *live) GetPatchFeedPage(ctx context.Context, list string, page int) ([]model.PatchMeta, error) {
	url := fmt.Sprintf("%s/%s/feed?page=%d", l.baseURL, list, page)
	resp, err := l.net.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("get_patch_feed_page(%s): %w: %w", list, ErrTransport, err)
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("get_patch_feed_page(%s): %w: upstream status %d", list, ErrTransport, resp.Status)
	}
	if len(resp.Body) == 0 {
		return nil, nil
	}

	var payload feedPageResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("%w: feed page for %q: %v", ErrParse, list, err)
	}

	out := make([]model.PatchMeta, 0, len(payload.Patches))
	for _, e := range payload.Patches {
		ts, err := parseTime(e.LastUpdate)
		if err != nil {
			return nil, fmt.Errorf("%w: last_update for %q: %v", ErrParse, e.MessageID, err)
		}
		out = append(out, model.PatchMeta{
			MessageID:    e.MessageID,
			Title:        e.Title,
			Author:       e.Author,
			Version:      e.Version,
			PatchesCount: e.PatchesCount,
			LastUpdate:   ts,
			List:         list,
		})
	}
	return out, nil
}

func (l *live) GetRawPatch(ctx context.Context, list, messageID string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/raw", l.baseURL, list, messageID)
	resp, err := l.net.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("get_raw_patch(%s, %s): %w: %w", list, messageID, ErrTransport, err)
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("get_raw_patch(%s, %s): %w: upstream status %d", list, messageID, ErrTransport, resp.Status)
	}
	return resp.Body, nil
}
