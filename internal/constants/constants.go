// Package constants centralises the small fixed values shared across
// patch-hub's actors: the page size the caches and the CLI agree on, the
// patch cache LRU capacity, and the built-in defaults Config falls back
// to when no file or env override is present.
package constants

import "time"

const (
	// PageSize is the number of items in one page of mailing lists or patch
	// metadata; pagination everywhere is a contiguous slice of this size.
	PageSize = 20

	// PatchCacheCapacity is the PatchCache in-memory LRU tier's maximum
	// entry count; the disk tier underneath it is unbounded.
	PatchCacheCapacity = 50

	// LogRingCapacity bounds the in-memory ring buffer Log.GetLast reads
	// from, independent of how much has been written to disk.
	LogRingCapacity = 500

	// DefaultMaxAgeDays is Config's default max_age value: log files older
	// than this are deleted by Log.CollectGarbage at startup.
	DefaultMaxAgeDays = 14

	// DefaultMailboxCapacity is the bounded inbox size new actors spawn
	// with unless a caller has a specific reason to size it differently
	// differently. Small on purpose: a full inbox suspends the sender.
	DefaultMailboxCapacity = 32

	// LockAcquireTimeout is a wait bound for lock.Lock.Acquire. App takes
	// the cache_dir lock with the non-blocking TryAcquire and does not use
	// this value.
	LockAcquireTimeout = 5 * time.Second

	// DefaultBaseURL is the upstream archive root LoreApi targets absent a
	// configuration override; it has no trailing slash.
	DefaultBaseURL = "https://lore.kernel.org"
)

// MailingListsFileName is the on-disk snapshot name under cache_dir.
const MailingListsFileName = "mailing_lists.yaml"

// FeedDirName is the per-list feed cache subdirectory under cache_dir.
const FeedDirName = "feed"

// PatchDirName is the per-patch body cache subdirectory under cache_dir.
const PatchDirName = "patch"

// PageBounds returns the half-open [start, end) index range for page, with
// count items per page; a count of 0 or less uses PageSize. Negative pages
// are clamped to 0.
func PageBounds(page, count int) (start, end int) {
	if page < 0 {
		page = 0
	}
	if count <= 0 {
		count = PageSize
	}
	start = page * count
	end = start + count
	return start, end
}
