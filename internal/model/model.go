// Package model holds the plain data types shared across patch-hub's
// caches, loreapi, and ui: MailingList, PatchMeta, and the cache-file
// envelopes they're persisted in.
package model

import "time"

// MailingList identifies one list on the upstream archive. Identity is
// Name; the snapshot orders lists by Name ascending, case-sensitive.
type MailingList struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	LastUpdate  time.Time `yaml:"last_update"`
}

// PatchMeta describes one patch's metadata within a list's feed. Identity
// within a list is MessageID; feeds are ordered newest-first, matching
// upstream's native order.
type PatchMeta struct {
	MessageID    string    `yaml:"message_id"`
	Title        string    `yaml:"title"`
	Author       string    `yaml:"author"`
	Version      int       `yaml:"version"`
	PatchesCount int       `yaml:"patches_count"`
	LastUpdate   time.Time `yaml:"last_update"`
	List         string    `yaml:"list"`
}

// ListsFile is the on-disk envelope at <cache_dir>/mailing_lists.<ext>.
type ListsFile struct {
	HeadLastUpdate time.Time     `yaml:"head_last_update"`
	Items          []MailingList `yaml:"items"`
}

// FeedFile is the on-disk envelope at <cache_dir>/feed/<list>.<ext>.
type FeedFile struct {
	HeadLastUpdate time.Time   `yaml:"head_last_update"`
	Items          []PatchMeta `yaml:"items"`
}
