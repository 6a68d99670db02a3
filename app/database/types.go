package database

import (
	"time"
)

type Feed struct {
	ID           int64
	URL          string
	Title        string
	Description  string
	ETag         string // opaque caching token from the last successful fetch
	LastModified string
	LastUpdated  *time.Time // last successful update, nil if the feed never succeeded
	LastAttempt  *time.Time
	FailureCount int
	CreatedAt    time.Time
}

type Item struct {
	ID          int64
	FeedID      int64
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Published   time.Time
	CreatedAt   time.Time

	// Per-session state, populated only by session-scoped queries
	IsRead  bool
	Starred bool
}

// FeedItem is the write-side record handed to UpsertItems by the worker.
type FeedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Published   time.Time
}

// FeedMetadata carries the parsed feed-level fields for a successful fetch.
// Empty fields leave the stored values untouched, so a partial feed never
// blanks out good metadata.
type FeedMetadata struct {
	Title        string
	Description  string
	ETag         string
	LastModified string
}

type Folder struct {
	ID        int64
	SessionID string
	Name      string
	CreatedAt time.Time
}
