package feed

import (
	"time"
)

// Metadata holds the parsed feed-level fields. Fields are best-effort; empty
// values mean the feed did not supply them and stored values should be kept.
type Metadata struct {
	Title       string
	Description string
}

// Item is one normalized entry from an RSS or Atom document.
type Item struct {
	GUID        string // canonical identity: feed GUID, else link, else derived hash
	Title       string
	Link        string
	Description string
	Content     string
	Published   time.Time
}
