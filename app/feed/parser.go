package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
)

// ParseError means the body was not recognizable as a feed at all. Partial
// damage (some malformed items) is not a ParseError; those items are skipped
// and counted instead.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable feed: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Parser struct {
	gofeedParser *gofeed.Parser
	sanitizer    *Sanitizer
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		sanitizer:    NewSanitizer(),
	}
}

// Run parses raw feed bytes into normalized items. Format (RSS 2.0 or Atom) is
// detected from the content itself; the HTTP Content-Type is ignored because
// many servers mislabel feeds as text/html. fetchedAt is the fallback
// published timestamp for items whose dates are missing or unparseable.
// The third return value counts malformed items that were skipped.
func (p *Parser) Run(data []byte, fetchedAt time.Time) (*Metadata, []Item, int, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, 0, &ParseError{Reason: "not a recognizable RSS or Atom document", Err: err}
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Description: parsed.Description,
	}

	items := make([]Item, 0, len(parsed.Items))
	skipped := 0

	for _, item := range parsed.Items {
		if item == nil || (item.GUID == "" && item.Link == "" && item.Title == "") {
			skipped++
			continue
		}
		items = append(items, p.normalizeItem(item, fetchedAt))
	}

	return metadata, items, skipped, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item, fetchedAt time.Time) Item {
	normalized := Item{
		Title:       item.Title,
		Link:        item.Link,
		Description: p.sanitizer.Run(item.Description),
		Content:     p.sanitizer.Run(item.Content),
		Published:   p.resolvePublished(item, fetchedAt),
	}

	normalized.GUID = cmp.Or(item.GUID, item.Link)
	if normalized.GUID == "" {
		normalized.GUID = deriveGUID(normalized.Title, normalized.Published)
	}

	return normalized
}

// resolvePublished normalizes the item timestamp to UTC. gofeed's parsed
// values win; raw date strings it could not handle (missing timezone,
// two-digit years, stray formats) go through dateparse; anything still
// unparseable falls back to the fetch time rather than dropping the item.
func (p *Parser) resolvePublished(item *gofeed.Item, fetchedAt time.Time) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}

	for _, raw := range []string{item.Published, item.Updated} {
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			return t.UTC()
		}
	}

	return fetchedAt.UTC()
}

// deriveGUID is the last-resort canonical identity for items that carry
// neither a GUID nor a link.
func deriveGUID(title string, published time.Time) string {
	sum := sha256.Sum256([]byte(title + "|" + published.Format(time.RFC3339)))
	return hex.EncodeToString(sum[:16])
}
