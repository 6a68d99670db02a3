package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// teaserLength is the plain-text cutoff below which a description is treated
// as a truncated teaser worth a secondary extraction fetch.
const teaserLength = 300

// Extractor pulls the main article text out of an item's own HTML page, for
// feeds that only ship summaries.
type Extractor struct {
	sanitizer *Sanitizer
}

func NewExtractor() *Extractor {
	return &Extractor{sanitizer: NewSanitizer()}
}

// NeedsExtraction reports whether an item carries only a teaser: no
// feed-supplied content and a short (or missing) description.
func (e *Extractor) NeedsExtraction(description, content string) bool {
	if content != "" {
		return false
	}
	return len(e.sanitizer.PlainText(description)) < teaserLength
}

// Run extracts readable article content from an HTML page. The result is
// sanitized before it is handed back for storage.
func (e *Extractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted",
		"title", article.Title,
		"content_length", len(article.Content))

	return e.sanitizer.Run(article.Content), nil
}
