package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/feedpane/feedpane/app/feed"
	"github.com/feedpane/feedpane/app/fetch"
)

// FeedResolver turns whatever URL a user submits into a feed URL.
type FeedResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

type Resolver struct {
	fetcher *fetch.Client
}

func NewResolver(fetcher *fetch.Client) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve accepts either a direct feed URL or a website URL. For websites it
// runs autodiscovery over the HTML head and returns the first advertised
// RSS/Atom link.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	result, err := r.fetcher.Fetch(ctx, rawURL, "", "")
	if err != nil {
		return "", fmt.Errorf("failed to reach %s: %w", rawURL, err)
	}

	if feed.IsFeedContent(result.ContentType, result.Body) {
		return rawURL, nil
	}

	if feedURL, ok := feed.DiscoverFeedURL(result.Body, rawURL); ok {
		return feedURL, nil
	}

	return "", fmt.Errorf("no feed found at %s", rawURL)
}

var _ FeedResolver = (*Resolver)(nil)
