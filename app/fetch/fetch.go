// Package fetch performs conditional HTTP GETs against remote feed servers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/feedpane/feedpane/app/cfg"
)

// maxBodySize caps how much of a response is read. Feeds larger than this are
// almost certainly not feeds.
const maxBodySize = 10 * 1024 * 1024

// Result is the outcome of a successful fetch. NotModified means the server
// answered 304 and Body is empty; the caller keeps its stored items.
type Result struct {
	Status       int
	Body         []byte
	ContentType  string
	ETag         string
	LastModified string
	NotModified  bool
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

// NewClient builds a fetch client from the loaded configuration. The default
// http.Client redirect policy is kept deliberately: several large publishers
// permanently redirect feed URLs and a non-following client silently breaks
// them.
func NewClient(httpClient *http.Client) *Client {
	c := cfg.Get()

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		httpClient: httpClient,
		userAgent:  c.UserAgent,
		timeout:    time.Duration(c.FetchTimeout) * time.Second,
	}
}

// Fetch performs a conditional GET for the feed URL. etag and lastModified are
// the tokens from the prior successful fetch, empty when absent. Every
// transport-level failure is converted into *Error; no raw network error
// escapes to the caller.
func (c *Client) Fetch(ctx context.Context, feedURL, etag, lastModified string) (*Result, error) {
	parsed, err := url.Parse(feedURL)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &Error{URL: feedURL, Kind: KindPermanent, Err: fmt.Errorf("invalid feed URL %q", feedURL)}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &Error{URL: feedURL, Kind: KindPermanent, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{URL: feedURL, Kind: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{Status: resp.StatusCode, NotModified: true}, nil
	}

	if resp.StatusCode != http.StatusOK {
		kind := KindTransient
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = KindPermanent
		}
		return nil, &Error{
			URL:    feedURL,
			Kind:   kind,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{URL: feedURL, Kind: KindTransient, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return &Result{
		Status:       resp.StatusCode,
		Body:         body,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// classifyTransport sorts a transport error into the retry taxonomy. DNS
// "no such host" is permanent; timeouts, resets and refusals are transient.
func classifyTransport(err error) Kind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return KindPermanent
	}
	return KindTransient
}
